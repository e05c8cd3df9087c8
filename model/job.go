package model

import (
	"encoding/json"
	"time"
)

// JobRecord is the audit-log projection of one queue job execution, used for
// operational visibility. It is independent of the ScheduledPost/PlatformTarget
// pair and carries its own status vocabulary (JobStatus, not TargetStatus).
type JobRecord struct {
	ID            string                 `json:"id"`
	QueueName     string                 `json:"queue_name"`
	JobName       string                 `json:"job_name"`
	Platform      string                 `json:"platform,omitempty"`
	Status        string                 `json:"status"`
	AttemptsMade  int                    `json:"attempts_made"`
	AttemptsMax   int                    `json:"attempts_max"`
	LastError     string                 `json:"last_error,omitempty"`
	ErrorType     string                 `json:"error_type,omitempty"`
	EnqueuedAt    *time.Time             `json:"enqueued_at,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	FinishedAt    *time.Time             `json:"finished_at,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	ScheduledPost *ScheduledPostSummary  `json:"scheduled_post,omitempty"`
	SocialPost    *SocialPostSummary     `json:"social_post,omitempty"`
	Draft         *DraftSummary          `json:"draft,omitempty"`
	Snapshot      *QueueJobSnapshot      `json:"snapshot,omitempty"`
	Operations    JobOperations          `json:"operations"`
}

// JobOperations is the capability object attached to every job record. The
// upstream may omit it, in which case it is recomputed from the normalized
// status and the attempts policy.
type JobOperations struct {
	CanRetry  bool `json:"can_retry"`
	CanCancel bool `json:"can_cancel"`
}

// ScheduledPostSummary is the thin back-reference a job record carries to its
// originating scheduled post.
type ScheduledPostSummary struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

type SocialPostSummary struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

type DraftSummary struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// ComputeOperations derives the capability object from the normalized job
// status and the attempts-remaining policy. Retry is allowed for failed or
// canceled jobs only while attempts remain (AttemptsMax of zero means the
// upstream enforces no cap).
func (j *JobRecord) ComputeOperations() JobOperations {
	status := NormalizeJobStatus(j.Status)
	canRetry := status.CanRetry()
	if canRetry && j.AttemptsMax > 0 && j.AttemptsMade >= j.AttemptsMax {
		canRetry = false
	}
	return JobOperations{
		CanRetry:  canRetry,
		CanCancel: status.CanCancel(),
	}
}

// JobPage is one cursor page of job records. NextCursor is an opaque token;
// empty means the listing is exhausted.
type JobPage struct {
	Items      []JobRecord `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// JobStats is the lightweight aggregate served to the dashboard header:
// counts per normalized status plus counts per queue bucket.
type JobStats struct {
	ByStatus map[string]int64 `json:"by_status"`
	ByQueue  map[string]int64 `json:"by_queue"`
	Total    int64            `json:"total"`
}

func (j *JobRecord) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}
