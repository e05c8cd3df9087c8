package model

import "strings"

// TargetStatus is the closed status vocabulary for a platform target within a
// scheduled post. It is deliberately distinct from JobStatus: the two sets share
// some literals ("pending", "failed") but their terminal semantics differ, so
// they are never merged into one enumeration.
type TargetStatus string

const (
	TargetStatusPending    TargetStatus = "pending"
	TargetStatusPublishing TargetStatus = "publishing"
	TargetStatusPublished  TargetStatus = "published"
	TargetStatusFailed     TargetStatus = "failed"
	TargetStatusCanceled   TargetStatus = "canceled"
	TargetStatusDeleted    TargetStatus = "deleted"
)

// JobStatus is the closed status vocabulary for a queue job execution record.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// targetSynonyms maps historical and upstream-specific aliases onto the closed
// target set. "posted" survives from an earlier vocabulary of the publishing
// history; queue-flavoured words map to pending.
var targetSynonyms = map[string]TargetStatus{
	"pending":     TargetStatusPending,
	"queued":      TargetStatusPending,
	"scheduled":   TargetStatusPending,
	"waiting":     TargetStatusPending,
	"publishing":  TargetStatusPublishing,
	"in_progress": TargetStatusPublishing,
	"running":     TargetStatusPublishing,
	"processing":  TargetStatusPublishing,
	"published":   TargetStatusPublished,
	"posted":      TargetStatusPublished,
	"failed":      TargetStatusFailed,
	"error":       TargetStatusFailed,
	"canceled":    TargetStatusCanceled,
	"cancelled":   TargetStatusCanceled,
	"deleted":     TargetStatusDeleted,
}

var jobSynonyms = map[string]JobStatus{
	"pending":     JobStatusPending,
	"queued":      JobStatusPending,
	"waiting":     JobStatusPending,
	"scheduled":   JobStatusPending,
	"delayed":     JobStatusPending,
	"retry":       JobStatusPending,
	"processing":  JobStatusProcessing,
	"active":      JobStatusProcessing,
	"running":     JobStatusProcessing,
	"in_progress": JobStatusProcessing,
	"completed":   JobStatusCompleted,
	"done":        JobStatusCompleted,
	"succeeded":   JobStatusCompleted,
	"success":     JobStatusCompleted,
	"failed":      JobStatusFailed,
	"error":       JobStatusFailed,
	"canceled":    JobStatusCanceled,
	"cancelled":   JobStatusCanceled,
	"archived":    JobStatusCanceled,
}

// NormalizeTargetStatus maps an arbitrary upstream status string onto the closed
// TargetStatus set. Matching is case-insensitive and whitespace-tolerant;
// anything unknown, including the empty string, falls back to pending. Pure
// function, safe to call from any goroutine.
func NormalizeTargetStatus(raw string) TargetStatus {
	if s, ok := targetSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return TargetStatusPending
}

// NormalizeJobStatus maps an arbitrary upstream status string onto the closed
// JobStatus set, defaulting unknown input to pending.
func NormalizeJobStatus(raw string) JobStatus {
	if s, ok := jobSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return JobStatusPending
}

// Terminal reports whether the status is business-terminal: no further
// transition is possible at all, not even operator retry.
func (s TargetStatus) Terminal() bool {
	return s == TargetStatusPublished || s == TargetStatusCanceled || s == TargetStatusDeleted
}

// PollTerminal reports whether the status is terminal for the polling decision.
// Failed counts as poll-terminal even though an operator may still retry it;
// polling resumes only after an explicit retry mutation forces a refetch.
func (s TargetStatus) PollTerminal() bool {
	return s.Terminal() || s == TargetStatusFailed
}

// InFlight reports whether the target is included in the immediate
// "currently publishing" view: pending, publishing, or failed-awaiting-retry.
func (s TargetStatus) InFlight() bool {
	return s == TargetStatusPending || s == TargetStatusPublishing || s == TargetStatusFailed
}

// Active reports whether the target still warrants automatic re-polling of the
// immediate view. Failed targets stay visible but on their own do not keep the
// poller alive.
func (s TargetStatus) Active() bool {
	return s == TargetStatusPending || s == TargetStatusPublishing
}

// CanRetry reports whether an operator retry of the job is permissible in this
// state. The attempts-remaining policy is applied on top by JobRecord.
func (s JobStatus) CanRetry() bool {
	return s == JobStatusFailed || s == JobStatusCanceled
}

// CanCancel reports whether the job can still be canceled.
func (s JobStatus) CanCancel() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}
