package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduledPost is the root record for one authored post aimed at one or more
// platform accounts. It is owned by the upstream scheduler service; Postline
// only ever reads it.
type ScheduledPost struct {
	ID           string           `json:"id"`
	Content      string           `json:"content"`
	Mode         string           `json:"mode"` // "immediate" or "scheduled"
	EditPolicy   string           `json:"edit_policy,omitempty"`
	DraftID      string           `json:"draft_id,omitempty"`
	Status       string           `json:"status,omitempty"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Platforms    []PlatformTarget `json:"platforms"`
}

// PlatformTarget is one (platform, account) unit of publishing work inside a
// ScheduledPost. Its status moves independently of its siblings and is mutated
// exclusively by the upstream job runner.
type PlatformTarget struct {
	AccountID     string            `json:"account_id"`
	Platform      string            `json:"platform"`
	AccountName   string            `json:"account_name,omitempty"`
	Status        string            `json:"status"`
	Caption       string            `json:"caption,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	PublishedAt   *time.Time        `json:"published_at,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	ErrorType     string            `json:"error_type,omitempty"`
	Job           *QueueJobSnapshot `json:"job,omitempty"`
	SocialPostID  string            `json:"social_post_id,omitempty"`
	ScheduledTime *time.Time        `json:"scheduled_time,omitempty"`
}

// QueueJobSnapshot is point-in-time queue-runner state attached to a target or
// a job history record.
type QueueJobSnapshot struct {
	State        string `json:"state,omitempty"`
	AttemptsMade int    `json:"attempts_made"`
	AttemptsMax  int    `json:"attempts_max"`
	DelayMs      int64  `json:"delay_ms,omitempty"`
}

// SocialPost is the published artifact on a platform. Created exactly once per
// successfully published target and immutable afterwards; edits go through
// cancel-and-recreate upstream, never an in-place mutation.
type SocialPost struct {
	ID          string                 `json:"id"`
	Platform    string                 `json:"platform,omitempty"`
	AccountID   string                 `json:"account_id,omitempty"`
	Content     string                 `json:"content,omitempty"`
	URL         string                 `json:"url,omitempty"`
	MediaURLs   []string               `json:"media_urls,omitempty"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// ImmediateTarget is a transient, derived view of one non-terminal platform
// target, flattened out of its parent post for the "currently publishing"
// dashboard section. It is never persisted; re-deriving it from the same input
// always yields the same key so the UI can key on it without flicker.
type ImmediateTarget struct {
	Key             string       `json:"key"`
	ScheduledPostID string       `json:"scheduled_post_id"`
	AccountID       string       `json:"account_id"`
	Platform        string       `json:"platform"`
	AccountName     string       `json:"account_name,omitempty"`
	Status          TargetStatus `json:"status"`
	Label           string       `json:"label"`
	LastError       string       `json:"last_error,omitempty"`
	Content         string       `json:"content,omitempty"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
}

// platformDisplayNames carries the handful of brand spellings that plain
// title-casing gets wrong.
var platformDisplayNames = map[string]string{
	"twitter":   "Twitter",
	"x":         "X",
	"linkedin":  "LinkedIn",
	"facebook":  "Facebook",
	"instagram": "Instagram",
	"tiktok":    "TikTok",
	"youtube":   "YouTube",
	"threads":   "Threads",
	"mastodon":  "Mastodon",
	"bluesky":   "Bluesky",
}

// PlatformDisplayName returns the brand spelling for a platform identifier,
// falling back to simple title-casing for platforms it does not know.
func PlatformDisplayName(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if name, ok := platformDisplayNames[p]; ok {
		return name
	}
	if p == "" {
		return "Unknown"
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

// TargetKey builds the stable identifier for a (scheduledPostID, accountID)
// pair. Deterministic on purpose: the immediate view is re-derived on every
// poll tick and must not produce new keys for the same target.
func TargetKey(scheduledPostID, accountID string) string {
	return fmt.Sprintf("%s:%s", scheduledPostID, accountID)
}

// immediateLabel renders the progress line shown next to an in-flight target.
func immediateLabel(platform string, status TargetStatus, lastError string) string {
	switch status {
	case TargetStatusFailed:
		if lastError == "" {
			return "Publishing failed"
		}
		return fmt.Sprintf("Publishing failed: %s", lastError)
	default:
		return fmt.Sprintf("Publishing to %s...", PlatformDisplayName(platform))
	}
}

// ImmediateTargets flattens the post's platform targets into the transient
// immediate view. A target is included iff it is still in flight (pending,
// publishing, or failed-awaiting-retry); published and canceled targets
// disappear from this view and only remain in the durable history.
func (p *ScheduledPost) ImmediateTargets() []ImmediateTarget {
	targets := make([]ImmediateTarget, 0, len(p.Platforms))
	for _, target := range p.Platforms {
		status := NormalizeTargetStatus(target.Status)
		if !status.InFlight() {
			continue
		}
		targets = append(targets, ImmediateTarget{
			Key:             TargetKey(p.ID, target.AccountID),
			ScheduledPostID: p.ID,
			AccountID:       target.AccountID,
			Platform:        target.Platform,
			AccountName:     target.AccountName,
			Status:          status,
			Label:           immediateLabel(target.Platform, status, target.LastError),
			LastError:       target.LastError,
			Content:         p.Content,
			StartedAt:       target.StartedAt,
		})
	}
	return targets
}

func (p *ScheduledPost) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
