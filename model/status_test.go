package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTargetStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected TargetStatus
	}{
		{"exact match", "published", TargetStatusPublished},
		{"legacy posted alias", "posted", TargetStatusPublished},
		{"mixed case", "PubLishing", TargetStatusPublishing},
		{"surrounding whitespace", "  failed  ", TargetStatusFailed},
		{"british spelling", "cancelled", TargetStatusCanceled},
		{"queue vocabulary maps to pending", "queued", TargetStatusPending},
		{"runner vocabulary maps to publishing", "in_progress", TargetStatusPublishing},
		{"empty string defaults to pending", "", TargetStatusPending},
		{"unknown value defaults to pending", "exploded", TargetStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTargetStatus(tt.input))
		})
	}
}

func TestNormalizeTargetStatusCaseInsensitive(t *testing.T) {
	// Normalization must agree with itself across casings of the same input.
	for raw := range targetSynonyms {
		assert.Equal(t, NormalizeTargetStatus(raw), NormalizeTargetStatus(strings.ToUpper(raw)), raw)
	}
}

func TestNormalizeJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected JobStatus
	}{
		{"completed synonyms", "succeeded", JobStatusCompleted},
		{"done is completed", "DONE", JobStatusCompleted},
		{"active is processing", "active", JobStatusProcessing},
		{"delayed is pending", "delayed", JobStatusPending},
		{"british spelling", "Cancelled", JobStatusCanceled},
		{"empty defaults to pending", "", JobStatusPending},
		{"unknown defaults to pending", "vanished", JobStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeJobStatus(tt.input))
		})
	}
}

func TestTargetStatusPredicates(t *testing.T) {
	assert.True(t, TargetStatusPublished.Terminal())
	assert.True(t, TargetStatusCanceled.Terminal())
	assert.False(t, TargetStatusFailed.Terminal())

	// Failed is terminal for the polling decision only.
	assert.True(t, TargetStatusFailed.PollTerminal())
	assert.True(t, TargetStatusPublished.PollTerminal())
	assert.True(t, TargetStatusDeleted.PollTerminal())
	assert.False(t, TargetStatusPending.PollTerminal())
	assert.False(t, TargetStatusPublishing.PollTerminal())

	assert.True(t, TargetStatusFailed.InFlight())
	assert.False(t, TargetStatusFailed.Active())
	assert.True(t, TargetStatusPending.Active())
	assert.False(t, TargetStatusPublished.InFlight())
}

func TestJobStatusCapabilities(t *testing.T) {
	assert.True(t, JobStatusFailed.CanRetry())
	assert.True(t, JobStatusCanceled.CanRetry())
	assert.False(t, JobStatusCompleted.CanRetry())
	assert.False(t, JobStatusProcessing.CanRetry())

	assert.True(t, JobStatusPending.CanCancel())
	assert.True(t, JobStatusProcessing.CanCancel())
	assert.False(t, JobStatusCompleted.CanCancel())
	assert.False(t, JobStatusFailed.CanCancel())
}
