/*
Copyright 2025 Postline Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postline

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/internal/apierror"
	"github.com/postlinehq/postline/internal/cache"
	"github.com/postlinehq/postline/model"
	"github.com/sirupsen/logrus"
)

// DefaultJobPageLimit is the page size used when the filter does not set one.
const DefaultJobPageLimit = 25

// JobFilter narrows the job history listing. All fields are optional and
// AND-combined by the upstream; match semantics (exact vs substring) for
// QueueName are upstream-owned and passed through verbatim.
type JobFilter struct {
	Status    string     `json:"status,omitempty"`
	QueueName string     `json:"queue_name,omitempty"`
	Platform  string     `json:"platform,omitempty"`
	JobName   string     `json:"job_name,omitempty"`
	JobID     string     `json:"job_id,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// EffectiveLimit returns the page size, defaulted.
func (f JobFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultJobPageLimit
	}
	return f.Limit
}

// SameScope reports whether two filters differ only in Limit. A scope change
// invalidates any accumulated pagination cursors; a limit change does not.
func (f JobFilter) SameScope(other JobFilter) bool {
	f.Limit, other.Limit = 0, 0
	return f.equal(other)
}

func (f JobFilter) equal(other JobFilter) bool {
	if f.Status != other.Status || f.QueueName != other.QueueName ||
		f.Platform != other.Platform || f.JobName != other.JobName ||
		f.JobID != other.JobID || f.Limit != other.Limit {
		return false
	}
	return timePtrEqual(f.From, other.From) && timePtrEqual(f.To, other.To)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// query renders the filter as upstream query parameters.
func (f JobFilter) query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.QueueName != "" {
		q.Set("queueName", f.QueueName)
	}
	if f.Platform != "" {
		q.Set("platform", f.Platform)
	}
	if f.JobName != "" {
		q.Set("jobName", f.JobName)
	}
	if f.JobID != "" {
		q.Set("jobId", f.JobID)
	}
	if f.From != nil {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	q.Set("limit", strconv.Itoa(f.EffectiveLimit()))
	return q
}

// cacheKey is the documented key constructor for job-list pages: the full
// filter scope plus the cursor, so every distinct page has exactly one
// address.
func (f JobFilter) cacheKey(cursor string) cache.Key {
	parts := []string{
		"status=" + f.Status,
		"queue=" + f.QueueName,
		"platform=" + f.Platform,
		"name=" + f.JobName,
		"id=" + f.JobID,
		"limit=" + strconv.Itoa(f.EffectiveLimit()),
	}
	if f.From != nil {
		parts = append(parts, "from="+f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		parts = append(parts, "to="+f.To.UTC().Format(time.RFC3339))
	}
	parts = append(parts, "cursor="+cursor)
	return cache.NewKey(nsJobs, parts...)
}

// jobKey is the documented key constructor for single job records.
func jobKey(jobID string) cache.Key {
	return cache.NewKey(nsJob, jobID)
}

// ListJobs returns one cursor page of job history, cache-first. The cache TTL
// is short; correctness comes from the exact invalidation performed by the
// retry/cancel mutations, not from expiry.
func (l *Postline) ListJobs(ctx context.Context, filter JobFilter, cursor string) (model.JobPage, error) {
	key := filter.cacheKey(cursor)

	var page model.JobPage
	hit, err := l.cache.Get(ctx, key, &page)
	if err == nil && hit {
		return page, nil
	}

	page, err = l.gateway.ListJobs(ctx, filter, cursor)
	if err != nil {
		return page, err
	}

	if cacheErr := l.cache.Set(ctx, key, page, l.cacheTTL()); cacheErr != nil {
		// A cache write failure degrades to uncached reads, nothing more.
		logWarn("caching job page", cacheErr)
	}
	return page, nil
}

// GetJob returns one job record, cache-first.
func (l *Postline) GetJob(ctx context.Context, jobID string) (*model.JobRecord, error) {
	key := jobKey(jobID)

	var cached model.JobRecord
	hit, err := l.cache.Get(ctx, key, &cached)
	if err == nil && hit {
		return &cached, nil
	}

	job, err := l.gateway.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if cacheErr := l.cache.Set(ctx, key, *job, l.cacheTTL()); cacheErr != nil {
		logWarn("caching job detail", cacheErr)
	}
	return job, nil
}

// RetryJob re-enqueues one job. On success the job-list namespace and this
// job's detail entry are invalidated so subsequent reads are consistent; on
// failure the upstream message (or a static fallback) lands in the notice
// feed and cached data stays untouched. At most one retry may be pending per
// job id.
func (l *Postline) RetryJob(ctx context.Context, jobID string) error {
	if !l.beginAction(l.retryPending, jobID) {
		return nil // already pending; the button is disabled anyway
	}
	defer l.endAction(l.retryPending, jobID)

	if err := l.gateway.RetryJob(ctx, jobID); err != nil {
		l.notices.Error(noticeMessage(err, "Unable to retry job"))
		return err
	}

	l.invalidateJob(ctx, jobID)
	l.notices.Success("Job retry requested")
	return nil
}

// CancelJob cancels one job, with the same invalidation and notice contract
// as RetryJob.
func (l *Postline) CancelJob(ctx context.Context, jobID string) error {
	if !l.beginAction(l.cancelPending, jobID) {
		return nil
	}
	defer l.endAction(l.cancelPending, jobID)

	if err := l.gateway.CancelJob(ctx, jobID); err != nil {
		l.notices.Error(noticeMessage(err, "Unable to cancel job"))
		return err
	}

	l.invalidateJob(ctx, jobID)
	l.notices.Success("Job canceled")
	return nil
}

// RetryPending reports whether a retry is currently in flight for the job.
// The dashboard disables the row's retry button while true.
func (l *Postline) RetryPending(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryPending[jobID]
}

// CancelPending reports whether a cancel is currently in flight for the job.
func (l *Postline) CancelPending(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelPending[jobID]
}

func (l *Postline) beginAction(pending map[string]bool, jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pending[jobID] {
		return false
	}
	pending[jobID] = true
	return true
}

func (l *Postline) endAction(pending map[string]bool, jobID string) {
	l.mu.Lock()
	delete(pending, jobID)
	l.mu.Unlock()
}

// invalidateJob scopes invalidation to the job-list namespace plus the one
// job's detail entry. Other jobs' cached entries are never touched.
func (l *Postline) invalidateJob(ctx context.Context, jobID string) {
	if err := l.cache.InvalidateNamespace(ctx, nsJobs); err != nil {
		logWarn("invalidating job list", err)
	}
	if err := l.cache.Delete(ctx, jobKey(jobID)); err != nil {
		logWarn("invalidating job detail", err)
	}
}

func (l *Postline) cacheTTL() time.Duration {
	conf, err := config.Fetch()
	if err != nil {
		return 30 * time.Second
	}
	return conf.Scheduler.CacheTTL()
}

// fetchJobStats is the stats watcher's refresh source.
func (l *Postline) fetchJobStats(ctx context.Context) (model.JobStats, error) {
	return l.gateway.JobStats(ctx)
}

// noticeMessage prefers the upstream-provided message, falling back to the
// action-specific static string.
func noticeMessage(err error, fallback string) string {
	if apiErr, ok := err.(apierror.APIError); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// JobPager holds the client-side cursor stack that gives the dashboard a
// "previous page" affordance over the upstream's forward-only cursor API.
// One pager belongs to one active view; it is not persisted across tabs.
type JobPager struct {
	mu      sync.Mutex
	filter  JobFilter
	current string
	stack   []string
}

// NewJobPager starts at the first page of the given filter.
func NewJobPager(filter JobFilter) *JobPager {
	return &JobPager{filter: filter}
}

// Filter returns the pager's current filter.
func (p *JobPager) Filter() JobFilter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

// Cursor returns the cursor for the page the view is on ("" = first page).
func (p *JobPager) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Depth returns how many previous pages are stacked.
func (p *JobPager) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

// SetFilter replaces the filter. Any change beyond the page-size limit resets
// pagination to the first page and clears the stack: stale cursors must never
// be replayed against a new filter scope.
func (p *JobPager) SetFilter(filter JobFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.filter.SameScope(filter) {
		p.current = ""
		p.stack = nil
	}
	p.filter = filter
}

// Advance moves forward to the page behind nextCursor, remembering the page
// it came from. An empty nextCursor (exhausted listing) is a no-op.
func (p *JobPager) Advance(nextCursor string) {
	if nextCursor == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stack = append(p.stack, p.current)
	p.current = nextCursor
}

// Back pops to the previously seen page. On the first page it is a no-op.
func (p *JobPager) Back() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stack) == 0 {
		p.current = ""
		return
	}
	p.current = p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
}

// StatsWatcher keeps the latest job stats aggregate warm on a fixed cadence.
// It never settles on its own — stats stay fresh while the dashboard is up —
// but is fully inert when disabled (e.g. the operator lacks the admin view).
type StatsWatcher struct {
	poller  *Poller
	enabled bool
	source  func(ctx context.Context) (model.JobStats, error)

	mu    sync.Mutex
	stats model.JobStats
}

// NewStatsWatcher builds the watcher; a disabled watcher issues no requests.
func NewStatsWatcher(interval time.Duration, enabled bool, source func(ctx context.Context) (model.JobStats, error)) *StatsWatcher {
	w := &StatsWatcher{
		enabled: enabled,
		source:  source,
		stats:   model.JobStats{ByStatus: map[string]int64{}, ByQueue: map[string]int64{}},
	}
	w.poller = NewPoller("job-stats", interval, w.refresh)
	return w
}

func (w *StatsWatcher) Start(ctx context.Context) {
	if !w.enabled {
		return
	}
	w.poller.Start(ctx)
}

func (w *StatsWatcher) Stop() {
	w.poller.Stop()
}

// State exposes the underlying poller state.
func (w *StatsWatcher) State() PollerState {
	return w.poller.State()
}

// Snapshot returns the most recently fetched aggregate.
func (w *StatsWatcher) Snapshot() model.JobStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *StatsWatcher) refresh(ctx context.Context) (bool, error) {
	stats, err := w.source(ctx)
	if err != nil {
		return true, err
	}
	w.mu.Lock()
	w.stats = stats
	w.mu.Unlock()
	return true, nil
}

func logWarn(action string, err error) {
	logrus.Warnf("%s: %v", action, err)
}
