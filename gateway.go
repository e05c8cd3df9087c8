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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/internal/apierror"
	"github.com/postlinehq/postline/model"
)

var gatewayTracer = otel.Tracer("scheduler.gateway")

// SchedulerGateway is the HTTP client for the upstream publishing scheduler
// service. It owns every network interaction of the reconciliation core; all
// calls take a context, which is the only suspension and cancellation point.
// Superseded requests die as context cancellations and are never surfaced to
// the user.
type SchedulerGateway struct {
	baseURL    string
	headers    map[string]string
	client     *http.Client
	maxRetries uint64
}

// NewSchedulerGateway builds a gateway from the loaded configuration.
func NewSchedulerGateway(conf *config.Configuration) *SchedulerGateway {
	return &SchedulerGateway{
		baseURL:    conf.Scheduler.Url,
		headers:    conf.Scheduler.Headers,
		client:     &http.Client{Timeout: conf.Scheduler.Timeout()},
		maxRetries: conf.Scheduler.MaxRetries,
	}
}

// upstreamError is the error body shape the scheduler responds with.
type upstreamError struct {
	Error string `json:"error"`
}

// do executes one HTTP exchange against the scheduler and returns the raw
// body for 2xx responses. Non-2xx responses are mapped onto the error
// taxonomy; the upstream-provided message is preserved for notices.
func (g *SchedulerGateway) do(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	u := g.baseURL + path
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", u, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "building scheduler request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range g.headers {
		req.Header.Set(key, value)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrUpstream, "scheduler unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrUpstream, "reading scheduler response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	// Preserve the upstream message so mutation notices can show it. A body
	// without one leaves Message empty so notices fall back to their static
	// action text; the raw status line still lands in Details for the log.
	var ue upstreamError
	_ = json.Unmarshal(raw, &ue)
	message := ue.Error
	details := string(raw)
	if details == "" {
		details = fmt.Sprintf("scheduler returned status %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apierror.NewAPIError(apierror.ErrNotFound, message, details)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, apierror.NewAPIError(apierror.ErrRejected, message, details)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, message, details)
	default:
		return nil, apierror.NewAPIError(apierror.ErrUpstream, message, details)
	}
}

// get runs a GET with capped exponential backoff. Only transport failures and
// 5xx responses are retried; 4xx outcomes are permanent.
func (g *SchedulerGateway) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	var raw []byte
	operation := func() error {
		var err error
		raw, err = g.do(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			return nil
		}
		if apierror.Code(err) == apierror.ErrUpstream {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newGatewayBackOff(), g.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return raw, nil
}

func newGatewayBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 15 * time.Second
	return b
}

// ListScheduledPosts fetches one page of scheduled posts. Mode narrows the
// listing ("immediate" for the in-flight view, empty for all); cursor and
// limit drive pagination. A malformed or empty upstream body normalizes to an
// empty page rather than an error.
func (g *SchedulerGateway) ListScheduledPosts(ctx context.Context, mode, cursor string, limit int) (model.PostPage, error) {
	ctx, span := gatewayTracer.Start(ctx, "Listing scheduled posts")
	defer span.End()

	query := url.Values{}
	if mode != "" {
		query.Set("mode", mode)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	raw, err := g.get(ctx, "/scheduled-posts", query)
	if err != nil {
		return model.PostPage{Items: []model.ScheduledPost{}}, err
	}

	var page model.PostPage
	if err := json.Unmarshal(raw, &page); err != nil || page.Items == nil {
		return model.PostPage{Items: []model.ScheduledPost{}}, nil
	}
	return page, nil
}

// GetScheduledPostDetail fetches the aggregate payload for one post. The
// returned detail always carries the full payload shape even when the
// upstream omits keys.
func (g *SchedulerGateway) GetScheduledPostDetail(ctx context.Context, id string) (model.PostDetail, error) {
	ctx, span := gatewayTracer.Start(ctx, "Fetching scheduled post detail")
	defer span.End()

	var detail model.PostDetail
	raw, err := g.get(ctx, "/scheduled-posts/"+url.PathEscape(id), nil)
	if err != nil {
		detail.Normalize()
		return detail, err
	}

	_ = json.Unmarshal(raw, &detail)
	detail.Normalize()
	return detail, nil
}

// CancelScheduledPost asks the scheduler to cancel every remaining target of
// the post. Returns the number of queue jobs the upstream removed.
func (g *SchedulerGateway) CancelScheduledPost(ctx context.Context, id string) (int, error) {
	ctx, span := gatewayTracer.Start(ctx, "Canceling scheduled post")
	defer span.End()

	raw, err := g.do(ctx, http.MethodPost, "/scheduled-posts/"+url.PathEscape(id)+"/cancel", nil, nil)
	if err != nil {
		return 0, err
	}

	var out struct {
		Removed int `json:"removed"`
	}
	_ = json.Unmarshal(raw, &out)
	return out.Removed, nil
}

// RetryFailedTargets re-enqueues every failed target of the post. Returns the
// number of jobs the upstream re-enqueued.
func (g *SchedulerGateway) RetryFailedTargets(ctx context.Context, id string) (int, error) {
	ctx, span := gatewayTracer.Start(ctx, "Retrying failed targets")
	defer span.End()

	raw, err := g.do(ctx, http.MethodPost, "/scheduled-posts/"+url.PathEscape(id)+"/retry-failed", nil, nil)
	if err != nil {
		return 0, err
	}

	var out struct {
		Retried int `json:"retried"`
	}
	_ = json.Unmarshal(raw, &out)
	return out.Retried, nil
}

// ListJobs fetches one cursor page of job history records matching the
// filter. Filters are AND-combined upstream; a malformed body normalizes to
// an empty page.
func (g *SchedulerGateway) ListJobs(ctx context.Context, filter JobFilter, cursor string) (model.JobPage, error) {
	ctx, span := gatewayTracer.Start(ctx, "Listing job history")
	defer span.End()

	query := filter.query()
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	raw, err := g.get(ctx, "/admin/jobs", query)
	if err != nil {
		return model.JobPage{Items: []model.JobRecord{}}, err
	}

	var page model.JobPage
	if err := json.Unmarshal(raw, &page); err != nil || page.Items == nil {
		return model.JobPage{Items: []model.JobRecord{}}, nil
	}

	// The capability object is recomputed locally so its invariant holds even
	// when the upstream omits or miscomputes it.
	for i := range page.Items {
		page.Items[i].Operations = page.Items[i].ComputeOperations()
	}
	return page, nil
}

// GetJob fetches one job history record by its durable identifier.
func (g *SchedulerGateway) GetJob(ctx context.Context, jobID string) (*model.JobRecord, error) {
	ctx, span := gatewayTracer.Start(ctx, "Fetching job detail")
	defer span.End()

	raw, err := g.get(ctx, "/admin/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var job model.JobRecord
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrMalformedResponse, "unexpected job payload", err.Error())
	}
	job.Operations = job.ComputeOperations()
	return &job, nil
}

// JobStats fetches the aggregate counts for the dashboard header. A malformed
// body normalizes to empty maps.
func (g *SchedulerGateway) JobStats(ctx context.Context) (model.JobStats, error) {
	ctx, span := gatewayTracer.Start(ctx, "Fetching job stats")
	defer span.End()

	raw, err := g.get(ctx, "/admin/jobs/stats", nil)
	if err != nil {
		return model.JobStats{ByStatus: map[string]int64{}, ByQueue: map[string]int64{}}, err
	}

	var stats model.JobStats
	_ = json.Unmarshal(raw, &stats)
	if stats.ByStatus == nil {
		stats.ByStatus = map[string]int64{}
	}
	if stats.ByQueue == nil {
		stats.ByQueue = map[string]int64{}
	}
	return stats, nil
}

// RetryJob asks the scheduler to re-enqueue one job by its durable id.
func (g *SchedulerGateway) RetryJob(ctx context.Context, jobID string) error {
	ctx, span := gatewayTracer.Start(ctx, "Retrying job")
	defer span.End()

	_, err := g.do(ctx, http.MethodPost, "/admin/jobs/"+url.PathEscape(jobID)+"/retry", nil, nil)
	return err
}

// CancelJob asks the scheduler to cancel one job by its durable id.
func (g *SchedulerGateway) CancelJob(ctx context.Context, jobID string) error {
	ctx, span := gatewayTracer.Start(ctx, "Canceling job")
	defer span.End()

	_, err := g.do(ctx, http.MethodPost, "/admin/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil)
	return err
}
