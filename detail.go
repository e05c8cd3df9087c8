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
	"strconv"
	"sync"
	"time"

	"github.com/postlinehq/postline/internal/apierror"
	"github.com/postlinehq/postline/internal/cache"
	"github.com/postlinehq/postline/model"
	"github.com/sirupsen/logrus"
)

// postPageKey is the documented key constructor for scheduled-post list pages.
func postPageKey(mode, cursor string, limit int) cache.Key {
	return cache.NewKey(nsPosts, "mode="+mode, "limit="+strconv.Itoa(limit), "cursor="+cursor)
}

// detailKey is the documented key constructor for aggregated post detail.
func detailKey(postID string) cache.Key {
	return cache.NewKey(nsDetail, postID)
}

// ListScheduledPosts returns one cursor page of the durable post listing,
// cache-first. mode is passed through to the upstream ("", "immediate",
// "scheduled").
func (l *Postline) ListScheduledPosts(ctx context.Context, mode, cursor string, limit int) (model.PostPage, error) {
	if limit <= 0 {
		limit = DefaultJobPageLimit
	}
	key := postPageKey(mode, cursor, limit)

	var page model.PostPage
	hit, err := l.cache.Get(ctx, key, &page)
	if err == nil && hit {
		return page, nil
	}

	page, err = l.gateway.ListScheduledPosts(ctx, mode, cursor, limit)
	if err != nil {
		return page, err
	}

	if cacheErr := l.cache.Set(ctx, key, page, l.cacheTTL()); cacheErr != nil {
		logWarn("caching post page", cacheErr)
	}
	return page, nil
}

// GetPostDetail returns the aggregated detail payload for one post and makes
// sure a detail watcher is running for it while any target is still moving.
// An empty id is inert: no request is issued and an empty, fully-shaped
// payload comes back, so a route that has not resolved its id yet costs
// nothing.
func (l *Postline) GetPostDetail(ctx context.Context, postID string) (model.PostDetail, error) {
	if postID == "" {
		empty := model.PostDetail{}
		empty.Normalize()
		return empty, nil
	}

	key := detailKey(postID)

	var detail model.PostDetail
	hit, err := l.cache.Get(ctx, key, &detail)
	if err == nil && hit {
		l.watchers.Ensure(ctx, postID)
		return detail, nil
	}

	detail, err = l.gateway.GetScheduledPostDetail(ctx, postID)
	if err != nil {
		return detail, err
	}

	if cacheErr := l.cache.Set(ctx, key, detail, l.cacheTTL()); cacheErr != nil {
		logWarn("caching post detail", cacheErr)
	}
	l.watchers.Ensure(ctx, postID)
	return detail, nil
}

// CancelPost cancels one scheduled post and all of its unpublished targets.
// Success invalidates the post's detail entry plus the post-list and job-list
// namespaces and kicks the watchers; failure leaves cached data untouched and
// records a notice.
func (l *Postline) CancelPost(ctx context.Context, postID string) error {
	removed, err := l.gateway.CancelScheduledPost(ctx, postID)
	if err != nil {
		l.notices.Error(noticeMessage(err, "Unable to cancel this scheduled post"))
		return err
	}

	l.invalidatePost(ctx, postID)
	l.notices.Success("Scheduled post canceled (" + strconv.Itoa(removed) + " pending targets removed)")
	l.kickAfterMutation(postID)
	return nil
}

// RetryFailedTargets re-enqueues every failed target of one post. Targets in
// other states are untouched; which targets qualify is decided upstream.
func (l *Postline) RetryFailedTargets(ctx context.Context, postID string) error {
	retried, err := l.gateway.RetryFailedTargets(ctx, postID)
	if err != nil {
		l.notices.Error(noticeMessage(err, "Unable to retry failed targets"))
		return err
	}

	l.invalidatePost(ctx, postID)
	l.notices.Success("Retrying " + strconv.Itoa(retried) + " failed target(s)")
	l.kickAfterMutation(postID)
	return nil
}

func (l *Postline) invalidatePost(ctx context.Context, postID string) {
	if err := l.cache.Delete(ctx, detailKey(postID)); err != nil {
		logWarn("invalidating post detail", err)
	}
	if err := l.cache.InvalidateNamespace(ctx, nsPosts); err != nil {
		logWarn("invalidating post list", err)
	}
	if err := l.cache.InvalidateNamespace(ctx, nsJobs); err != nil {
		logWarn("invalidating job list", err)
	}
}

// kickAfterMutation nudges the pollers so fresh state lands on the next tick
// instead of the next scheduled one, and restarts a settled detail watcher
// when the mutation may have put targets back in flight.
func (l *Postline) kickAfterMutation(postID string) {
	l.immediate.Kick()
	l.watchers.Kick(postID)
}

// fetchImmediatePosts is the immediate tracker's source: the upstream listing
// constrained to immediate-mode posts, every page. A partial read would let
// the derived set "empty" while in-flight targets sit on a later page and
// fire the settle hook early.
func (l *Postline) fetchImmediatePosts(ctx context.Context) ([]model.ScheduledPost, error) {
	var posts []model.ScheduledPost
	cursor := ""
	for {
		page, err := l.gateway.ListScheduledPosts(ctx, "immediate", cursor, DefaultJobPageLimit)
		if err != nil {
			return nil, err
		}
		posts = append(posts, page.Items...)
		if page.NextCursor == "" {
			return posts, nil
		}
		cursor = page.NextCursor
	}
}

// onImmediateSettled fires once per busy-to-empty transition of the immediate
// set: the durable listing just gained finished posts, so its cached pages
// are stale.
func (l *Postline) onImmediateSettled(ctx context.Context) {
	if err := l.cache.InvalidateNamespace(ctx, nsPosts); err != nil {
		logWarn("invalidating post list on settle", err)
	}
}

// DetailWatcher re-polls one post's aggregated detail until every platform
// target is poll-terminal, then settles. A Kick from a mutation wakes a
// settled watcher back into polling.
type DetailWatcher struct {
	postID string
	owner  *Postline
	poller *Poller

	mu   sync.Mutex
	prev map[string]model.TargetStatus // target key -> last observed status
}

func newDetailWatcher(owner *Postline, postID string, interval time.Duration) *DetailWatcher {
	w := &DetailWatcher{
		postID: postID,
		owner:  owner,
		prev:   map[string]model.TargetStatus{},
	}
	w.poller = NewPoller("post-detail:"+postID, interval, w.refresh)
	return w
}

func (w *DetailWatcher) Start(ctx context.Context) { w.poller.Start(ctx) }
func (w *DetailWatcher) Stop()                     { w.poller.Stop() }
func (w *DetailWatcher) Kick()                     { w.poller.Kick() }
func (w *DetailWatcher) State() PollerState        { return w.poller.State() }

// refresh fetches fresh detail, rewrites the cache entry, and emits a
// lifecycle event for every target that just crossed into a terminal state.
func (w *DetailWatcher) refresh(ctx context.Context) (bool, error) {
	detail, err := w.owner.gateway.GetScheduledPostDetail(ctx, w.postID)
	if err != nil {
		if apierror.Code(err) == apierror.ErrNotFound {
			// The post was hard-deleted upstream. Nothing is left to
			// reconcile, so drop the stale entry and settle instead of
			// re-polling a permanent 404.
			if cacheErr := w.owner.cache.Delete(ctx, detailKey(w.postID)); cacheErr != nil {
				logWarn("dropping detail for deleted post", cacheErr)
			}
			logrus.Infof("post %s no longer exists upstream, watcher settling", w.postID)
			return false, nil
		}
		// Transient upstream trouble keeps the cadence; the stale cache
		// entry remains valid until it expires.
		return true, err
	}

	if cacheErr := w.owner.cache.Set(ctx, detailKey(w.postID), detail, w.owner.cacheTTL()); cacheErr != nil {
		logWarn("refreshing post detail", cacheErr)
	}

	w.emitTransitions(detail)
	return !detail.Settled(), nil
}

func (w *DetailWatcher) emitTransitions(detail model.PostDetail) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, target := range detail.Platforms {
		key := model.TargetKey(w.postID, target.AccountID)
		status := model.NormalizeTargetStatus(target.Status)
		prev, seen := w.prev[key]
		w.prev[key] = status

		if !status.PollTerminal() || (seen && prev == status) {
			continue
		}
		// First observation in a terminal state also counts: the transition
		// happened upstream between polls.
		if err := SendWebhook(NewWebhook{
			Event: webhookEventForStatus(status),
			Payload: map[string]interface{}{
				"scheduled_post_id": w.postID,
				"account_id":        target.AccountID,
				"platform":          target.Platform,
				"status":            string(status),
				"last_error":        target.LastError,
			},
		}); err != nil {
			logrus.Warnf("enqueuing lifecycle webhook for %s: %v", key, err)
		}
	}
}

// watcherRegistry owns the per-post detail watchers: lazy creation on first
// view, at most one watcher per post id, settled watchers pruned on the next
// Ensure pass.
type watcherRegistry struct {
	owner    *Postline
	interval time.Duration

	mu       sync.Mutex
	watchers map[string]*DetailWatcher
}

func newWatcherRegistry(owner *Postline, interval time.Duration) *watcherRegistry {
	return &watcherRegistry{
		owner:    owner,
		interval: interval,
		watchers: map[string]*DetailWatcher{},
	}
}

// Ensure starts a watcher for the post if none is running, and prunes
// watchers that have settled since the last pass.
func (r *watcherRegistry) Ensure(ctx context.Context, postID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, w := range r.watchers {
		if id != postID && w.State() == PollerSettled {
			w.Stop()
			delete(r.watchers, id)
		}
	}

	if _, ok := r.watchers[postID]; ok {
		return
	}
	w := newDetailWatcher(r.owner, postID, r.interval)
	r.watchers[postID] = w
	w.Start(ctx)
}

// Kick wakes the post's watcher if one exists.
func (r *watcherRegistry) Kick(postID string) {
	r.mu.Lock()
	w := r.watchers[postID]
	r.mu.Unlock()
	if w != nil {
		w.Kick()
	}
}

// StopAll halts and drops every watcher.
func (r *watcherRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.watchers {
		w.Stop()
		delete(r.watchers, id)
	}
}

// Watching reports whether a watcher exists for the post (any state).
func (r *watcherRegistry) Watching(postID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watchers[postID]
	return ok
}
