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
	"sync"

	"github.com/postlinehq/postline/config"
	"github.com/postlinehq/postline/internal/cache"
	"github.com/postlinehq/postline/internal/notification"
)

// Cache namespaces. Invalidation is always exact: a namespace plus, for
// single entries, the identifying parts.
const (
	nsJobs   = "jobs" // job-list pages, keyed by filter+cursor
	nsJob    = "job"  // single job records, keyed by job id
	nsPosts  = "posts"
	nsDetail = "post" // aggregated post detail, keyed by post id
)

// Postline is the reconciliation service: one scheduler gateway, one shared
// query cache, the notice feed, and the background trackers. Components never
// touch each other's cached data directly; every cache write goes through the
// defined invalidation points here.
type Postline struct {
	gateway *SchedulerGateway
	cache   cache.Cache
	notices *notification.Feed

	immediate *ImmediateTracker
	stats     *StatsWatcher
	watchers  *watcherRegistry

	// Per-job in-flight guards for the two mutations. An entry present means
	// that action is pending for that job id; actions on different ids are
	// independent.
	mu            sync.Mutex
	retryPending  map[string]bool
	cancelPending map[string]bool
}

// NewPostline initializes the service from the loaded configuration.
func NewPostline() (*Postline, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	queryCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	return newPostline(conf, NewSchedulerGateway(conf), queryCache), nil
}

// newPostline is the injectable constructor used by tests.
func newPostline(conf *config.Configuration, gateway *SchedulerGateway, queryCache cache.Cache) *Postline {
	l := &Postline{
		gateway:       gateway,
		cache:         queryCache,
		notices:       notification.NewFeed(conf.Notification.FeedSize),
		retryPending:  map[string]bool{},
		cancelPending: map[string]bool{},
	}

	l.immediate = NewImmediateTracker(
		conf.Poll.ImmediateInterval(),
		true,
		l.fetchImmediatePosts,
		l.onImmediateSettled,
	)
	l.stats = NewStatsWatcher(conf.Poll.StatsInterval(), true, l.fetchJobStats)
	l.watchers = newWatcherRegistry(l, conf.Poll.DetailInterval())

	return l
}

// Start launches the background trackers. The detail watchers start lazily,
// per viewed post.
func (l *Postline) Start(ctx context.Context) {
	l.immediate.Start(ctx)
	l.stats.Start(ctx)
}

// Stop halts every background poller.
func (l *Postline) Stop() {
	l.immediate.Stop()
	l.stats.Stop()
	l.watchers.StopAll()
}

// Immediate exposes the in-flight target tracker.
func (l *Postline) Immediate() *ImmediateTracker {
	return l.immediate
}

// Stats exposes the job stats watcher.
func (l *Postline) Stats() *StatsWatcher {
	return l.stats
}

// Notices exposes the user-facing notice feed.
func (l *Postline) Notices() *notification.Feed {
	return l.notices
}
