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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postlinehq/postline/model"
)

// DeriveImmediateTargets flattens every platform target of every post into
// the transient "currently publishing" view, applying the inclusion rule on
// each target's normalized status. Derivation is pure; the same input always
// yields the same entries with the same keys.
func DeriveImmediateTargets(posts []model.ScheduledPost) []model.ImmediateTarget {
	targets := make([]model.ImmediateTarget, 0)
	for i := range posts {
		targets = append(targets, posts[i].ImmediateTargets()...)
	}
	return targets
}

// immediateSource fetches the raw scheduled-post collection the immediate
// view is derived from.
type immediateSource func(ctx context.Context) ([]model.ScheduledPost, error)

// ImmediateTracker maintains the self-refreshing set of in-flight publish
// targets. While at least one derived entry is pending or publishing it
// refetches the source on a fixed cadence; when the set empties, or only
// failed entries remain, it settles.
//
// The N>0 → 0 transition is edge-detected on an explicit previous-count field
// and fires the settle hook exactly once — staying at zero fires nothing.
type ImmediateTracker struct {
	source   immediateSource
	onSettle func(ctx context.Context)
	poller   *Poller
	enabled  bool

	mu        sync.Mutex
	targets   []model.ImmediateTarget
	prevCount int
}

// NewImmediateTracker wires a tracker to its post source and settle hook.
// A disabled tracker (enabled=false, e.g. no authenticated session) is fully
// inert: Start is a no-op and no network call is ever issued.
func NewImmediateTracker(interval time.Duration, enabled bool, source immediateSource, onSettle func(ctx context.Context)) *ImmediateTracker {
	t := &ImmediateTracker{
		source:   source,
		onSettle: onSettle,
		enabled:  enabled,
		targets:  []model.ImmediateTarget{},
	}
	t.poller = NewPoller("immediate-targets", interval, t.refresh)
	return t
}

// Start launches the tracker's poller. Inert when the tracker is disabled.
func (t *ImmediateTracker) Start(ctx context.Context) {
	if !t.enabled {
		return
	}
	t.poller.Start(ctx)
}

// Stop halts polling and clears the pending timer.
func (t *ImmediateTracker) Stop() {
	t.poller.Stop()
}

// Kick forces an immediate refresh, re-arming a settled tracker. Called when
// new posts are authored or an operator retries failed targets.
func (t *ImmediateTracker) Kick() {
	if !t.enabled {
		return
	}
	t.poller.Kick()
}

// State exposes the underlying poller state.
func (t *ImmediateTracker) State() PollerState {
	return t.poller.State()
}

// Snapshot returns the current derived set. The slice is a copy; callers may
// hold it across ticks.
func (t *ImmediateTracker) Snapshot() []model.ImmediateTarget {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ImmediateTarget, len(t.targets))
	copy(out, t.targets)
	return out
}

// refresh performs one derive cycle: fetch, flatten, edge-detect the settle
// transition, then decide whether polling continues.
func (t *ImmediateTracker) refresh(ctx context.Context) (bool, error) {
	posts, err := t.source(ctx)
	if err != nil {
		return true, err
	}

	targets := DeriveImmediateTargets(posts)

	t.mu.Lock()
	settled := t.prevCount > 0 && len(targets) == 0
	t.prevCount = len(targets)
	t.targets = targets
	t.mu.Unlock()

	if settled && t.onSettle != nil {
		// One-shot: the durable history picks up the now-settled results
		// without the tracker polling forever.
		logrus.Debug("immediate set emptied, refreshing durable post list")
		t.onSettle(ctx)
	}

	return anyActive(targets), nil
}

// anyActive reports whether at least one entry still keeps the poller alive.
// Failed entries remain visible but do not by themselves warrant re-polling.
func anyActive(targets []model.ImmediateTarget) bool {
	for _, target := range targets {
		if target.Status.Active() {
			return true
		}
	}
	return false
}
