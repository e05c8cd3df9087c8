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
)

// PollerState is the lifecycle of one tracked resource's recurring refresh.
type PollerState string

const (
	// PollerIdle means the poller has not been started (or was stopped).
	PollerIdle PollerState = "idle"
	// PollerPolling means the refresh loop is live.
	PollerPolling PollerState = "polling"
	// PollerSettled means the continuation predicate went false; no further
	// automatic refresh happens until an explicit Kick.
	PollerSettled PollerState = "settled"
)

// RefreshFunc performs one refresh of the tracked resource and reports
// whether polling should continue. Errors are transient by contract: the
// poller logs them and keeps its cadence rather than tearing down the view.
type RefreshFunc func(ctx context.Context) (bool, error)

// Poller drives the Idle/Polling/Settled state machine for one resource.
//
// Refreshes are serialized: the loop goroutine is the only caller of the
// refresh function, so two fetches for the same resource can never race and a
// late response can never overwrite a newer one. A superseded refresh — the
// owning context canceled mid-flight — is discarded silently.
type Poller struct {
	name     string
	interval time.Duration
	refresh  RefreshFunc

	mu     sync.Mutex
	state  PollerState
	cancel context.CancelFunc
	kick   chan struct{}
	done   chan struct{}
}

// NewPoller builds a poller for one resource. The name only labels log lines.
func NewPoller(name string, interval time.Duration, refresh RefreshFunc) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		refresh:  refresh,
		state:    PollerIdle,
		kick:     make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(s PollerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Start launches the refresh loop. The first refresh runs immediately, then
// on the configured cadence. Starting a non-idle poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state != PollerIdle {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.state = PollerPolling
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop tears the loop down and clears any pending timer. Safe to call twice;
// safe to call on a poller that was never started.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	p.setState(PollerIdle)
}

// Kick forces an immediate refresh and re-arms a settled poller. This is the
// only transition out of Settled: a manual refresh, a filter change, or a
// mutation's post-write refetch.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
		// A kick is already pending; collapsing them is fine since refreshes
		// are serialized anyway.
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	timer := time.NewTimer(0) // fire the first refresh immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		keepPolling, err := p.refresh(ctx)
		if ctx.Err() != nil {
			// Superseded mid-flight: drop the result, no error surfaced.
			return
		}
		if err != nil {
			logrus.WithField("poller", p.name).Warnf("refresh failed: %v", err)
			keepPolling = true // transient; keep the cadence
		}

		if !keepPolling {
			p.setState(PollerSettled)
			select {
			case <-ctx.Done():
				return
			case <-p.kick:
				p.setState(PollerPolling)
				timer.Reset(0)
				continue
			}
		}

		p.setState(PollerPolling)
		timer.Reset(p.interval)
	}
}
