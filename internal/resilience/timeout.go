// SPDX-License-Identifier: MIT

package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/ssepipe/internal/metrics"
)

// TimeoutKind distinguishes the two deadlines enforced on a stream.
type TimeoutKind string

const (
	// TimeoutRequest is the total-request deadline.
	TimeoutRequest TimeoutKind = "request"
	// TimeoutIdle is the no-data deadline, restarted on every chunk.
	TimeoutIdle TimeoutKind = "idle"
)

// TimeoutError reports which deadline fired and its configured duration.
// Match it with errors.As.
type TimeoutError struct {
	Kind  TimeoutKind
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: %s timeout after %s", e.Kind, e.After)
}

// WithRequestTimeout derives a context that cancels after d with a
// request-kind TimeoutError as its cause. A non-positive d disables the
// deadline; the context still propagates the parent's cancellation, so an
// already-cancelled parent yields a cancelled child.
func WithRequestTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, &TimeoutError{Kind: TimeoutRequest, After: d})
}

// IdleWatchdog enforces a deadline restarted on every unit of observed
// progress. The timer starts on construction; Touch restarts it, Stop
// cancels it permanently. Firing is one-shot and invokes the callback with
// an idle-kind TimeoutError.
type IdleWatchdog struct {
	mu      sync.Mutex
	d       time.Duration
	timer   *time.Timer
	stopped bool
	onFire  func(error)
}

// NewIdleWatchdog starts a watchdog firing after d without a Touch. A
// non-positive d produces an inert watchdog that never fires.
func NewIdleWatchdog(d time.Duration, onFire func(error)) *IdleWatchdog {
	w := &IdleWatchdog{d: d, onFire: onFire}
	if d > 0 {
		w.timer = time.AfterFunc(d, w.fire)
	}
	return w
}

// Touch restarts the idle window. It is a no-op after Stop or firing.
func (w *IdleWatchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.timer == nil {
		return
	}
	w.timer.Reset(w.d)
}

// Stop cancels the watchdog permanently.
func (w *IdleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *IdleWatchdog) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	metrics.RecordTimeout(string(TimeoutIdle))
	if w.onFire != nil {
		w.onFire(&TimeoutError{Kind: TimeoutIdle, After: w.d})
	}
}
