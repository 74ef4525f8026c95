// SPDX-License-Identifier: MIT

// Package resilience provides the client-side failure-handling primitives:
// a circuit breaker with a shared registry, exponential-backoff retry, and
// request/idle timeout enforcement.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/ssepipe/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is the sentinel matched by errors.Is when a breaker
// refuses a call. The concrete error is always an *OpenError.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// OpenError is returned when a breaker refuses to attempt a call. It carries
// the remaining cooldown and the failure count so callers can surface both.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
	Failures   int
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker %q is open (retry in %s, %d failures)",
		e.Name, e.RetryAfter.Round(time.Millisecond), e.Failures)
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// BreakerOptions configures a circuit breaker. Zero fields fall back to
// defaults.
type BreakerOptions struct {
	FailureThreshold int           // consecutive failures before opening (default 5)
	SuccessThreshold int           // half-open successes before closing (default 2)
	ResetTimeout     time.Duration // open duration before probing (default 30s)

	// IsFailure decides whether an operation error counts toward the
	// threshold. Nil counts every error.
	IsFailure func(error) bool
}

func (o BreakerOptions) withDefaults() BreakerOptions {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = 2
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = 30 * time.Second
	}
	return o
}

// CircuitBreaker fails fast when a wrapped operation keeps failing, and
// probes for recovery after a cooldown instead of on every call.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	opts      BreakerOptions
	state     State
	failures  int
	successes int // meaningful only while half-open
	openedAt  time.Time
	clock     clock
}

// BreakerOption configures construction-time behavior.
type BreakerOption func(*CircuitBreaker)

// WithClock injects a clock for tests.
func WithClock(c clock) BreakerOption {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(name string, opts BreakerOptions, o ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:  name,
		opts:  opts.withDefaults(),
		state: StateClosed,
		clock: realClock{},
	}
	for _, opt := range o {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn respecting the breaker state. When the breaker is open it
// returns an *OpenError without invoking fn. A real operation error is
// always returned unchanged; the breaker only substitutes its own error
// when refusing the call outright.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if ok, refusal := cb.allowRequest(); !ok {
		metrics.RecordCircuitBreakerRejection(cb.name)
		return refusal
	}

	err := fn(ctx)
	if err != nil {
		if cb.opts.IsFailure == nil || cb.opts.IsFailure(err) {
			cb.recordFailure()
		}
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeProbe()

	switch cb.state {
	case StateClosed:
		return true, nil
	case StateOpen:
		remaining := cb.opts.ResetTimeout - cb.clock.Now().Sub(cb.openedAt)
		return false, &OpenError{Name: cb.name, RetryAfter: remaining, Failures: cb.failures}
	default:
		// Half-open is permissive: every caller is admitted as a probe.
		return true, nil
	}
}

// maybeProbe transitions open to half-open once the cooldown has elapsed.
// Caller must hold the lock.
func (cb *CircuitBreaker) maybeProbe() {
	if cb.state == StateOpen && cb.clock.Now().Sub(cb.openedAt) >= cb.opts.ResetTimeout {
		cb.transitionTo(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	if cb.state == StateHalfOpen {
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
		return
	}
	if cb.state == StateClosed && cb.failures >= cb.opts.FailureThreshold {
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.opts.SuccessThreshold {
			cb.failures = 0
			cb.transitionTo(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// transitionTo handles state transitions and updates metrics.
// Caller must hold the lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	switch newState {
	case StateOpen:
		cb.openedAt = cb.clock.Now()
	case StateHalfOpen:
		cb.successes = 0
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state, applying any due open-to-half-open
// transition first.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeProbe()
	return cb.state
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
