// SPDX-License-Identifier: MIT

package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/ssepipe/internal/log"
	"github.com/ManuGH/ssepipe/internal/metrics"
)

// networkErrorIndicators are matched case-insensitively against error
// messages to recognize transient transport failures.
var networkErrorIndicators = []string{
	"network",
	"fetch failed",
	"connection reset",
	"connection refused",
	"unreachable",
	"broken pipe",
	"timeout",
	"deadline exceeded",
	"eof",
}

// IsNetworkError reports whether err looks like a transient network
// failure. Cancellation always wins over classification.
func IsNetworkError(err error) bool {
	if err == nil || IsCancellation(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// IsCancellation reports whether err represents a deliberate cancellation.
// Cancellation is never retried, regardless of any custom retry predicate.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "aborted") || strings.Contains(msg, "canceled")
}

// ReconnectCallbacks observe the retry lifecycle. Every callback is
// optional.
type ReconnectCallbacks struct {
	OnConnected    func()
	OnReconnecting func(attempt int, delay time.Duration)
	OnFailed       func(attempt int, err error)
}

// Reconnector retries a fallible operation with exponential backoff,
// honoring cancellation. Attempt state persists across Execute calls and
// resets on every success, so a long-lived connection that drops starts
// its next recovery from attempt zero.
type Reconnector struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	cb       ReconnectCallbacks
	attempts int
	lastErr  error
	logger   zerolog.Logger
}

// NewReconnector creates a reconnection manager with the given schedule.
func NewReconnector(cfg BackoffConfig, cb ReconnectCallbacks) *Reconnector {
	return &Reconnector{
		cfg:    cfg.withDefaults(),
		cb:     cb,
		logger: xlog.WithComponent("reconnector"),
	}
}

// Attempts returns the current attempt counter.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// LastError returns the most recent operation error.
func (r *Reconnector) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Execute runs op, retrying network-classified failures up to the
// configured maximum. Cancellation, a fired ctx, or a non-retryable error
// returns immediately with the original error.
func (r *Reconnector) Execute(ctx context.Context, op func(context.Context) error) error {
	return retryLoop(ctx, r.cfg, op, IsNetworkError, retryHooks{
		onConnected: func() {
			r.mu.Lock()
			r.attempts = 0
			r.lastErr = nil
			r.mu.Unlock()
			if r.cb.OnConnected != nil {
				r.cb.OnConnected()
			}
		},
		onRetry: func(attempt int, delay time.Duration, err error) {
			r.mu.Lock()
			r.attempts = attempt + 1
			r.lastErr = err
			r.mu.Unlock()
			r.logger.Warn().Err(err).
				Int(xlog.FieldAttempt, attempt).
				Dur("delay", delay).
				Msg("reconnecting after transient failure")
			if r.cb.OnReconnecting != nil {
				r.cb.OnReconnecting(attempt, delay)
			}
		},
		onFailed: func(attempt int, err error) {
			r.mu.Lock()
			r.lastErr = err
			r.mu.Unlock()
			if r.cb.OnFailed != nil {
				r.cb.OnFailed(attempt, err)
			}
		},
		attempts: func() int {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.attempts
		},
	})
}

// RetryOption configures WithRetry.
type RetryOption func(*retryOptions)

type retryOptions struct {
	retryable func(error) bool
	onRetry   func(attempt int, delay time.Duration)
}

// WithRetryable overrides the default network-error classifier.
// Cancellation still short-circuits before the predicate runs.
func WithRetryable(pred func(error) bool) RetryOption {
	return func(o *retryOptions) { o.retryable = pred }
}

// WithOnRetry observes each retry with its computed delay.
func WithOnRetry(fn func(attempt int, delay time.Duration)) RetryOption {
	return func(o *retryOptions) { o.onRetry = fn }
}

// WithRetry is the stateless sibling of Reconnector.Execute, for one-shot
// call sites.
func WithRetry(ctx context.Context, cfg BackoffConfig, op func(context.Context) error, opts ...RetryOption) error {
	o := retryOptions{retryable: IsNetworkError}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := 0
	return retryLoop(ctx, cfg.withDefaults(), op, o.retryable, retryHooks{
		onConnected: func() {},
		onRetry: func(attempt int, delay time.Duration, _ error) {
			attempts = attempt + 1
			if o.onRetry != nil {
				o.onRetry(attempt, delay)
			}
		},
		onFailed: func(int, error) {},
		attempts: func() int { return attempts },
	})
}

type retryHooks struct {
	onConnected func()
	onRetry     func(attempt int, delay time.Duration, err error)
	onFailed    func(attempt int, err error)
	attempts    func() int
}

func retryLoop(ctx context.Context, cfg BackoffConfig, op func(context.Context) error, retryable func(error) bool, hooks retryHooks) error {
	for {
		err := op(ctx)
		if err == nil {
			hooks.onConnected()
			return nil
		}

		if IsCancellation(err) || ctx.Err() != nil {
			metrics.RecordRetry(metrics.RetryOutcomeFatal)
			return err
		}

		attempt := hooks.attempts()
		if retryable == nil {
			retryable = IsNetworkError
		}
		if !retryable(err) {
			metrics.RecordRetry(metrics.RetryOutcomeFatal)
			hooks.onFailed(attempt, err)
			return err
		}
		if attempt >= cfg.MaxAttempts {
			metrics.RecordRetry(metrics.RetryOutcomeExhausted)
			hooks.onFailed(attempt, err)
			return err
		}

		delay := BackoffDelay(attempt, cfg)
		metrics.RecordRetry(metrics.RetryOutcomeRetried)
		hooks.onRetry(attempt, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
