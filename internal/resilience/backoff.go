// SPDX-License-Identifier: MIT

package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig describes an exponential-backoff schedule. It is a pure
// value type; copies are independent.
type BackoffConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	JitterFactor float64
}

// DefaultBackoff returns the schedule used when callers pass a zero config:
// 3 attempts, 1s initial, 30s cap, doubling, 25% jitter.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.25,
	}
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	d := DefaultBackoff()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = d.JitterFactor
	}
	return c
}

// BackoffDelay computes the delay before retry number attempt (zero-based):
// min(initial * multiplier^attempt, max), plus, when jitter is enabled, a
// uniform random amount in [0, delay*jitterFactor).
func BackoffDelay(attempt int, cfg BackoffConfig) time.Duration {
	cfg = cfg.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	base := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		base += rand.Float64() * base * cfg.JitterFactor
	}
	return time.Duration(base)
}
