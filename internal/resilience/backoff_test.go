// SPDX-License-Identifier: MIT

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayExactWithoutJitter(t *testing.T) {
	cfg := BackoffConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second, // capped
		time.Second, // capped
	}
	for attempt, want := range expected {
		assert.Equal(t, want, BackoffDelay(attempt, cfg), "attempt %d", attempt)
	}
}

func TestBackoffDelayJitterRange(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.5,
	}

	base := 200 * time.Millisecond // attempt 1
	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		d := BackoffDelay(1, cfg)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "jittered delays must not all be identical")
}

func TestBackoffDelayNegativeAttempt(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 50 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	assert.Equal(t, 50*time.Millisecond, BackoffDelay(-1, cfg))
}

func TestBackoffDefaults(t *testing.T) {
	d := BackoffDelay(0, BackoffConfig{Jitter: false})
	assert.Equal(t, time.Second, d)
}
