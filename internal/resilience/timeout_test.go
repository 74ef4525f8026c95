// SPDX-License-Identifier: MIT

package resilience

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestTimeoutFires(t *testing.T) {
	ctx, cancel := WithRequestTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	<-ctx.Done()

	var timeoutErr *TimeoutError
	require.ErrorAs(t, context.Cause(ctx), &timeoutErr)
	assert.Equal(t, TimeoutRequest, timeoutErr.Kind)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.After)
}

func TestWithRequestTimeoutZeroDisablesDeadline(t *testing.T) {
	ctx, cancel := WithRequestTimeout(context.Background(), 0)
	defer cancel()

	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	select {
	case <-ctx.Done():
		t.Fatal("context must not fire without a deadline")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestWithRequestTimeoutPropagatesFiredParent(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	parentCancel()

	ctx, cancel := WithRequestTimeout(parent, time.Minute)
	defer cancel()

	require.Error(t, ctx.Err(), "an already-cancelled parent yields a cancelled child")
}

func TestIdleWatchdogFiresOnceAfterGap(t *testing.T) {
	var fired atomic.Int32
	var got error
	w := NewIdleWatchdog(30*time.Millisecond, func(err error) {
		fired.Add(1)
		got = err
	})
	defer w.Stop()

	assert.Eventually(t, func() bool { return fired.Load() == 1 },
		500*time.Millisecond, 5*time.Millisecond)

	// No second firing.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	var timeoutErr *TimeoutError
	require.ErrorAs(t, got, &timeoutErr)
	assert.Equal(t, TimeoutIdle, timeoutErr.Kind)
}

func TestIdleWatchdogTouchPreventsFiring(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatchdog(50*time.Millisecond, func(error) { fired.Add(1) })
	defer w.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		w.Touch()
	}
	// 100ms elapsed, but never 50ms without a touch.
	assert.Zero(t, fired.Load())
}

func TestIdleWatchdogStop(t *testing.T) {
	var fired atomic.Int32
	w := NewIdleWatchdog(20*time.Millisecond, func(error) { fired.Add(1) })
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())

	w.Touch() // no-op after Stop
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestIdleWatchdogInertWithoutDuration(t *testing.T) {
	w := NewIdleWatchdog(0, func(error) { t.Fatal("inert watchdog must never fire") })
	defer w.Stop()

	w.Touch()
	time.Sleep(20 * time.Millisecond)
}
