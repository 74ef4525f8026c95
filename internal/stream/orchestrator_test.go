// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/ssepipe/internal/sse"
)

// fakeSink records writes and can be told to start failing.
type fakeSink struct {
	mu      sync.Mutex
	buf     strings.Builder
	flushes int
	closed  int
	failErr error
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	return s.buf.WriteString(string(p))
}

func (s *fakeSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	if s.closed > 1 {
		return errors.New("sink already closed")
	}
	return nil
}

func (s *fakeSink) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *fakeSink) contents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// recordingObserver counts every hook invocation.
type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	starts   int
	ends     int
	updates  []string
	beats    int
	errors   []error
	aborts   []string
	lastEnd  struct {
		success bool
		err     error
	}
}

func (r *recordingObserver) OnStreamStart(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
}

func (r *recordingObserver) OnStreamEnd(_ string, _ time.Duration, success bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends++
	r.lastEnd.success = success
	r.lastEnd.err = err
}

func (r *recordingObserver) OnUpdateSent(_ string, phase string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, phase)
}

func (r *recordingObserver) OnHeartbeat(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beats++
}

func (r *recordingObserver) OnError(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recordingObserver) OnAbort(_ string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborts = append(r.aborts, reason)
}

func (r *recordingObserver) snapshot() recordingObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recordingObserver{
		starts: r.starts, ends: r.ends, beats: r.beats,
		updates: append([]string(nil), r.updates...),
		errors:  append([]error(nil), r.errors...),
		aborts:  append([]string(nil), r.aborts...),
		lastEnd: r.lastEnd,
	}
}

func newTestOrchestrator(t *testing.T, opts Options) (*Orchestrator, *fakeSink, *recordingObserver) {
	t.Helper()
	sink := &fakeSink{}
	obs := &recordingObserver{}
	opts.Observer = obs
	o := New(context.Background(), sink, opts)
	t.Cleanup(o.Close)
	return o, sink, obs
}

func TestSendUpdateWritesFrame(t *testing.T) {
	o, sink, obs := newTestOrchestrator(t, Options{})

	o.SendUpdate(sse.Update{Phase: "working", Message: "step 1"})

	out := sink.contents()
	assert.Equal(t, "data: {\"phase\":\"working\",\"message\":\"step 1\"}\n\n", out)
	assert.Equal(t, []string{"working"}, obs.snapshot().updates)
	assert.Equal(t, int64(len(out)), o.BytesSent())
	assert.Positive(t, sink.flushes)
}

func TestConvenienceSends(t *testing.T) {
	o, sink, _ := newTestOrchestrator(t, Options{})

	o.SendProgress("uploading", "25%")
	o.SendResult(map[string]int{"count": 3})
	o.SendError("backend exploded", map[string]any{"code": "E42"})

	out := sink.contents()
	assert.Contains(t, out, "\"phase\":\"uploading\"")
	assert.Contains(t, out, "\"phase\":\"complete\"")
	assert.Contains(t, out, "\"phase\":\"error\"")
	assert.Contains(t, out, "\"error\":\"backend exploded\"")
}

func TestSendEventBypassesUpdateShape(t *testing.T) {
	o, sink, _ := newTestOrchestrator(t, Options{})

	o.SendEvent("delta", map[string]string{"text": "hi"})

	assert.Equal(t, "event: delta\ndata: {\"text\":\"hi\"}\n\n", sink.contents())
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	o, sink, _ := newTestOrchestrator(t, Options{})

	o.Close()
	before := sink.contents()

	assert.NotPanics(t, func() {
		o.SendUpdate(sse.Update{Phase: "late"})
		o.SendProgress("late", "")
		o.SendEvent("late", 1)
	})
	assert.Equal(t, before, sink.contents(), "no writes after close")
}

func TestCloseFiresStreamEndOnce(t *testing.T) {
	o, sink, obs := newTestOrchestrator(t, Options{})

	o.SendProgress("working", "")
	o.Close()
	o.Close()

	snap := obs.snapshot()
	assert.Equal(t, 1, snap.starts)
	assert.Equal(t, 1, snap.ends)
	assert.True(t, snap.lastEnd.success)
	assert.NoError(t, snap.lastEnd.err)
	assert.Equal(t, 1, sink.closed)
}

func TestAbortIsIdempotent(t *testing.T) {
	o, _, obs := newTestOrchestrator(t, Options{})

	o.Abort("client went away")
	o.Abort("client went away")
	o.Close()

	snap := obs.snapshot()
	require.Equal(t, []string{"client went away"}, snap.aborts)
	assert.Equal(t, 1, snap.ends, "lifecycle hooks fire once")
	assert.False(t, snap.lastEnd.success)
	require.Error(t, snap.lastEnd.err)
	assert.Contains(t, snap.lastEnd.err.Error(), "client went away")

	m := o.Metrics()
	assert.True(t, m.Closed)
	assert.True(t, m.Aborted)
}

func TestWriteFailureIsAbsorbed(t *testing.T) {
	o, sink, obs := newTestOrchestrator(t, Options{})

	sink.failWith(errors.New("broken pipe"))

	assert.NotPanics(t, func() { o.SendProgress("working", "") })

	snap := obs.snapshot()
	require.Len(t, snap.errors, 1)
	assert.Equal(t, 1, snap.ends)
	assert.False(t, snap.lastEnd.success)

	m := o.Metrics()
	assert.True(t, m.Closed)
	assert.False(t, m.Aborted)

	// Later sends are silent no-ops.
	o.SendProgress("late", "")
	assert.Len(t, obs.snapshot().errors, 1)
}

func TestHeartbeatWritesCommentFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	o, sink, obs := newTestOrchestrator(t, Options{
		HeartbeatInterval: 10 * time.Millisecond,
		HeartbeatMessage:  "ping",
	})

	o.StartHeartbeat()
	o.StartHeartbeat() // idempotent

	assert.Eventually(t, func() bool { return obs.snapshot().beats >= 2 },
		time.Second, 5*time.Millisecond)

	o.Close()
	assert.Contains(t, sink.contents(), ": ping\n\n")

	beatsAtClose := obs.snapshot().beats
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, beatsAtClose, obs.snapshot().beats, "heartbeat stops with the session")
}

func TestStopHeartbeatIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	o, _, _ := newTestOrchestrator(t, Options{HeartbeatInterval: 5 * time.Millisecond})

	o.StartHeartbeat()
	o.StopHeartbeat()
	o.StopHeartbeat()
	o.Close()
}

func TestContextCancellationAborts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{}
	obs := &recordingObserver{}
	o := New(ctx, sink, Options{Observer: obs})

	cancel()

	assert.Eventually(t, func() bool { return o.Metrics().Aborted },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"context canceled"}, obs.snapshot().aborts)
}

func TestAlreadyCancelledContextStartsAborted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(ctx, &fakeSink{}, Options{})

	m := o.Metrics()
	assert.True(t, m.Closed)
	assert.True(t, m.Aborted)
}

func TestMetricsSnapshot(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, Options{})

	o.SendProgress("working", "")
	m := o.Metrics()

	assert.Positive(t, m.BytesSent)
	assert.GreaterOrEqual(t, m.Elapsed, time.Duration(0))
	assert.False(t, m.Closed)

	// The snapshot does not track later mutation.
	o.Close()
	assert.False(t, m.Closed)
}

func TestSinkCloseToleratesDoubleClose(t *testing.T) {
	sink := &fakeSink{}
	o := New(context.Background(), sink, Options{})

	require.NoError(t, sink.Close()) // transport side goes first
	assert.NotPanics(t, o.Close)
}
