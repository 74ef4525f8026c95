// SPDX-License-Identifier: MIT

// Package stream owns the server-side lifecycle of one outbound SSE
// response: sends, heartbeats, abort propagation, and metrics.
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/ssepipe/internal/log"
	"github.com/ManuGH/ssepipe/internal/metrics"
	"github.com/ManuGH/ssepipe/internal/sse"
)

// Sink is the writable end of one outbound stream. For HTTP responses the
// sink wraps the response writer; Close tolerates a transport that has
// already gone away.
type Sink interface {
	io.Writer
	Close() error
}

// Flusher is implemented by sinks that buffer writes. The orchestrator
// flushes after every frame so intermediaries see bytes immediately.
type Flusher interface {
	Flush()
}

// Options configures an Orchestrator. Zero fields use defaults.
type Options struct {
	HeartbeatInterval time.Duration // default 15s
	HeartbeatMessage  string        // default "heartbeat"
	CompletePhase     string        // phase tag for SendResult, default "complete"
	ErrorPhase        string        // phase tag for SendError, default "error"
	Observer          Observer      // optional, nil means no hooks
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 15 * time.Second
	}
	if o.HeartbeatMessage == "" {
		o.HeartbeatMessage = sse.DefaultHeartbeatMessage
	}
	if o.CompletePhase == "" {
		o.CompletePhase = "complete"
	}
	if o.ErrorPhase == "" {
		o.ErrorPhase = "error"
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o
}

// Metrics is a point-in-time snapshot of one stream session.
type Metrics struct {
	Elapsed   time.Duration
	BytesSent int64
	Closed    bool
	Aborted   bool
}

// Orchestrator owns one outbound stream. Once closed or aborted it is
// terminal: every later send is a silent no-op and never writes to the
// torn-down sink.
type Orchestrator struct {
	mu        sync.Mutex
	id        string
	sink      Sink
	opts      Options
	createdAt time.Time
	bytesSent int64
	closed    bool
	aborted   bool
	lastErr   error
	hbStop    chan struct{} // non-nil while the heartbeat runs
	detach    chan struct{} // non-nil while the context watch runs
	logger    zerolog.Logger
}

// New creates an orchestrator around sink and fires the stream-start hook.
// When ctx is non-nil its cancellation aborts the session; a context that
// is already cancelled at construction yields a session that starts
// aborted.
func New(ctx context.Context, sink Sink, opts Options) *Orchestrator {
	o := &Orchestrator{
		id:        uuid.NewString(),
		sink:      sink,
		opts:      opts.withDefaults(),
		createdAt: time.Now(),
	}
	o.logger = xlog.WithComponent("stream").With().Str(xlog.FieldStreamID, o.id).Logger()

	metrics.StreamOpened()
	o.opts.Observer.OnStreamStart(o.id)

	if ctx != nil {
		if ctx.Err() != nil {
			o.Abort("context canceled before stream start")
			return o
		}
		detach := make(chan struct{})
		o.detach = detach
		go func() {
			select {
			case <-ctx.Done():
				o.Abort("context canceled")
			case <-detach:
			}
		}()
	}
	return o
}

// ID returns the session identifier attached to every hook and log entry.
func (o *Orchestrator) ID() string { return o.id }

// SendUpdate encodes u as a data frame and writes it. A delivery failure
// closes the session and is absorbed: the remote peer disconnecting is an
// expected condition, not a caller bug.
func (o *Orchestrator) SendUpdate(u sse.Update) {
	o.send(sse.Frame{Data: u}, metrics.FrameKindData, u.Phase)
}

// SendProgress sends an update carrying only a phase and optional message.
func (o *Orchestrator) SendProgress(phase, message string) {
	o.SendUpdate(sse.Update{Phase: phase, Message: message})
}

// SendResult sends a terminal update with the configured complete phase.
func (o *Orchestrator) SendResult(result any) {
	o.SendUpdate(sse.Update{Phase: o.opts.CompletePhase, Result: result})
}

// SendError sends a terminal update with the configured error phase.
func (o *Orchestrator) SendError(message string, extra map[string]any) {
	o.SendUpdate(sse.Update{Phase: o.opts.ErrorPhase, Error: message, Extra: extra})
}

// SendEvent writes a typed frame bypassing the Update shape, for protocols
// that need raw custom event names.
func (o *Orchestrator) SendEvent(event string, data any) {
	o.send(sse.Frame{Event: event, Data: data}, metrics.FrameKindEvent, event)
}

func (o *Orchestrator) send(frame sse.Frame, kind, phase string) {
	encoded, err := sse.Encode(frame)
	if err != nil {
		o.logger.Error().Err(err).Msg("frame encoding failed")
		o.opts.Observer.OnError(o.id, err)
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	n, err := io.WriteString(o.sink, encoded)
	o.bytesSent += int64(n)
	if err == nil {
		if f, ok := o.sink.(Flusher); ok {
			f.Flush()
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Debug().Err(err).Msg("stream write failed, peer likely disconnected")
		o.opts.Observer.OnError(o.id, err)
		o.terminate(false, "", err)
		return
	}

	metrics.RecordStreamFrame(kind, n)
	o.opts.Observer.OnUpdateSent(o.id, phase, n)
}

// StartHeartbeat begins writing a comment frame on the configured
// interval. Starting while already running is a no-op. The heartbeat
// stops itself the first time it observes a closed session.
func (o *Orchestrator) StartHeartbeat() {
	o.mu.Lock()
	if o.closed || o.hbStop != nil {
		o.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	o.hbStop = stop
	interval := o.opts.HeartbeatInterval
	o.mu.Unlock()

	go o.heartbeatLoop(stop, interval)
}

// StopHeartbeat stops the heartbeat. Idempotent.
func (o *Orchestrator) StopHeartbeat() {
	o.mu.Lock()
	stop := o.hbStop
	o.hbStop = nil
	o.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (o *Orchestrator) heartbeatLoop(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !o.sendHeartbeat() {
				return
			}
		}
	}
}

// sendHeartbeat writes one comment frame; false means the session is gone.
func (o *Orchestrator) sendHeartbeat() bool {
	encoded := sse.EncodeHeartbeat(o.opts.HeartbeatMessage)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	n, err := io.WriteString(o.sink, encoded)
	o.bytesSent += int64(n)
	if err == nil {
		if f, ok := o.sink.(Flusher); ok {
			f.Flush()
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Debug().Err(err).Msg("heartbeat write failed, peer likely disconnected")
		o.opts.Observer.OnError(o.id, err)
		o.terminate(false, "", err)
		return false
	}

	metrics.RecordStreamFrame(metrics.FrameKindHeartbeat, n)
	o.opts.Observer.OnHeartbeat(o.id)
	return true
}

// Abort transitions to aborted+closed atomically. Idempotent: a second
// call is a no-op and fires no hooks.
func (o *Orchestrator) Abort(reason string) {
	if reason == "" {
		reason = "aborted"
	}
	o.terminate(true, reason, nil)
}

// Close ends the stream normally. The stream-end hook reports success when
// no delivery error was recorded. Idempotent.
func (o *Orchestrator) Close() {
	o.terminate(false, "", nil)
}

// terminate performs the single transition into the terminal state: stops
// the heartbeat, detaches the context watch, closes the sink, and fires
// the end-of-stream hooks exactly once.
func (o *Orchestrator) terminate(abort bool, reason string, cause error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.aborted = abort
	if cause != nil {
		o.lastErr = cause
	}
	lastErr := o.lastErr
	elapsed := time.Since(o.createdAt)
	hbStop := o.hbStop
	o.hbStop = nil
	detach := o.detach
	o.detach = nil
	o.mu.Unlock()

	if hbStop != nil {
		close(hbStop)
	}
	if detach != nil {
		close(detach)
	}
	if err := o.sink.Close(); err != nil {
		o.logger.Debug().Err(err).Msg("sink close failed, transport already gone")
	}

	metrics.StreamClosed(elapsed.Seconds())

	if abort {
		metrics.RecordStreamAbort()
		o.logger.Info().Str("reason", reason).Dur(xlog.FieldDuration, elapsed).Msg("stream aborted")
		o.opts.Observer.OnAbort(o.id, reason)
		if lastErr == nil {
			lastErr = fmt.Errorf("stream aborted: %s", reason)
		}
		o.opts.Observer.OnStreamEnd(o.id, elapsed, false, lastErr)
		return
	}

	o.logger.Debug().Dur(xlog.FieldDuration, elapsed).Int64(xlog.FieldBytes, o.BytesSent()).Msg("stream closed")
	o.opts.Observer.OnStreamEnd(o.id, elapsed, lastErr == nil, lastErr)
}

// BytesSent returns the cumulative bytes written so far.
func (o *Orchestrator) BytesSent() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bytesSent
}

// Metrics returns a point-in-time snapshot, not a live reference.
func (o *Orchestrator) Metrics() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Metrics{
		Elapsed:   time.Since(o.createdAt),
		BytesSent: o.bytesSent,
		Closed:    o.closed,
		Aborted:   o.aborted,
	}
}
