// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	xlog "github.com/ManuGH/ssepipe/internal/log"
	"github.com/ManuGH/ssepipe/internal/sse"
	"github.com/ManuGH/ssepipe/internal/stream"
)

const (
	defaultTickCount    = 5
	defaultTickInterval = 200 * time.Millisecond
	maxTickCount        = 1000
	maxTickInterval     = time.Minute
)

// handleEvents streams a demonstration sequence of progress updates. The
// orchestrator owns the stream lifecycle: a client disconnect aborts via
// the request context, and heartbeats keep intermediaries from cutting
// the connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ticks, err := positiveIntParam(r, "ticks", defaultTickCount, maxTickCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	interval, err := durationParam(r, "interval", defaultTickInterval, maxTickInterval)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sse.SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	o := stream.New(ctx, newResponseSink(w), stream.Options{
		HeartbeatInterval: s.cfg.Stream.HeartbeatInterval,
		HeartbeatMessage:  s.cfg.Stream.HeartbeatMessage,
	})
	defer o.Close()

	logger := xlog.WithContext(ctx, s.logger)
	logger.Debug().Str(xlog.FieldStreamID, o.ID()).Int("ticks", ticks).Msg("event stream started")

	o.StartHeartbeat()
	o.SendEvent(sse.EventStart, sse.Update{Phase: "starting"})

	for i := 1; i <= ticks; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		o.SendProgress("working", fmt.Sprintf("tick %d/%d", i, ticks))
	}

	o.SendResult(map[string]any{"ticks": ticks})
	o.Close()

	m := o.Metrics()
	logger.Debug().
		Str(xlog.FieldStreamID, o.ID()).
		Int64(xlog.FieldBytes, m.BytesSent).
		Dur(xlog.FieldDuration, m.Elapsed).
		Msg("event stream finished")
}

func positiveIntParam(r *http.Request, name string, def, limit int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > limit {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

func durationParam(r *http.Request, name string, def, limit time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 || v > limit {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}
