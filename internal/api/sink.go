// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
)

// responseSink adapts an http.ResponseWriter to the orchestrator's sink
// contract. Closing is a no-op: the HTTP server owns the connection and
// tears it down when the handler returns.
type responseSink struct {
	w http.ResponseWriter
	f http.Flusher
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	f, _ := w.(http.Flusher)
	return &responseSink{w: w, f: f}
}

func (s *responseSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *responseSink) Flush() {
	if s.f != nil {
		s.f.Flush()
	}
}

func (s *responseSink) Close() error {
	return nil
}
