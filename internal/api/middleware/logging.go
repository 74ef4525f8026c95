// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	xlog "github.com/ManuGH/ssepipe/internal/log"
)

// Logging emits one structured log entry per request, after the handler
// returns, so the full latency is captured.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			mw := &metricsWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mw, r)

			logger := xlog.WithComponentFromContext(r.Context(), "http")
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", mw.statusCode).
				Dur(xlog.FieldDuration, time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request handled")
		})
	}
}
