// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"

	xlog "github.com/ManuGH/ssepipe/internal/log"
)

// Recoverer converts handler panics into a 500 response with a structured
// log entry. http.ErrAbortHandler passes through untouched; it is how a
// handler deliberately drops a connection mid-stream.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)

				reqID := xlog.RequestIDFromContext(r.Context())
				logger := xlog.WithComponentFromContext(r.Context(), "panic-recovery")
				logger.Error().
					Str(xlog.FieldEvent, "panic.recovered").
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic_value", rec).
					Str("stack_trace", string(buf[:n])).
					Msg("panic recovered in HTTP handler")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":     "Internal server error",
					"requestId": reqID,
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
