// SPDX-License-Identifier: MIT

// Package api wires the streaming core into an HTTP server: routing,
// middleware, response headers, and the handler surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ssepipe/internal/api/middleware"
	"github.com/ManuGH/ssepipe/internal/config"
	xlog "github.com/ManuGH/ssepipe/internal/log"
)

// Server is the HTTP API server for ssepipe.
type Server struct {
	cfg    config.Config
	router *chi.Mux
	logger zerolog.Logger
}

// New builds a server with the canonical middleware stack and all routes
// registered.
func New(cfg config.Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: xlog.WithComponent("api"),
	}

	s.router = middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:     true,
		EnableLogging:     true,
		EnableRateLimit:   cfg.RateLimit.Enabled,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.WindowSeconds,
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router.Get("/events", s.handleEvents)

	return s
}

// Router returns the configured handler for mounting into an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
