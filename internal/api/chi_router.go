// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package api serves the dashboard socket, a read-only status API and the
// Prometheus endpoint over a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/killstream/internal/middleware"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Handler    *Handler
	Middleware *ChiMiddleware

	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler

	// StaticDir, when set, is served at / for the dashboard page.
	StaticDir string
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	mw := cfg.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	// The upgrade needs the raw ResponseWriter, so the socket sits outside
	// the metrics wrapper.
	if cfg.WebSocket != nil {
		r.With(mw.RateLimit()).Handle("/ws", cfg.WebSocket)
	}

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", cfg.Handler.Health)
		r.Get("/live", cfg.Handler.HealthLive)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/stats", cfg.Handler.Stats)
		r.Get("/systems/search", cfg.Handler.SearchSystems)
		r.Get("/characters/lookup", cfg.Handler.LookupCharacter)
	})

	r.Handle("/metrics", promhttp.Handler())

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return r
}
