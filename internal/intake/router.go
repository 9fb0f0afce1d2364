// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package intake

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/streamstat-engine/internal/middleware"
)

// chiMiddleware adapts our http.HandlerFunc-style middleware to chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// RouterConfig controls CORS and rate limiting for the read-only endpoints.
// The webhook endpoint is intentionally exempt from both: origin servers are
// not browsers, and rate-limiting ingest would silently drop events instead
// of rejecting them with a typed reason.
type RouterConfig struct {
	CORSAllowedOrigins  []string
	ReadRateLimit       int
	ReadRateLimitWindow time.Duration
}

// NewRouter builds the HTTP handler for the engine: webhook intake plus the
// health, stats, and metrics endpoints.
func NewRouter(cfg RouterConfig, webhook *Handler, stats *StatsHandler, health *HealthHandler) http.Handler {
	if cfg.ReadRateLimit <= 0 {
		cfg.ReadRateLimit = 1000
	}
	if cfg.ReadRateLimitWindow <= 0 {
		cfg.ReadRateLimitWindow = time.Minute
	}

	perf := middleware.NewPerformanceMonitor(1000)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(perf.Middleware)

	r.Post("/api/webhook", webhook.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "X-Webhook-Signature"},
			MaxAge:         86400,
		}))
		r.Use(httprate.LimitByIP(cfg.ReadRateLimit, cfg.ReadRateLimitWindow))
		r.Get("/stats/active", stats.Active)
		r.Get("/health", health.ServeHTTP)
		r.Handle("/metrics", promhttp.Handler())
	})

	return r
}
