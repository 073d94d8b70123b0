// Package api provides the HTTP API for SkyLoop.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/skyloop/skyloop/internal/api/handler"
	"github.com/skyloop/skyloop/internal/api/middleware"
	"github.com/skyloop/skyloop/internal/planner"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Planner     *planner.Planner
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "skyloop-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Planner)
	tripHandler := handler.NewTripHandler(cfg.Planner)

	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)     // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
			r.Post("/graph:refresh", opsHandler.RefreshGraph)
		})

		// Airports in the current flight graph
		r.With(standardRateLimit).Get("/airports", tripHandler.Airports)

		// Search and validation - expensive compute, strict rate limiting
		r.With(searchRateLimit).Post("/trips:search", tripHandler.Search)
		r.With(searchRateLimit).Post("/trips:validate", tripHandler.Validate)
	})

	return r
}
