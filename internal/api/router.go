// Package api provides the HTTP API for Consilium.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/api/handler"
	"github.com/consilium-ai/consilium/internal/api/middleware"
	"github.com/consilium-ai/consilium/internal/orchestrator"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version             string
	BuildTime           string
	Logger              zerolog.Logger
	ServiceName         string
	Metrics             *middleware.Metrics
	Snapshots           handler.SnapshotSource
	Readiness           handler.ReadinessSource
	OrchestratorService *orchestrator.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "consilium-api"
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

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Snapshots, cfg.Readiness)
	analysisHandler := handler.NewAnalysisHandler(cfg.OrchestratorService)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.Liveness)
			// Forced refresh is cheap but not free; keep it rate limited
			r.With(expensiveRateLimit).Post("/refresh", opsHandler.Refresh)
		})

		// Orchestrator readiness surface (public) - standard rate limiting
		r.With(standardRateLimit).Get("/orchestrator/status", opsHandler.OrchestratorStatus)

		// Analysis admission - expensive compute, strict rate limiting
		r.Route("/analyses", func(r chi.Router) {
			r.With(expensiveRateLimit).Post("/", analysisHandler.CreateAnalysis)
			r.With(standardRateLimit).Get("/{analysisId}", analysisHandler.GetAnalysis)
		})
	})

	return r
}
