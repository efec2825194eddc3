// Package main provides the entrypoint for the Consilium API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/api"
	"github.com/consilium-ai/consilium/internal/api/middleware"
	"github.com/consilium-ai/consilium/internal/config"
	"github.com/consilium-ai/consilium/internal/database"
	"github.com/consilium-ai/consilium/internal/gate"
	"github.com/consilium-ai/consilium/internal/health"
	"github.com/consilium-ai/consilium/internal/orchestrator"
	"github.com/consilium-ai/consilium/internal/provider"
	"github.com/consilium-ai/consilium/internal/provider/resilience"
	"github.com/consilium-ai/consilium/internal/redis"
	"github.com/consilium-ai/consilium/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "consilium-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Consilium API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	healthMetrics, err := health.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize health metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Connect to redis
	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	// Provider registry from configured credentials
	registry := provider.NewRegistry(cfg.Credentials, log)
	log.Info().
		Int("providers", registry.ProviderCount()).
		Int("models", registry.TotalModels()).
		Msg("provider registry initialized")

	prober := provider.NewProber(provider.ProberConfig{
		Timeout:        cfg.Health.ProbeTimeout,
		SkipLiveProbes: cfg.Policy.SkipLiveProbes,
		Credentials:    cfg.Credentials,
	})

	breakers := resilience.NewRegistry(resilience.Config{
		FailureThreshold: cfg.Health.FailureThreshold,
		BaseDelay:        cfg.Health.BreakerBaseDelay,
		MaxDelay:         cfg.Health.BreakerMaxDelay,
		OnStateChange: func(providerID string, from, to resilience.Status) {
			log.Warn().
				Str("provider", providerID).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	})

	// Health aggregation and cached snapshots
	aggregator := health.NewAggregator(
		registry,
		prober,
		breakers,
		[]health.Checker{
			health.NewDatabaseChecker(pool),
			health.NewCacheChecker(redisClient),
		},
		healthMetrics,
		log,
		health.AggregatorConfig{RunTimeout: cfg.Health.RunTimeout},
	)

	healthCache := health.NewCache(aggregator, cfg.Health.RefreshInterval, log)
	healthCache.Start(ctx)
	defer healthCache.Stop()

	// Readiness gate and orchestration admission
	readinessGate := gate.New(healthCache, cfg.Policy)
	orchestratorService := orchestrator.NewService(
		orchestrator.NewPostgresRepository(pool), readinessGate, log)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:             Version,
		BuildTime:           BuildTime,
		Logger:              log,
		ServiceName:         serviceName,
		Metrics:             httpMetrics,
		Snapshots:           healthCache,
		Readiness:           readinessGate,
		OrchestratorService: orchestratorService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
