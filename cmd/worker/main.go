// Package main provides the entrypoint for the Consilium maintenance worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/config"
	"github.com/consilium-ai/consilium/internal/database"
	"github.com/consilium-ai/consilium/internal/health"
	"github.com/consilium-ai/consilium/internal/provider"
	"github.com/consilium-ai/consilium/internal/provider/resilience"
	"github.com/consilium-ai/consilium/internal/redis"
	"github.com/consilium-ai/consilium/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "consilium-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Consilium worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared dependencies for health aggregation
	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	registry := provider.NewRegistry(cfg.Credentials, log)
	prober := provider.NewProber(provider.ProberConfig{
		Timeout:        cfg.Health.ProbeTimeout,
		SkipLiveProbes: cfg.Policy.SkipLiveProbes,
		Credentials:    cfg.Credentials,
	})
	breakers := resilience.NewRegistry(resilience.Config{
		FailureThreshold: cfg.Health.FailureThreshold,
		BaseDelay:        cfg.Health.BreakerBaseDelay,
		MaxDelay:         cfg.Health.BreakerMaxDelay,
	})

	aggregator := health.NewAggregator(
		registry,
		prober,
		breakers,
		[]health.Checker{
			health.NewDatabaseChecker(pool),
			health.NewCacheChecker(redisClient),
		},
		nil,
		log,
		health.AggregatorConfig{RunTimeout: cfg.Health.RunTimeout},
	)

	healthCache := health.NewCache(aggregator, cfg.Health.RefreshInterval, log)
	healthCache.Start(ctx)
	defer healthCache.Stop()

	refreshJob := worker.NewRefreshJob(aggregator, log)

	// Pub/Sub consumer
	var pubsubHandler *worker.PubSubHandler
	if cfg.PubSubProjectID != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       refreshJob,
			Invalidator:      healthCache,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - running on the refresh interval only")
	}

	// Minimal health endpoint for the runtime
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := healthCache.GetSnapshot(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":%q,"version":%q}`, snapshot.OverallStatus, Version)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
