// Package worker provides background job processing for Consilium.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/health"
)

// Runner performs one full health aggregation; satisfied by
// *health.Aggregator.
type Runner interface {
	Run(ctx context.Context) *health.SystemHealthSnapshot
}

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	Status          health.Status
	AvailableModels int
	TotalModels     int
	Duration        time.Duration
}

// RefreshJob runs health aggregations on demand.
type RefreshJob struct {
	runner Runner
	logger zerolog.Logger
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(runner Runner, logger zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		runner: runner,
		logger: logger.With().Str("component", "refresh_job").Logger(),
	}
}

// Run executes one aggregation and returns its summary.
func (j *RefreshJob) Run(ctx context.Context) RefreshResult {
	start := time.Now()
	snapshot := j.runner.Run(ctx)

	result := RefreshResult{
		Status:          snapshot.OverallStatus,
		AvailableModels: snapshot.LLM.AvailableModels,
		TotalModels:     snapshot.LLM.TotalModels,
		Duration:        time.Since(start),
	}

	j.logger.Info().
		Str("status", string(result.Status)).
		Int("available_models", result.AvailableModels).
		Int("total_models", result.TotalModels).
		Dur("duration", result.Duration).
		Msg("health refresh completed")

	return result
}
