package health_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consilium-ai/consilium/internal/health"
)

// countingRunner produces a fresh snapshot per run and counts runs.
type countingRunner struct {
	runs int64
}

func (r *countingRunner) Run(context.Context) *health.SystemHealthSnapshot {
	n := atomic.AddInt64(&r.runs, 1)
	return &health.SystemHealthSnapshot{
		OverallStatus: health.StatusHealthy,
		Services: map[string]health.ServiceHealth{
			health.ServiceLLM: {Status: health.StatusHealthy},
		},
		GeneratedAt: time.Unix(n, 0),
	}
}

func (r *countingRunner) count() int64 { return atomic.LoadInt64(&r.runs) }

func TestCache_ColdStartRunsSynchronously(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, time.Hour, zerolog.Nop())

	snap := cache.GetSnapshot(context.Background())

	require.NotNil(t, snap)
	assert.Equal(t, int64(1), runner.count())
	assert.Equal(t, health.StatusHealthy, snap.OverallStatus)
}

func TestCache_RepeatedReadsAreIdempotent(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, time.Hour, zerolog.Nop())

	first := cache.GetSnapshot(context.Background())
	second := cache.GetSnapshot(context.Background())

	// Same pointer: no second aggregation, bit-identical result.
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), runner.count())
}

func TestCache_BackgroundRefreshReplacesSnapshot(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, 30*time.Millisecond, zerolog.Nop())

	first := cache.GetSnapshot(context.Background())

	cache.Start(context.Background())
	defer cache.Stop()

	assert.Eventually(t, func() bool {
		return cache.GetSnapshot(context.Background()) != first
	}, time.Second, 5*time.Millisecond, "background loop should replace the snapshot")
}

func TestCache_InvalidateTriggersRefresh(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, time.Hour, zerolog.Nop())

	first := cache.GetSnapshot(context.Background())

	cache.Start(context.Background())
	defer cache.Stop()

	cache.Invalidate()

	assert.Eventually(t, func() bool {
		return cache.GetSnapshot(context.Background()) != first
	}, time.Second, 5*time.Millisecond, "invalidation should trigger an out-of-band refresh")
}

func TestCache_InvalidateNeverBlocks(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, time.Hour, zerolog.Nop())

	// No background loop running; repeated invalidations must coalesce
	// rather than block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			cache.Invalidate()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Invalidate blocked")
	}
}

func TestCache_StopHaltsRefreshLoop(t *testing.T) {
	runner := &countingRunner{}
	cache := health.NewCache(runner, 10*time.Millisecond, zerolog.Nop())

	cache.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	cache.Stop()

	after := runner.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runner.count(), "no refreshes after Stop")
}
