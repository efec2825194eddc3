package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consilium-ai/consilium/internal/config"
	"github.com/consilium-ai/consilium/internal/gate"
	"github.com/consilium-ai/consilium/internal/health"
)

func snapshotWithModels(models map[string]bool) *health.SystemHealthSnapshot {
	detail := health.LLMDetail{Models: make(map[string]health.ModelHealth)}
	for id, available := range models {
		detail.Models[id] = health.ModelHealth{Provider: "p-" + id, Available: available}
		detail.TotalModels++
		if available {
			detail.AvailableModels++
		}
	}
	return &health.SystemHealthSnapshot{
		OverallStatus: health.StatusHealthy,
		Services:      map[string]health.ServiceHealth{},
		LLM:           detail,
		GeneratedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate_Ready(t *testing.T) {
	snap := snapshotWithModels(map[string]bool{"a": true, "b": true, "c": true})
	policy := config.ReadinessPolicy{MinimumModelsRequired: 3}

	result := gate.Evaluate(snap, policy)

	assert.Equal(t, gate.Ready, result.Decision)
	assert.True(t, result.Admitted())
	assert.Equal(t, []string{"a", "b", "c"}, result.Models)
	assert.Equal(t, uint(3), result.Count)
	assert.Equal(t, uint(3), result.Required)
	assert.Empty(t, result.Reason)
}

func TestEvaluate_NoModelsAvailable(t *testing.T) {
	snap := snapshotWithModels(nil)
	policy := config.ReadinessPolicy{MinimumModelsRequired: 3}

	result := gate.Evaluate(snap, policy)

	assert.Equal(t, gate.NotReady, result.Decision)
	assert.False(t, result.Admitted())
	assert.Equal(t, "no models available", result.Reason)
	assert.Empty(t, result.Models)
}

func TestEvaluate_InsufficientModels(t *testing.T) {
	snap := snapshotWithModels(map[string]bool{"a": true, "b": false, "c": false})
	policy := config.ReadinessPolicy{MinimumModelsRequired: 3}

	result := gate.Evaluate(snap, policy)

	assert.Equal(t, gate.NotReady, result.Decision)
	assert.Equal(t, "insufficient models: got 1, need 3", result.Reason)
	assert.Equal(t, []string{"a"}, result.Models)
}

func TestEvaluate_SingleModelFallback(t *testing.T) {
	snap := snapshotWithModels(map[string]bool{"a": true, "b": false, "c": false})
	policy := config.ReadinessPolicy{
		MinimumModelsRequired:     3,
		EnableSingleModelFallback: true,
	}

	result := gate.Evaluate(snap, policy)

	assert.Equal(t, gate.ReadyDegraded, result.Decision)
	assert.True(t, result.Admitted())
	assert.Equal(t, []string{"a"}, result.Models)
	assert.NotEmpty(t, result.Warning)
}

func TestEvaluate_FallbackNeedsAtLeastOneModel(t *testing.T) {
	snap := snapshotWithModels(map[string]bool{"a": false})
	policy := config.ReadinessPolicy{
		MinimumModelsRequired:     3,
		EnableSingleModelFallback: true,
	}

	result := gate.Evaluate(snap, policy)

	assert.Equal(t, gate.NotReady, result.Decision)
	assert.Equal(t, "no models available", result.Reason)
}

func TestEvaluate_IsPure(t *testing.T) {
	snap := snapshotWithModels(map[string]bool{"b": true, "a": true, "c": false})
	policy := config.ReadinessPolicy{MinimumModelsRequired: 2}

	first := gate.Evaluate(snap, policy)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, gate.Evaluate(snap, policy))
	}
	assert.Equal(t, snap.GeneratedAt, first.SnapshotAt)
}

type stubSource struct {
	snap  *health.SystemHealthSnapshot
	calls int
}

func (s *stubSource) GetSnapshot(context.Context) *health.SystemHealthSnapshot {
	s.calls++
	return s.snap
}

func TestGate_CheckReadinessReadsCachedSnapshot(t *testing.T) {
	source := &stubSource{snap: snapshotWithModels(map[string]bool{"a": true, "b": true})}
	g := gate.New(source, config.ReadinessPolicy{MinimumModelsRequired: 2})

	result := g.CheckReadiness(context.Background())

	require.Equal(t, gate.Ready, result.Decision)
	assert.Equal(t, 1, source.calls)
}
