package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consilium-ai/consilium/internal/health"
	"github.com/consilium-ai/consilium/internal/provider"
	"github.com/consilium-ai/consilium/internal/provider/resilience"
)

type fakeSource struct {
	providers []provider.Provider
}

func (s *fakeSource) ListProviders() []provider.Provider { return s.providers }

// fakeProber returns canned outcomes; providers listed in hang block until
// the probe context is cancelled and then report a timeout.
type fakeProber struct {
	success map[string]bool
	errKind map[string]provider.ErrorKind
	hang    map[string]bool
	probed  chan string
}

func (f *fakeProber) Probe(ctx context.Context, p provider.Provider) provider.ProbeOutcome {
	if f.probed != nil {
		f.probed <- p.ID
	}

	if f.hang[p.ID] {
		<-ctx.Done()
		return provider.ProbeOutcome{
			ProviderID: p.ID,
			Timestamp:  time.Now(),
			ErrorKind:  provider.ErrorTimeout,
		}
	}

	outcome := provider.ProbeOutcome{
		ProviderID: p.ID,
		Timestamp:  time.Now(),
		Success:    f.success[p.ID],
		ErrorKind:  provider.ErrorNone,
	}
	if !outcome.Success {
		kind, ok := f.errKind[p.ID]
		if !ok {
			kind = provider.ErrorNetwork
		}
		outcome.ErrorKind = kind
	}
	return outcome
}

type fakeChecker struct {
	name   string
	health health.ServiceHealth
}

func (c *fakeChecker) Name() string                               { return c.name }
func (c *fakeChecker) Check(context.Context) health.ServiceHealth { return c.health }

func healthyChecker(name string) health.Checker {
	return &fakeChecker{name: name, health: health.ServiceHealth{
		Status:      health.StatusHealthy,
		Message:     name + " reachable",
		LastChecked: time.Now(),
	}}
}

func threeProviders() []provider.Provider {
	mk := func(id string, kind provider.Kind, model string) provider.Provider {
		return provider.Provider{
			ID:                 id,
			Kind:               kind,
			Models:             map[string]string{model: model},
			ModelIDs:           []string{model},
			CredentialsPresent: true,
		}
	}
	return []provider.Provider{
		mk("openai", provider.KindOpenAI, "gpt-4o"),
		mk("anthropic", provider.KindAnthropic, "claude-sonnet-4-5"),
		mk("google", provider.KindGoogle, "gemini-2.5-pro"),
	}
}

func newAggregator(src *fakeSource, prober health.Prober, breakers *resilience.Registry, cfg health.AggregatorConfig) *health.Aggregator {
	checkers := []health.Checker{
		healthyChecker(health.ServiceDatabase),
		healthyChecker(health.ServiceCache),
	}
	return health.NewAggregator(src, prober, breakers, checkers, nil, zerolog.Nop(), cfg)
}

func TestAggregator_AllProvidersHealthy(t *testing.T) {
	src := &fakeSource{providers: threeProviders()}
	prober := &fakeProber{success: map[string]bool{"openai": true, "anthropic": true, "google": true}}
	agg := newAggregator(src, prober, resilience.NewRegistry(resilience.Config{}), health.AggregatorConfig{})

	snap := agg.Run(context.Background())

	assert.Equal(t, health.StatusHealthy, snap.OverallStatus)
	llm := snap.Services[health.ServiceLLM]
	assert.Equal(t, health.StatusHealthy, llm.Status)
	assert.Equal(t, "3 models, 3 providers OK", llm.Message)
	assert.Equal(t, 3, snap.LLM.FunctionalProviders)
	assert.Equal(t, 3, snap.LLM.AvailableModels)
	require.Contains(t, snap.LLM.Models, "gpt-4o")
	assert.True(t, snap.LLM.Models["gpt-4o"].Available)
	assert.Equal(t, "openai", snap.LLM.Models["gpt-4o"].Provider)
}

func TestAggregator_ZeroProviders(t *testing.T) {
	src := &fakeSource{}
	prober := &fakeProber{}
	agg := newAggregator(src, prober, resilience.NewRegistry(resilience.Config{}), health.AggregatorConfig{})

	snap := agg.Run(context.Background())

	llm := snap.Services[health.ServiceLLM]
	assert.Equal(t, health.StatusDegraded, llm.Status)
	assert.Equal(t, "No LLM models available", llm.Message)
	assert.Equal(t, health.StatusDegraded, snap.OverallStatus)
	assert.Empty(t, snap.LLM.Models)
}

func TestAggregator_NoProvidersReachable(t *testing.T) {
	src := &fakeSource{providers: threeProviders()}
	prober := &fakeProber{
		success: map[string]bool{},
		errKind: map[string]provider.ErrorKind{
			"openai":    provider.ErrorAuthFailure,
			"anthropic": provider.ErrorNetwork,
			"google":    provider.ErrorRateLimited,
		},
	}
	agg := newAggregator(src, prober, resilience.NewRegistry(resilience.Config{}), health.AggregatorConfig{})

	snap := agg.Run(context.Background())

	llm := snap.Services[health.ServiceLLM]
	assert.Equal(t, health.StatusDegraded, llm.Status)
	assert.Equal(t, "Models configured but no providers are reachable", llm.Message)
	assert.Equal(t, 0, snap.LLM.FunctionalProviders)
	assert.Equal(t, 3, snap.LLM.TotalModels)
}

func TestAggregator_RunBoundedByCap(t *testing.T) {
	src := &fakeSource{providers: threeProviders()}
	prober := &fakeProber{
		success: map[string]bool{"anthropic": true, "google": true},
		hang:    map[string]bool{"openai": true},
	}
	breakers := resilience.NewRegistry(resilience.Config{FailureThreshold: 3})
	agg := newAggregator(src, prober, breakers, health.AggregatorConfig{RunTimeout: 300 * time.Millisecond})

	start := time.Now()
	snap := agg.Run(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "aggregation must not outlive its cap")

	// The hung provider is marked failed-by-timeout; the others still count.
	require.Contains(t, snap.LLM.Outcomes, "openai")
	assert.Equal(t, provider.ErrorTimeout, snap.LLM.Outcomes["openai"].ErrorKind)
	assert.Equal(t, 2, snap.LLM.FunctionalProviders)
	assert.Equal(t, health.StatusHealthy, snap.Services[health.ServiceLLM].Status)

	// The abandoned probe still feeds the breaker once it unwinds.
	assert.Eventually(t, func() bool {
		return breakers.For("openai").Snapshot().ConsecutiveFailures == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAggregator_BreakerSkipsProbe(t *testing.T) {
	src := &fakeSource{providers: threeProviders()}
	probed := make(chan string, 8)
	prober := &fakeProber{
		success: map[string]bool{"anthropic": true, "google": true},
		probed:  probed,
	}

	breakers := resilience.NewRegistry(resilience.Config{FailureThreshold: 1, BaseDelay: time.Hour})
	breakers.For("openai").Record(false) // force open

	agg := newAggregator(src, prober, breakers, health.AggregatorConfig{})
	snap := agg.Run(context.Background())

	close(probed)
	for id := range probed {
		assert.NotEqual(t, "openai", id, "open breaker must suppress the network probe")
	}

	require.Contains(t, snap.LLM.Outcomes, "openai")
	assert.True(t, snap.LLM.Outcomes["openai"].Skipped)
	assert.Equal(t, provider.ErrorNone, snap.LLM.Outcomes["openai"].ErrorKind)
	assert.False(t, snap.LLM.Outcomes["openai"].Success)
	assert.Equal(t, 2, snap.LLM.FunctionalProviders)
}

func TestAggregator_OverallIsWorstOfServices(t *testing.T) {
	src := &fakeSource{providers: threeProviders()}
	prober := &fakeProber{success: map[string]bool{"openai": true, "anthropic": true, "google": true}}

	checkers := []health.Checker{
		&fakeChecker{name: health.ServiceDatabase, health: health.ServiceHealth{
			Status:  health.StatusCritical,
			Message: "database unreachable: connection refused",
		}},
		healthyChecker(health.ServiceCache),
	}
	agg := health.NewAggregator(src, prober, resilience.NewRegistry(resilience.Config{}), checkers, nil, zerolog.Nop(), health.AggregatorConfig{})

	snap := agg.Run(context.Background())

	assert.Equal(t, health.StatusCritical, snap.OverallStatus)
	assert.Equal(t, health.StatusHealthy, snap.Services[health.ServiceLLM].Status)

	// Internal consistency: overall derives from this snapshot's services.
	worst := health.StatusHealthy
	for _, svc := range snap.Services {
		worst = health.Worst(worst, svc.Status)
	}
	assert.Equal(t, worst, snap.OverallStatus)
}

func TestAggregator_ProbeFailureOpensBreakerOverRuns(t *testing.T) {
	src := &fakeSource{providers: threeProviders()[:1]} // openai only
	prober := &fakeProber{success: map[string]bool{}}
	breakers := resilience.NewRegistry(resilience.Config{FailureThreshold: 3, BaseDelay: time.Hour})
	agg := newAggregator(src, prober, breakers, health.AggregatorConfig{})

	for i := 0; i < 3; i++ {
		agg.Run(context.Background())
	}

	assert.Equal(t, resilience.StatusOpen, breakers.For("openai").Snapshot().Status)

	// Next run skips the probe entirely.
	snap := agg.Run(context.Background())
	assert.True(t, snap.LLM.Outcomes["openai"].Skipped)
}
