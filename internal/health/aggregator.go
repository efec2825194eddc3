package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/consilium-ai/consilium/internal/provider"
	"github.com/consilium-ai/consilium/internal/provider/resilience"
)

// Prober performs one bounded-time probe against a provider.
type Prober interface {
	Probe(ctx context.Context, p provider.Provider) provider.ProbeOutcome
}

// ProviderSource enumerates the configured providers.
type ProviderSource interface {
	ListProviders() []provider.Provider
}

// AggregatorConfig configures the aggregator.
type AggregatorConfig struct {
	// RunTimeout caps one whole aggregation run. Providers and checks
	// still pending at the cap are marked failed-by-timeout rather than
	// delaying the snapshot. Default: 8 seconds.
	RunTimeout time.Duration

	// MaxConcurrentProbes bounds the probe fan-out. The provider set is
	// small, so this is a safety cap, not a worker pool. Default: 20.
	MaxConcurrentProbes int
}

// Aggregator produces fresh SystemHealthSnapshots on demand. It never
// returns an error: every failure mode terminates in health-state data.
type Aggregator struct {
	providers ProviderSource
	prober    Prober
	breakers  *resilience.Registry
	checkers  []Checker
	metrics   *Metrics
	logger    zerolog.Logger
	cfg       AggregatorConfig
}

// NewAggregator creates an aggregator. checkers typically holds the
// database and cache checkers; metrics may be nil.
func NewAggregator(
	providers ProviderSource,
	prober Prober,
	breakers *resilience.Registry,
	checkers []Checker,
	metrics *Metrics,
	logger zerolog.Logger,
	cfg AggregatorConfig,
) *Aggregator {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 8 * time.Second
	}
	if cfg.MaxConcurrentProbes <= 0 {
		cfg.MaxConcurrentProbes = 20
	}

	return &Aggregator{
		providers: providers,
		prober:    prober,
		breakers:  breakers,
		checkers:  checkers,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run computes one snapshot. Total wall-clock time is bounded by the
// configured cap regardless of how many providers hang.
func (a *Aggregator) Run(ctx context.Context) *SystemHealthSnapshot {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
	defer cancel()

	providers := a.providers.ListProviders()

	outcomeCh := make(chan provider.ProbeOutcome, len(providers))
	serviceCh := make(chan namedHealth, len(a.checkers))

	sem := semaphore.NewWeighted(int64(a.cfg.MaxConcurrentProbes))
	for _, p := range providers {
		p := p
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				return // run cap hit; collector synthesizes the outcome
			}
			defer sem.Release(1)
			outcomeCh <- a.probeOne(ctx, p)
		}()
	}

	for _, c := range a.checkers {
		c := c
		go func() {
			serviceCh <- namedHealth{name: c.Name(), health: c.Check(ctx)}
		}()
	}

	outcomes := a.collectOutcomes(ctx, providers, outcomeCh)
	services := a.collectServices(ctx, serviceCh)

	llmDetail, llmHealth := a.deriveLLM(providers, outcomes)
	services[ServiceLLM] = llmHealth

	overall := StatusHealthy
	for _, svc := range services {
		overall = Worst(overall, svc.Status)
	}

	snapshot := &SystemHealthSnapshot{
		OverallStatus: overall,
		Services:      services,
		LLM:           llmDetail,
		Breakers:      a.breakers.Snapshots(),
		GeneratedAt:   time.Now(),
	}

	a.metrics.RecordRun(overall, time.Since(start))
	a.logger.Debug().
		Str("status", string(overall)).
		Int("providers", len(providers)).
		Int("functional_providers", llmDetail.FunctionalProviders).
		Dur("duration", time.Since(start)).
		Msg("health aggregation completed")

	return snapshot
}

// probeOne runs one breaker-gated probe and feeds the outcome back into
// the breaker.
func (a *Aggregator) probeOne(ctx context.Context, p provider.Provider) provider.ProbeOutcome {
	breaker := a.breakers.For(p.ID)

	if !breaker.Allow() {
		a.metrics.RecordProbe(p.ID, string(provider.ErrorNone), false, true, 0)
		return provider.ProbeOutcome{
			ProviderID: p.ID,
			Timestamp:  time.Now(),
			Success:    false,
			ErrorKind:  provider.ErrorNone,
			Skipped:    true,
		}
	}

	start := time.Now()
	outcome := a.prober.Probe(ctx, p)
	breaker.Record(outcome.Success)
	a.metrics.RecordProbe(p.ID, string(outcome.ErrorKind), outcome.Success, false, time.Since(start))

	if !outcome.Success {
		a.logger.Warn().
			Str("provider", p.ID).
			Str("error_kind", string(outcome.ErrorKind)).
			Uint("latency_ms", outcome.LatencyMs).
			Msg("provider probe failed")
	}

	return outcome
}

// collectOutcomes gathers probe outcomes until all providers report or the
// run cap expires; pending providers are marked failed-by-timeout.
func (a *Aggregator) collectOutcomes(
	ctx context.Context,
	providers []provider.Provider,
	ch <-chan provider.ProbeOutcome,
) map[string]provider.ProbeOutcome {
	outcomes := make(map[string]provider.ProbeOutcome, len(providers))

	for len(outcomes) < len(providers) {
		select {
		case o := <-ch:
			outcomes[o.ProviderID] = o
		case <-ctx.Done():
			for _, p := range providers {
				if _, ok := outcomes[p.ID]; !ok {
					outcomes[p.ID] = provider.ProbeOutcome{
						ProviderID: p.ID,
						Timestamp:  time.Now(),
						Success:    false,
						ErrorKind:  provider.ErrorTimeout,
					}
					a.logger.Warn().
						Str("provider", p.ID).
						Msg("probe abandoned at aggregation cap")
				}
			}
			return outcomes
		}
	}
	return outcomes
}

type namedHealth struct {
	name   string
	health ServiceHealth
}

// collectServices gathers resource check results under the same cap.
func (a *Aggregator) collectServices(ctx context.Context, ch <-chan namedHealth) map[string]ServiceHealth {
	services := make(map[string]ServiceHealth, len(a.checkers)+1)

	// Pre-fill so a hung checker still yields a well-formed entry.
	for _, c := range a.checkers {
		status := StatusDegraded
		if c.Name() == ServiceDatabase {
			status = StatusCritical
		}
		services[c.Name()] = ServiceHealth{
			Status:      status,
			Message:     c.Name() + " check timed out",
			LastChecked: time.Now(),
		}
	}

	for received := 0; received < len(a.checkers); received++ {
		select {
		case nh := <-ch:
			services[nh.name] = nh.health
		case <-ctx.Done():
			return services
		}
	}
	return services
}

// deriveLLM computes the llm ServiceHealth from probe outcomes.
func (a *Aggregator) deriveLLM(
	providers []provider.Provider,
	outcomes map[string]provider.ProbeOutcome,
) (LLMDetail, ServiceHealth) {
	detail := LLMDetail{
		Providers: len(providers),
		Models:    make(map[string]ModelHealth),
		Outcomes:  outcomes,
	}

	now := time.Now()

	if len(providers) == 0 {
		a.logger.Warn().Msg("no providers configured: llm health degraded")
		return detail, ServiceHealth{
			Status:      StatusDegraded,
			Message:     "No LLM models available",
			LastChecked: now,
			Detail:      detail,
		}
	}

	for _, p := range providers {
		outcome := outcomes[p.ID]
		if outcome.Success {
			detail.FunctionalProviders++
		}
		for _, modelID := range p.ModelIDs {
			detail.TotalModels++
			if outcome.Success {
				detail.AvailableModels++
			}
			detail.Models[modelID] = ModelHealth{
				Provider:  p.ID,
				Name:      p.Models[modelID],
				Available: outcome.Success,
			}
		}
	}

	if detail.FunctionalProviders == 0 {
		return detail, ServiceHealth{
			Status:      StatusDegraded,
			Message:     "Models configured but no providers are reachable",
			LastChecked: now,
			Detail:      detail,
		}
	}

	return detail, ServiceHealth{
		Status: StatusHealthy,
		Message: fmt.Sprintf("%d models, %d providers OK",
			detail.AvailableModels, detail.FunctionalProviders),
		LastChecked: now,
		Detail:      detail,
	}
}
