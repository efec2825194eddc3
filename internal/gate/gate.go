// Package gate decides whether the orchestration pipeline may accept work,
// based on the latest health snapshot and the readiness policy.
package gate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/consilium-ai/consilium/internal/config"
	"github.com/consilium-ai/consilium/internal/health"
)

// Decision is the admission answer.
type Decision string

const (
	// Ready means enough functional models exist for full orchestration.
	Ready Decision = "ready"
	// ReadyDegraded means fewer models than required are functional but
	// the single-model fallback admits work anyway.
	ReadyDegraded Decision = "ready_degraded"
	// NotReady means the pipeline must reject new work.
	NotReady Decision = "not_ready"
)

// Result carries the admission decision and the usable model set.
type Result struct {
	Decision Decision

	// Models lists the usable model identifiers, sorted.
	Models []string

	// Count and Required echo the policy comparison behind the decision.
	Count    uint
	Required uint

	// Reason explains a NotReady decision.
	Reason string

	// Warning accompanies a ReadyDegraded decision.
	Warning string

	// SnapshotAt is the generation time of the snapshot evaluated.
	SnapshotAt time.Time
}

// Admitted reports whether work may be accepted.
func (r Result) Admitted() bool {
	return r.Decision == Ready || r.Decision == ReadyDegraded
}

// Evaluate is a pure function of a snapshot and a policy: it performs no
// I/O and never triggers a probe.
func Evaluate(snapshot *health.SystemHealthSnapshot, policy config.ReadinessPolicy) Result {
	result := Result{
		Required:   policy.MinimumModelsRequired,
		SnapshotAt: snapshot.GeneratedAt,
	}

	for modelID, m := range snapshot.LLM.Models {
		if m.Available {
			result.Models = append(result.Models, modelID)
		}
	}
	sort.Strings(result.Models)
	result.Count = uint(len(result.Models))

	switch {
	case result.Count >= policy.MinimumModelsRequired:
		result.Decision = Ready

	case result.Count >= 1 && policy.EnableSingleModelFallback:
		result.Decision = ReadyDegraded
		result.Warning = fmt.Sprintf(
			"operating below the required model count: got %d, need %d",
			result.Count, policy.MinimumModelsRequired)

	case result.Count == 0:
		result.Decision = NotReady
		result.Reason = "no models available"

	default:
		result.Decision = NotReady
		result.Reason = fmt.Sprintf("insufficient models: got %d, need %d",
			result.Count, policy.MinimumModelsRequired)
	}

	return result
}

// SnapshotSource serves the latest health snapshot; satisfied by
// *health.Cache.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) *health.SystemHealthSnapshot
}

// Gate answers readiness questions from cached health data. It never
// performs network I/O itself, so it is safe to consult on every request.
type Gate struct {
	source SnapshotSource
	policy config.ReadinessPolicy
}

// New creates a gate.
func New(source SnapshotSource, policy config.ReadinessPolicy) *Gate {
	return &Gate{source: source, policy: policy}
}

// CheckReadiness evaluates the latest snapshot against the policy.
func (g *Gate) CheckReadiness(ctx context.Context) Result {
	return Evaluate(g.source.GetSnapshot(ctx), g.policy)
}

// Policy returns the gate's policy.
func (g *Gate) Policy() config.ReadinessPolicy {
	return g.policy
}
