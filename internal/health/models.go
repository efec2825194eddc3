// Package health aggregates provider probes and resource checks into an
// atomically published system health snapshot.
package health

import (
	"time"

	"github.com/consilium-ai/consilium/internal/provider"
	"github.com/consilium-ai/consilium/internal/provider/resilience"
)

// Status represents the health of a service or of the whole system.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// severity orders statuses for worst-of aggregation.
func (s Status) severity() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worst returns the more severe of two statuses.
func Worst(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// Logical service names appearing in every snapshot.
const (
	ServiceDatabase = "database"
	ServiceCache    = "cache"
	ServiceLLM      = "llm"
)

// ServiceHealth is the aggregated view of one logical service. Snapshots
// are read-only once published.
type ServiceHealth struct {
	Status      Status    `json:"status"`
	Message     string    `json:"message"`
	LastChecked time.Time `json:"lastChecked"`
	Detail      any       `json:"detail,omitempty"`
}

// ModelHealth describes the availability of one model, keyed by model
// identifier in LLMDetail.Models.
type ModelHealth struct {
	Provider  string `json:"provider"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// LLMDetail is the service-specific detail for the llm service.
type LLMDetail struct {
	Providers           int                              `json:"providers"`
	FunctionalProviders int                              `json:"functionalProviders"`
	TotalModels         int                              `json:"totalModels"`
	AvailableModels     int                              `json:"availableModels"`
	Models              map[string]ModelHealth           `json:"models"`
	Outcomes            map[string]provider.ProbeOutcome `json:"-"`
}

// SystemHealthSnapshot is one fully formed health view. It is replaced
// atomically on refresh and never mutated in place, so concurrent readers
// always observe internally consistent state.
type SystemHealthSnapshot struct {
	OverallStatus Status                      `json:"status"`
	Services      map[string]ServiceHealth    `json:"services"`
	LLM           LLMDetail                   `json:"-"`
	Breakers      map[string]resilience.State `json:"-"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
}
