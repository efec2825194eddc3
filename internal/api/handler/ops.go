// Package handler provides HTTP handlers for the Consilium API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/consilium-ai/consilium/internal/api/models"
	"github.com/consilium-ai/consilium/internal/api/response"
	"github.com/consilium-ai/consilium/internal/gate"
	"github.com/consilium-ai/consilium/internal/health"
)

// SnapshotSource serves the latest aggregated health snapshot.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) *health.SystemHealthSnapshot
	Invalidate()
}

// ReadinessSource answers whether the orchestrator accepts work.
type ReadinessSource interface {
	CheckReadiness(ctx context.Context) gate.Result
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	snapshots SnapshotSource
	readiness ReadinessSource
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, snapshots SnapshotSource, readiness ReadinessSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		snapshots: snapshots,
		readiness: readiness,
	}
}

// Liveness handles GET /v1/ops/ready - process liveness check.
func (h *OpsHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Liveness{
		Status: "ok",
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// HealthCheck handles GET /v1/ops/health - aggregated dependency health.
// Always answers 200; the payload carries the degraded/critical signal.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snapshot := h.snapshots.GetSnapshot(r.Context())

	services := make(map[string]models.ServiceStatus, len(snapshot.Services))
	for name, svc := range snapshot.Services {
		services[name] = toServiceStatus(svc)
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status:   string(snapshot.OverallStatus),
		Time:     models.Timestamp(snapshot.GeneratedAt),
		Services: services,
	})
}

// OrchestratorStatus handles GET /v1/orchestrator/status.
func (h *OpsHandler) OrchestratorStatus(w http.ResponseWriter, r *http.Request) {
	result := h.readiness.CheckReadiness(r.Context())
	snapshot := h.snapshots.GetSnapshot(r.Context())

	message := snapshot.Services[health.ServiceLLM].Message
	switch {
	case result.Reason != "":
		message = result.Reason
	case result.Warning != "":
		message = result.Warning
	}

	providers := make(map[string]models.BreakerStatus, len(snapshot.Breakers))
	for id, state := range snapshot.Breakers {
		b := models.BreakerStatus{
			State:               state.Status.String(),
			ConsecutiveFailures: state.ConsecutiveFailures,
		}
		if state.NextRetryAt != nil {
			ts := models.Timestamp(*state.NextRetryAt)
			b.NextRetryAt = &ts
		}
		providers[id] = b
	}

	available := result.Models
	if available == nil {
		available = []string{}
	}

	response.JSON(w, r, http.StatusOK, models.OrchestratorStatus{
		Status:           string(result.Decision),
		ServiceAvailable: result.Admitted(),
		Message:          message,
		Models: models.ModelAvailability{
			Available: available,
			Count:     result.Count,
			Required:  result.Required,
		},
		Providers: providers,
		Time:      models.Timestamp(result.SnapshotAt),
	})
}

// Refresh handles POST /v1/ops/refresh - force a health re-aggregation.
func (h *OpsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.snapshots.Invalidate()
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func toServiceStatus(svc health.ServiceHealth) models.ServiceStatus {
	out := models.ServiceStatus{
		Status:  string(svc.Status),
		Message: svc.Message,
		Detail:  svc.Detail,
	}
	if !svc.LastChecked.IsZero() {
		ts := models.Timestamp(svc.LastChecked)
		out.LastChecked = &ts
	}
	return out
}
