package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/consilium-ai/consilium/internal/api/models"
	"github.com/consilium-ai/consilium/internal/api/response"
	"github.com/consilium-ai/consilium/internal/orchestrator"
)

// AnalysisHandler handles analysis admission endpoints.
type AnalysisHandler struct {
	service *orchestrator.Service
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(service *orchestrator.Service) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// CreateAnalysis handles POST /v1/analyses.
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid JSON body", nil)
		return
	}

	analysis, err := h.service.Submit(r.Context(), &orchestrator.AnalysisRequest{
		Prompt:          req.Prompt,
		RequestedModels: req.Models,
	})
	if err != nil {
		writeSubmitError(w, r, err)
		return
	}

	result := toAPIAnalysis(analysis)
	response.Created(w, r, "/v1/analyses/"+analysis.ID, result)
}

// GetAnalysis handles GET /v1/analyses/{analysisId}.
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	analysis, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAnalysisNotFound) {
			response.NotFound(w, r, "Analysis not found")
			return
		}
		response.InternalError(w, r, "Failed to load analysis")
		return
	}

	response.JSON(w, r, http.StatusOK, toAPIAnalysis(analysis))
}

func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *orchestrator.RejectionError
	switch {
	case errors.As(err, &rejection):
		response.ServiceUnavailable(w, r, rejection.Reason)
	case errors.Is(err, orchestrator.ErrEmptyPrompt):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "prompt", Message: "must not be empty", Code: "required"},
		})
	case errors.Is(err, orchestrator.ErrPromptTooLong):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "prompt", Message: "exceeds the maximum length", Code: "too_long"},
		})
	case errors.Is(err, orchestrator.ErrUnknownModel),
		errors.Is(err, orchestrator.ErrTooManyRequests):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "models", Message: err.Error(), Code: "invalid"},
		})
	default:
		response.InternalError(w, r, "Failed to submit analysis")
	}
}

func toAPIAnalysis(a *orchestrator.Analysis) models.Analysis {
	return models.Analysis{
		ID:            a.ID,
		Status:        string(a.Status),
		GrantedModels: a.GrantedModels,
		Degraded:      a.Degraded,
		CreatedAt:     models.Timestamp(a.CreatedAt),
	}
}
