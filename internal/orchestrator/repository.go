package orchestrator

import (
	"context"
	"errors"
)

// ErrAnalysisNotFound is returned when an analysis does not exist.
var ErrAnalysisNotFound = errors.New("analysis not found")

// Repository persists accepted analyses.
type Repository interface {
	// CreateAnalysis stores a newly admitted analysis.
	CreateAnalysis(ctx context.Context, a *Analysis) error

	// GetAnalysis retrieves an analysis by ID.
	// Returns ErrAnalysisNotFound if it does not exist.
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)

	// UpdateStatus moves an analysis to a new lifecycle status.
	// Returns ErrAnalysisNotFound if it does not exist.
	UpdateStatus(ctx context.Context, id string, status AnalysisStatus) error
}
