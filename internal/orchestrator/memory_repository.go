package orchestrator

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
}

// NewInMemoryRepository creates a new in-memory analysis repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		analyses: make(map[string]*Analysis),
	}
}

// CreateAnalysis stores a newly admitted analysis.
func (r *InMemoryRepository) CreateAnalysis(_ context.Context, a *Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *a
	cpy.GrantedModels = append([]string(nil), a.GrantedModels...)
	r.analyses[a.ID] = &cpy
	return nil
}

// GetAnalysis retrieves an analysis by ID.
func (r *InMemoryRepository) GetAnalysis(_ context.Context, id string) (*Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analyses[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}

	// Return a copy
	cpy := *a
	cpy.GrantedModels = append([]string(nil), a.GrantedModels...)
	return &cpy, nil
}

// UpdateStatus moves an analysis to a new lifecycle status.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, id string, status AnalysisStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analyses[id]
	if !ok {
		return ErrAnalysisNotFound
	}

	a.Status = status
	return nil
}
