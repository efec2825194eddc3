package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/gate"
)

// Validation errors.
var (
	ErrEmptyPrompt     = errors.New("prompt must not be empty")
	ErrPromptTooLong   = errors.New("prompt exceeds the maximum length")
	ErrUnknownModel    = errors.New("requested model is not currently available")
	ErrTooManyRequests = errors.New("too many requested models")
)

// Validation constants.
const (
	MaxPromptLength    = 32_000
	MaxRequestedModels = 10
)

// ReadinessChecker answers whether work may be admitted; satisfied by
// *gate.Gate.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) gate.Result
}

// Service admits analysis requests through the readiness gate and
// records accepted work.
type Service struct {
	repo   Repository
	gate   ReadinessChecker
	logger zerolog.Logger
}

// NewService creates the admission service.
func NewService(repo Repository, g ReadinessChecker, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		gate:   g,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Submit validates and admits an analysis request. The readiness gate is
// consulted once per submission; a NotReady decision rejects the request
// with a RejectionError carrying the gate's reason.
func (s *Service) Submit(ctx context.Context, req *AnalysisRequest) (*Analysis, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	decision := s.gate.CheckReadiness(ctx)
	if !decision.Admitted() {
		s.logger.Warn().
			Str("reason", decision.Reason).
			Msg("analysis rejected: orchestrator not ready")
		return nil, &RejectionError{Reason: decision.Reason}
	}

	granted, err := grantModels(decision.Models, req.RequestedModels)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	analysis := &Analysis{
		ID:            uuid.NewString(),
		Prompt:        req.Prompt,
		GrantedModels: granted,
		Degraded:      decision.Decision == gate.ReadyDegraded,
		Status:        AnalysisAccepted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateAnalysis(ctx, analysis); err != nil {
		return nil, err
	}

	evt := s.logger.Info()
	if analysis.Degraded {
		evt = s.logger.Warn().Str("warning", decision.Warning)
	}
	evt.Str("analysis_id", analysis.ID).
		Int("granted_models", len(granted)).
		Msg("analysis admitted")

	return analysis, nil
}

// Get retrieves an analysis by ID.
func (s *Service) Get(ctx context.Context, id string) (*Analysis, error) {
	return s.repo.GetAnalysis(ctx, id)
}

func validateRequest(req *AnalysisRequest) error {
	if req == nil || req.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(req.Prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if len(req.RequestedModels) > MaxRequestedModels {
		return ErrTooManyRequests
	}
	return nil
}

// grantModels intersects the caller's requested models with the set the
// gate found usable. An empty request grants every usable model.
func grantModels(usable, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), usable...), nil
	}

	available := make(map[string]bool, len(usable))
	for _, m := range usable {
		available[m] = true
	}

	granted := make([]string, 0, len(requested))
	for _, m := range requested {
		if !available[m] {
			return nil, ErrUnknownModel
		}
		granted = append(granted, m)
	}
	return granted, nil
}
