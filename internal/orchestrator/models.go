// Package orchestrator provides the admission entry point of the
// multi-model analysis pipeline. Stage sequencing, prompt fan-out and
// response synthesis live behind this boundary; this package decides
// whether a request may enter at all and records accepted work.
package orchestrator

import (
	"errors"
	"time"
)

// ErrNotReady is returned when the readiness gate rejects new work.
// The wrapped reason is carried on the RejectionError.
var ErrNotReady = errors.New("orchestrator not ready")

// RejectionError explains why admission was refused.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "orchestrator not ready: " + e.Reason
}

// Unwrap lets callers match ErrNotReady with errors.Is.
func (e *RejectionError) Unwrap() error { return ErrNotReady }

// AnalysisStatus tracks an analysis request through its lifecycle.
type AnalysisStatus string

const (
	AnalysisAccepted AnalysisStatus = "ACCEPTED"
	AnalysisRunning  AnalysisStatus = "RUNNING"
	AnalysisComplete AnalysisStatus = "COMPLETE"
	AnalysisFailed   AnalysisStatus = "FAILED"
)

// AnalysisRequest is the inbound admission request.
type AnalysisRequest struct {
	// Prompt is the user's analysis prompt.
	Prompt string

	// RequestedModels optionally restricts which models may be used.
	// Empty means "whatever the gate grants".
	RequestedModels []string
}

// Analysis is one accepted analysis request.
type Analysis struct {
	ID            string
	Prompt        string
	GrantedModels []string
	Degraded      bool
	Status        AnalysisStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
