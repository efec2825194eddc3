package models

// AnalysisCreateRequest is the body of POST /v1/analyses.
type AnalysisCreateRequest struct {
	Prompt string   `json:"prompt" validate:"required"`
	Models []string `json:"models,omitempty"`
}

// Analysis represents an admitted analysis request.
type Analysis struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	GrantedModels []string  `json:"grantedModels"`
	Degraded      bool      `json:"degraded"`
	Warning       string    `json:"warning,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
}
