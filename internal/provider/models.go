// Package provider models the upstream LLM providers, enumerates the
// configured set, and performs bounded-time health probes against them.
package provider

import "time"

// Kind identifies a provider family.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGoogle    Kind = "google"
)

// Provider identifies one upstream model source. Immutable for the process
// lifetime except CredentialsPresent, which is re-evaluated on config reload.
type Provider struct {
	// ID uniquely identifies the provider.
	ID string

	// Kind is the provider family.
	Kind Kind

	// Models maps model identifier to display name, the canonical shape
	// for model health downstream. Iteration order is not significant;
	// ModelIDs gives the configured order.
	Models map[string]string

	// ModelIDs preserves the configured model ordering.
	ModelIDs []string

	// CredentialsPresent reports whether a credential was found for this
	// provider. Always derived from an explicit check, never defaulted.
	CredentialsPresent bool
}

// ErrorKind classifies a probe failure. Expected failure modes are data,
// not errors; only programming faults propagate as Go errors.
type ErrorKind string

const (
	ErrorNone            ErrorKind = "none"
	ErrorTimeout         ErrorKind = "timeout"
	ErrorAuthFailure     ErrorKind = "auth_failure"
	ErrorRateLimited     ErrorKind = "rate_limited"
	ErrorNetwork         ErrorKind = "network_error"
	ErrorInvalidResponse ErrorKind = "invalid_response"
)

// ProbeOutcome is the result of one health check against a provider.
type ProbeOutcome struct {
	ProviderID string
	Timestamp  time.Time
	Success    bool
	LatencyMs  uint
	ErrorKind  ErrorKind

	// Skipped marks an outcome synthesized because the provider's circuit
	// breaker was open; no network call was made.
	Skipped bool
}
