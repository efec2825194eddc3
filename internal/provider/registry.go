package provider

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/consilium-ai/consilium/internal/config"
)

// CredentialCheck reports whether usable credential material exists for one
// provider. Registry construction requires a check per provider so that
// credential presence is always computed, never defaulted.
type CredentialCheck func() bool

type registration struct {
	id       string
	kind     Kind
	modelIDs []string
	models   map[string]string
	check    CredentialCheck
}

// Registry is the authoritative, read-only list of configured providers.
// It is built once at startup; ListProviders is safe for concurrent use.
type Registry struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewRegistry builds a registry from the configured credentials. Providers
// whose credential check fails are omitted rather than reported as broken.
// A registry with zero providers is legal but logged loudly, since it is
// operationally distinct from "providers configured but unreachable".
func NewRegistry(creds config.ProviderCredentials, logger zerolog.Logger) *Registry {
	regs := []registration{
		{
			id:       "openai",
			kind:     KindOpenAI,
			modelIDs: []string{"gpt-4o", "gpt-4o-mini"},
			models: map[string]string{
				"gpt-4o":      "GPT-4o",
				"gpt-4o-mini": "GPT-4o mini",
			},
			check: nonEmptyCredential(creds.OpenAIKey),
		},
		{
			id:       "anthropic",
			kind:     KindAnthropic,
			modelIDs: []string{"claude-sonnet-4-5"},
			models: map[string]string{
				"claude-sonnet-4-5": "Claude Sonnet 4.5",
			},
			check: nonEmptyCredential(creds.AnthropicKey),
		},
		{
			id:       "google",
			kind:     KindGoogle,
			modelIDs: []string{"gemini-2.5-pro"},
			models: map[string]string{
				"gemini-2.5-pro": "Gemini 2.5 Pro",
			},
			check: nonEmptyCredential(creds.GoogleKey),
		},
	}

	r := &Registry{logger: logger}
	for _, reg := range regs {
		present := reg.check()
		if !present {
			logger.Debug().
				Str("provider", reg.id).
				Msg("provider omitted: no credentials configured")
			continue
		}
		r.providers = append(r.providers, Provider{
			ID:                 reg.id,
			Kind:               reg.kind,
			Models:             reg.models,
			ModelIDs:           reg.modelIDs,
			CredentialsPresent: true,
		})
	}

	if len(r.providers) == 0 {
		logger.Warn().Msg("provider registry is empty: no provider credentials configured")
	} else {
		ids := make([]string, 0, len(r.providers))
		for _, p := range r.providers {
			ids = append(ids, p.ID)
		}
		logger.Info().
			Int("providers", len(r.providers)).
			Str("ids", strings.Join(ids, ",")).
			Msg("provider registry initialized")
	}

	return r
}

// nonEmptyCredential is the explicit presence check for an API key.
func nonEmptyCredential(key string) CredentialCheck {
	return func() bool {
		return strings.TrimSpace(key) != ""
	}
}

// ListProviders returns the configured providers in a deterministic order.
// The returned slice is a copy; callers may not mutate registry state.
func (r *Registry) ListProviders() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ProviderCount returns the number of configured providers.
func (r *Registry) ProviderCount() int {
	return len(r.providers)
}

// TotalModels returns the number of models across all configured providers.
func (r *Registry) TotalModels() int {
	total := 0
	for _, p := range r.providers {
		total += len(p.ModelIDs)
	}
	return total
}
