// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ReadinessPolicy controls how the readiness gate admits orchestration work.
// Loaded once at startup and treated as immutable afterwards.
type ReadinessPolicy struct {
	// MinimumModelsRequired is the number of functional models needed for
	// the gate to report Ready. Default: 3.
	MinimumModelsRequired uint

	// EnableSingleModelFallback allows a degraded Ready when at least one
	// model is functional but fewer than MinimumModelsRequired.
	EnableSingleModelFallback bool

	// SkipLiveProbes short-circuits provider probes to a credential
	// presence check, for environments where outbound calls must be
	// avoided (CI, air-gapped deployments).
	SkipLiveProbes bool
}

// ProviderCredentials holds the per-provider API keys read from the
// environment. An empty string means the provider is not configured.
type ProviderCredentials struct {
	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string
}

// HealthConfig holds timing knobs for the health subsystem.
type HealthConfig struct {
	// ProbeTimeout is the hard deadline for a single provider probe.
	ProbeTimeout time.Duration

	// RunTimeout caps one whole aggregation run; providers still pending
	// when it expires are recorded as failed-by-timeout.
	RunTimeout time.Duration

	// RefreshInterval is the background refresh cadence.
	RefreshInterval time.Duration

	// FailureThreshold is the consecutive-failure count that opens a
	// provider circuit breaker.
	FailureThreshold int

	// BreakerBaseDelay and BreakerMaxDelay bound the exponential open
	// interval of the provider circuit breaker.
	BreakerBaseDelay time.Duration
	BreakerMaxDelay  time.Duration
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the top-level service configuration.
type Config struct {
	Port        string
	Environment string

	OTLPEndpoint     string
	TelemetryEnabled bool

	Policy      ReadinessPolicy
	Credentials ProviderCredentials
	Health      HealthConfig
	Redis       RedisConfig

	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads configuration from the environment. Malformed values are
// returned as errors; callers are expected to treat them as fatal.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),

		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",

		Credentials: ProviderCredentials{
			OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
			GoogleKey:    os.Getenv("GOOGLE_API_KEY"),
		},

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "consilium-maintenance"),
	}

	minModels, err := parseUint("MINIMUM_MODELS_REQUIRED", 3)
	if err != nil {
		return Config{}, err
	}

	singleFallback, err := parseBool("ENABLE_SINGLE_MODEL_FALLBACK", false)
	if err != nil {
		return Config{}, err
	}

	skipProbes, err := parseBool("HEALTH_CHECK_SKIP_API_CALLS", false)
	if err != nil {
		return Config{}, err
	}

	cfg.Policy = ReadinessPolicy{
		MinimumModelsRequired:     minModels,
		EnableSingleModelFallback: singleFallback,
		SkipLiveProbes:            skipProbes,
	}

	probeTimeout, err := parseDuration("HEALTH_PROBE_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	runTimeout, err := parseDuration("HEALTH_RUN_TIMEOUT", 8*time.Second)
	if err != nil {
		return Config{}, err
	}
	refreshInterval, err := parseDuration("HEALTH_REFRESH_INTERVAL", 20*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg.Health = HealthConfig{
		ProbeTimeout:     probeTimeout,
		RunTimeout:       runTimeout,
		RefreshInterval:  refreshInterval,
		FailureThreshold: 3,
		BreakerBaseDelay: 10 * time.Second,
		BreakerMaxDelay:  5 * time.Minute,
	}

	redisDB, err := parseUint("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       int(redisDB),
	}

	return cfg, nil
}

func parseUint(key string, def uint) (uint, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return uint(v), nil
}

func parseBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
