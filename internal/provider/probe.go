package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/consilium-ai/consilium/internal/config"
)

// Default base URLs per provider family. Overridable for tests and proxies.
var defaultBaseURLs = map[Kind]string{
	KindOpenAI:    "https://api.openai.com",
	KindAnthropic: "https://api.anthropic.com",
	KindGoogle:    "https://generativelanguage.googleapis.com",
}

// ProberConfig configures the provider prober.
type ProberConfig struct {
	// Timeout is the hard per-probe deadline. Default: 5 seconds.
	Timeout time.Duration

	// SkipLiveProbes short-circuits probes to a credential presence
	// check without any network call.
	SkipLiveProbes bool

	// Credentials supplies the API keys used for capability checks.
	Credentials config.ProviderCredentials

	// BaseURLs overrides the default endpoint per provider kind.
	BaseURLs map[Kind]string
}

// Prober performs a single bounded-time capability check against a provider
// and classifies the outcome. It is stateless and carries no retry logic;
// retries and backoff belong to the circuit breaker layer.
type Prober struct {
	client   *http.Client
	timeout  time.Duration
	skipLive bool
	creds    config.ProviderCredentials
	baseURLs map[Kind]string
}

// NewProber creates a prober.
func NewProber(cfg ProberConfig) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURLs := make(map[Kind]string, len(defaultBaseURLs))
	for kind, url := range defaultBaseURLs {
		baseURLs[kind] = url
	}
	for kind, url := range cfg.BaseURLs {
		baseURLs[kind] = url
	}

	return &Prober{
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		skipLive: cfg.SkipLiveProbes,
		creds:    cfg.Credentials,
		baseURLs: baseURLs,
	}
}

// Probe runs one capability check (a list-models call) against the provider.
// Expected failure modes are encoded in the outcome's ErrorKind; the returned
// outcome is always well-formed.
func (p *Prober) Probe(ctx context.Context, prov Provider) ProbeOutcome {
	start := time.Now()
	outcome := ProbeOutcome{
		ProviderID: prov.ID,
		Timestamp:  start,
		ErrorKind:  ErrorNone,
	}

	if p.skipLive {
		// Shallow signal for environments without outbound API access.
		outcome.Success = prov.CredentialsPresent
		if !outcome.Success {
			outcome.ErrorKind = ErrorAuthFailure
		}
		return outcome
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := p.buildRequest(ctx, prov)
	if err != nil {
		outcome.ErrorKind = ErrorInvalidResponse
		return outcome
	}

	resp, err := p.client.Do(req)
	outcome.LatencyMs = uint(time.Since(start).Milliseconds())
	if err != nil {
		outcome.ErrorKind = classifyTransportError(err)
		return outcome
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome.Success = true
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		outcome.ErrorKind = ErrorAuthFailure
	case resp.StatusCode == http.StatusTooManyRequests:
		outcome.ErrorKind = ErrorRateLimited
	default:
		outcome.ErrorKind = ErrorInvalidResponse
	}

	return outcome
}

func (p *Prober) buildRequest(ctx context.Context, prov Provider) (*http.Request, error) {
	base := p.baseURLs[prov.Kind]

	switch prov.Kind {
	case KindAnthropic:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/models", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", p.creds.AnthropicKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		return req, nil

	case KindGoogle:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1beta/models", nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("key", p.creds.GoogleKey)
		req.URL.RawQuery = q.Encode()
		return req, nil

	default:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/models", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.creds.OpenAIKey)
		return req, nil
	}
}

// classifyTransportError distinguishes timeouts from other network failures.
// Timeout checks come first: a deadline hit surfaces as a net.Error with
// Timeout() true wrapped in a url.Error.
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorNetwork
	}

	return ErrorNetwork
}
