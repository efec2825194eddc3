// Package resilience provides the per-provider circuit breakers that gate
// health probes against failing upstream providers.
package resilience

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status represents the circuit breaker state.
type Status int

const (
	// StatusClosed means probes are attempted normally.
	StatusClosed Status = iota
	// StatusOpen means probes are skipped until the retry deadline.
	StatusOpen
	// StatusHalfOpen means exactly one trial probe is allowed through.
	StatusHalfOpen
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpen:
		return "open"
	case StatusHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a breaker.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 3.
	FailureThreshold int

	// BaseDelay is the first open interval. Default: 10 seconds.
	BaseDelay time.Duration

	// MaxDelay caps the exponentially growing open interval.
	// Default: 5 minutes.
	MaxDelay time.Duration

	// Clock supplies the current time. Default: time.Now.
	Clock func() time.Time

	// OnStateChange is called (outside the breaker lock) on transitions.
	OnStateChange func(providerID string, from, to Status)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 10 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// State is a read-only snapshot of a breaker.
type State struct {
	Status              Status
	ConsecutiveFailures uint
	OpenedAt            *time.Time
	NextRetryAt         *time.Time
}

// Breaker is the Closed/Open/HalfOpen state machine for one provider.
// Mutual exclusion is per provider; one provider's trial never delays
// another's.
type Breaker struct {
	providerID string
	cfg        Config

	mu            sync.Mutex
	status        Status
	failures      uint
	openedAt      time.Time
	nextRetryAt   time.Time
	trialInFlight bool
	schedule      *backoff.ExponentialBackOff
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(providerID string, cfg Config) *Breaker {
	cfg = cfg.withDefaults()

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = cfg.BaseDelay
	schedule.MaxInterval = cfg.MaxDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	return &Breaker{
		providerID: providerID,
		cfg:        cfg,
		status:     StatusClosed,
		schedule:   schedule,
	}
}

// Allow reports whether a probe may be attempted now. In the half-open
// state only one caller is granted the trial; the grant is released by the
// next Record call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	from := b.status
	b.refreshLocked()
	to := b.status

	var allowed bool
	switch b.status {
	case StatusClosed:
		allowed = true
	case StatusHalfOpen:
		if !b.trialInFlight {
			b.trialInFlight = true
			allowed = true
		}
	case StatusOpen:
		allowed = false
	}

	b.mu.Unlock()
	b.notify(from, to)
	return allowed
}

// Record feeds a probe outcome back into the state machine.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()

	from := b.status
	b.refreshLocked()

	switch b.status {
	case StatusClosed:
		if success {
			b.failures = 0
		} else {
			b.failures++
			if b.failures >= uint(b.cfg.FailureThreshold) {
				b.openLocked()
			}
		}

	case StatusHalfOpen:
		b.trialInFlight = false
		if success {
			b.status = StatusClosed
			b.failures = 0
			b.openedAt = time.Time{}
			b.nextRetryAt = time.Time{}
			b.schedule.Reset()
		} else {
			b.failures++
			b.openLocked()
		}

	case StatusOpen:
		// A probe that outlived the aggregation cap may report after the
		// breaker reopened; its outcome is already stale.
	}

	to := b.status
	b.mu.Unlock()
	b.notify(from, to)
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()

	s := State{
		Status:              b.status,
		ConsecutiveFailures: b.failures,
	}
	if !b.openedAt.IsZero() {
		t := b.openedAt
		s.OpenedAt = &t
	}
	if !b.nextRetryAt.IsZero() {
		t := b.nextRetryAt
		s.NextRetryAt = &t
	}
	return s
}

// refreshLocked promotes Open to HalfOpen once the retry deadline passes.
func (b *Breaker) refreshLocked() {
	if b.status == StatusOpen && !b.cfg.Clock().Before(b.nextRetryAt) {
		b.status = StatusHalfOpen
		b.trialInFlight = false
	}
}

// openLocked transitions to Open with the next interval from the
// exponential schedule. The schedule doubles on each consecutive open and
// resets only when the breaker closes.
func (b *Breaker) openLocked() {
	now := b.cfg.Clock()
	b.status = StatusOpen
	b.openedAt = now
	b.nextRetryAt = now.Add(b.schedule.NextBackOff())
}

func (b *Breaker) notify(from, to Status) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.providerID, from, to)
	}
}

// Registry holds one breaker per provider, created lazily.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a breaker registry using cfg for every breaker.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for the given provider, creating it if needed.
func (r *Registry) For(providerID string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[providerID]
	if !ok {
		b = NewBreaker(providerID, r.cfg)
		r.breakers[providerID] = b
	}
	return b
}

// Snapshots returns the current state of every known breaker.
func (r *Registry) Snapshots() map[string]State {
	r.mu.Lock()
	breakers := make(map[string]*Breaker, len(r.breakers))
	for id, b := range r.breakers {
		breakers[id] = b
	}
	r.mu.Unlock()

	out := make(map[string]State, len(breakers))
	for id, b := range breakers {
		out[id] = b.Snapshot()
	}
	return out
}
