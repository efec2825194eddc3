package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker/v2"
)

// Checker performs a single-resource connectivity check. Implementations
// must honor the context deadline and always return a well-formed
// ServiceHealth, never an error.
type Checker interface {
	// Name returns the logical service name this checker reports on.
	Name() string

	// Check performs the check.
	Check(ctx context.Context) ServiceHealth
}

// pingBreaker guards a connectivity ping so a dead backend is not hammered
// on every aggregation cycle.
func pingBreaker(name string) *gobreaker.CircuitBreaker[time.Duration] {
	return gobreaker.NewCircuitBreaker[time.Duration](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// DBPinger is the slice of a pgx pool the database checker needs.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker reports connectivity to the primary datastore. A failed
// or skipped ping is Critical: the service cannot run without its store.
type DatabaseChecker struct {
	pinger  DBPinger
	breaker *gobreaker.CircuitBreaker[time.Duration]
}

// NewDatabaseChecker creates a database checker around a pgx pool.
func NewDatabaseChecker(pinger DBPinger) *DatabaseChecker {
	return &DatabaseChecker{
		pinger:  pinger,
		breaker: pingBreaker("database-ping"),
	}
}

// Name implements Checker.
func (c *DatabaseChecker) Name() string { return ServiceDatabase }

// Check implements Checker.
func (c *DatabaseChecker) Check(ctx context.Context) ServiceHealth {
	now := time.Now()

	latency, err := c.breaker.Execute(func() (time.Duration, error) {
		start := time.Now()
		if err := c.pinger.Ping(ctx); err != nil {
			return 0, err
		}
		return time.Since(start), nil
	})
	if err != nil {
		return ServiceHealth{
			Status:      StatusCritical,
			Message:     pingFailureMessage("database", err),
			LastChecked: now,
		}
	}

	return ServiceHealth{
		Status:      StatusHealthy,
		Message:     "database reachable",
		LastChecked: now,
		Detail:      map[string]any{"latencyMs": latency.Milliseconds()},
	}
}

// RedisPinger is the slice of a redis client the cache checker needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// CacheChecker reports connectivity to redis. A failed ping is Degraded,
// not Critical: the service keeps working without its cache.
type CacheChecker struct {
	pinger  RedisPinger
	breaker *gobreaker.CircuitBreaker[time.Duration]
}

// NewCacheChecker creates a cache checker around a redis client.
func NewCacheChecker(pinger RedisPinger) *CacheChecker {
	return &CacheChecker{
		pinger:  pinger,
		breaker: pingBreaker("cache-ping"),
	}
}

// Name implements Checker.
func (c *CacheChecker) Name() string { return ServiceCache }

// Check implements Checker.
func (c *CacheChecker) Check(ctx context.Context) ServiceHealth {
	now := time.Now()

	latency, err := c.breaker.Execute(func() (time.Duration, error) {
		start := time.Now()
		if err := c.pinger.Ping(ctx).Err(); err != nil {
			return 0, err
		}
		return time.Since(start), nil
	})
	if err != nil {
		return ServiceHealth{
			Status:      StatusDegraded,
			Message:     pingFailureMessage("cache", err),
			LastChecked: now,
		}
	}

	return ServiceHealth{
		Status:      StatusHealthy,
		Message:     "cache reachable",
		LastChecked: now,
		Detail:      map[string]any{"latencyMs": latency.Milliseconds()},
	}
}

func pingFailureMessage(name string, err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return name + " unreachable: check suspended after repeated failures"
	}
	return fmt.Sprintf("%s unreachable: %v", name, err)
}
