package resilience_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consilium-ai/consilium/internal/provider/resilience"
)

// fakeClock is a manually advanced clock for deterministic breaker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *resilience.Breaker {
	return resilience.NewBreaker("openai", resilience.Config{
		FailureThreshold: 3,
		BaseDelay:        10 * time.Second,
		MaxDelay:         80 * time.Second,
		Clock:            clock.Now,
	})
}

func TestBreaker_OpensAfterThresholdFailures(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.Record(false)
		assert.Equal(t, resilience.StatusClosed, b.Snapshot().Status)
	}

	require.True(t, b.Allow())
	b.Record(false)

	state := b.Snapshot()
	assert.Equal(t, resilience.StatusOpen, state.Status)
	assert.Equal(t, uint(3), state.ConsecutiveFailures)
	require.NotNil(t, state.OpenedAt)
	require.NotNil(t, state.NextRetryAt)
	assert.True(t, state.NextRetryAt.After(*state.OpenedAt))

	// Probes are not attempted while open.
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	b.Record(false)
	b.Record(false)
	b.Record(true)

	state := b.Snapshot()
	assert.Equal(t, resilience.StatusClosed, state.Status)
	assert.Equal(t, uint(0), state.ConsecutiveFailures)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	require.Equal(t, resilience.StatusOpen, b.Snapshot().Status)

	clock.Advance(10 * time.Second)
	require.Equal(t, resilience.StatusHalfOpen, b.Snapshot().Status)

	require.True(t, b.Allow())
	b.Record(true)

	state := b.Snapshot()
	assert.Equal(t, resilience.StatusClosed, state.Status)
	assert.Equal(t, uint(0), state.ConsecutiveFailures)
	assert.Nil(t, state.OpenedAt)
	assert.Nil(t, state.NextRetryAt)
}

func TestBreaker_HalfOpenFailureReopensWithLongerDelay(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	first := b.Snapshot()
	require.NotNil(t, first.NextRetryAt)
	firstDelay := first.NextRetryAt.Sub(*first.OpenedAt)
	assert.Equal(t, 10*time.Second, firstDelay)

	clock.Advance(10 * time.Second)
	require.True(t, b.Allow())
	b.Record(false)

	second := b.Snapshot()
	require.Equal(t, resilience.StatusOpen, second.Status)
	require.NotNil(t, second.NextRetryAt)
	secondDelay := second.NextRetryAt.Sub(*second.OpenedAt)
	assert.Equal(t, 20*time.Second, secondDelay)
}

func TestBreaker_OpenDelayIsCapped(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}

	// Fail every half-open trial; delays double 10s -> 20s -> 40s -> 80s
	// and then stay at the 80s cap.
	var lastDelay time.Duration
	for i := 0; i < 6; i++ {
		state := b.Snapshot()
		require.NotNil(t, state.NextRetryAt)
		lastDelay = state.NextRetryAt.Sub(*state.OpenedAt)

		clock.Advance(lastDelay)
		require.True(t, b.Allow())
		b.Record(false)
	}

	state := b.Snapshot()
	require.NotNil(t, state.NextRetryAt)
	assert.Equal(t, 80*time.Second, state.NextRetryAt.Sub(*state.OpenedAt))
}

func TestBreaker_SingleHalfOpenTrial(t *testing.T) {
	clock := newFakeClock()
	b := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	clock.Advance(10 * time.Second)

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted, "only one concurrent half-open trial may be granted")

	// The grant is released by the trial outcome; a success closes the
	// breaker and probing resumes normally.
	b.Record(true)
	assert.True(t, b.Allow())
}

func TestBreaker_StateChangeNotifications(t *testing.T) {
	clock := newFakeClock()

	type transition struct{ from, to resilience.Status }
	var mu sync.Mutex
	var seen []transition

	b := resilience.NewBreaker("anthropic", resilience.Config{
		FailureThreshold: 2,
		BaseDelay:        time.Second,
		Clock:            clock.Now,
		OnStateChange: func(_ string, from, to resilience.Status) {
			mu.Lock()
			seen = append(seen, transition{from, to})
			mu.Unlock()
		},
	})

	b.Record(false)
	b.Record(false)
	clock.Advance(time.Second)
	require.True(t, b.Allow())
	b.Record(true)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, transition{resilience.StatusClosed, resilience.StatusOpen}, seen[0])
	assert.Equal(t, transition{resilience.StatusOpen, resilience.StatusHalfOpen}, seen[1])
	assert.Equal(t, transition{resilience.StatusHalfOpen, resilience.StatusClosed}, seen[2])
}

func TestRegistry_PerProviderBreakers(t *testing.T) {
	reg := resilience.NewRegistry(resilience.Config{FailureThreshold: 1})

	a := reg.For("openai")
	b := reg.For("anthropic")
	require.NotSame(t, a, b)
	assert.Same(t, a, reg.For("openai"))

	// Opening one provider's breaker never affects another's.
	a.Record(false)
	assert.Equal(t, resilience.StatusOpen, a.Snapshot().Status)
	assert.Equal(t, resilience.StatusClosed, b.Snapshot().Status)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, resilience.StatusOpen, snaps["openai"].Status)
	assert.Equal(t, resilience.StatusClosed, snaps["anthropic"].Status)
}
