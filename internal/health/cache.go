package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Runner produces snapshots; satisfied by *Aggregator.
type Runner interface {
	Run(ctx context.Context) *SystemHealthSnapshot
}

// Cache serves the latest SystemHealthSnapshot to callers without ever
// blocking them on a live probe. A background loop refreshes the snapshot
// on a fixed interval and on explicit invalidation; the snapshot pointer
// is swapped atomically, so readers only ever see fully formed values.
type Cache struct {
	runner   Runner
	interval time.Duration
	logger   zerolog.Logger

	snapshot   atomic.Pointer[SystemHealthSnapshot]
	refreshCh  chan struct{}
	coldStart  sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewCache creates a cache around the given runner. Start must be called
// for background refresh; GetSnapshot works either way.
func NewCache(runner Runner, interval time.Duration, logger zerolog.Logger) *Cache {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &Cache{
		runner:    runner,
		interval:  interval,
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
	}
}

// Start launches the background refresh loop. It returns immediately;
// the loop stops when ctx is cancelled or Stop is called.
func (c *Cache) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel
	c.loopDone = make(chan struct{})

	go func() {
		defer close(c.loopDone)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("health refresh loop stopped")
				return
			case <-ticker.C:
				c.refresh(ctx)
			case <-c.refreshCh:
				c.refresh(ctx)
			}
		}
	}()
}

// Stop cancels the background loop and waits for it to exit. In-flight
// probes are abandoned, not awaited.
func (c *Cache) Stop() {
	if c.loopCancel != nil {
		c.loopCancel()
		<-c.loopDone
	}
}

// GetSnapshot returns the most recently computed snapshot. On cold start
// it performs one synchronous aggregation so the first caller is never
// served empty data; afterwards it never blocks on probing.
func (c *Cache) GetSnapshot(ctx context.Context) *SystemHealthSnapshot {
	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}

	// Single-flight the cold-start aggregation.
	c.coldStart.Lock()
	defer c.coldStart.Unlock()

	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}

	snap := c.runner.Run(ctx)
	c.snapshot.Store(snap)
	return snap
}

// Invalidate requests an out-of-band refresh. It never blocks; if a
// refresh is already queued the request coalesces into it.
func (c *Cache) Invalidate() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

func (c *Cache) refresh(ctx context.Context) {
	snap := c.runner.Run(ctx)
	c.snapshot.Store(snap)
}
