// Package ratelimit coordinates the shared provider budget across producers
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"repocrawl/internal/platform/logger"
	"repocrawl/internal/services/crawl/domain"
)

// minWait bounds how short a reset sleep can be so a snapshot with a ResetAt
// in the past cannot spin the acquire loop
const minWait = 50 * time.Millisecond

// Coordinator tracks the provider's rate limit budget and an exponential
// moving average of per-request cost. Snapshots are immutable; each update
// swaps the pointer so readers never observe a half-written reading
type Coordinator struct {
	mu   sync.Mutex
	snap *domain.RateLimitSnapshot
	est  float64

	log logger.Logger

	// seams for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Coordinator with an initial cost estimate of one point
func New(log logger.Logger) *Coordinator {
	return &Coordinator{
		est: 1,
		log: log.With().Str("component", "ratelimit").Logger(),
		now: time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Acquire reserves the estimated cost of one request against the last known
// budget. With no snapshot yet it admits optimistically. When the budget
// cannot cover the estimate it sleeps until the reported reset, outside the
// lock, then re-evaluates; a snapshot unchanged across the sleep is stale and
// gets discarded
func (c *Coordinator) Acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		snap := c.snap
		if snap == nil {
			c.mu.Unlock()
			return nil
		}
		need := int(math.Ceil(c.est))
		if snap.Remaining >= need {
			next := *snap
			next.Remaining -= need
			c.snap = &next
			c.mu.Unlock()
			return nil
		}
		wait := snap.ResetAt.Sub(c.now())
		if wait < minWait {
			wait = minWait
		}
		c.mu.Unlock()

		c.log.Warn().
			Int("remaining", snap.Remaining).
			Int("estimated_cost", need).
			Dur("wait", wait).
			Time("reset_at", snap.ResetAt).
			Msg("rate limit budget exhausted, waiting for reset")
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}

		c.mu.Lock()
		if c.snap == snap {
			// nobody recorded a fresh reading while we slept
			c.snap = nil
		}
		c.mu.Unlock()
	}
}

// Record installs a fresh provider reading and folds its cost into the
// average. A zero-cost reading still updates the budget but leaves the
// estimate alone; free requests say nothing about what the next one costs
func (c *Coordinator) Record(s domain.RateLimitSnapshot) {
	c.mu.Lock()
	if s.Cost > 0 {
		c.est = math.Max(1, 0.5*c.est+0.5*float64(s.Cost))
	}
	cp := s
	c.snap = &cp
	c.mu.Unlock()
}

// Reset drops the snapshot after a failed request so the next acquire does
// not trust a budget the failure may have invalidated. The cost average is
// kept; it reflects successful requests only
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// Remaining reports the last known budget, ok=false before the first reading
func (c *Coordinator) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return 0, false
	}
	return c.snap.Remaining, true
}

// EstimatedCost exposes the current per-request cost estimate
func (c *Coordinator) EstimatedCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.est
}
