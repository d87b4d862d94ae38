// Package resource bounds the concurrency and IO throughput of batch
// searches and snapshot writes.
package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxSearchWorkers is the maximum number of concurrent per-query
	// search workers. If 0, defaults to GOMAXPROCS.
	MaxSearchWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for snapshot
	// writes. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages search concurrency and snapshot IO pacing.
type Controller struct {
	cfg Config

	searchSem *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxSearchWorkers <= 0 {
		cfg.MaxSearchWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:       cfg,
		searchSem: semaphore.NewWeighted(cfg.MaxSearchWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxSearchWorkers returns the configured worker bound.
func (c *Controller) MaxSearchWorkers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return int(c.cfg.MaxSearchWorkers)
}

// AcquireSearch reserves a search worker slot. Blocks until a slot is
// available or ctx is canceled. Safe to call on a nil controller.
func (c *Controller) AcquireSearch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.searchSem.Acquire(ctx, 1)
}

// ReleaseSearch releases a search worker slot.
func (c *Controller) ReleaseSearch() {
	if c == nil {
		return
	}
	c.searchSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	// WaitN cannot exceed the limiter burst; pace big writes in chunks.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
