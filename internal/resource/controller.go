// Package resource enforces the memory budget and ingest throttle for one
// index. Reservation is non-blocking: exceeding the budget fails the
// operation instead of stalling it, and callers translate that failure into
// an allocation error at the API boundary.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would push managed
// memory past the configured limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds the limits for one controller.
type Config struct {
	// MemoryLimitBytes caps managed memory (builder accumulators, decode
	// buffers). 0 tracks usage without enforcing a limit.
	MemoryLimitBytes int64

	// IngestDocsPerSec throttles ingestion between document chunks.
	// 0 disables the throttle.
	IngestDocsPerSec float64

	// IngestBurst is the throttle burst size in documents. Defaults to one
	// chunk's worth when 0.
	IngestBurst int
}

// Controller manages the budgets. All methods are safe on a nil receiver,
// which stands for "no limits".
type Controller struct {
	limit   int64
	memSem  *semaphore.Weighted
	memUsed atomic.Int64
	ingest  *rate.Limiter
}

// NewController creates a controller from cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{limit: cfg.MemoryLimitBytes}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IngestDocsPerSec > 0 {
		burst := cfg.IngestBurst
		if burst <= 0 {
			burst = 1000
		}
		c.ingest = rate.NewLimiter(rate.Limit(cfg.IngestDocsPerSec), burst)
	}
	return c
}

// AcquireMemory reserves bytes against the budget. It never blocks; when the
// budget cannot cover the reservation it returns ErrMemoryLimitExceeded and
// reserves nothing.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}
	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a prior reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.limit
}

// WaitIngest blocks until the throttle admits n more documents, or ctx ends.
func (c *Controller) WaitIngest(ctx context.Context, n int) error {
	if c == nil || c.ingest == nil || n <= 0 {
		return nil
	}
	// WaitN rejects requests above the burst outright, so feed it in
	// burst-sized pieces.
	burst := c.ingest.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ingest.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
