// Package resource throttles background work so dataset builds do not
// starve foreground queries of disk bandwidth or CPU.
package resource

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for background work.
type Config struct {
	// MaxBackgroundJobs bounds concurrent builds. Defaults to 1.
	MaxBackgroundJobs int64

	// IOLimitBytesPerSec caps background IO throughput. 0 means unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces the configured limits.
type Controller struct {
	bgSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a Controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundJobs <= 0 {
		cfg.MaxBackgroundJobs = 1
	}
	c := &Controller{
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundJobs),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireJob blocks until a background job slot is free.
func (c *Controller) AcquireJob(ctx context.Context) error {
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseJob returns a job slot.
func (c *Controller) ReleaseJob() {
	c.bgSem.Release(1)
}

// AcquireIO blocks until n bytes of IO budget are available.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c.ioLimiter == nil || n <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	// Writes larger than the burst are split across limiter waits.
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// LimitedWriter wraps w so every Write first acquires IO budget.
func (c *Controller) LimitedWriter(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}
	return &limitedWriter{w: w, c: c, ctx: ctx}
}

type limitedWriter struct {
	w   io.Writer
	c   *Controller
	ctx context.Context
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if err := lw.c.AcquireIO(lw.ctx, len(p)); err != nil {
		return 0, err
	}
	return lw.w.Write(p)
}
