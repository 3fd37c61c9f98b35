// Package workers bounds how many video analyses run at once and how long
// each may take.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/logging"
	"golang.org/x/sync/semaphore"
)

// Pool is a counting semaphore with a per-job deadline that covers both
// waiting for a slot and running.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	timeout time.Duration
	logger  logging.Logger
}

// NewPool allows size concurrent jobs. A non-positive timeout disables the
// per-job deadline.
func NewPool(size int, timeout time.Duration, logger logging.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		timeout: timeout,
		logger:  logger.With("module", "workers"),
	}
}

// Size is the number of slots.
func (p *Pool) Size() int { return p.size }

// Do runs fn in a slot. When the pool deadline expires, while queued or
// while running, common.ErrAnalysisTimeout is returned. Cancellation of
// ctx by the caller is returned as is.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	start := time.Now()
	if err := p.sem.Acquire(jobCtx, 1); err != nil {
		return p.mapErr(ctx, jobCtx, err, "waiting for a worker")
	}
	defer p.sem.Release(1)

	if wait := time.Since(start); wait > time.Second {
		p.logger.Debug(ctx, "analysis queued", "wait", wait)
	}

	if err := fn(jobCtx); err != nil {
		return p.mapErr(ctx, jobCtx, err, "running")
	}
	return nil
}

func (p *Pool) mapErr(parent, job context.Context, err error, stage string) error {
	if parent.Err() == nil && errors.Is(job.Err(), context.DeadlineExceeded) {
		p.logger.Warn(parent, "analysis timed out", "stage", stage, "timeout", p.timeout)
		return fmt.Errorf("%w: %s after %s", common.ErrAnalysisTimeout, stage, p.timeout)
	}
	return err
}

// Run is Do for functions that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
