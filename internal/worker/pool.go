// Package worker implements the rate-limited pool both pipelines run on.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/telemetry"
)

// Config controls pool behavior. RateLimit is items per second shared
// across the whole pool, not per worker.
type Config struct {
	Concurrency int
	RateLimit   float64
}

// Outcome reports the result of one work item.
type Outcome struct {
	Index int
	Err   error
}

// Pool runs homogeneous work items with bounded concurrency and a
// shared pacing limiter.
type Pool struct {
	sem     chan struct{}
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New constructs a Pool.
func New(cfg Config, logger *zap.Logger) (*Pool, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("pool concurrency must be > 0")
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("pool rate limit must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Burst of one: dispatches are spaced at least 1/rate apart.
	return &Pool{
		sem:     make(chan struct{}, cfg.Concurrency),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger,
	}, nil
}

// Run dispatches fn for each index in [0, n). It returns once every
// dispatched item has finished. Item errors are collected, never
// propagated: one bad item must not sink the batch. When ctx is
// canceled no new items are dispatched; in-flight items run to
// completion and the remainder are reported with the context error.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, index int) error) []Outcome {
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		waitStart := time.Now()
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Warn("pool dispatch stopped",
				zap.Int("dispatched", i),
				zap.Int("remaining", n-i),
				zap.Error(err))
			// Wait can fail with the context still live, for instance
			// when the remaining deadline cannot cover the pacing
			// delay. Undispatched items must carry that error, not a
			// possibly-nil ctx.Err().
			for j := i; j < n; j++ {
				outcomes[j] = Outcome{Index: j, Err: err}
			}
			break
		}
		if waited := time.Since(waitStart); waited > time.Millisecond {
			telemetry.ObserveRateLimitDelay(waited)
		}

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < n; j++ {
				outcomes[j] = Outcome{Index: j, Err: ctx.Err()}
			}
			wg.Wait()
			return outcomes
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer func() { <-p.sem }()
			telemetry.IncActiveWorkers()
			defer telemetry.DecActiveWorkers()

			outcomes[index] = Outcome{Index: index, Err: p.runOne(ctx, index, fn)}
		}(i)
	}

	wg.Wait()
	return outcomes
}

// runOne isolates panics so a misbehaving item is recorded as a failure
// instead of crashing the pool.
func (p *Pool) runOne(ctx context.Context, index int, fn func(ctx context.Context, index int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("work item panicked",
				zap.Int("index", index),
				zap.Any("panic", r))
			err = fmt.Errorf("work item %d panicked: %v", index, r)
		}
	}()
	return fn(ctx, index)
}
