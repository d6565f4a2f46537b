package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Concurrency: 0, RateLimit: 1}, zap.NewNop())
	require.Error(t, err)

	_, err = New(Config{Concurrency: 1, RateLimit: 0}, zap.NewNop())
	require.Error(t, err)

	p, err := New(Config{Concurrency: 1, RateLimit: 1}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestRunCollectsErrorsWithoutAborting(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Concurrency: 3, RateLimit: 1000}, zap.NewNop())
	require.NoError(t, err)

	failing := errors.New("boom")
	outcomes := p.Run(context.Background(), 6, func(_ context.Context, index int) error {
		if index%2 == 1 {
			return failing
		}
		return nil
	})

	require.Len(t, outcomes, 6)
	for _, o := range outcomes {
		if o.Index%2 == 1 {
			require.ErrorIs(t, o.Err, failing)
		} else {
			require.NoError(t, o.Err)
		}
	}
}

func TestRunHonorsConcurrencyBound(t *testing.T) {
	t.Parallel()

	const bound = 3
	p, err := New(Config{Concurrency: bound, RateLimit: 10000}, zap.NewNop())
	require.NoError(t, err)

	var active, peak int64
	outcomes := p.Run(context.Background(), 20, func(_ context.Context, _ int) error {
		now := atomic.AddInt64(&active, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return nil
	})

	require.Len(t, outcomes, 20)
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(bound))
}

func TestRunPacesDispatches(t *testing.T) {
	t.Parallel()

	// 5 items at 50/sec: four paced dispatches after the initial token,
	// so the batch cannot finish in under 80ms.
	p, err := New(Config{Concurrency: 5, RateLimit: 50}, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	outcomes := p.Run(context.Background(), 5, func(_ context.Context, _ int) error {
		return nil
	})
	elapsed := time.Since(start)

	require.Len(t, outcomes, 5)
	require.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestRunReportsDeadlineOverrunsAsErrors(t *testing.T) {
	t.Parallel()

	// At 1/sec only the first dispatch fits a 200ms deadline; the
	// limiter refuses the rest up front while the context is still
	// live, so those items never run and must not read as successes.
	p, err := New(Config{Concurrency: 2, RateLimit: 1}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var ran int64
	outcomes := p.Run(ctx, 4, func(_ context.Context, _ int) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})

	require.Len(t, outcomes, 4)
	require.NoError(t, outcomes[0].Err)
	for _, o := range outcomes[1:] {
		require.Error(t, o.Err, "undispatched item %d must carry an error", o.Index)
	}
	require.EqualValues(t, 1, atomic.LoadInt64(&ran))
}

func TestRunStopsDispatchingOnCancel(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Concurrency: 1, RateLimit: 20}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	started := 0
	outcomes := p.Run(ctx, 50, func(_ context.Context, index int) error {
		mu.Lock()
		started++
		mu.Unlock()
		if index == 2 {
			cancel()
		}
		return nil
	})

	require.Len(t, outcomes, 50)

	mu.Lock()
	launched := started
	mu.Unlock()
	require.Less(t, launched, 50, "cancellation should stop new dispatches")

	canceled := 0
	for _, o := range outcomes {
		if errors.Is(o.Err, context.Canceled) {
			canceled++
		}
	}
	require.Equal(t, 50-launched, canceled)
}
