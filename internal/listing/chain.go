// Package listing acquires the document catalog. Strategies are tried
// in order until one produces entries; the static seed list sits at the
// end of the chain so a harvest always has something to work on.
package listing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/telemetry"
)

// Chain tries each strategy in order and returns the first non-empty
// result. Strategy failures are logged and skipped, never propagated
// past the next strategy.
type Chain struct {
	strategies []guidance.ListingStrategy
	logger     *zap.Logger
}

// NewChain constructs a chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...guidance.ListingStrategy) (*Chain, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one listing strategy is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, logger: logger}, nil
}

// Name implements guidance.ListingStrategy.
func (c *Chain) Name() string { return "chain" }

// Acquire walks the chain. limit <= 0 means no limit.
func (c *Chain) Acquire(ctx context.Context, limit int) ([]guidance.Candidate, error) {
	var lastErr error
	for _, strategy := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands, err := strategy.Acquire(ctx, limit)
		if err != nil {
			telemetry.ObserveListing(strategy.Name(), "error")
			c.logger.Warn("listing strategy failed, trying next",
				zap.String("strategy", strategy.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}
		if len(cands) == 0 {
			telemetry.ObserveListing(strategy.Name(), "empty")
			c.logger.Warn("listing strategy returned nothing, trying next",
				zap.String("strategy", strategy.Name()))
			continue
		}
		telemetry.ObserveListing(strategy.Name(), "ok")
		c.logger.Info("listing acquired",
			zap.String("strategy", strategy.Name()),
			zap.Int("candidates", len(cands)))
		return clamp(cands, limit), nil
	}
	if lastErr != nil {
		return nil, &guidance.AcquisitionError{Strategy: "chain", Reason: "all strategies exhausted", Err: lastErr}
	}
	return nil, &guidance.AcquisitionError{Strategy: "chain", Reason: "all strategies returned nothing"}
}

func clamp(cands []guidance.Candidate, limit int) []guidance.Candidate {
	if limit > 0 && len(cands) > limit {
		return cands[:limit]
	}
	return cands
}
