package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/strategies"
)

// WindowResult is one walk-forward window's outcome.
type WindowResult struct {
	Index int
	Start time.Time
	End   time.Time
	Result
}

// WalkForward slides a fixed-size window over the bar history in steps and
// runs an independent backtest per window: fresh strategies from the factory,
// fresh ledger, fresh journal. Window and step are in bars; a step smaller
// than the window gives overlapping windows.
func WalkForward(
	ctx context.Context,
	cfg Config,
	factory func() ([]strategies.Strategy, error),
	bars []market.Bar,
	window, step int,
	log zerolog.Logger,
) ([]WindowResult, error) {
	if window <= 0 {
		return nil, fmt.Errorf("backtest: window must be positive, got %d", window)
	}
	if step <= 0 {
		return nil, fmt.Errorf("backtest: step must be positive, got %d", step)
	}
	if len(bars) < window {
		return nil, fmt.Errorf("backtest: %d bars is fewer than the window of %d", len(bars), window)
	}

	var out []WindowResult
	for i, start := 0, 0; start+window <= len(bars); i, start = i+1, start+step {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		strat, err := factory()
		if err != nil {
			return out, fmt.Errorf("window %d: build strategies: %w", i, err)
		}

		slice := bars[start : start+window]
		res, err := NewRunner(cfg, strat, NewSliceFeed(slice), log).Run(ctx)
		if err != nil {
			return out, fmt.Errorf("window %d: %w", i, err)
		}

		out = append(out, WindowResult{
			Index:  i,
			Start:  slice[0].Time,
			End:    slice[len(slice)-1].Time,
			Result: res,
		})
	}
	return out, nil
}
