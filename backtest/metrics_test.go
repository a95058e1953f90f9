package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mohithlingosme/tradebot/journal"
)

func curve(start time.Time, equities ...float64) []journal.EquityPoint {
	out := make([]journal.EquityPoint, len(equities))
	for i, e := range equities {
		out[i] = journal.EquityPoint{Time: start.Add(time.Duration(i) * 24 * time.Hour), Equity: e}
	}
	return out
}

func trade(pl float64) journal.TradeRecord { return journal.TradeRecord{RealizedPL: pl} }

func TestComputeMetrics_Basic(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := ComputeMetrics(
		[]journal.TradeRecord{trade(300), trade(-100), trade(200)},
		curve(start, 100000, 100300, 100200, 100400),
	)

	assert.Equal(t, 3, m.Trades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-12)
	assert.InDelta(t, 5.0, m.ProfitFactor, 1e-12) // 500 / 100
	assert.InDelta(t, 400, m.NetPL, 1e-12)
	assert.InDelta(t, 0.004, m.TotalReturn, 1e-12)
	assert.InDelta(t, 100000, m.StartEquity, 1e-12)
	assert.InDelta(t, 100400, m.EndEquity, 1e-12)
}

func TestComputeMetrics_ProfitFactorAllWins(t *testing.T) {
	t.Parallel()

	start := time.Now()
	m := ComputeMetrics(
		[]journal.TradeRecord{trade(100), trade(50)},
		curve(start, 1000, 1100, 1150),
	)

	assert.True(t, math.IsInf(m.ProfitFactor, 1), "got %v", m.ProfitFactor)
}

func TestComputeMetrics_NoTrades(t *testing.T) {
	t.Parallel()

	m := ComputeMetrics(nil, curve(time.Now(), 1000, 1000, 1000))

	assert.Equal(t, 0, m.Trades)
	assert.Zero(t, m.WinRate)
	assert.True(t, math.IsNaN(m.ProfitFactor))
	assert.Zero(t, m.MaxDrawdown)
}

func TestComputeMetrics_EmptyCurve(t *testing.T) {
	t.Parallel()

	m := ComputeMetrics(nil, nil)

	assert.Zero(t, m.TotalReturn)
	assert.True(t, math.IsNaN(m.Sharpe))
}

func TestComputeMetrics_MaxDrawdown(t *testing.T) {
	t.Parallel()

	// Peak 120, trough 90: drawdown 25%.
	m := ComputeMetrics(nil, curve(time.Now(), 100, 120, 90, 110))

	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-12)
}

func TestComputeMetrics_SharpePerTrade(t *testing.T) {
	t.Parallel()

	// One trade is not enough, however long the curve.
	m := ComputeMetrics([]journal.TradeRecord{trade(100)}, curve(time.Now(), 100, 110, 105, 115))
	assert.True(t, math.IsNaN(m.Sharpe), "one trade is not enough")

	// +200 and 0: mean 100, sample stdev 100*sqrt(2), times sqrt(2) gives 1.
	m = ComputeMetrics([]journal.TradeRecord{trade(200), trade(0)}, nil)
	assert.InDelta(t, 1.0, m.Sharpe, 1e-12)

	// Identical winners: zero spread around a positive mean.
	m = ComputeMetrics([]journal.TradeRecord{trade(50), trade(50)}, nil)
	assert.True(t, math.IsInf(m.Sharpe, 1))
}

func TestAnnualize(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Two years at +21% total is ~10% a year.
	got := annualize(0.21, start, start.AddDate(2, 0, 0))
	assert.InDelta(t, 0.10, got, 0.001)

	// Degenerate span falls back to the total.
	assert.InDelta(t, 0.21, annualize(0.21, start, start), 1e-12)
}
