package backtest

import (
	"math"
	"time"

	"github.com/mohithlingosme/tradebot/journal"
)

// Metrics summarizes one run. Degenerate inputs produce the IEEE values the
// math implies: ProfitFactor is +Inf with wins and no losses and NaN with no
// trades at all; Sharpe is NaN with fewer than two trades.
type Metrics struct {
	StartEquity float64 `json:"start_equity"`
	EndEquity   float64 `json:"end_equity"`

	TotalReturn      float64 `json:"total_return"`      // fraction, 0.05 = +5%
	AnnualizedReturn float64 `json:"annualized_return"` // compounded over the run's span

	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"` // gross wins / gross losses

	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"` // reported positive
	NetPL       float64 `json:"net_pl"`

	MaxDrawdown float64 `json:"max_drawdown"` // peak-to-trough fraction, reported positive
	Sharpe      float64 `json:"sharpe"`       // per-trade returns, annualization-free
}

// ComputeMetrics derives the run summary from closed trades and the equity
// curve. Pure; safe to call on partial runs.
func ComputeMetrics(trades []journal.TradeRecord, curve []journal.EquityPoint) Metrics {
	var m Metrics

	for _, t := range trades {
		m.Trades++
		m.NetPL += t.RealizedPL
		switch {
		case t.RealizedPL > 0:
			m.Wins++
			m.GrossProfit += t.RealizedPL
		case t.RealizedPL < 0:
			m.Losses++
			m.GrossLoss += -t.RealizedPL
		}
	}
	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
	}
	m.ProfitFactor = m.GrossProfit / m.GrossLoss // 0/0 = NaN, x/0 = +Inf
	m.Sharpe = sharpe(trades)

	if len(curve) == 0 {
		return m
	}

	m.StartEquity = curve[0].Equity
	m.EndEquity = curve[len(curve)-1].Equity
	if m.StartEquity != 0 {
		m.TotalReturn = m.EndEquity/m.StartEquity - 1
	}
	m.AnnualizedReturn = annualize(m.TotalReturn, curve[0].Time, curve[len(curve)-1].Time)
	m.MaxDrawdown = maxDrawdown(curve)
	return m
}

func annualize(totalReturn float64, start, end time.Time) float64 {
	years := end.Sub(start).Hours() / (24 * 365.25)
	if years <= 0 {
		return totalReturn
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}

func maxDrawdown(curve []journal.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe is mean over stdev of per-trade returns, scaled by sqrt(n). The
// ratio is scale-invariant, so the raw realized amounts stand in for the
// returns. No risk-free rate and no calendar annualization: it is a relative
// score for comparing runs over the same feed, not a brokerage statement
// number.
func sharpe(trades []journal.TradeRecord) float64 {
	if len(trades) < 2 {
		return math.NaN()
	}

	var mean float64
	for _, t := range trades {
		mean += t.RealizedPL
	}
	mean /= float64(len(trades))

	var variance float64
	for _, t := range trades {
		d := t.RealizedPL - mean
		variance += d * d
	}
	variance /= float64(len(trades) - 1)

	sd := math.Sqrt(variance)
	if sd == 0 {
		if mean == 0 {
			return 0
		}
		return math.Inf(int(math.Copysign(1, mean)))
	}
	return mean / sd * math.Sqrt(float64(len(trades)))
}
