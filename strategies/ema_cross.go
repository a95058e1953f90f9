package strategies

import (
	"github.com/mohithlingosme/tradebot/indicators"
	"github.com/mohithlingosme/tradebot/market"
)

// EMACross trades a fast/slow EMA crossover on bar closes.
//   - Enters long on a bull cross (fast crosses above slow)
//   - Flattens on a bear cross; opens a short instead when LongOnly is off
type EMACross struct {
	cfg EMACrossConfig

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	lastDiff     float64
	haveLastDiff bool
	dir          int // +1 long, -1 short, 0 flat (strategy's own view)
}

type EMACrossConfig struct {
	FastPeriod int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod int     `json:"slow_period" yaml:"slow_period"`
	LongOnly   bool    `json:"long_only" yaml:"long_only"`
	StopPct    float64 `json:"stop_pct" yaml:"stop_pct"` // protective stop below entry, 0 disables
	TakePct    float64 `json:"take_pct" yaml:"take_pct"`
	TrailPct   float64 `json:"trail_pct" yaml:"trail_pct"`
}

func EMACrossDefaults() EMACrossConfig {
	return EMACrossConfig{
		FastPeriod: 10,
		SlowPeriod: 30,
		LongOnly:   true,
	}
}

func NewEMACross(cfg EMACrossConfig) *EMACross {
	return &EMACross{
		cfg:  cfg,
		fast: indicators.NewEMA(cfg.FastPeriod),
		slow: indicators.NewEMA(cfg.SlowPeriod),
	}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.lastDiff = 0
	s.haveLastDiff = false
	s.dir = 0
}

func (s *EMACross) OnBar(bar market.Bar) []Signal {
	s.fast.Update(bar.Close)
	s.slow.Update(bar.Close)

	if !s.fast.Ready() || !s.slow.Ready() {
		return nil
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	switch {
	case bullCross:
		return s.onCross(bar, +1, "BullCross")
	case bearCross:
		return s.onCross(bar, -1, "BearCross")
	default:
		return nil
	}
}

func (s *EMACross) onCross(bar market.Bar, dir int, reason string) []Signal {
	var out []Signal

	if s.dir != 0 && s.dir != dir {
		out = append(out, Signal{
			Kind:   SignalClose,
			Symbol: bar.Symbol,
			Price:  bar.Close,
			Reason: "ExitOn" + reason,
		})
		s.dir = 0
	}

	if dir < 0 && s.cfg.LongOnly {
		return out
	}

	kind := SignalBuy
	if dir < 0 {
		kind = SignalSell
	}
	sig := Signal{
		Kind:     kind,
		Symbol:   bar.Symbol,
		Price:    bar.Close,
		TrailPct: s.cfg.TrailPct,
		Reason:   reason,
	}
	if s.cfg.StopPct > 0 {
		sig.Stop = bar.Close * (1 - float64(dir)*s.cfg.StopPct)
	}
	if s.cfg.TakePct > 0 {
		sig.Take = bar.Close * (1 + float64(dir)*s.cfg.TakePct)
	}
	out = append(out, sig)
	s.dir = dir
	return out
}
