package exec

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/risk"
)

// Monitor periodically recomputes snapshots for active accounts and applies
// the daily-loss halt logic even when no order is being placed, so losses
// accruing purely from market movement on existing positions still trip the
// breaker. Optionally it also force-flattens the account's open positions.
//
// It is a cancellable periodic task with an explicit stop signal, so shutdown
// is deterministic.
type Monitor struct {
	engine    *Engine
	limits    risk.LimitsStore
	books     ledger.Store
	accounts  func() []string
	interval  time.Duration
	squareOff bool
	log       zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(
	engine *Engine,
	limits risk.LimitsStore,
	books ledger.Store,
	accounts func() []string,
	interval time.Duration,
	squareOff bool,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		engine:    engine,
		limits:    limits,
		books:     books,
		accounts:  accounts,
		interval:  interval,
		squareOff: squareOff,
		log:       log.With().Str("component", "risk-monitor").Logger(),
	}
}

// Start launches the periodic loop. Stop cancels it and waits for the
// in-flight sweep to finish.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		t := time.NewTicker(m.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Sweep(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Sweep checks every active account once. Exported so tests and the replay
// driver can run the monitor synchronously.
func (m *Monitor) Sweep(ctx context.Context) {
	for _, accountID := range m.accounts() {
		if err := m.checkAccount(ctx, accountID); err != nil {
			if errors.Is(err, ErrAccountBusy) {
				// An order placement holds the lock; this account gets
				// re-checked next tick.
				continue
			}
			m.log.Error().Err(err).Str("account", accountID).Msg("monitor sweep")
		}
	}
}

func (m *Monitor) checkAccount(ctx context.Context, accountID string) error {
	return m.engine.WithAccount(ctx, accountID, func() error {
		limits, err := m.limits.Effective(accountID, "")
		if err != nil {
			return err
		}
		if !limits.Enabled {
			return nil
		}

		now := m.engine.now()
		snap, err := m.engine.snapshotLocked(accountID, limits, now)
		if err != nil {
			return err
		}

		if !limits.Halted {
			breached := risk.DailyLossBreached(snap, limits)
			if len(breached) == 0 {
				return nil
			}

			dec := risk.Decision{
				Action:   risk.ActionHaltTrading,
				Code:     risk.CodeMaxDailyLoss,
				Message:  "daily loss limit breached by market movement",
				Breached: breached,
			}
			if m.squareOff {
				dec.Action = risk.ActionForceSquareOff
			}
			if err := m.limits.SetHalt(accountID, true, dec.Message); err != nil {
				return err
			}
			m.engine.recordRiskEvent(accountID, now, dec, snap)
			m.log.Warn().
				Str("account", accountID).
				Strs("breached", dec.Breached).
				Float64("day_pl", snap.DayPL).
				Msg("account halted")
		}

		if m.squareOff {
			return m.squareOffLocked(accountID)
		}
		return nil
	})
}

// squareOffLocked submits an opposite-side market order for every nonzero
// position, skipping symbols that already have an exit in flight. These
// orders bypass the risk gate: an exit must never be blocked by the breach
// that triggered it.
func (m *Monitor) squareOffLocked(accountID string) error {
	positions, err := m.books.OpenPositions(accountID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}

	open, err := m.engine.orders.OpenOrders(accountID)
	if err != nil {
		return err
	}
	openBySymbol := make(map[string][]Order)
	for _, o := range open {
		openBySymbol[o.Symbol] = append(openBySymbol[o.Symbol], o)
	}

	for _, p := range positions {
		if p.Qty.IsZero() || hasExitInFlight(openBySymbol[p.Symbol], p.Qty.Sign()) {
			continue
		}
		side := risk.Sell
		if p.Qty.Sign() < 0 {
			side = risk.Buy
		}
		intent := risk.Intent{
			Symbol:  p.Symbol,
			Side:    side,
			Qty:     p.Qty.Abs(),
			Type:    risk.Market,
			Product: p.Product,
			Time:    m.engine.now(),
			Tag:     "SquareOff",
		}
		if _, err := m.engine.PlaceExitOrder(accountID, intent); err != nil {
			m.log.Error().Err(err).
				Str("account", accountID).
				Str("symbol", p.Symbol).
				Msg("square-off order failed")
		}
	}
	return nil
}

// hasExitInFlight reports whether any open order would reduce a position with
// the given sign. A resting entry order on the same side as the position does
// not count and must not block its square-off.
func hasExitInFlight(open []Order, sign int) bool {
	for _, o := range open {
		if (sign > 0 && o.Side == risk.Sell) || (sign < 0 && o.Side == risk.Buy) {
			return true
		}
	}
	return false
}
