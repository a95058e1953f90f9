package exec

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/journal"
	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/pkg/id"
	"github.com/mohithlingosme/tradebot/risk"
)

// Config controls fill simulation and the risk gate.
type Config struct {
	// SlippageBps is the adverse price adjustment applied to simulated fills,
	// in basis points of the quote.
	SlippageBps float64

	// Commission is flat + per-unit + rate-of-notional, summed.
	CommissionFlat    float64
	CommissionPerUnit float64
	CommissionRate    float64

	// RiskEnabled gates every PlaceOrder through the rule battery.
	RiskEnabled bool

	// LockTimeout bounds the per-account lock wait. Zero means try-once.
	LockTimeout time.Duration
}

// Engine is the simulated/paper broker: it resolves a reference price, runs
// the risk gate, persists the order, simulates the fill and applies it to the
// ledger. All of that happens under a per-account lock so that exactly one
// evaluation-plus-execution is in flight per account at any time.
type Engine struct {
	cfg    Config
	books  ledger.Store
	limits risk.LimitsStore
	orders OrderStore
	prices market.PriceSource
	jnl    journal.Journal
	log    zerolog.Logger
	locks  *accountLocks

	// now is the engine clock; replay drivers pin it to the feed's timestamps
	// so backtests are reproducible.
	now func() time.Time
}

func NewEngine(
	cfg Config,
	books ledger.Store,
	limits risk.LimitsStore,
	orders OrderStore,
	prices market.PriceSource,
	jnl journal.Journal,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:    cfg,
		books:  books,
		limits: limits,
		orders: orders,
		prices: prices,
		jnl:    jnl,
		log:    log.With().Str("component", "exec").Logger(),
		locks:  newAccountLocks(),
		now:    time.Now,
	}
}

// SetClock pins the engine clock. Used by the replay driver.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// OrderResult is the outcome of PlaceOrder. Exactly one of Order (accepted)
// or a non-ALLOW Decision (blocked) is meaningful; HTTPStatus is the
// transport-equivalent code for API callers.
type OrderResult struct {
	Order      *Order
	Decision   risk.Decision
	HTTPStatus int
}

// WithAccount runs fn holding the account's serialization lock. The halt
// monitor uses this to avoid racing user-initiated orders.
func (e *Engine) WithAccount(ctx context.Context, accountID string, fn func() error) error {
	if err := e.locks.acquire(ctx, accountID, e.cfg.LockTimeout); err != nil {
		return err
	}
	defer e.locks.release(accountID)
	return fn()
}

// PlaceOrder takes an intent through price resolution, the risk gate, order
// persistence and fill simulation.
func (e *Engine) PlaceOrder(ctx context.Context, accountID string, intent risk.Intent) (OrderResult, error) {
	if err := intent.Validate(); err != nil {
		return OrderResult{}, err
	}
	if err := e.locks.acquire(ctx, accountID, e.cfg.LockTimeout); err != nil {
		return OrderResult{}, err
	}
	defer e.locks.release(accountID)

	return e.placeLocked(accountID, intent, false)
}

// PlaceExitOrder bypasses the risk gate. Only the square-off path uses it: an
// exit must never be blocked by the very breach that triggered it. Callers
// must already hold the account lock via WithAccount.
func (e *Engine) PlaceExitOrder(accountID string, intent risk.Intent) (OrderResult, error) {
	if err := intent.Validate(); err != nil {
		return OrderResult{}, err
	}
	return e.placeLocked(accountID, intent, true)
}

func (e *Engine) placeLocked(accountID string, intent risk.Intent, bypassRisk bool) (OrderResult, error) {
	ref, err := e.prices.GetLastPrice(intent.Symbol)
	if err != nil {
		return OrderResult{}, fmt.Errorf("place order %s: %w", intent.Symbol, err)
	}

	now := e.now()

	if e.cfg.RiskEnabled && !bypassRisk {
		limits, err := e.limits.Effective(accountID, intent.StrategyID)
		if err != nil {
			return OrderResult{}, fmt.Errorf("read limits: %w", err)
		}
		snap, err := e.snapshotLocked(accountID, limits, now)
		if err != nil {
			return OrderResult{}, err
		}

		dec := risk.Evaluate(intent, snap, limits)
		if !dec.Allowed() {
			e.recordRiskEvent(accountID, now, dec, snap)

			status := http.StatusForbidden
			if dec.Action == risk.ActionHaltTrading {
				status = http.StatusConflict
				// The daily-loss rule demands a sticky halt; Evaluate is pure,
				// so the flag write happens here.
				if dec.Code == risk.CodeMaxDailyLoss {
					if err := e.limits.SetHalt(accountID, true, dec.Message); err != nil {
						return OrderResult{}, fmt.Errorf("persist halt: %w", err)
					}
				}
			}
			e.log.Info().
				Str("account", accountID).
				Str("symbol", intent.Symbol).
				Str("action", dec.Action.String()).
				Str("code", dec.Code).
				Msg("order blocked")
			return OrderResult{Decision: dec, HTTPStatus: status}, nil
		}
	}

	o := Order{
		ID:         id.New(),
		AccountID:  accountID,
		StrategyID: intent.StrategyID,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Qty:        intent.Qty,
		Type:       intent.Type,
		LimitPrice: intent.LimitPrice,
		StopPrice:  intent.StopPrice,
		Product:    intent.Product,
		Tag:        intent.Tag,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.orders.UpsertOrder(o); err != nil {
		return OrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	if fillable(o, ref) {
		if err := e.fillLocked(&o, ref, now); err != nil {
			return OrderResult{}, err
		}
	}

	return OrderResult{Order: &o, Decision: risk.Allow(), HTTPStatus: http.StatusCreated}, nil
}

// fillable models the immediate-fill rules: MARKET always; LIMIT BUY only at
// or under the limit, LIMIT SELL only at or over it; STOP only once the
// reference has already crossed the trigger in the adverse direction.
func fillable(o Order, ref float64) bool {
	switch o.Type {
	case risk.Market:
		return true
	case risk.Limit:
		limit := o.LimitPrice.InexactFloat64()
		if o.Side == risk.Buy {
			return ref <= limit
		}
		return ref >= limit
	case risk.Stop:
		stop := o.StopPrice.InexactFloat64()
		if o.Side == risk.Buy {
			return ref >= stop
		}
		return ref <= stop
	default:
		return false
	}
}

func (e *Engine) fillLocked(o *Order, ref float64, now time.Time) error {
	price := decimal.NewFromFloat(e.slipped(ref, o.Side))
	slip := price.Sub(decimal.NewFromFloat(ref))
	fees := e.commission(o.Qty, price)

	before, _, err := e.books.Position(o.AccountID, o.Symbol)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}

	fill := Fill{
		ID:       id.New(),
		OrderID:  o.ID,
		Qty:      o.SignedQty(),
		Price:    price,
		Fees:     fees,
		Slippage: slip,
		Time:     now,
	}
	if err := e.orders.RecordFill(fill); err != nil {
		return fmt.Errorf("persist fill: %w", err)
	}

	res, err := e.books.ApplyFill(ledger.FillApply{
		AccountID: o.AccountID,
		Symbol:    o.Symbol,
		Product:   o.Product,
		Qty:       fill.Qty,
		Price:     price,
		Fees:      fees,
		Time:      now,
		Ref:       o.ID,
	})
	if err != nil {
		return fmt.Errorf("apply fill: %w", err)
	}

	o.Status = StatusFilled
	o.UpdatedAt = now
	if err := e.orders.UpsertOrder(*o); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}

	// A reducing fill completes a round trip on the closed portion.
	if !res.Realized.IsZero() || (res.Position.Qty.IsZero() && !before.Qty.IsZero()) {
		closed := decimal.Min(o.Qty, before.Qty.Abs())
		if before.Qty.Sign() < 0 {
			closed = closed.Neg()
		}
		reason := o.Tag
		if reason == "" {
			reason = "Fill"
		}
		if err := e.jnl.RecordTrade(journal.TradeRecord{
			TradeID:    fill.ID,
			AccountID:  o.AccountID,
			Symbol:     o.Symbol,
			Qty:        closed.InexactFloat64(),
			EntryPrice: before.AvgPrice.InexactFloat64(),
			ExitPrice:  price.InexactFloat64(),
			OpenTime:   before.UpdatedAt,
			CloseTime:  now,
			RealizedPL: res.Realized.InexactFloat64(),
			Reason:     reason,
		}); err != nil {
			e.log.Error().Err(err).Str("order", o.ID).Msg("record trade")
		}
	}

	if eq, err := e.Equity(o.AccountID); err == nil {
		if err := e.jnl.RecordEquity(journal.EquityPoint{
			AccountID: o.AccountID,
			Time:      now,
			Cash:      res.Cash.InexactFloat64(),
			Equity:    eq,
		}); err != nil {
			e.log.Error().Err(err).Str("account", o.AccountID).Msg("record equity")
		}
	}

	e.log.Debug().
		Str("order", o.ID).
		Str("symbol", o.Symbol).
		Str("qty", fill.Qty.String()).
		Str("price", price.String()).
		Msg("filled")
	return nil
}

// CancelOrder is a compare-and-swap on status: OPEN -> CANCELLED. Racing a
// concurrent fill is safe because both run under the account lock, and a fill
// that reached a terminal state first wins.
func (e *Engine) CancelOrder(ctx context.Context, accountID, orderID, reason string) (Order, error) {
	if err := e.locks.acquire(ctx, accountID, e.cfg.LockTimeout); err != nil {
		return Order{}, err
	}
	defer e.locks.release(accountID)

	o, ok, err := e.orders.GetOrder(accountID, orderID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusOpen {
		return o, ErrOrderNotOpen
	}

	o.Status = StatusCancelled
	o.Reason = reason
	o.UpdatedAt = e.now()
	if err := e.orders.UpsertOrder(o); err != nil {
		return Order{}, fmt.Errorf("persist cancel: %w", err)
	}
	return o, nil
}

// Snapshot builds a fresh risk snapshot for the account. Callers that need
// snapshot-then-act atomicity must wrap this in WithAccount.
func (e *Engine) Snapshot(accountID string, now time.Time) (risk.Snapshot, error) {
	limits, err := e.limits.Effective(accountID, "")
	if err != nil {
		return risk.Snapshot{}, err
	}
	return e.snapshotLocked(accountID, limits, now)
}

func (e *Engine) snapshotLocked(accountID string, limits risk.Limits, now time.Time) (risk.Snapshot, error) {
	open, err := e.orders.OpenOrders(accountID)
	if err != nil {
		return risk.Snapshot{}, fmt.Errorf("count open orders: %w", err)
	}
	dayStart := risk.DayStart(now, limits.Timezone)
	snap, err := risk.BuildSnapshot(e.books, e.prices, accountID, len(open), dayStart, now)
	if err != nil {
		return risk.Snapshot{}, fmt.Errorf("build snapshot: %w", err)
	}
	return snap, nil
}

// Equity marks the account to market: cash plus position value.
func (e *Engine) Equity(accountID string) (float64, error) {
	cash, err := e.books.Cash(accountID)
	if err != nil {
		return 0, err
	}
	positions, err := e.books.OpenPositions(accountID)
	if err != nil {
		return 0, err
	}
	eq := cash.InexactFloat64()
	for _, p := range positions {
		mark, err := e.prices.GetLastPrice(p.Symbol)
		if err != nil {
			mark = p.AvgPrice.InexactFloat64()
		}
		eq += p.Qty.InexactFloat64() * mark
	}
	return eq, nil
}

func (e *Engine) slipped(ref float64, side risk.Side) float64 {
	adj := ref * e.cfg.SlippageBps / 10000
	if side == risk.Sell {
		return ref - adj
	}
	return ref + adj
}

func (e *Engine) commission(qty, price decimal.Decimal) decimal.Decimal {
	notional := qty.Mul(price).Abs()
	fees := decimal.NewFromFloat(e.cfg.CommissionFlat)
	fees = fees.Add(qty.Abs().Mul(decimal.NewFromFloat(e.cfg.CommissionPerUnit)))
	fees = fees.Add(notional.Mul(decimal.NewFromFloat(e.cfg.CommissionRate)))
	return fees
}

// recordRiskEvent is fire-and-forget: journal failures are logged, never
// propagated into the order path.
func (e *Engine) recordRiskEvent(accountID string, now time.Time, dec risk.Decision, snap risk.Snapshot) {
	err := e.jnl.RecordRiskEvent(journal.RiskEvent{
		EventID:   uuid.New().String(),
		AccountID: accountID,
		Time:      now,
		Decision:  dec,
		Snapshot:  snap,
	})
	if err != nil {
		e.log.Error().Err(err).Str("account", accountID).Msg("record risk event")
	}
}
