package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/exec"
	"github.com/mohithlingosme/tradebot/journal"
	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/risk"
	"github.com/mohithlingosme/tradebot/strategies"
)

// Config controls one backtest run.
type Config struct {
	AccountID    string
	StartingCash decimal.Decimal

	// SizingFraction is the fraction of current equity committed per entry
	// when a signal carries no explicit quantity.
	SizingFraction float64

	// MaxOrderQty caps sized orders. Zero disables the cap.
	MaxOrderQty float64

	SlippageBps       float64
	CommissionFlat    float64
	CommissionPerUnit float64
	CommissionRate    float64

	// Limits is the account-level risk override applied before the run.
	Limits risk.Override

	// Optional time bounds; zero values disable them.
	Start time.Time
	End   time.Time
}

// Result is everything one run produced.
type Result struct {
	Metrics    Metrics
	Trades     []journal.TradeRecord
	Equity     []journal.EquityPoint
	RiskEvents []journal.RiskEvent
	Failures   int // strategy panics swallowed during the run
	Start      time.Time
	End        time.Time
}

type protection struct {
	stop     float64
	take     float64
	trailPct float64
	peak     float64 // best price seen since entry (lowest for shorts)
}

// Runner is the replay driver: it feeds bars to strategies, routes their
// signals through the risk and execution engines, and records the equity
// curve. Single-threaded and deterministic; given the same feed and config
// the output is exactly reproducible.
type Runner struct {
	cfg   Config
	strat []strategies.Strategy
	feed  BarFeed

	books  *ledger.Ledger
	limits *risk.MemoryLimits
	orders *exec.MemoryOrders
	prices *market.Store
	jnl    *journal.Memory
	engine *exec.Engine
	log    zerolog.Logger

	clock       time.Time
	protections map[string]*protection
	curve       []journal.EquityPoint
	failures    int
}

// NewRunner wires a fully in-memory engine stack. Every run gets its own
// isolated instances, so concurrent backtests never share state.
func NewRunner(cfg Config, strat []strategies.Strategy, feed BarFeed, log zerolog.Logger) *Runner {
	if cfg.AccountID == "" {
		cfg.AccountID = "backtest"
	}
	if cfg.SizingFraction <= 0 {
		cfg.SizingFraction = 0.1
	}

	r := &Runner{
		cfg:         cfg,
		strat:       strat,
		feed:        feed,
		books:       ledger.New(),
		limits:      risk.NewMemoryLimits(risk.DefaultLimits()),
		orders:      exec.NewMemoryOrders(),
		prices:      market.NewStore(),
		jnl:         journal.NewMemory(),
		log:         log.With().Str("component", "backtest").Logger(),
		protections: make(map[string]*protection),
	}

	r.engine = exec.NewEngine(exec.Config{
		SlippageBps:       cfg.SlippageBps,
		CommissionFlat:    cfg.CommissionFlat,
		CommissionPerUnit: cfg.CommissionPerUnit,
		CommissionRate:    cfg.CommissionRate,
		RiskEnabled:       true,
		LockTimeout:       time.Second,
	}, r.books, r.limits, r.orders, r.prices, r.jnl, log)
	r.engine.SetClock(func() time.Time { return r.clock })

	return r
}

// Run executes the replay loop to feed exhaustion, force-flattens any
// residual position, and computes metrics.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if len(r.strat) == 0 {
		return Result{}, fmt.Errorf("backtest: at least one strategy is required")
	}
	defer r.feed.Close()

	if err := r.books.CreateAccount(r.cfg.AccountID, r.cfg.StartingCash); err != nil {
		return Result{}, err
	}
	if err := r.limits.SetAccountOverride(r.cfg.AccountID, r.cfg.Limits); err != nil {
		return Result{}, err
	}

	var start, end time.Time
	var lastBar market.Bar
	haveBar := false

	for {
		bar, ok, err := r.feed.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
		if !r.cfg.Start.IsZero() && bar.Time.Before(r.cfg.Start) {
			continue
		}
		if !r.cfg.End.IsZero() && bar.Time.After(r.cfg.End) {
			break
		}

		if start.IsZero() {
			start = bar.Time
		}
		end = bar.Time
		lastBar = bar
		haveBar = true

		r.clock = bar.Time
		r.prices.Set(market.QuoteFromLast(bar.Symbol, bar.Close, bar.Time))

		// Protective exits run against the bar's full range before any new
		// entries are considered.
		if err := r.checkProtections(ctx, bar); err != nil {
			return Result{}, err
		}

		for _, s := range r.strat {
			for _, sig := range r.safeOnBar(s, bar) {
				if err := r.handleSignal(ctx, s.Name(), sig); err != nil {
					return Result{}, err
				}
			}
		}

		p, err := r.equityPoint(bar.Time)
		if err != nil {
			return Result{}, err
		}
		r.curve = append(r.curve, p)
	}

	// Every run ends flat: residual positions close at the last price so all
	// P&L is realized.
	if haveBar {
		if err := r.flattenAll(ctx, lastBar.Close, "EndOfReplay"); err != nil {
			return Result{}, err
		}
		p, err := r.equityPoint(r.clock)
		if err != nil {
			return Result{}, err
		}
		r.curve = append(r.curve, p)
	}

	trades := r.jnl.Trades()
	return Result{
		Metrics:    ComputeMetrics(trades, r.curve),
		Trades:     trades,
		Equity:     r.curve,
		RiskEvents: r.jnl.RiskEvents(),
		Failures:   r.failures,
		Start:      start,
		End:        end,
	}, nil
}

// equityPoint marks the account to market, with the cash balance carried
// alongside so curve points match the ones the fill path journals.
func (r *Runner) equityPoint(at time.Time) (journal.EquityPoint, error) {
	eq, err := r.engine.Equity(r.cfg.AccountID)
	if err != nil {
		return journal.EquityPoint{}, err
	}
	cash, err := r.books.Cash(r.cfg.AccountID)
	if err != nil {
		return journal.EquityPoint{}, err
	}
	return journal.EquityPoint{
		AccountID: r.cfg.AccountID,
		Time:      at,
		Cash:      cash.InexactFloat64(),
		Equity:    eq,
	}, nil
}

// safeOnBar isolates strategy failures: a panicking strategy contributes no
// signals for this bar and the run continues.
func (r *Runner) safeOnBar(s strategies.Strategy, bar market.Bar) (sigs []strategies.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failures++
			r.log.Error().
				Str("strategy", s.Name()).
				Time("bar", bar.Time).
				Interface("panic", rec).
				Msg("strategy failed; treating signals as empty")
			sigs = nil
		}
	}()
	return s.OnBar(bar)
}

func (r *Runner) handleSignal(ctx context.Context, strategyID string, sig strategies.Signal) error {
	symbol := sig.Symbol
	if symbol == "" {
		return nil
	}

	if sig.Kind == strategies.SignalClose {
		return r.exitPosition(ctx, symbol, sig.Price, sig.Reason)
	}

	side := risk.Buy
	if sig.Kind == strategies.SignalSell {
		side = risk.Sell
	}

	qty := sig.Qty
	if !qty.IsPositive() {
		qty = r.sizeOrder(sig.Price)
	}
	if !qty.IsPositive() {
		return nil
	}

	intent := risk.Intent{
		Symbol:     symbol,
		Side:       side,
		Qty:        qty,
		Type:       risk.Market,
		Product:    ledger.ProductCarry,
		StrategyID: strategyID,
		RefPrice:   decimal.NewFromFloat(sig.Price),
		Time:       r.clock,
		Tag:        sig.Reason,
	}

	res, err := r.engine.PlaceOrder(ctx, r.cfg.AccountID, intent)
	if err != nil {
		return err
	}
	if !res.Decision.Allowed() {
		// Expected and frequent; already journaled as a risk event.
		return nil
	}

	if sig.Stop > 0 || sig.Take > 0 || sig.TrailPct > 0 {
		r.protections[symbol] = &protection{
			stop:     sig.Stop,
			take:     sig.Take,
			trailPct: sig.TrailPct,
			peak:     sig.Price,
		}
	}
	return nil
}

// sizeOrder commits a fixed fraction of current equity, floored to whole
// units and capped by MaxOrderQty.
func (r *Runner) sizeOrder(price float64) decimal.Decimal {
	if price <= 0 {
		return decimal.Zero
	}
	eq, err := r.engine.Equity(r.cfg.AccountID)
	if err != nil {
		return decimal.Zero
	}
	units := math.Floor(eq * r.cfg.SizingFraction / price)
	if r.cfg.MaxOrderQty > 0 && units > r.cfg.MaxOrderQty {
		units = r.cfg.MaxOrderQty
	}
	if units <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(units)
}

// checkProtections exits positions whose stop/take/trailing level was touched
// by this bar's range. When stop and take are both touched in one bar the
// stop wins (worst case for the trader).
func (r *Runner) checkProtections(ctx context.Context, bar market.Bar) error {
	p, ok := r.protections[bar.Symbol]
	if !ok {
		return nil
	}
	pos, held, err := r.books.Position(r.cfg.AccountID, bar.Symbol)
	if err != nil {
		return err
	}
	if !held || pos.Qty.IsZero() {
		delete(r.protections, bar.Symbol)
		return nil
	}

	long := pos.Qty.Sign() > 0
	stop := p.stop

	if p.trailPct > 0 {
		if long {
			if bar.High > p.peak {
				p.peak = bar.High
			}
			if trail := p.peak * (1 - p.trailPct); trail > stop {
				stop = trail
			}
		} else {
			if p.peak == 0 || bar.Low < p.peak {
				p.peak = bar.Low
			}
			if trail := p.peak * (1 + p.trailPct); stop == 0 || trail < stop {
				stop = trail
			}
		}
	}

	var exitPx float64
	var reason string
	if long {
		stopHit := stop > 0 && bar.Low <= stop
		takeHit := p.take > 0 && bar.High >= p.take
		switch {
		case stopHit:
			exitPx, reason = stop, "StopLoss"
		case takeHit:
			exitPx, reason = p.take, "TakeProfit"
		}
	} else {
		stopHit := stop > 0 && bar.High >= stop
		takeHit := p.take > 0 && bar.Low <= p.take
		switch {
		case stopHit:
			exitPx, reason = stop, "StopLoss"
		case takeHit:
			exitPx, reason = p.take, "TakeProfit"
		}
	}

	if reason == "" {
		return nil
	}
	if err := r.exitPosition(ctx, bar.Symbol, exitPx, reason); err != nil {
		return err
	}
	// Restore the close quote for the rest of the bar's processing.
	r.prices.Set(market.QuoteFromLast(bar.Symbol, bar.Close, bar.Time))
	return nil
}

// exitPosition closes the symbol's position at the given price. Exits bypass
// the risk gate: a protective stop must fire even on a halted account.
func (r *Runner) exitPosition(ctx context.Context, symbol string, price float64, reason string) error {
	pos, held, err := r.books.Position(r.cfg.AccountID, symbol)
	if err != nil {
		return err
	}
	if !held || pos.Qty.IsZero() {
		return nil
	}

	side := risk.Sell
	if pos.Qty.Sign() < 0 {
		side = risk.Buy
	}
	if price > 0 {
		r.prices.Set(market.QuoteFromLast(symbol, price, r.clock))
	}

	intent := risk.Intent{
		Symbol:  symbol,
		Side:    side,
		Qty:     pos.Qty.Abs(),
		Type:    risk.Market,
		Product: pos.Product,
		Time:    r.clock,
		Tag:     reason,
	}
	err = r.engine.WithAccount(ctx, r.cfg.AccountID, func() error {
		_, err := r.engine.PlaceExitOrder(r.cfg.AccountID, intent)
		return err
	})
	if err != nil {
		return err
	}
	delete(r.protections, symbol)
	return nil
}

// flattenAll closes every open position at the last seen price.
func (r *Runner) flattenAll(ctx context.Context, lastPrice float64, reason string) error {
	positions, err := r.books.OpenPositions(r.cfg.AccountID)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if err := r.exitPosition(ctx, pos.Symbol, lastPrice, reason); err != nil {
			return err
		}
	}
	return nil
}
