package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mohithlingosme/tradebot/backtest"
	"github.com/mohithlingosme/tradebot/config"
	"github.com/mohithlingosme/tradebot/exec"
	"github.com/mohithlingosme/tradebot/journal"
	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/risk"
	"github.com/mohithlingosme/tradebot/store"
	"github.com/mohithlingosme/tradebot/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paper-trading loop from a config file",
	Long: `Run drives the live paper-trading loop: bars are replayed from the
configured file at a fixed interval, strategies emit signals, every order goes
through the risk gate, and the background monitor halts the account when the
daily loss limit is breached mid-session.

Stops cleanly on SIGINT/SIGTERM.

Example:
  trader run --config examples/paper.yaml`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runBarInterval time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().DurationVar(&runBarInterval, "bar-interval", time.Second, "delay between replayed bars")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	if cfg.Backtest.BarsFile == "" {
		return fmt.Errorf("backtest.bars_file is required for the paper loop")
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jnl.Close()

	books, limits, orders, closeStore, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	prices := market.NewStore()
	engine := exec.NewEngine(exec.Config{
		SlippageBps:       cfg.Exec.SlippageBps,
		CommissionFlat:    cfg.Exec.CommissionFlat,
		CommissionPerUnit: cfg.Exec.CommissionPerUnit,
		CommissionRate:    cfg.Exec.CommissionRate,
		RiskEnabled:       cfg.Risk.Enabled,
		LockTimeout:       cfg.LockTimeout(),
	}, books, limits, orders, prices, jnl, log)

	if err := seedAccount(books, cfg); err != nil {
		return err
	}

	strat, err := strategies.NewRegistry().ByName(cfg.Backtest.Strategy, cfg.Backtest.FastPeriod, cfg.Backtest.SlowPeriod)
	if err != nil {
		return err
	}
	feed, err := backtest.NewCSVFeed(cfg.Backtest.Symbol, cfg.Backtest.BarsFile)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}
	defer feed.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Monitor.Enabled {
		monitor := exec.NewMonitor(
			engine, limits, books,
			func() []string { return []string{cfg.Account.ID} },
			cfg.MonitorInterval(),
			cfg.Monitor.SquareOff,
			log,
		)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	log.Info().
		Str("account", cfg.Account.ID).
		Str("symbol", cfg.Backtest.Symbol).
		Str("strategy", strat.Name()).
		Msg("paper loop started")

	return paperLoop(ctx, cfg, engine, prices, strat, feed)
}

// paperLoop replays bars at a fixed cadence, routing signals through the
// risk-gated engine. Exits on feed exhaustion or context cancellation.
func paperLoop(
	ctx context.Context,
	cfg *config.Config,
	engine *exec.Engine,
	prices *market.Store,
	strat strategies.Strategy,
	feed backtest.BarFeed,
) error {
	ticker := time.NewTicker(runBarInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
		}

		bar, ok, err := feed.Next()
		if err != nil {
			return err
		}
		if !ok {
			log.Info().Msg("feed exhausted")
			return nil
		}

		prices.Set(market.QuoteFromLast(bar.Symbol, bar.Close, time.Now().UTC()))

		for _, sig := range strat.OnBar(bar) {
			if err := placeSignal(ctx, cfg, engine, sig, strat.Name()); err != nil {
				log.Error().Err(err).Str("symbol", sig.Symbol).Msg("order failed")
			}
		}

		if eq, err := engine.Equity(cfg.Account.ID); err == nil {
			log.Debug().Float64("equity", eq).Str("symbol", bar.Symbol).Float64("close", bar.Close).Msg("bar")
		}
	}
}

func placeSignal(ctx context.Context, cfg *config.Config, engine *exec.Engine, sig strategies.Signal, strategyID string) error {
	qty := sig.Qty
	if !qty.IsPositive() {
		eq, err := engine.Equity(cfg.Account.ID)
		if err != nil {
			return err
		}
		if sig.Price <= 0 {
			return nil
		}
		units := eq * cfg.Backtest.SizingFraction / sig.Price
		if units < 1 {
			return nil
		}
		qty = decimal.NewFromInt(int64(units))
	}

	side := risk.Buy
	if sig.Kind == strategies.SignalSell || sig.Kind == strategies.SignalClose {
		side = risk.Sell
	}

	res, err := engine.PlaceOrder(ctx, cfg.Account.ID, risk.Intent{
		Symbol:     sig.Symbol,
		Side:       side,
		Qty:        qty,
		Type:       risk.Market,
		Product:    ledger.ProductCarry,
		StrategyID: strategyID,
		Time:       time.Now().UTC(),
		Tag:        sig.Reason,
	})
	if err != nil {
		return err
	}
	if !res.Decision.Allowed() {
		log.Warn().
			Str("code", res.Decision.Code).
			Str("action", res.Decision.Action.String()).
			Msg("order blocked")
	}
	return nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile, cfg.Journal.EventsFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return journal.NewMemory(), nil
	}
}

func openStores(cfg *config.Config) (ledger.Store, risk.LimitsStore, exec.OrderStore, func(), error) {
	if cfg.Store.Type == "sqlite" {
		db, err := store.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("close store")
			}
		}
		return db.Ledger(), db.Limits(cfg.Limits()), db.Orders(), closeFn, nil
	}
	return ledger.New(), risk.NewMemoryLimits(cfg.Limits()), exec.NewMemoryOrders(), func() {}, nil
}

// seedAccount creates the configured account on first run; an existing
// account keeps its balance.
func seedAccount(books ledger.Store, cfg *config.Config) error {
	_, err := books.Cash(cfg.Account.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ledger.ErrUnknownAccount) {
		return err
	}
	return books.CreateAccount(cfg.Account.ID, decimal.NewFromFloat(cfg.Account.Cash))
}
