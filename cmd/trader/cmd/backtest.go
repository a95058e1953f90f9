package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mohithlingosme/tradebot/backtest"
	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay CSV bars through a strategy with full risk checks",
	Long: `Backtest replays a CSV bar file through a strategy. Every signal goes
through the same risk gate and fill simulation as live paper trading, the run
ends flat, and a JSON report is produced.

Example:
  trader backtest --bars data/EURUSD.csv --symbol EURUSD --strategy ema-cross --fast 10 --slow 30`,
	RunE: runBacktest,
}

var (
	btBarsPath    string
	btSymbol      string
	btStrategy    string
	btFast        int
	btSlow        int
	btCash        float64
	btSizing      float64
	btMaxQty      float64
	btSlippageBps float64
	btCommission  float64
	btReportPath  string
	btWindow      int
	btStep        int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btBarsPath, "bars", "", "path to CSV bar file (required)")
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "EURUSD", "instrument symbol")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "ema-cross", "strategy name")
	backtestCmd.Flags().IntVar(&btFast, "fast", 0, "fast EMA period (strategy default when 0)")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 0, "slow EMA period (strategy default when 0)")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 100000, "starting cash")
	backtestCmd.Flags().Float64Var(&btSizing, "sizing", 0.1, "fraction of equity committed per entry")
	backtestCmd.Flags().Float64Var(&btMaxQty, "max-qty", 0, "per-order quantity cap (0 disables)")
	backtestCmd.Flags().Float64Var(&btSlippageBps, "slippage-bps", 0, "adverse slippage in basis points")
	backtestCmd.Flags().Float64Var(&btCommission, "commission", 0, "flat commission per fill")
	backtestCmd.Flags().StringVar(&btReportPath, "report", "", "write the JSON report to this file (stdout when empty)")
	backtestCmd.Flags().IntVar(&btWindow, "window", 0, "walk-forward window size in bars (0 runs the whole file once)")
	backtestCmd.Flags().IntVar(&btStep, "step", 0, "walk-forward step in bars (defaults to the window)")
	backtestCmd.MarkFlagRequired("bars")
}

func backtestConfig() backtest.Config {
	return backtest.Config{
		StartingCash:   decimal.NewFromFloat(btCash),
		SizingFraction: btSizing,
		MaxOrderQty:    btMaxQty,
		SlippageBps:    btSlippageBps,
		CommissionFlat: btCommission,
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if btWindow > 0 {
		return runWalkForward(ctx)
	}

	strat, err := strategies.NewRegistry().ByName(btStrategy, btFast, btSlow)
	if err != nil {
		return err
	}
	feed, err := backtest.NewCSVFeed(btSymbol, btBarsPath)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}

	runner := backtest.NewRunner(backtestConfig(), []strategies.Strategy{strat}, feed, log)
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	report := backtest.NewReport(res)
	if btReportPath != "" {
		if err := report.SaveJSON(btReportPath); err != nil {
			return err
		}
		log.Info().Str("path", btReportPath).Msg("report written")
		return nil
	}
	return report.WriteJSON(os.Stdout)
}

func runWalkForward(ctx context.Context) error {
	feed, err := backtest.NewCSVFeed(btSymbol, btBarsPath)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}
	defer feed.Close()

	var bars []market.Bar
	for {
		bar, ok, err := feed.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		bars = append(bars, bar)
	}

	step := btStep
	if step <= 0 {
		step = btWindow
	}

	reg := strategies.NewRegistry()
	factory := func() ([]strategies.Strategy, error) {
		s, err := reg.ByName(btStrategy, btFast, btSlow)
		if err != nil {
			return nil, err
		}
		return []strategies.Strategy{s}, nil
	}

	windows, err := backtest.WalkForward(ctx, backtestConfig(), factory, bars, btWindow, step, log)
	if err != nil {
		return err
	}

	for _, w := range windows {
		m := w.Metrics
		fmt.Printf("window %d  %s .. %s  return %.2f%%  trades %d  win %.0f%%  maxDD %.2f%%\n",
			w.Index,
			w.Start.Format("2006-01-02"),
			w.End.Format("2006-01-02"),
			m.TotalReturn*100,
			m.Trades,
			m.WinRate*100,
			m.MaxDrawdown*100,
		)
	}
	return nil
}
