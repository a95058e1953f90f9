package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Risk-gated paper trading engine and backtester",
	Long: `Trader is a risk-gated order execution engine with a bar-replay backtester.

It provides tools for:
  - Backtesting strategies against CSV bar data with full risk checks
  - Running a live paper-trading loop with a background loss monitor
  - Layered risk limits (defaults, per-account, per-strategy)
  - Querying trade journals and risk event logs`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var (
	logLevel string
	logJSON  bool
)

// log is the process-wide logger, configured once by the root command.
var log zerolog.Logger

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if logJSON {
		log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
