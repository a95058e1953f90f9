package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohithlingosme/tradebot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query trade and risk-event records from a SQLite journal database.

Examples:
  trader journal today
  trader journal day 2026-08-20
  trader journal events paper`,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now().UTC().Truncate(24 * time.Hour)
		return listTrades(start, start.Add(24*time.Hour))
	},
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("want YYYY-MM-DD, got %q", args[0])
		}
		return listTrades(day, day.Add(24*time.Hour))
	},
}

var journalEventsCmd = &cobra.Command{
	Use:   "events <account-id>",
	Short: "List risk events recorded for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEvents,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalEventsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./trader.sqlite", "path to SQLite journal DB")
}

func listTrades(start, end time.Time) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("no trades")
		return nil
	}

	var total float64
	for _, t := range trades {
		total += t.RealizedPL
		fmt.Printf("%s  %-10s qty %-10.2f %-8.5f -> %-8.5f  P/L %10.2f  %s\n",
			t.CloseTime.Format("15:04:05"), t.Symbol, t.Qty, t.EntryPrice, t.ExitPrice, t.RealizedPL, t.Reason)
	}
	fmt.Printf("%d trades, net P/L %.2f\n", len(trades), total)
	return nil
}

func runJournalEvents(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	events, err := j.ListRiskEvents(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("no risk events")
		return nil
	}
	for _, e := range events {
		fmt.Printf("%s  %-16s %-28s %s\n",
			e.Time.Format(time.RFC3339), e.Decision.Action.String(), e.Decision.Code, e.Decision.Message)
	}
	return nil
}
