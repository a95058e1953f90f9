package journal

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	events *csv.Writer
	files  []*os.File
}

func NewCSV(tradesPath, equityPath, eventsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}

	open := func(path string, cols []string) (*csv.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(cols); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open(tradesPath, []string{
		"trade_id", "account_id", "symbol", "qty", "entry_price", "exit_price",
		"open_time", "close_time", "realized_pl", "reason"}); err != nil {
		return nil, err
	}
	if j.equity, err = open(equityPath, []string{
		"account_id", "time", "cash", "equity"}); err != nil {
		return nil, err
	}
	if j.events, err = open(eventsPath, []string{
		"event_id", "account_id", "time", "action", "code", "message", "snapshot_json"}); err != nil {
		return nil, err
	}
	return j, nil
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.trades.Write([]string{
		t.TradeID, t.AccountID, t.Symbol,
		f(t.Qty), f(t.EntryPrice), f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339), t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPL), t.Reason,
	})
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(p EquityPoint) error {
	j.equity.Write([]string{
		p.AccountID, p.Time.Format(time.RFC3339), f(p.Cash), f(p.Equity),
	})
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) RecordRiskEvent(e RiskEvent) error {
	snap, err := json.Marshal(e.Snapshot)
	if err != nil {
		return err
	}
	j.events.Write([]string{
		e.EventID, e.AccountID, e.Time.Format(time.RFC3339),
		e.Decision.Action.String(), e.Decision.Code, e.Decision.Message,
		string(snap),
	})
	j.events.Flush()
	return j.events.Error()
}

func (j *CSVJournal) Close() error {
	var first error
	for _, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
