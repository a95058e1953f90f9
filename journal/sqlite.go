package journal

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordRiskEvent(e RiskEvent) error {
	dec, err := json.Marshal(e.Decision)
	if err != nil {
		return err
	}
	snap, err := json.Marshal(e.Snapshot)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT INTO risk_events
		(event_id, account_id, time, action, code, message, decision_json, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.AccountID, e.Time,
		e.Decision.Action.String(), e.Decision.Code, e.Decision.Message,
		string(dec), string(snap),
	)
	return err
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, account_id, symbol, qty, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.AccountID, t.Symbol, t.Qty, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(p EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (account_id, time, cash, equity)
		VALUES (?, ?, ?, ?)`,
		p.AccountID, p.Time, p.Cash, p.Equity,
	)
	return err
}

// ListRiskEvents returns events for an account in chronological order, with
// decision and snapshot rehydrated from their stored JSON.
func (j *SQLiteJournal) ListRiskEvents(accountID string) ([]RiskEvent, error) {
	rows, err := j.db.Query(`
		SELECT event_id, account_id, time, decision_json, snapshot_json
		FROM risk_events WHERE account_id = ? ORDER BY time`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RiskEvent
	for rows.Next() {
		var e RiskEvent
		var dec, snap string
		if err := rows.Scan(&e.EventID, &e.AccountID, &e.Time, &dec, &snap); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dec), &e.Decision); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snap), &e.Snapshot); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, account_id, symbol, qty, entry_price, exit_price,
		       open_time, close_time, realized_pl, reason
		FROM trades WHERE close_time >= ? AND close_time < ? ORDER BY close_time`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.AccountID, &t.Symbol, &t.Qty,
			&t.EntryPrice, &t.ExitPrice, &t.OpenTime, &t.CloseTime,
			&t.RealizedPL, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
