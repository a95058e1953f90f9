package journal

const Schema = `
CREATE TABLE IF NOT EXISTS risk_events (
	event_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	action TEXT NOT NULL,
	code TEXT NOT NULL,
	message TEXT NOT NULL,
	decision_json TEXT NOT NULL,
	snapshot_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_events_account ON risk_events(account_id, time);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	qty REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	account_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(account_id, time);
`
