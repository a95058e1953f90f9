package journal

import "sync"

// Memory keeps everything in slices. Used by backtests and tests.
type Memory struct {
	mu     sync.Mutex
	events []RiskEvent
	trades []TradeRecord
	equity []EquityPoint
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordRiskEvent(e RiskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(p EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, p)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) RiskEvents() []RiskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RiskEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

func (m *Memory) Equity() []EquityPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EquityPoint, len(m.equity))
	copy(out, m.equity)
	return out
}
