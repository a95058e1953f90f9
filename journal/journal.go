package journal

import (
	"time"

	"github.com/mohithlingosme/tradebot/risk"
)

// RiskEvent records one non-ALLOW decision or halt transition, together with
// the snapshot that produced it, for downstream audit. Writes are
// fire-and-forget from the engine's point of view.
type RiskEvent struct {
	EventID   string        `json:"event_id"`
	AccountID string        `json:"account_id"`
	Time      time.Time     `json:"time"`
	Decision  risk.Decision `json:"decision"`
	Snapshot  risk.Snapshot `json:"snapshot"`
}

// TradeRecord is one completed round trip (entry to exit).
type TradeRecord struct {
	TradeID    string
	AccountID  string
	Symbol     string
	Qty        float64 // signed; >0 was long
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquityPoint is one mark-to-market equity observation.
type EquityPoint struct {
	AccountID string
	Time      time.Time
	Cash      float64
	Equity    float64
}

type Journal interface {
	RecordRiskEvent(RiskEvent) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityPoint) error
	Close() error
}
