package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type orderRow struct {
	gorm.Model
	OrderID    string `gorm:"uniqueIndex"`
	AccountID  string `gorm:"index"`
	StrategyID string
	Symbol     string
	Side       string
	Qty        decimal.Decimal `gorm:"type:decimal(32,16)"`
	OrderType  string
	LimitPrice decimal.Decimal `gorm:"type:decimal(32,16)"`
	StopPrice  decimal.Decimal `gorm:"type:decimal(32,16)"`
	Product    string
	Status     string `gorm:"index"`
	Reason     string
	Tag        string
	PlacedAt   time.Time
	ChangedAt  time.Time
}

type fillRow struct {
	gorm.Model
	FillID   string          `gorm:"uniqueIndex"`
	OrderID  string          `gorm:"index"`
	Qty      decimal.Decimal `gorm:"type:decimal(32,16)"`
	Price    decimal.Decimal `gorm:"type:decimal(32,16)"`
	Fees     decimal.Decimal `gorm:"type:decimal(32,16)"`
	Slippage decimal.Decimal `gorm:"type:decimal(32,16)"`
	Time     time.Time
}

// limitsRow is one override layer. StrategyID is empty for the account layer.
// The halt flag lives on the account layer row.
type limitsRow struct {
	gorm.Model
	AccountID  string `gorm:"uniqueIndex:idx_limits_scope"`
	StrategyID string `gorm:"uniqueIndex:idx_limits_scope"`

	Enabled           *bool
	MaxDailyLoss      *float64
	MaxDailyLossPct   *float64
	MaxPositionQty    *float64
	MaxPositionValue  *float64
	MaxGrossExposure  *float64
	MaxNetExposure    *float64
	MaxOpenOrders     *int
	CutoffMinute      *int
	Timezone          *string
	ExemptExitOrders  *bool
	AllowQtyReduction *bool

	Halted     bool
	HaltReason string
}

type accountRow struct {
	gorm.Model
	AccountID string          `gorm:"uniqueIndex"`
	Cash      decimal.Decimal `gorm:"type:decimal(32,16)"`
}

type positionRow struct {
	gorm.Model
	AccountID  string `gorm:"uniqueIndex:idx_position_scope"`
	Symbol     string `gorm:"uniqueIndex:idx_position_scope"`
	Product    string
	Qty        decimal.Decimal `gorm:"type:decimal(32,16)"`
	AvgPrice   decimal.Decimal `gorm:"type:decimal(32,16)"`
	RealizedPL decimal.Decimal `gorm:"type:decimal(32,16)"`
	MarkedAt   time.Time
}

type cashEntryRow struct {
	gorm.Model
	AccountID string `gorm:"index"`
	Time      time.Time
	Amount    decimal.Decimal `gorm:"type:decimal(32,16)"`
	Balance   decimal.Decimal `gorm:"type:decimal(32,16)"`
	Reason    string
	Ref       string
}

type realizedRow struct {
	gorm.Model
	AccountID string          `gorm:"index"`
	Time      time.Time       `gorm:"index"`
	Amount    decimal.Decimal `gorm:"type:decimal(32,16)"`
}
