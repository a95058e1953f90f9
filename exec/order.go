package exec

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/risk"
)

var (
	// ErrAccountBusy means the per-account lock could not be acquired within
	// the configured bound. Transient; callers may retry.
	ErrAccountBusy = errors.New("exec: account busy")

	ErrOrderNotFound = errors.New("exec: order not found")

	// ErrOrderNotOpen is the expected outcome of cancelling an order that has
	// already reached a terminal state.
	ErrOrderNotOpen = errors.New("exec: order not open")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOpen      Status = "OPEN"
	StatusPartial   Status = "PARTIAL"
	StatusFilled    Status = "FILLED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final. Terminal orders are immutable.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusRejected || s == StatusCancelled
}

// Order is a risk-approved instruction in the engine's state machine:
// PENDING -> OPEN -> {FILLED | PARTIAL | REJECTED | CANCELLED}.
type Order struct {
	ID         string
	AccountID  string
	StrategyID string
	Symbol     string
	Side       risk.Side
	Qty        decimal.Decimal
	Type       risk.OrderType
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
	Product    ledger.ProductType
	Status     Status
	Reason     string // reject/cancel reason, empty otherwise
	Tag        string // caller-supplied provenance, carried into trade records
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SignedQty is the order quantity with the sign implied by Side.
func (o Order) SignedQty() decimal.Decimal {
	if o.Side == risk.Sell {
		return o.Qty.Neg()
	}
	return o.Qty
}

// Fill records an execution against an order. Append-only.
type Fill struct {
	ID       string
	OrderID  string
	Qty      decimal.Decimal // signed
	Price    decimal.Decimal
	Fees     decimal.Decimal
	Slippage decimal.Decimal // price adjustment applied relative to the quote
	Time     time.Time
}

// OrderStore persists orders and fills. Upserts are idempotent, keyed by the
// engine-generated order id, and reads observe the store's own writes within
// one evaluation.
type OrderStore interface {
	UpsertOrder(o Order) error
	GetOrder(accountID, orderID string) (Order, bool, error)
	OpenOrders(accountID string) ([]Order, error)
	RecordFill(f Fill) error
	Fills(orderID string) ([]Fill, error)
}
