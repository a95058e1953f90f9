package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownAccount = errors.New("ledger: unknown account")

// ProductType distinguishes intraday positions from cash-settled carry
// positions. Carry BUY orders are subject to the cash-sufficiency rule.
type ProductType string

const (
	ProductIntraday ProductType = "INTRADAY"
	ProductCarry    ProductType = "CARRY"
)

// Position is a net signed position for one account/symbol. Qty > 0 is long,
// Qty < 0 is short. Invariant: Qty == 0 implies AvgPrice == 0 (and the row is
// absent from open-position queries).
type Position struct {
	AccountID  string
	Symbol     string
	Product    ProductType
	Qty        decimal.Decimal
	AvgPrice   decimal.Decimal
	RealizedPL decimal.Decimal
	UpdatedAt  time.Time
}

// Exposure is the position's notional at the given mark price, signed.
func (p Position) Exposure(mark decimal.Decimal) decimal.Decimal {
	return p.Qty.Mul(mark)
}

// UnrealizedPL marks the position against the given price.
func (p Position) UnrealizedPL(mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(p.AvgPrice).Mul(p.Qty)
}

// Apply mutates the position with a signed fill and returns the realized P&L
// on any closed portion. Both ledger implementations go through this method,
// so the averaging semantics cannot drift between them.
//
// Same-direction fills reprice the average:
//
//	avg' = (q0*p0 + qf*pf) / (q0+qf)
//
// Reducing fills realize (fill - avg) * closedQty for longs, the negation for
// shorts. A flip resets the average to the fill price for the residual.
func (p *Position) Apply(qty, price decimal.Decimal) decimal.Decimal {
	if p.Qty.IsZero() || p.Qty.Sign() == qty.Sign() {
		newQty := p.Qty.Add(qty)
		p.AvgPrice = p.Qty.Mul(p.AvgPrice).Add(qty.Mul(price)).Div(newQty)
		p.Qty = newQty
		return decimal.Zero
	}

	closed := decimal.Min(qty.Abs(), p.Qty.Abs())

	var realized decimal.Decimal
	if p.Qty.Sign() > 0 {
		realized = price.Sub(p.AvgPrice).Mul(closed)
	} else {
		realized = p.AvgPrice.Sub(price).Mul(closed)
	}

	newQty := p.Qty.Add(qty)
	switch {
	case newQty.IsZero():
		p.AvgPrice = decimal.Zero
	case newQty.Sign() != p.Qty.Sign():
		// Flipped through zero: residual opens at the fill price.
		p.AvgPrice = price
	}
	p.Qty = newQty
	p.RealizedPL = p.RealizedPL.Add(realized)
	return realized
}

// CashEntry is one chronological cash movement on the account journal.
type CashEntry struct {
	AccountID string
	Time      time.Time
	Amount    decimal.Decimal // signed; credits positive
	Balance   decimal.Decimal // balance after applying Amount
	Reason    string          // "FILL", "FEES", "DEPOSIT", ...
	Ref       string          // order/fill id that caused the movement
}

// FillApply is the ledger-facing view of an executed fill.
type FillApply struct {
	AccountID string
	Symbol    string
	Product   ProductType
	Qty       decimal.Decimal // signed; BUY positive, SELL negative
	Price     decimal.Decimal
	Fees      decimal.Decimal
	Time      time.Time
	Ref       string
}

// ApplyResult reports what a fill did to the ledger.
type ApplyResult struct {
	Realized decimal.Decimal // P&L realized on the closed portion, fees excluded
	Position Position        // position after the fill (Qty zero if closed out)
	Cash     decimal.Decimal // cash balance after the fill
}

// Store is the storage-agnostic position-ledger contract. The in-memory
// Ledger implements it for backtests and tests; the gorm-backed store
// implements it for live paper trading.
type Store interface {
	CreateAccount(accountID string, startingCash decimal.Decimal) error
	Cash(accountID string) (decimal.Decimal, error)
	Position(accountID, symbol string) (Position, bool, error)
	OpenPositions(accountID string) ([]Position, error)
	ApplyFill(f FillApply) (ApplyResult, error)
	RealizedSince(accountID string, since time.Time) (decimal.Decimal, error)
	Entries(accountID string) ([]CashEntry, error)
}
