package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/ledger"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
	Stop   OrderType = "STOP"
)

// Intent is a candidate trade produced by a strategy or an API caller. It is
// immutable and has not been risk-checked or executed yet.
type Intent struct {
	Symbol     string
	Side       Side
	Qty        decimal.Decimal // always positive; direction comes from Side
	Type       OrderType
	LimitPrice decimal.Decimal // required for LIMIT
	StopPrice  decimal.Decimal // required for STOP
	Product    ledger.ProductType
	StrategyID string
	RefPrice   decimal.Decimal // optional caller-supplied reference price
	Time       time.Time

	// Tag is free-form provenance ("BullCross", "StopLoss") carried through to
	// journaled trades. Never interpreted by the engines.
	Tag string
}

// SignedQty returns Qty with the sign implied by Side.
func (in Intent) SignedQty() decimal.Decimal {
	if in.Side == Sell {
		return in.Qty.Neg()
	}
	return in.Qty
}

// Validate rejects malformed intents before any state is touched. These are
// input errors, not risk rejections, and are never journaled as risk events.
func (in Intent) Validate() error {
	if in.Symbol == "" {
		return errValidation("symbol is required")
	}
	if in.Side != Buy && in.Side != Sell {
		return errValidation("side must be BUY or SELL")
	}
	if !in.Qty.IsPositive() {
		return errValidation("quantity must be positive")
	}
	switch in.Type {
	case Market:
	case Limit:
		if !in.LimitPrice.IsPositive() {
			return errValidation("limit price must be positive")
		}
	case Stop:
		if !in.StopPrice.IsPositive() {
			return errValidation("stop price must be positive")
		}
	default:
		return errValidation("order type must be MARKET, LIMIT or STOP")
	}
	return nil
}

// ValidationError marks synchronous input errors (bad quantity, bad price).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "risk: invalid intent: " + e.Reason }

func errValidation(reason string) error { return &ValidationError{Reason: reason} }
