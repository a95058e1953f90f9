package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/ledger"
)

// Evaluate runs the rule battery against one intent. Rules execute in a
// fixed, documented order and evaluation stops at the first rule that fires:
//
//	 1. kill switch (account halted)
//	 2. cutoff time
//	 3. price sanity
//	 4. max open orders
//	 5. max daily loss (absolute and percent) -- the only rule that demands a
//	    sticky halt; the caller must persist the halt flag, Evaluate itself
//	    never writes anywhere
//	 6. max position quantity
//	 7. max position value
//	 8. max gross exposure
//	 9. max net exposure
//	10. cash sufficiency (carry BUY)
//
// Order matters: a halted account must block everything before any exposure
// math runs. The function is pure; given the same triple it always returns
// the same decision.
func Evaluate(intent Intent, snap Snapshot, limits Limits) Decision {
	if !limits.Enabled {
		return Decision{Action: ActionAllow, Code: CodeRiskDisabled}
	}

	// 1. Kill switch.
	if limits.Halted {
		return Halt(CodeTradingHalted, "trading halted: "+limits.HaltReason)
	}

	signed := intent.SignedQty().InexactFloat64()
	curQty := snap.Qty[intent.Symbol]
	exit := isExit(curQty, signed)

	// 2. Cutoff time.
	if limits.CutoffMinute > 0 && !(limits.ExemptExitOrders && exit) {
		if minuteOfDay(snap.Time, limits.Timezone) >= limits.CutoffMinute {
			return Reject(CodeCutoffTimePassed,
				fmt.Sprintf("past daily cutoff (minute %d)", limits.CutoffMinute),
				"cutoff_time")
		}
	}

	// 3. Price sanity.
	if intent.Type == Limit && !intent.LimitPrice.IsPositive() {
		return Reject(CodeInvalidPrice, "limit price must be positive")
	}
	if intent.Type == Stop && !intent.StopPrice.IsPositive() {
		return Reject(CodeInvalidPrice, "stop price must be positive")
	}

	// 4. Max open orders.
	if limits.MaxOpenOrders > 0 && !(limits.ExemptExitOrders && exit) {
		if snap.OpenOrders >= limits.MaxOpenOrders {
			return Reject(CodeMaxOpenOrders,
				fmt.Sprintf("open orders %d >= max %d", snap.OpenOrders, limits.MaxOpenOrders),
				"max_open_orders")
		}
	}

	// 5. Max daily loss. The breach must outlive this order, so the decision
	// is HALT_TRADING rather than REJECT.
	if breached := DailyLossBreached(snap, limits); len(breached) > 0 {
		return Halt(CodeMaxDailyLoss,
			fmt.Sprintf("day P&L %.2f (%.2f%%) breaches daily loss limit", snap.DayPL, 100*snap.DayPLPct),
			breached...)
	}

	projected := curQty + signed
	price := referencePrice(intent, snap)

	// 6. Max position quantity.
	if limits.MaxPositionQty > 0 && math.Abs(projected) > limits.MaxPositionQty {
		d := Reject(CodeMaxPositionQty,
			fmt.Sprintf("projected qty %.4f exceeds max %.4f", projected, limits.MaxPositionQty),
			"max_position_qty")
		if headroom := limits.MaxPositionQty - math.Abs(curQty); headroom > 0 {
			d.ReducedQty = decimal.NewFromFloat(headroom)
			if limits.AllowQtyReduction {
				d.Action = ActionReduceQty
			}
		}
		return d
	}

	// 7. Max position value.
	if limits.MaxPositionValue > 0 && math.Abs(projected*price) > limits.MaxPositionValue {
		return Reject(CodeMaxPositionValue,
			fmt.Sprintf("projected exposure %.2f exceeds max %.2f", projected*price, limits.MaxPositionValue),
			"max_position_value")
	}

	// 8. Max gross exposure. Replace the traded symbol's contribution rather
	// than adding on top of it, otherwise it would be counted twice.
	if limits.MaxGrossExposure > 0 {
		gross := snap.GrossExposure - math.Abs(snap.Exposure[intent.Symbol]) + math.Abs(projected*price)
		if gross > limits.MaxGrossExposure {
			return Reject(CodeMaxGrossExposure,
				fmt.Sprintf("projected gross exposure %.2f exceeds max %.2f", gross, limits.MaxGrossExposure),
				"max_gross_exposure")
		}
	}

	// 9. Max net exposure.
	if limits.MaxNetExposure > 0 {
		net := snap.NetExposure + signed*price
		if math.Abs(net) > limits.MaxNetExposure {
			return Reject(CodeMaxNetExposure,
				fmt.Sprintf("projected net exposure %.2f exceeds max %.2f", net, limits.MaxNetExposure),
				"max_net_exposure")
		}
	}

	// 10. Cash sufficiency for cash-settled buys.
	if intent.Side == Buy && intent.Product == ledger.ProductCarry {
		if price <= 0 {
			return Reject(CodePriceUnavailable, "no reference price to compute order notional")
		}
		notional := intent.Qty.InexactFloat64() * price
		if notional > snap.Cash {
			return Reject(CodeInsufficientCash,
				fmt.Sprintf("order notional %.2f exceeds available cash %.2f", notional, snap.Cash),
				"cash")
		}
	}

	return Allow()
}

// DailyLossBreached returns the daily-loss limit fields the snapshot breaches,
// or nil. Shared by rule 5 and the background halt monitor, which applies the
// same logic without a new order in flight.
func DailyLossBreached(snap Snapshot, limits Limits) []string {
	var breached []string
	if limits.MaxDailyLoss > 0 && snap.DayPL <= -limits.MaxDailyLoss {
		breached = append(breached, "max_daily_loss")
	}
	if limits.MaxDailyLossPct > 0 && snap.DayPLPct <= -limits.MaxDailyLossPct {
		breached = append(breached, "max_daily_loss_pct")
	}
	return breached
}

// isExit reports whether a signed fill shrinks the absolute position.
func isExit(cur, signed float64) bool {
	return math.Abs(cur+signed) < math.Abs(cur)
}

// referencePrice picks the price used for exposure projection: the limit
// price for LIMIT orders, else the caller's reference, else the last mark.
func referencePrice(in Intent, snap Snapshot) float64 {
	if in.Type == Limit && in.LimitPrice.IsPositive() {
		return in.LimitPrice.InexactFloat64()
	}
	if in.RefPrice.IsPositive() {
		return in.RefPrice.InexactFloat64()
	}
	return snap.LastPrice[in.Symbol]
}

func minuteOfDay(t time.Time, tz string) int {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}
