package risk

import "github.com/shopspring/decimal"

// Action is the decision variant. Callers must switch on it; every non-Allow
// variant carries a stable Code.
type Action int

const (
	ActionAllow Action = iota
	ActionReject
	ActionHaltTrading
	ActionForceSquareOff
	ActionReduceQty
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "ALLOW"
	case ActionReject:
		return "REJECT"
	case ActionHaltTrading:
		return "HALT_TRADING"
	case ActionForceSquareOff:
		return "FORCE_SQUARE_OFF"
	case ActionReduceQty:
		return "REDUCE_QTY"
	default:
		return "UNKNOWN"
	}
}

// Stable machine-readable reason codes. These appear in logs, audit events
// and API responses; renaming one is a breaking change.
const (
	CodeRiskDisabled      = "RISK_DISABLED"
	CodeTradingHalted     = "TRADING_HALTED"
	CodeCutoffTimePassed  = "CUTOFF_TIME_PASSED"
	CodeInvalidPrice      = "INVALID_PRICE"
	CodeMaxOpenOrders     = "MAX_OPEN_ORDERS_BREACHED"
	CodeMaxDailyLoss      = "MAX_DAILY_LOSS_BREACHED"
	CodeMaxPositionQty    = "MAX_POSITION_QTY_BREACHED"
	CodeMaxPositionValue  = "MAX_POSITION_VALUE_BREACHED"
	CodeMaxGrossExposure  = "MAX_GROSS_EXPOSURE_BREACHED"
	CodeMaxNetExposure    = "MAX_NET_EXPOSURE_BREACHED"
	CodeInsufficientCash  = "INSUFFICIENT_CASH"
	CodePriceUnavailable  = "PRICE_UNAVAILABLE"
)

// Decision is the outcome of one rule-battery evaluation. Produced once per
// intent; it fully determines what the execution engine may do next.
type Decision struct {
	Action     Action          `json:"action"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Breached   []string        `json:"breached,omitempty"`
	ReducedQty decimal.Decimal `json:"reduced_qty,omitempty"`
}

func (d Decision) Allowed() bool { return d.Action == ActionAllow }

func Allow() Decision { return Decision{Action: ActionAllow} }

func Reject(code, msg string, breached ...string) Decision {
	return Decision{Action: ActionReject, Code: code, Message: msg, Breached: breached}
}

func Halt(code, msg string, breached ...string) Decision {
	return Decision{Action: ActionHaltTrading, Code: code, Message: msg, Breached: breached}
}
