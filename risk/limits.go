package risk

import (
	"sync"
)

// Limits is the effective risk configuration for one (account, strategy)
// pair. Zero-valued caps are disabled. Monetary caps are in account currency.
type Limits struct {
	Enabled bool

	MaxDailyLoss    float64 // absolute loss cap for the trading day
	MaxDailyLossPct float64 // fraction of day-start equity, e.g. 0.02

	MaxPositionQty   float64 // per-symbol absolute quantity cap
	MaxPositionValue float64 // per-symbol absolute exposure cap

	MaxGrossExposure float64
	MaxNetExposure   float64

	MaxOpenOrders int

	CutoffMinute int    // minutes after midnight in Timezone; 0 disables
	Timezone     string // IANA name for the account's trading day; "" means UTC

	// ExemptExitOrders skips the cutoff-time and max-open-orders rules for
	// intents that reduce an existing position.
	ExemptExitOrders bool

	// AllowQtyReduction turns a max-position-qty breach with remaining
	// headroom into a REDUCE_QTY suggestion instead of a REJECT.
	AllowQtyReduction bool

	Halted     bool
	HaltReason string
}

// DefaultLimits is the global base layer of the merge hierarchy.
func DefaultLimits() Limits {
	return Limits{
		Enabled:      true,
		MaxOpenOrders: 50,
		Timezone:     "UTC",
	}
}

// Override is a sparse limits layer: only non-nil fields replace the value
// from the layer below. Merge order is defaults, then account, then strategy.
type Override struct {
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
}

// Merge applies the override on top of base, field by field.
func Merge(base Limits, o Override) Limits {
	out := base
	if o.Enabled != nil {
		out.Enabled = *o.Enabled
	}
	if o.MaxDailyLoss != nil {
		out.MaxDailyLoss = *o.MaxDailyLoss
	}
	if o.MaxDailyLossPct != nil {
		out.MaxDailyLossPct = *o.MaxDailyLossPct
	}
	if o.MaxPositionQty != nil {
		out.MaxPositionQty = *o.MaxPositionQty
	}
	if o.MaxPositionValue != nil {
		out.MaxPositionValue = *o.MaxPositionValue
	}
	if o.MaxGrossExposure != nil {
		out.MaxGrossExposure = *o.MaxGrossExposure
	}
	if o.MaxNetExposure != nil {
		out.MaxNetExposure = *o.MaxNetExposure
	}
	if o.MaxOpenOrders != nil {
		out.MaxOpenOrders = *o.MaxOpenOrders
	}
	if o.CutoffMinute != nil {
		out.CutoffMinute = *o.CutoffMinute
	}
	if o.Timezone != nil {
		out.Timezone = *o.Timezone
	}
	if o.ExemptExitOrders != nil {
		out.ExemptExitOrders = *o.ExemptExitOrders
	}
	if o.AllowQtyReduction != nil {
		out.AllowQtyReduction = *o.AllowQtyReduction
	}
	return out
}

// LimitsStore reads and writes limit overrides and account halt state.
// Overrides are created lazily on first write and never deleted, only
// superseded.
type LimitsStore interface {
	Effective(accountID, strategyID string) (Limits, error)
	SetAccountOverride(accountID string, o Override) error
	SetStrategyOverride(accountID, strategyID string, o Override) error
	SetHalt(accountID string, halted bool, reason string) error
	Halt(accountID string) (halted bool, reason string, err error)
}

// MemoryLimits is the in-memory LimitsStore used by backtests and tests.
type MemoryLimits struct {
	mu         sync.RWMutex
	defaults   Limits
	accounts   map[string]Override
	strategies map[string]map[string]Override
	halted     map[string]string // accountID -> reason; absence means running
}

func NewMemoryLimits(defaults Limits) *MemoryLimits {
	return &MemoryLimits{
		defaults:   defaults,
		accounts:   make(map[string]Override),
		strategies: make(map[string]map[string]Override),
		halted:     make(map[string]string),
	}
}

func (m *MemoryLimits) Effective(accountID, strategyID string) (Limits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lim := m.defaults
	if o, ok := m.accounts[accountID]; ok {
		lim = Merge(lim, o)
	}
	if strategyID != "" {
		if o, ok := m.strategies[accountID][strategyID]; ok {
			lim = Merge(lim, o)
		}
	}
	if reason, ok := m.halted[accountID]; ok {
		lim.Halted = true
		lim.HaltReason = reason
	}
	return lim, nil
}

func (m *MemoryLimits) SetAccountOverride(accountID string, o Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = o
	return nil
}

func (m *MemoryLimits) SetStrategyOverride(accountID, strategyID string, o Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.strategies[accountID] == nil {
		m.strategies[accountID] = make(map[string]Override)
	}
	m.strategies[accountID][strategyID] = o
	return nil
}

// SetHalt flips the account circuit breaker. Setting an already-halted
// account again is a no-op apart from refreshing the reason; halts are never
// cleared by anything but an explicit resume.
func (m *MemoryLimits) SetHalt(accountID string, halted bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if halted {
		m.halted[accountID] = reason
	} else {
		delete(m.halted, accountID)
	}
	return nil
}

func (m *MemoryLimits) Halt(accountID string) (bool, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reason, ok := m.halted[accountID]
	return ok, reason, nil
}
