package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohithlingosme/tradebot/risk"
)

// Limits is the persistent risk.LimitsStore. Override rows are created
// lazily on the first configuration write and superseded in place.
type Limits struct {
	db       *gorm.DB
	defaults risk.Limits
}

var _ risk.LimitsStore = (*Limits)(nil)

func (s *Limits) Effective(accountID, strategyID string) (risk.Limits, error) {
	lim := s.defaults

	var acct limitsRow
	err := s.db.Where("account_id = ? AND strategy_id = ''", accountID).First(&acct).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No account layer yet; strategy overrides may still exist.
	case err != nil:
		return risk.Limits{}, err
	default:
		lim = risk.Merge(lim, overrideFromRow(acct))
	}

	if strategyID != "" {
		var strat limitsRow
		err := s.db.Where("account_id = ? AND strategy_id = ?", accountID, strategyID).First(&strat).Error
		if err == nil {
			lim = risk.Merge(lim, overrideFromRow(strat))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return risk.Limits{}, err
		}
	}

	lim.Halted = acct.Halted
	lim.HaltReason = acct.HaltReason
	return lim, nil
}

func (s *Limits) SetAccountOverride(accountID string, o risk.Override) error {
	return s.upsert(accountID, "", o)
}

func (s *Limits) SetStrategyOverride(accountID, strategyID string, o risk.Override) error {
	return s.upsert(accountID, strategyID, o)
}

func (s *Limits) upsert(accountID, strategyID string, o risk.Override) error {
	row := limitsRow{
		AccountID:         accountID,
		StrategyID:        strategyID,
		Enabled:           o.Enabled,
		MaxDailyLoss:      o.MaxDailyLoss,
		MaxDailyLossPct:   o.MaxDailyLossPct,
		MaxPositionQty:    o.MaxPositionQty,
		MaxPositionValue:  o.MaxPositionValue,
		MaxGrossExposure:  o.MaxGrossExposure,
		MaxNetExposure:    o.MaxNetExposure,
		MaxOpenOrders:     o.MaxOpenOrders,
		CutoffMinute:      o.CutoffMinute,
		Timezone:          o.Timezone,
		ExemptExitOrders:  o.ExemptExitOrders,
		AllowQtyReduction: o.AllowQtyReduction,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "strategy_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "max_daily_loss", "max_daily_loss_pct",
			"max_position_qty", "max_position_value",
			"max_gross_exposure", "max_net_exposure",
			"max_open_orders", "cutoff_minute", "timezone",
			"exempt_exit_orders", "allow_qty_reduction",
		}),
	}).Create(&row).Error
}

// SetHalt flips the circuit breaker on the account layer row, creating it if
// the account has never been configured.
func (s *Limits) SetHalt(accountID string, halted bool, reason string) error {
	if !halted {
		reason = ""
	}
	row := limitsRow{AccountID: accountID, StrategyID: "", Halted: halted, HaltReason: reason}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "strategy_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"halted", "halt_reason"}),
	}).Create(&row).Error
}

func (s *Limits) Halt(accountID string) (bool, string, error) {
	var acct limitsRow
	err := s.db.Where("account_id = ? AND strategy_id = ''", accountID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return acct.Halted, acct.HaltReason, nil
}

func overrideFromRow(row limitsRow) risk.Override {
	return risk.Override{
		Enabled:           row.Enabled,
		MaxDailyLoss:      row.MaxDailyLoss,
		MaxDailyLossPct:   row.MaxDailyLossPct,
		MaxPositionQty:    row.MaxPositionQty,
		MaxPositionValue:  row.MaxPositionValue,
		MaxGrossExposure:  row.MaxGrossExposure,
		MaxNetExposure:    row.MaxNetExposure,
		MaxOpenOrders:     row.MaxOpenOrders,
		CutoffMinute:      row.CutoffMinute,
		Timezone:          row.Timezone,
		ExemptExitOrders:  row.ExemptExitOrders,
		AllowQtyReduction: row.AllowQtyReduction,
	}
}
