package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mohithlingosme/tradebot/ledger"
)

// Ledger is the persistent ledger.Store. ApplyFill runs in a transaction so
// the position update, cash movement and journal rows commit together.
type Ledger struct {
	db *gorm.DB
}

var _ ledger.Store = (*Ledger)(nil)

func (s *Ledger) CreateAccount(accountID string, startingCash decimal.Decimal) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing accountRow
		err := tx.Where("account_id = ?", accountID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("store: account %q already exists", accountID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&accountRow{AccountID: accountID, Cash: startingCash}).Error; err != nil {
			return err
		}
		return tx.Create(&cashEntryRow{
			AccountID: accountID,
			Time:      time.Now().UTC(),
			Amount:    startingCash,
			Balance:   startingCash,
			Reason:    "DEPOSIT",
		}).Error
	})
}

func (s *Ledger) Cash(accountID string) (decimal.Decimal, error) {
	var row accountRow
	err := s.db.Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ledger.ErrUnknownAccount
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Cash, nil
}

func (s *Ledger) Position(accountID, symbol string) (ledger.Position, bool, error) {
	var row positionRow
	err := s.db.Where("account_id = ? AND symbol = ?", accountID, symbol).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Position{}, false, nil
	}
	if err != nil {
		return ledger.Position{}, false, err
	}
	return positionFromRow(row), true, nil
}

func (s *Ledger) OpenPositions(accountID string) ([]ledger.Position, error) {
	var rows []positionRow
	if err := s.db.Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, positionFromRow(row))
	}
	return out, nil
}

func (s *Ledger) ApplyFill(f ledger.FillApply) (ledger.ApplyResult, error) {
	var result ledger.ApplyResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var acct accountRow
		err := tx.Where("account_id = ?", f.AccountID).First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrUnknownAccount
		}
		if err != nil {
			return err
		}

		var row positionRow
		found := true
		err = tx.Where("account_id = ? AND symbol = ?", f.AccountID, f.Symbol).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			row = positionRow{AccountID: f.AccountID, Symbol: f.Symbol, Product: string(f.Product)}
		} else if err != nil {
			return err
		}

		pos := positionFromRow(row)
		realized := pos.Apply(f.Qty, f.Price)
		pos.UpdatedAt = f.Time

		switch {
		case pos.Qty.IsZero() && found:
			if err := tx.Unscoped().Delete(&row).Error; err != nil {
				return err
			}
		case pos.Qty.IsZero():
			// Opened and closed in one fill; nothing to persist.
		default:
			row.Qty = pos.Qty
			row.AvgPrice = pos.AvgPrice
			row.RealizedPL = pos.RealizedPL
			row.MarkedAt = pos.UpdatedAt
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}

		delta := f.Price.Mul(f.Qty).Neg().Sub(f.Fees)
		acct.Cash = acct.Cash.Add(delta)
		if err := tx.Save(&acct).Error; err != nil {
			return err
		}

		if err := tx.Create(&cashEntryRow{
			AccountID: f.AccountID,
			Time:      f.Time,
			Amount:    delta,
			Balance:   acct.Cash,
			Reason:    "FILL",
			Ref:       f.Ref,
		}).Error; err != nil {
			return err
		}
		if !realized.IsZero() {
			if err := tx.Create(&realizedRow{
				AccountID: f.AccountID,
				Time:      f.Time,
				Amount:    realized,
			}).Error; err != nil {
				return err
			}
		}

		result = ledger.ApplyResult{Realized: realized, Position: pos, Cash: acct.Cash}
		return nil
	})
	return result, err
}

func (s *Ledger) RealizedSince(accountID string, since time.Time) (decimal.Decimal, error) {
	var rows []realizedRow
	err := s.db.Where("account_id = ? AND time >= ?", accountID, since).Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	return sum, nil
}

func (s *Ledger) Entries(accountID string) ([]ledger.CashEntry, error) {
	var rows []cashEntryRow
	if err := s.db.Where("account_id = ?", accountID).Order("time").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.CashEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.CashEntry{
			AccountID: row.AccountID,
			Time:      row.Time,
			Amount:    row.Amount,
			Balance:   row.Balance,
			Reason:    row.Reason,
			Ref:       row.Ref,
		})
	}
	return out, nil
}

func positionFromRow(row positionRow) ledger.Position {
	return ledger.Position{
		AccountID:  row.AccountID,
		Symbol:     row.Symbol,
		Product:    ledger.ProductType(row.Product),
		Qty:        row.Qty,
		AvgPrice:   row.AvgPrice,
		RealizedPL: row.RealizedPL,
		UpdatedAt:  row.MarkedAt,
	}
}
