package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohithlingosme/tradebot/exec"
	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/risk"
)

// Orders is the persistent exec.OrderStore.
type Orders struct {
	db *gorm.DB
}

var _ exec.OrderStore = (*Orders)(nil)

func (s *Orders) UpsertOrder(o exec.Order) error {
	row := orderRow{
		OrderID:    o.ID,
		AccountID:  o.AccountID,
		StrategyID: o.StrategyID,
		Symbol:     o.Symbol,
		Side:       string(o.Side),
		Qty:        o.Qty,
		OrderType:  string(o.Type),
		LimitPrice: o.LimitPrice,
		StopPrice:  o.StopPrice,
		Product:    string(o.Product),
		Status:     string(o.Status),
		Reason:     o.Reason,
		Tag:        o.Tag,
		PlacedAt:   o.CreatedAt,
		ChangedAt:  o.UpdatedAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "reason", "changed_at",
		}),
	}).Create(&row).Error
}

func (s *Orders) GetOrder(accountID, orderID string) (exec.Order, bool, error) {
	var row orderRow
	err := s.db.Where("account_id = ? AND order_id = ?", accountID, orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return exec.Order{}, false, nil
	}
	if err != nil {
		return exec.Order{}, false, err
	}
	return orderFromRow(row), true, nil
}

func (s *Orders) OpenOrders(accountID string) ([]exec.Order, error) {
	var rows []orderRow
	err := s.db.Where("account_id = ? AND status = ?", accountID, string(exec.StatusOpen)).
		Order("placed_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]exec.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, orderFromRow(row))
	}
	return out, nil
}

func (s *Orders) RecordFill(f exec.Fill) error {
	return s.db.Create(&fillRow{
		FillID:   f.ID,
		OrderID:  f.OrderID,
		Qty:      f.Qty,
		Price:    f.Price,
		Fees:     f.Fees,
		Slippage: f.Slippage,
		Time:     f.Time,
	}).Error
}

func (s *Orders) Fills(orderID string) ([]exec.Fill, error) {
	var rows []fillRow
	if err := s.db.Where("order_id = ?", orderID).Order("time").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]exec.Fill, 0, len(rows))
	for _, row := range rows {
		out = append(out, exec.Fill{
			ID:       row.FillID,
			OrderID:  row.OrderID,
			Qty:      row.Qty,
			Price:    row.Price,
			Fees:     row.Fees,
			Slippage: row.Slippage,
			Time:     row.Time,
		})
	}
	return out, nil
}

func orderFromRow(row orderRow) exec.Order {
	return exec.Order{
		ID:         row.OrderID,
		AccountID:  row.AccountID,
		StrategyID: row.StrategyID,
		Symbol:     row.Symbol,
		Side:       risk.Side(row.Side),
		Qty:        row.Qty,
		Type:       risk.OrderType(row.OrderType),
		LimitPrice: row.LimitPrice,
		StopPrice:  row.StopPrice,
		Product:    ledger.ProductType(row.Product),
		Status:     exec.Status(row.Status),
		Reason:     row.Reason,
		Tag:        row.Tag,
		CreatedAt:  row.PlacedAt,
		UpdatedAt:  row.ChangedAt,
	}
}
