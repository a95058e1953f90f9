// Package store provides the persistent (SQLite via gorm) implementations of
// the core's storage contracts: exec.OrderStore, risk.LimitsStore and
// ledger.Store. Backtests use the in-memory implementations instead; both
// sides share the same rule and averaging logic, so behavior cannot drift
// between them.
package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mohithlingosme/tradebot/risk"
)

type DB struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}

	if err := db.AutoMigrate(
		&orderRow{},
		&fillRow{},
		&limitsRow{},
		&accountRow{},
		&positionRow{},
		&cashEntryRow{},
		&realizedRow{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Orders() *Orders { return &Orders{db: d.db} }

// Limits returns the persistent LimitsStore layered on the given defaults.
func (d *DB) Limits(defaults risk.Limits) *Limits {
	return &Limits{db: d.db, defaults: defaults}
}

func (d *DB) Ledger() *Ledger { return &Ledger{db: d.db} }

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
