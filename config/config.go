package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mohithlingosme/tradebot/risk"
)

// Config is the complete runtime configuration for the paper-trading engine
// and the backtester.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Exec     ExecConfig     `json:"exec" yaml:"exec"`
	Monitor  MonitorConfig  `json:"monitor" yaml:"monitor"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
}

// AccountConfig seeds the trading account.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

// RiskConfig is the default limits layer. Zero caps are disabled; per-account
// and per-strategy overrides are applied on top at evaluation time.
type RiskConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`

	MaxPositionQty   float64 `json:"max_position_qty" yaml:"max_position_qty"`
	MaxPositionValue float64 `json:"max_position_value" yaml:"max_position_value"`

	MaxGrossExposure float64 `json:"max_gross_exposure" yaml:"max_gross_exposure"`
	MaxNetExposure   float64 `json:"max_net_exposure" yaml:"max_net_exposure"`

	MaxOpenOrders int `json:"max_open_orders" yaml:"max_open_orders"`

	CutoffTime string `json:"cutoff_time,omitempty" yaml:"cutoff_time,omitempty"` // "HH:MM", empty disables
	Timezone   string `json:"timezone" yaml:"timezone"`

	ExemptExitOrders  bool `json:"exempt_exit_orders" yaml:"exempt_exit_orders"`
	AllowQtyReduction bool `json:"allow_qty_reduction" yaml:"allow_qty_reduction"`
}

// ExecConfig tunes fill simulation.
type ExecConfig struct {
	SlippageBps       float64 `json:"slippage_bps" yaml:"slippage_bps"`
	CommissionFlat    float64 `json:"commission_flat" yaml:"commission_flat"`
	CommissionPerUnit float64 `json:"commission_per_unit" yaml:"commission_per_unit"`
	CommissionRate    float64 `json:"commission_rate" yaml:"commission_rate"`
	LockTimeout       string  `json:"lock_timeout,omitempty" yaml:"lock_timeout,omitempty"` // e.g. "2s"
}

// MonitorConfig controls the background loss monitor.
type MonitorConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Interval  string `json:"interval" yaml:"interval"` // e.g. "5s"
	SquareOff bool   `json:"square_off" yaml:"square_off"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "memory", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// StoreConfig selects the order/ledger/limits backend.
type StoreConfig struct {
	Type string `json:"type" yaml:"type"` // "memory" or "sqlite"
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// BacktestConfig holds replay parameters.
type BacktestConfig struct {
	Symbol         string  `json:"symbol" yaml:"symbol"`
	BarsFile       string  `json:"bars_file" yaml:"bars_file"`
	Strategy       string  `json:"strategy" yaml:"strategy"`
	FastPeriod     int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod     int     `json:"slow_period" yaml:"slow_period"`
	SizingFraction float64 `json:"sizing_fraction" yaml:"sizing_fraction"`
	MaxOrderQty    float64 `json:"max_order_qty" yaml:"max_order_qty"`
	ReportFile     string  `json:"report_file,omitempty" yaml:"report_file,omitempty"`
}

// Default is a runnable configuration: in-memory everything, risk on with
// permissive caps, monitor off.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "paper",
			Currency: "USD",
			Cash:     100000,
		},
		Risk: RiskConfig{
			Enabled:       true,
			MaxOpenOrders: 50,
			Timezone:      "UTC",
		},
		Exec: ExecConfig{
			LockTimeout: "2s",
		},
		Monitor: MonitorConfig{
			Interval: "5s",
		},
		Journal: JournalConfig{Type: "memory"},
		Store:   StoreConfig{Type: "memory"},
		Backtest: BacktestConfig{
			Strategy:       "ema-cross",
			SizingFraction: 0.1,
		},
	}
}

// LoadFromFile reads a YAML or JSON configuration file, applies it on top of
// Default and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration; the extension picks the format.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("account.id is required")
	}
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}

	if c.Risk.CutoffTime != "" {
		if _, err := parseCutoff(c.Risk.CutoffTime); err != nil {
			return fmt.Errorf("risk.cutoff_time: %w", err)
		}
	}
	if c.Risk.Timezone != "" {
		if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
			return fmt.Errorf("risk.timezone: %w", err)
		}
	}

	if c.Exec.LockTimeout != "" {
		if _, err := time.ParseDuration(c.Exec.LockTimeout); err != nil {
			return fmt.Errorf("exec.lock_timeout: %w", err)
		}
	}

	if c.Monitor.Enabled {
		d, err := time.ParseDuration(c.Monitor.Interval)
		if err != nil {
			return fmt.Errorf("monitor.interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("monitor.interval must be positive")
		}
	}

	switch c.Journal.Type {
	case "", "memory":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" || c.Journal.EventsFile == "" {
			return fmt.Errorf("journal.type csv needs trades_file, equity_file and events_file")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.type sqlite needs db_path")
		}
	default:
		return fmt.Errorf("journal.type must be memory, csv or sqlite, got %q", c.Journal.Type)
	}

	switch c.Store.Type {
	case "", "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.type sqlite needs dsn")
		}
	default:
		return fmt.Errorf("store.type must be memory or sqlite, got %q", c.Store.Type)
	}

	if c.Backtest.SizingFraction < 0 || c.Backtest.SizingFraction > 1 {
		return fmt.Errorf("backtest.sizing_fraction must be within [0, 1]")
	}
	return nil
}

// Limits converts the risk section into the engine's default limits layer.
func (c *Config) Limits() risk.Limits {
	lim := risk.Limits{
		Enabled:           c.Risk.Enabled,
		MaxDailyLoss:      c.Risk.MaxDailyLoss,
		MaxDailyLossPct:   c.Risk.MaxDailyLossPct,
		MaxPositionQty:    c.Risk.MaxPositionQty,
		MaxPositionValue:  c.Risk.MaxPositionValue,
		MaxGrossExposure:  c.Risk.MaxGrossExposure,
		MaxNetExposure:    c.Risk.MaxNetExposure,
		MaxOpenOrders:     c.Risk.MaxOpenOrders,
		Timezone:          c.Risk.Timezone,
		ExemptExitOrders:  c.Risk.ExemptExitOrders,
		AllowQtyReduction: c.Risk.AllowQtyReduction,
	}
	if c.Risk.CutoffTime != "" {
		if minute, err := parseCutoff(c.Risk.CutoffTime); err == nil {
			lim.CutoffMinute = minute
		}
	}
	return lim
}

// LockTimeout parses the exec lock timeout, defaulting to 2s.
func (c *Config) LockTimeout() time.Duration {
	if c.Exec.LockTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(c.Exec.LockTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// MonitorInterval parses the monitor sweep interval, defaulting to 5s.
func (c *Config) MonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.Monitor.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// parseCutoff turns "HH:MM" into minutes after midnight.
func parseCutoff(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
