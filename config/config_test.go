package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Risk.Enabled)
	assert.Equal(t, "memory", cfg.Journal.Type)
}

func TestLoadFromFile_YAMLOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "cfg.yaml", `
account:
  id: desk-1
  cash: 250000
risk:
  enabled: true
  max_daily_loss: 5000
  cutoff_time: "15:20"
  timezone: Asia/Kolkata
journal:
  type: sqlite
  db_path: ./trader.sqlite
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "desk-1", cfg.Account.ID)
	assert.Equal(t, 250000.0, cfg.Account.Cash)
	assert.Equal(t, 5000.0, cfg.Risk.MaxDailyLoss)
	// Untouched sections keep their defaults.
	assert.Equal(t, "ema-cross", cfg.Backtest.Strategy)

	lim := cfg.Limits()
	assert.Equal(t, 15*60+20, lim.CutoffMinute)
	assert.Equal(t, "Asia/Kolkata", lim.Timezone)
	assert.Equal(t, 5000.0, lim.MaxDailyLoss)
}

func TestLoadFromFile_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "cfg.json", `{"account":{"id":"paper","cash":1000}}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.Account.Cash)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"negative cash", `{"account":{"id":"a","cash":-5}}`},
		{"bad cutoff", `{"account":{"id":"a","cash":1},"risk":{"cutoff_time":"25:99"}}`},
		{"bad timezone", `{"account":{"id":"a","cash":1},"risk":{"timezone":"Mars/Olympus"}}`},
		{"bad journal type", `{"account":{"id":"a","cash":1},"journal":{"type":"parquet"}}`},
		{"sqlite journal without path", `{"account":{"id":"a","cash":1},"journal":{"type":"sqlite"}}`},
		{"sqlite store without dsn", `{"account":{"id":"a","cash":1},"store":{"type":"sqlite"}}`},
		{"sizing out of range", `{"account":{"id":"a","cash":1},"backtest":{"sizing_fraction":1.5}}`},
		{"bad monitor interval", `{"account":{"id":"a","cash":1},"monitor":{"enabled":true,"interval":"soon"}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFromFile(writeFile(t, "cfg.json", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Account.Cash = 12345

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12345.0, got.Account.Cash)
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 2*time.Second, cfg.LockTimeout())
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval())

	cfg.Exec.LockTimeout = "250ms"
	cfg.Monitor.Interval = "1m"
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout())
	assert.Equal(t, time.Minute, cfg.MonitorInterval())
}
