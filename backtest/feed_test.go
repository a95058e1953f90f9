package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVFeed_RFC3339(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `time,open,high,low,close,volume
2026-08-03T00:00:00Z,1.10,1.12,1.09,1.11,5000
2026-08-03T01:00:00Z,1.11,1.13,1.10,1.12,4000
`)
	feed, err := NewCSVFeed("EURUSD", path)
	require.NoError(t, err)
	defer feed.Close()

	bar, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EURUSD", bar.Symbol)
	assert.Equal(t, time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), bar.Time)
	assert.InDelta(t, 1.10, bar.Open, 1e-9)
	assert.InDelta(t, 1.12, bar.High, 1e-9)
	assert.InDelta(t, 1.09, bar.Low, 1e-9)
	assert.InDelta(t, 1.11, bar.Close, 1e-9)
	assert.InDelta(t, 5000, bar.Volume, 1e-9)

	_, ok, err = feed.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = feed.Next()
	require.NoError(t, err)
	assert.False(t, ok, "EOF after two rows")
}

func TestCSVFeed_UnixSecondsAndNoVolume(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `time,open,high,low,close
1754179200,10,11,9,10.5
`)
	feed, err := NewCSVFeed("X", path)
	require.NoError(t, err)
	defer feed.Close()

	bar, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1754179200), bar.Time.Unix())
	assert.Zero(t, bar.Volume)
}

func TestCSVFeed_BadRow(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `time,open,high,low,close,volume
not-a-time,1,2,3,4,5
`)
	feed, err := NewCSVFeed("X", path)
	require.NoError(t, err)
	defer feed.Close()

	_, _, err = feed.Next()
	assert.Error(t, err)
}

func TestSliceFeed(t *testing.T) {
	t.Parallel()

	bb := testBars("X", []float64{1, 2})
	feed := NewSliceFeed(bb)

	got, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bb[0], got)

	_, ok, _ = feed.Next()
	require.True(t, ok)
	_, ok, _ = feed.Next()
	assert.False(t, ok)
	assert.NoError(t, feed.Close())
}
