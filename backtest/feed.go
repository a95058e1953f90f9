package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mohithlingosme/tradebot/market"
)

// BarFeed yields bars one at a time, strictly in timestamp order.
// Implementations must be deterministic and return ok=false at EOF.
type BarFeed interface {
	Next() (bar market.Bar, ok bool, err error)
	Close() error
}

// SliceFeed replays an in-memory bar slice. Used by tests and walk-forward
// windows.
type SliceFeed struct {
	bars []market.Bar
	idx  int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.idx >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.idx]
	f.idx++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// CSVFeed streams bars from a CSV file with a header row of
// time,open,high,low,close,volume. Time is RFC3339 or unix seconds.
type CSVFeed struct {
	symbol string
	file   *os.File
	r      *csv.Reader
	line   int
}

func NewCSVFeed(symbol, path string) (*CSVFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	// Skip the header row.
	if _, err := r.Read(); err != nil {
		file.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return &CSVFeed{symbol: symbol, file: file, r: r, line: 1}, nil
}

func (f *CSVFeed) Next() (market.Bar, bool, error) {
	rec, err := f.r.Read()
	if err == io.EOF {
		return market.Bar{}, false, nil
	}
	if err != nil {
		return market.Bar{}, false, err
	}
	f.line++

	if len(rec) < 5 {
		return market.Bar{}, false, fmt.Errorf("csv line %d: want at least 5 fields, got %d", f.line, len(rec))
	}

	t, err := parseTime(rec[0])
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("csv line %d: %w", f.line, err)
	}

	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("csv line %d field %d: %w", f.line, i+1, err)
		}
		vals[i] = v
	}

	bar := market.Bar{
		Symbol: f.symbol,
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
	}
	if len(rec) > 5 {
		if v, err := strconv.ParseFloat(rec[5], 64); err == nil {
			bar.Volume = v
		}
	}
	return bar, true, nil
}

func (f *CSVFeed) Close() error { return f.file.Close() }

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
