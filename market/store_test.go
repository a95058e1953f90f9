package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetLastPrice(t *testing.T) {
	t.Parallel()

	s := NewStore()

	_, err := s.GetLastPrice("EURUSD")
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	s.Set(Quote{Symbol: "EURUSD", Bid: 1.10, Ask: 1.12, Time: time.Now()})

	got, err := s.GetLastPrice("EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.11, got, 1e-9) // mid

	// Later quotes supersede.
	s.Set(QuoteFromLast("EURUSD", 1.20, time.Now()))
	got, _ = s.GetLastPrice("EURUSD")
	assert.InDelta(t, 1.20, got, 1e-9)
}

func TestStore_GetLastPricesSkipsUnknown(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(QuoteFromLast("AAPL", 100, time.Now()))

	got, err := s.GetLastPrices([]string{"AAPL", "NOSUCH"})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.InDelta(t, 100, got["AAPL"], 1e-9)
	_, ok := got["NOSUCH"]
	assert.False(t, ok)
}

func TestQuote(t *testing.T) {
	t.Parallel()

	q := Quote{Symbol: "EURUSD", Bid: 1.10, Ask: 1.12}
	assert.InDelta(t, 1.11, q.Mid(), 1e-9)
	assert.InDelta(t, 0.02, q.Spread(), 1e-9)

	last := QuoteFromLast("EURUSD", 1.15, time.Now())
	assert.Equal(t, last.Bid, last.Ask)
	assert.InDelta(t, 0, last.Spread(), 1e-12)
}

func TestStore_Symbols(t *testing.T) {
	t.Parallel()

	s := NewStore()
	assert.Empty(t, s.Symbols())

	s.Set(QuoteFromLast("A", 1, time.Now()))
	s.Set(QuoteFromLast("B", 2, time.Now()))
	assert.ElementsMatch(t, []string{"A", "B"}, s.Symbols())
}
