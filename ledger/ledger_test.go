package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func fill(acct, sym string, qty, price string, at time.Time) FillApply {
	return FillApply{
		AccountID: acct,
		Symbol:    sym,
		Product:   ProductIntraday,
		Qty:       d(qty),
		Price:     d(price),
		Time:      at,
	}
}

func TestPositionApply_AveragesSameDirection(t *testing.T) {
	t.Parallel()

	p := &Position{}

	realized := p.Apply(d("100"), d("10"))
	assert.True(t, realized.IsZero())
	realized = p.Apply(d("100"), d("20"))
	assert.True(t, realized.IsZero())

	assert.True(t, p.Qty.Equal(d("200")))
	assert.True(t, p.AvgPrice.Equal(d("15")), "got %s", p.AvgPrice)
}

func TestPositionApply_RealizesOnReduce(t *testing.T) {
	t.Parallel()

	p := &Position{}
	p.Apply(d("100"), d("10"))

	realized := p.Apply(d("-40"), d("12"))

	assert.True(t, realized.Equal(d("80")), "got %s", realized)
	assert.True(t, p.Qty.Equal(d("60")))
	// Average is untouched by a partial close.
	assert.True(t, p.AvgPrice.Equal(d("10")))
}

func TestPositionApply_ShortSideRealization(t *testing.T) {
	t.Parallel()

	p := &Position{}
	p.Apply(d("-100"), d("50"))

	// Cover at a lower price: profit for a short.
	realized := p.Apply(d("100"), d("45"))

	assert.True(t, realized.Equal(d("500")), "got %s", realized)
	assert.True(t, p.Qty.IsZero())
	assert.True(t, p.AvgPrice.IsZero())
}

func TestPositionApply_FlipResetsAverage(t *testing.T) {
	t.Parallel()

	p := &Position{}
	p.Apply(d("100"), d("10"))

	// Sell 150 @ 12: closes 100 (+200) and opens a 50 short at 12.
	realized := p.Apply(d("-150"), d("12"))

	assert.True(t, realized.Equal(d("200")), "got %s", realized)
	assert.True(t, p.Qty.Equal(d("-50")))
	assert.True(t, p.AvgPrice.Equal(d("12")))
}

func TestLedger_ZeroQtyInvariant(t *testing.T) {
	t.Parallel()

	l := New()
	require.NoError(t, l.CreateAccount("a1", d("100000")))
	now := time.Now().UTC()

	_, err := l.ApplyFill(fill("a1", "AAPL", "100", "10", now))
	require.NoError(t, err)
	res, err := l.ApplyFill(fill("a1", "AAPL", "-100", "11", now))
	require.NoError(t, err)

	assert.True(t, res.Position.Qty.IsZero())
	assert.True(t, res.Position.AvgPrice.IsZero())

	// Closed positions disappear from open-position queries.
	_, held, err := l.Position("a1", "AAPL")
	require.NoError(t, err)
	assert.False(t, held)
	open, err := l.OpenPositions("a1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

// Cash out plus cash in equals realized P&L minus fees, exactly.
func TestLedger_AccountingIdentity(t *testing.T) {
	t.Parallel()

	l := New()
	require.NoError(t, l.CreateAccount("a1", d("100000")))
	now := time.Now().UTC()

	buy := fill("a1", "AAPL", "100", "10", now)
	buy.Fees = d("5")
	res, err := l.ApplyFill(buy)
	require.NoError(t, err)
	assert.True(t, res.Cash.Equal(d("98995")), "got %s", res.Cash)

	sell := fill("a1", "AAPL", "-100", "11", now)
	sell.Fees = d("5")
	res, err = l.ApplyFill(sell)
	require.NoError(t, err)

	// 100000 - 1000 - 5 + 1100 - 5 = 100090 = start + realized(100) - fees(10)
	assert.True(t, res.Cash.Equal(d("100090")), "got %s", res.Cash)
	assert.True(t, res.Realized.Equal(d("100")))
}

func TestLedger_RealizedSince(t *testing.T) {
	t.Parallel()

	l := New()
	require.NoError(t, l.CreateAccount("a1", d("100000")))

	yesterday := time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	dayStart := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	_, err := l.ApplyFill(fill("a1", "AAPL", "100", "10", yesterday))
	require.NoError(t, err)
	_, err = l.ApplyFill(fill("a1", "AAPL", "-50", "12", yesterday))
	require.NoError(t, err)
	_, err = l.ApplyFill(fill("a1", "AAPL", "-50", "8", today))
	require.NoError(t, err)

	got, err := l.RealizedSince("a1", dayStart)
	require.NoError(t, err)

	// Only today's -100 counts; yesterday's +100 is outside the window.
	assert.True(t, got.Equal(d("-100")), "got %s", got)
}

func TestLedger_UnknownAccount(t *testing.T) {
	t.Parallel()

	l := New()

	_, err := l.Cash("nope")
	assert.ErrorIs(t, err, ErrUnknownAccount)
	_, err = l.ApplyFill(fill("nope", "AAPL", "1", "1", time.Now()))
	assert.ErrorIs(t, err, ErrUnknownAccount)
	err = l.CreateAccount("a1", d("1"))
	require.NoError(t, err)
	assert.Error(t, l.CreateAccount("a1", d("1")), "duplicate account must fail")
}

func TestLedger_EntriesAreChronological(t *testing.T) {
	t.Parallel()

	l := New()
	require.NoError(t, l.CreateAccount("a1", d("1000")))
	now := time.Now().UTC()

	_, err := l.ApplyFill(fill("a1", "AAPL", "10", "10", now))
	require.NoError(t, err)

	entries, err := l.Entries("a1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "DEPOSIT", entries[0].Reason)
	assert.Equal(t, "FILL", entries[1].Reason)
	assert.True(t, entries[1].Balance.Equal(d("900")))
}
