package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohithlingosme/tradebot/exec"
	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/risk"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "trader.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestOrders_UpsertRoundTrip(t *testing.T) {
	t.Parallel()

	orders := openTestDB(t).Orders()
	now := time.Now().UTC().Truncate(time.Second)

	o := exec.Order{
		ID:         "ord-1",
		AccountID:  "a1",
		StrategyID: "ema-cross",
		Symbol:     "AAPL",
		Side:       risk.Buy,
		Qty:        d("100"),
		Type:       risk.Limit,
		LimitPrice: d("95.5"),
		Product:    ledger.ProductIntraday,
		Status:     exec.StatusOpen,
		Tag:        "BullCross",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, orders.UpsertOrder(o))

	got, ok, err := orders.GetOrder("a1", "ord-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, exec.StatusOpen, got.Status)
	assert.True(t, got.Qty.Equal(d("100")))
	assert.True(t, got.LimitPrice.Equal(d("95.5")))
	assert.Equal(t, risk.Buy, got.Side)
	assert.Equal(t, "BullCross", got.Tag)

	// Upserting the same id updates in place instead of duplicating.
	o.Status = exec.StatusCancelled
	o.Reason = "user request"
	require.NoError(t, orders.UpsertOrder(o))

	got, _, err = orders.GetOrder("a1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, exec.StatusCancelled, got.Status)
	assert.Equal(t, "user request", got.Reason)

	open, err := orders.OpenOrders("a1")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, ok, err = orders.GetOrder("a1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrders_Fills(t *testing.T) {
	t.Parallel()

	orders := openTestDB(t).Orders()
	now := time.Now().UTC()

	require.NoError(t, orders.RecordFill(exec.Fill{
		ID: "f1", OrderID: "ord-1", Qty: d("100"), Price: d("10.5"), Fees: d("2"), Time: now,
	}))

	fills, err := orders.Fills("ord-1")
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Price.Equal(d("10.5")))
	assert.True(t, fills[0].Fees.Equal(d("2")))
}

func TestLimits_LayeredMergeAndHalt(t *testing.T) {
	t.Parallel()

	defaults := risk.DefaultLimits()
	defaults.MaxDailyLoss = 1000
	limits := openTestDB(t).Limits(defaults)

	// No rows yet: defaults pass through.
	lim, err := limits.Effective("a1", "ema-cross")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, lim.MaxDailyLoss)
	assert.False(t, lim.Halted)

	acctLoss := 500.0
	require.NoError(t, limits.SetAccountOverride("a1", risk.Override{MaxDailyLoss: &acctLoss}))
	stratLoss := 250.0
	require.NoError(t, limits.SetStrategyOverride("a1", "ema-cross", risk.Override{MaxDailyLoss: &stratLoss}))

	lim, err = limits.Effective("a1", "ema-cross")
	require.NoError(t, err)
	assert.Equal(t, 250.0, lim.MaxDailyLoss, "strategy layer wins")

	lim, err = limits.Effective("a1", "other")
	require.NoError(t, err)
	assert.Equal(t, 500.0, lim.MaxDailyLoss, "account layer without a strategy row")

	// A strategy override with no account row still applies.
	require.NoError(t, limits.SetStrategyOverride("a2", "ema-cross", risk.Override{MaxDailyLoss: &stratLoss}))
	lim, err = limits.Effective("a2", "ema-cross")
	require.NoError(t, err)
	assert.Equal(t, 250.0, lim.MaxDailyLoss)

	// Halt persists across reads and is idempotent.
	require.NoError(t, limits.SetHalt("a1", true, "daily loss"))
	require.NoError(t, limits.SetHalt("a1", true, "daily loss"))
	halted, reason, err := limits.Halt("a1")
	require.NoError(t, err)
	assert.True(t, halted)
	assert.Equal(t, "daily loss", reason)

	lim, err = limits.Effective("a1", "")
	require.NoError(t, err)
	assert.True(t, lim.Halted)

	require.NoError(t, limits.SetHalt("a1", false, "ignored"))
	halted, reason, err = limits.Halt("a1")
	require.NoError(t, err)
	assert.False(t, halted)
	assert.Empty(t, reason)
}

// The persistent ledger uses the same averaging method as the in-memory one,
// so the numbers must match exactly.
func TestLedger_PersistentMatchesMemorySemantics(t *testing.T) {
	t.Parallel()

	books := openTestDB(t).Ledger()
	require.NoError(t, books.CreateAccount("a1", d("100000")))
	now := time.Now().UTC()

	_, err := books.ApplyFill(ledger.FillApply{
		AccountID: "a1", Symbol: "AAPL", Product: ledger.ProductIntraday,
		Qty: d("100"), Price: d("10"), Time: now, Ref: "o1",
	})
	require.NoError(t, err)
	_, err = books.ApplyFill(ledger.FillApply{
		AccountID: "a1", Symbol: "AAPL", Product: ledger.ProductIntraday,
		Qty: d("100"), Price: d("20"), Time: now, Ref: "o2",
	})
	require.NoError(t, err)

	pos, held, err := books.Position("a1", "AAPL")
	require.NoError(t, err)
	require.True(t, held)
	assert.True(t, pos.Qty.Equal(d("200")))
	assert.True(t, pos.AvgPrice.Equal(d("15")), "got %s", pos.AvgPrice)

	res, err := books.ApplyFill(ledger.FillApply{
		AccountID: "a1", Symbol: "AAPL", Product: ledger.ProductIntraday,
		Qty: d("-200"), Price: d("18"), Time: now, Ref: "o3",
	})
	require.NoError(t, err)
	assert.True(t, res.Realized.Equal(d("600")), "got %s", res.Realized)

	// Zero-quantity invariant: the row is gone, not zeroed.
	_, held, err = books.Position("a1", "AAPL")
	require.NoError(t, err)
	assert.False(t, held)
	open, err := books.OpenPositions("a1")
	require.NoError(t, err)
	assert.Empty(t, open)

	// 100000 - 1000 - 2000 + 3600
	cash, err := books.Cash("a1")
	require.NoError(t, err)
	assert.True(t, cash.Equal(d("100600")), "got %s", cash)

	realized, err := books.RealizedSince("a1", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, realized.Equal(d("600")))

	entries, err := books.Entries("a1")
	require.NoError(t, err)
	require.Len(t, entries, 4) // deposit + three fills
	assert.Equal(t, "DEPOSIT", entries[0].Reason)
	assert.True(t, entries[3].Balance.Equal(d("100600")))
}

func TestLedger_UnknownAccountPersistent(t *testing.T) {
	t.Parallel()

	books := openTestDB(t).Ledger()

	_, err := books.Cash("nope")
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)

	_, err = books.ApplyFill(ledger.FillApply{AccountID: "nope", Symbol: "X", Qty: d("1"), Price: d("1")})
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)

	require.NoError(t, books.CreateAccount("a1", d("1")))
	assert.Error(t, books.CreateAccount("a1", d("1")))
}
