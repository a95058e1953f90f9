package exec

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohithlingosme/tradebot/market"
	"github.com/mohithlingosme/tradebot/risk"
)

func newMonitorHarness(t *testing.T, maxDailyLoss float64, squareOff bool) (*harness, *Monitor) {
	t.Helper()

	defaults := risk.DefaultLimits()
	defaults.MaxDailyLoss = maxDailyLoss

	h := newHarness(t, Config{RiskEnabled: true}, defaults)
	m := NewMonitor(
		h.engine, h.limits, h.books,
		func() []string { return []string{"a1"} },
		time.Millisecond,
		squareOff,
		zerolog.Nop(),
	)
	return h, m
}

// A loss accruing purely from market movement, with no order in flight, still
// trips the breaker on the next sweep.
func TestMonitor_HaltsOnMarketMoveLoss(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, false)
	ctx := context.Background()

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(ctx, "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)

	// Price within tolerance: sweep is a no-op.
	h.prices.Set(market.QuoteFromLast("AAPL", 99, time.Now()))
	m.Sweep(ctx)
	halted, _, err := h.limits.Halt("a1")
	require.NoError(t, err)
	assert.False(t, halted)

	// Price collapses: unrealized -1000 breaches the 500 cap.
	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))
	m.Sweep(ctx)

	halted, reason, err := h.limits.Halt("a1")
	require.NoError(t, err)
	assert.True(t, halted)
	assert.NotEmpty(t, reason)

	// Exactly one audit event, flagged as a halt.
	events := h.jnl.RiskEvents()
	require.Len(t, events, 1)
	assert.Equal(t, risk.ActionHaltTrading, events[0].Decision.Action)
	assert.Equal(t, risk.CodeMaxDailyLoss, events[0].Decision.Code)

	// Position is left alone without square-off.
	_, held, err := h.books.Position("a1", "AAPL")
	require.NoError(t, err)
	assert.True(t, held)

	// Re-sweeping an already-halted account records nothing new.
	m.Sweep(ctx)
	assert.Len(t, h.jnl.RiskEvents(), 1)
}

func TestMonitor_SquareOffFlattens(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, true)
	ctx := context.Background()

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(ctx, "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)

	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))
	m.Sweep(ctx)

	// Halted and flat: the exit went through the bypass path despite the halt.
	halted, _, err := h.limits.Halt("a1")
	require.NoError(t, err)
	assert.True(t, halted)

	_, held, err := h.books.Position("a1", "AAPL")
	require.NoError(t, err)
	assert.False(t, held)

	events := h.jnl.RiskEvents()
	require.Len(t, events, 1)
	assert.Equal(t, risk.ActionForceSquareOff, events[0].Decision.Action)

	// The forced exit realized the loss.
	cash, err := h.books.Cash("a1")
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(99000)), "got %s", cash)
}

// A resting entry order on the same side as the position must not block its
// square-off.
func TestMonitor_SquareOffIgnoresRestingEntryOrders(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, true)
	ctx := context.Background()

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(ctx, "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)

	// Same-side limit well below market rests OPEN.
	entry := marketBuy("AAPL", 10)
	entry.Type = risk.Limit
	entry.LimitPrice = decimal.NewFromInt(80)
	res, err := h.engine.PlaceOrder(ctx, "a1", entry)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, res.Order.Status)

	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))
	m.Sweep(ctx)

	_, held, err := h.books.Position("a1", "AAPL")
	require.NoError(t, err)
	assert.False(t, held, "square-off must flatten despite the resting entry order")
}

// A resting opposite-side order is an exit already in flight, so the sweep
// leaves the position for it.
func TestMonitor_SquareOffSkipsSymbolWithExitInFlight(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, true)
	ctx := context.Background()

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(ctx, "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)

	exit := marketSell("AAPL", 100)
	exit.Type = risk.Limit
	exit.LimitPrice = decimal.NewFromInt(120) // above market, rests
	res, err := h.engine.PlaceOrder(ctx, "a1", exit)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, res.Order.Status)

	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))
	m.Sweep(ctx)

	halted, _, err := h.limits.Halt("a1")
	require.NoError(t, err)
	assert.True(t, halted)

	pos, held, err := h.books.Position("a1", "AAPL")
	require.NoError(t, err)
	require.True(t, held)
	assert.True(t, pos.Qty.Equal(decimal.NewFromInt(100)))
}

// The sweep skips accounts whose lock is held by an in-flight order instead
// of blocking behind it.
func TestMonitor_SkipsBusyAccount(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, false)
	ctx := context.Background()

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(ctx, "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)
	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))

	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = h.engine.WithAccount(ctx, "a1", func() error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held

	m.Sweep(ctx) // must return promptly without halting
	halted, _, err := h.limits.Halt("a1")
	require.NoError(t, err)
	assert.False(t, halted)

	close(hold)
}

func TestMonitor_StartStopIsDeterministic(t *testing.T) {
	t.Parallel()

	h, m := newMonitorHarness(t, 500, false)

	h.prices.Set(market.QuoteFromLast("AAPL", 100, time.Now()))
	_, err := h.engine.PlaceOrder(context.Background(), "a1", marketBuy("AAPL", 100))
	require.NoError(t, err)
	h.prices.Set(market.QuoteFromLast("AAPL", 90, time.Now()))

	m.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for {
		halted, _, err := h.limits.Halt("a1")
		require.NoError(t, err)
		if halted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("monitor never halted the account")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Stop()

	// Stop is idempotent and nothing runs afterwards.
	m.Stop()
}
