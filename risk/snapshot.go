package risk

import (
	"time"

	"github.com/mohithlingosme/tradebot/ledger"
	"github.com/mohithlingosme/tradebot/market"
)

// Snapshot is an immutable point-in-time read of one account's exposure.
// It is built fresh for every evaluation; snapshots are never cached across
// evaluations, because two orders checked against the same stale snapshot
// could both pass a limit only one should.
type Snapshot struct {
	AccountID string    `json:"account_id"`
	Time      time.Time `json:"time"`

	Cash          float64 `json:"cash"`
	PositionValue float64 `json:"position_value"` // net marked value; equity = cash + this
	GrossExposure float64 `json:"gross_exposure"` // sum of |per-symbol exposure|
	NetExposure   float64 `json:"net_exposure"`   // sum of signed exposure

	DayPL    float64 `json:"day_pl"` // realized since day start + unrealized
	DayPLPct float64 `json:"day_pl_pct"`

	OpenOrders int `json:"open_orders"`

	Exposure  map[string]float64 `json:"exposure"`   // symbol -> signed notional
	Qty       map[string]float64 `json:"qty"`        // symbol -> signed quantity
	LastPrice map[string]float64 `json:"last_price"` // symbol -> mark used
}

func (s Snapshot) Equity() float64 { return s.Cash + s.PositionValue }

// BuildSnapshot derives a snapshot from the ledger and latest prices.
// Positions without a price are marked at their average entry price; a stale
// mark is better than silently treating the exposure as zero.
func BuildSnapshot(
	store ledger.Store,
	prices market.PriceSource,
	accountID string,
	openOrders int,
	dayStart time.Time,
	now time.Time,
) (Snapshot, error) {
	cash, err := store.Cash(accountID)
	if err != nil {
		return Snapshot{}, err
	}
	positions, err := store.OpenPositions(accountID)
	if err != nil {
		return Snapshot{}, err
	}
	realized, err := store.RealizedSince(accountID, dayStart)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		AccountID:  accountID,
		Time:       now,
		Cash:       cash.InexactFloat64(),
		OpenOrders: openOrders,
		Exposure:   make(map[string]float64, len(positions)),
		Qty:        make(map[string]float64, len(positions)),
		LastPrice:  make(map[string]float64, len(positions)),
	}

	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	marks, err := prices.GetLastPrices(symbols)
	if err != nil {
		return Snapshot{}, err
	}

	unrealized := 0.0
	for _, p := range positions {
		qty := p.Qty.InexactFloat64()
		avg := p.AvgPrice.InexactFloat64()

		mark, ok := marks[p.Symbol]
		if !ok {
			mark = avg
		}

		exposure := qty * mark
		snap.Qty[p.Symbol] = qty
		snap.LastPrice[p.Symbol] = mark
		snap.Exposure[p.Symbol] = exposure

		snap.PositionValue += exposure
		snap.NetExposure += exposure
		if exposure < 0 {
			snap.GrossExposure -= exposure
		} else {
			snap.GrossExposure += exposure
		}
		unrealized += (mark - avg) * qty
	}

	snap.DayPL = realized.InexactFloat64() + unrealized
	if base := snap.Equity() - snap.DayPL; base > 0 {
		snap.DayPLPct = snap.DayPL / base
	}
	return snap, nil
}

// DayStart returns midnight of the account's trading day containing t.
func DayStart(t time.Time, tz string) time.Time {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
