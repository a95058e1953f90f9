package market

import "errors"

// ErrPriceUnavailable is returned when a symbol has no known price. Callers
// must treat this as a distinct transient failure, never as a zero price.
var ErrPriceUnavailable = errors.New("market: price unavailable")

// PriceSource resolves the last known price for a symbol. Implementations are
// the in-memory Store below and, in live deployments, a feed-backed cache.
type PriceSource interface {
	GetLastPrice(symbol string) (float64, error)
	GetLastPrices(symbols []string) (map[string]float64, error)
}
