package market

import "time"

// Quote is the latest bid/ask for a symbol.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// QuoteFromLast builds a quote with bid == ask == last, for sources that only
// publish a single traded price.
func QuoteFromLast(symbol string, last float64, t time.Time) Quote {
	return Quote{Symbol: symbol, Bid: last, Ask: last, Time: t}
}

// Bar is one OHLCV bar for a symbol at a timeframe.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
