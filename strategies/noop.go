package strategies

import "github.com/mohithlingosme/tradebot/market"

// NoopStrategy never trades. Useful as a baseline and in feed tests.
type NoopStrategy struct{}

func (NoopStrategy) Name() string               { return "noop" }
func (NoopStrategy) Reset()                     {}
func (NoopStrategy) OnBar(market.Bar) []Signal  { return nil }
