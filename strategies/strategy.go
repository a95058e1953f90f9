package strategies

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mohithlingosme/tradebot/market"
)

// SignalKind is what a strategy wants done. CLOSE flattens the current
// position; FLAT is accepted as a synonym at translation time.
type SignalKind string

const (
	SignalBuy   SignalKind = "BUY"
	SignalSell  SignalKind = "SELL"
	SignalClose SignalKind = "CLOSE"
)

// Signal is one trading instruction emitted by a strategy for the current
// bar. Signals flow one way, out to the orchestration loop; strategies never
// call back into the risk or execution engines.
type Signal struct {
	Kind   SignalKind
	Symbol string
	Price  float64 // reference price, normally the bar close

	// Qty is optional; zero means the loop's position-sizing applies.
	Qty decimal.Decimal

	// Optional protective levels for the resulting position.
	Stop     float64
	Take     float64
	TrailPct float64 // trailing stop distance as a fraction of the peak

	Reason string
}

// Strategy consumes bars and emits signals. Implementations are stateful
// (rolling indicator windows) and are driven by exactly one loop at a time.
type Strategy interface {
	Name() string
	Reset()
	OnBar(bar market.Bar) []Signal
}

// Registry maps strategy names to factories. Construct one per process (or
// per test) and pass it down explicitly; separate registries are fully
// isolated, so concurrent runs cannot observe each other's registrations.
type Registry struct {
	factories map[string]func() Strategy
}

// NewRegistry returns a registry preloaded with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]func() Strategy)}
	r.Register("noop", func() Strategy { return NoopStrategy{} })
	r.Register("ema-cross", func() Strategy { return NewEMACross(EMACrossDefaults()) })
	return r
}

func (r *Registry) Register(name string, factory func() Strategy) {
	r.factories[strings.ToLower(name)] = factory
}

// ByName builds a registered strategy. The ema-cross periods can be
// overridden with fast/slow.
func (r *Registry) ByName(name string, fast, slow int) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "ema-cross" || key == "emacross" {
		cfg := EMACrossDefaults()
		if fast > 0 {
			cfg.FastPeriod = fast
		}
		if slow > 0 {
			cfg.SlowPeriod = slow
		}
		return NewEMACross(cfg), nil
	}
	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, ema-cross)", name)
	}
	return factory(), nil
}
