package market

import "sync"

// Store is a concurrent last-quote cache keyed by symbol. It implements
// PriceSource for both the paper engine and the backtester.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStore() *Store {
	return &Store{quotes: make(map[string]Quote)}
}

func (s *Store) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

func (s *Store) Get(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, ErrPriceUnavailable
	}
	return q, nil
}

func (s *Store) GetLastPrice(symbol string) (float64, error) {
	q, err := s.Get(symbol)
	if err != nil {
		return 0, err
	}
	return q.Mid(), nil
}

// GetLastPrices resolves a batch of symbols. Unknown symbols are simply
// absent from the result; the caller decides whether a miss is fatal.
func (s *Store) GetLastPrices(symbols []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			out[sym] = q.Mid()
		}
	}
	return out, nil
}

// Symbols returns all symbols with a known quote.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	syms := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		syms = append(syms, sym)
	}
	return syms
}
