package exec

import "sync"

// MemoryOrders is the in-memory OrderStore used by backtests and tests.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]map[string]Order // accountID -> orderID -> order
	fills  map[string][]Fill           // orderID -> fills
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{
		orders: make(map[string]map[string]Order),
		fills:  make(map[string][]Fill),
	}
}

func (s *MemoryOrders) UpsertOrder(o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders[o.AccountID] == nil {
		s.orders[o.AccountID] = make(map[string]Order)
	}
	s.orders[o.AccountID][o.ID] = o
	return nil
}

func (s *MemoryOrders) GetOrder(accountID, orderID string) (Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[accountID][orderID]
	return o, ok, nil
}

func (s *MemoryOrders) OpenOrders(accountID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders[accountID] {
		if o.Status == StatusOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryOrders) RecordFill(f Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills[f.OrderID] = append(s.fills[f.OrderID], f)
	return nil
}

func (s *MemoryOrders) Fills(orderID string) ([]Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fill, len(s.fills[orderID]))
	copy(out, s.fills[orderID])
	return out, nil
}
