package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type realizedEntry struct {
	time   time.Time
	amount decimal.Decimal
}

// Ledger is the in-memory Store implementation. All mutation goes through
// ApplyFill; everything else is a read.
type Ledger struct {
	mu        sync.RWMutex
	cash      map[string]decimal.Decimal
	positions map[string]map[string]*Position // accountID -> symbol -> position
	entries   map[string][]CashEntry
	realized  map[string][]realizedEntry
}

func New() *Ledger {
	return &Ledger{
		cash:      make(map[string]decimal.Decimal),
		positions: make(map[string]map[string]*Position),
		entries:   make(map[string][]CashEntry),
		realized:  make(map[string][]realizedEntry),
	}
}

func (l *Ledger) CreateAccount(accountID string, startingCash decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cash[accountID]; ok {
		return fmt.Errorf("ledger: account %q already exists", accountID)
	}
	l.cash[accountID] = startingCash
	l.positions[accountID] = make(map[string]*Position)
	l.entries[accountID] = append(l.entries[accountID], CashEntry{
		AccountID: accountID,
		Time:      time.Now().UTC(),
		Amount:    startingCash,
		Balance:   startingCash,
		Reason:    "DEPOSIT",
	})
	return nil
}

func (l *Ledger) Cash(accountID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.cash[accountID]
	if !ok {
		return decimal.Zero, ErrUnknownAccount
	}
	return c, nil
}

func (l *Ledger) Position(accountID, symbol string) (Position, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	book, ok := l.positions[accountID]
	if !ok {
		return Position{}, false, ErrUnknownAccount
	}
	p, ok := book[symbol]
	if !ok {
		return Position{}, false, nil
	}
	return *p, true, nil
}

func (l *Ledger) OpenPositions(accountID string) ([]Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	book, ok := l.positions[accountID]
	if !ok {
		return nil, ErrUnknownAccount
	}
	out := make([]Position, 0, len(book))
	for _, p := range book {
		out = append(out, *p)
	}
	return out, nil
}

// ApplyFill applies one executed fill: position averaging, realized P&L on the
// reduced portion, and the cash debit/credit (price*qty plus fees).
func (l *Ledger) ApplyFill(f FillApply) (ApplyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cash, ok := l.cash[f.AccountID]
	if !ok {
		return ApplyResult{}, ErrUnknownAccount
	}
	book := l.positions[f.AccountID]

	p, ok := book[f.Symbol]
	if !ok {
		p = &Position{AccountID: f.AccountID, Symbol: f.Symbol, Product: f.Product}
	}

	realized := p.Apply(f.Qty, f.Price)
	p.UpdatedAt = f.Time

	if p.Qty.IsZero() {
		delete(book, f.Symbol)
	} else {
		book[f.Symbol] = p
	}

	// BUY debits price*qty, SELL credits it; fees always debit.
	notional := f.Price.Mul(f.Qty) // signed by the fill direction
	delta := notional.Neg().Sub(f.Fees)
	cash = cash.Add(delta)
	l.cash[f.AccountID] = cash

	l.entries[f.AccountID] = append(l.entries[f.AccountID], CashEntry{
		AccountID: f.AccountID,
		Time:      f.Time,
		Amount:    delta,
		Balance:   cash,
		Reason:    "FILL",
		Ref:       f.Ref,
	})
	if !realized.IsZero() {
		l.realized[f.AccountID] = append(l.realized[f.AccountID], realizedEntry{
			time:   f.Time,
			amount: realized,
		})
	}

	return ApplyResult{Realized: realized, Position: *p, Cash: cash}, nil
}

// RealizedSince sums realized P&L recorded at or after the given instant,
// typically the start of the trading day.
func (l *Ledger) RealizedSince(accountID string, since time.Time) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.cash[accountID]; !ok {
		return decimal.Zero, ErrUnknownAccount
	}
	sum := decimal.Zero
	for _, r := range l.realized[accountID] {
		if !r.time.Before(since) {
			sum = sum.Add(r.amount)
		}
	}
	return sum, nil
}

func (l *Ledger) Entries(accountID string) ([]CashEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.cash[accountID]; !ok {
		return nil, ErrUnknownAccount
	}
	out := make([]CashEntry, len(l.entries[accountID]))
	copy(out, l.entries[accountID])
	return out, nil
}

