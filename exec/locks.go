package exec

import (
	"context"
	"sync"
	"time"
)

// accountLocks serializes snapshot-then-decide-then-mutate per account while
// letting different accounts proceed in parallel. Acquisition is bounded:
// under sustained contention callers get ErrAccountBusy instead of queueing
// forever.
type accountLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{slots: make(map[string]chan struct{})}
}

func (a *accountLocks) slot(accountID string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[accountID]
	if !ok {
		s = make(chan struct{}, 1)
		a.slots[accountID] = s
	}
	return s
}

// acquire blocks until the account slot is free, the timeout elapses, or ctx
// is cancelled. A zero timeout means try-once.
func (a *accountLocks) acquire(ctx context.Context, accountID string, timeout time.Duration) error {
	s := a.slot(accountID)

	if timeout <= 0 {
		select {
		case s <- struct{}{}:
			return nil
		default:
			return ErrAccountBusy
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case s <- struct{}{}:
		return nil
	case <-t.C:
		return ErrAccountBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *accountLocks) release(accountID string) {
	<-a.slot(accountID)
}
