// Package id mints the identifiers used for orders, fills, trades, and
// journal events. They are ULIDs, so records sort by creation time in
// SQLite indexes without a separate sequence column.
package id

import (
	cryptorand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(cryptorand.Reader, 0)
)

// New returns a ULID for the current time. IDs minted within the same
// millisecond stay in mint order.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}
