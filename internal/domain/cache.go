package domain

import (
	"context"
	"time"
)

// MarketSnapshot is the serialized read-model of one market's current
// pricing state. Amount fields are decimal strings so 128-bit values survive
// JSON boundaries intact.
type MarketSnapshot struct {
	MarketID      string    `json:"market_id"`
	Status        string    `json:"status"`
	Outcome       int       `json:"outcome"`
	Reserves      []string  `json:"reserves"`
	Deposits      []string  `json:"deposits"`
	ShareSupply   []string  `json:"share_supply"`
	TotalVolume   string    `json:"total_volume"`
	Probabilities []string  `json:"probabilities"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuoteCache caches market snapshots for the read-only API surface so quote
// traffic does not hit the primary store.
type QuoteCache interface {
	Set(ctx context.Context, s MarketSnapshot) error
	Get(ctx context.Context, marketID string) (MarketSnapshot, error)
	Invalidate(ctx context.Context, marketID string) error
}

// LockManager serializes writers. Every state-changing market operation runs
// under the market's lock, which is what makes each operation an atomic unit
// against that market's state.
type LockManager interface {
	// Acquire obtains the lock for key or returns ErrLockHeld. The returned
	// function releases the lock and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes market events (trades, settlements, claims) to
// interested consumers such as the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter throttles requests per key over a sliding window. Allow counts
// the request when it is permitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
