// Package memory provides in-process implementations of the cache
// interfaces for development mode and tests: a mutex-based lock manager, a
// channel-fanout signal bus, and a map-backed snapshot cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/soromarket/marketd/internal/domain"
)

// LockManager implements domain.LockManager with an in-process held-key set.
// Like the Redis implementation it does not block: a held key fails fast
// with ErrLockHeld. The TTL is ignored; locks live until released.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]bool)}
}

// Acquire obtains the lock for key or returns domain.ErrLockHeld. The
// returned function releases the lock and is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			lm.mu.Lock()
			delete(lm.held, key)
			lm.mu.Unlock()
		})
	}
	return unlock, nil
}

// SignalBus implements domain.SignalBus with in-process channel fanout.
// Subscriptions match exact channel names, plus trailing-star patterns like
// "market:*".
type SignalBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every subscriber of channel. Slow subscribers
// drop messages instead of blocking the publisher.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for name, chans := range sb.subs {
		if !channelMatches(name, channel) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// channelMatches reports whether a subscription name covers channel. A name
// ending in '*' matches any channel with that prefix.
func channelMatches(name, channel string) bool {
	if name == channel {
		return true
	}
	if n := len(name); n > 0 && name[n-1] == '*' {
		prefix := name[:n-1]
		return len(channel) >= len(prefix) && channel[:len(prefix)] == prefix
	}
	return false
}

// Subscribe returns a channel of payloads published to channel. The
// subscription ends when the context is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		subs := sb.subs[channel]
		for i, c := range subs {
			if c == ch {
				sb.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		sb.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// QuoteCache implements domain.QuoteCache over a map.
type QuoteCache struct {
	mu    sync.RWMutex
	snaps map[string]domain.MarketSnapshot
}

// NewQuoteCache creates an empty QuoteCache.
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{snaps: make(map[string]domain.MarketSnapshot)}
}

// Set stores a market snapshot.
func (qc *QuoteCache) Set(ctx context.Context, s domain.MarketSnapshot) error {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.snaps[s.MarketID] = s
	return nil
}

// Get retrieves a market snapshot or domain.ErrNotFound.
func (qc *QuoteCache) Get(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	s, ok := qc.snaps[marketID]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

// Invalidate removes a market's snapshot.
func (qc *QuoteCache) Invalidate(ctx context.Context, marketID string) error {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	delete(qc.snaps, marketID)
	return nil
}

var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.SignalBus   = (*SignalBus)(nil)
	_ domain.QuoteCache  = (*QuoteCache)(nil)
)
