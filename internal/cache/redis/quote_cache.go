package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soromarket/marketd/internal/domain"
)

const snapshotTTL = 5 * time.Minute

// QuoteCache implements domain.QuoteCache using JSON-serialized market
// snapshots under string keys. Writers refresh the snapshot after every
// state-changing operation so quote reads can be served without touching
// the primary store.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func snapshotKey(marketID string) string {
	return "snapshot:" + marketID
}

// Set stores a market snapshot with a 5-minute TTL.
func (qc *QuoteCache) Set(ctx context.Context, s domain.MarketSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", s.MarketID, err)
	}
	if err := qc.rdb.Set(ctx, snapshotKey(s.MarketID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", s.MarketID, err)
	}
	return nil
}

// Get retrieves a market snapshot. It returns domain.ErrNotFound when no
// snapshot is cached.
func (qc *QuoteCache) Get(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	data, err := qc.rdb.Get(ctx, snapshotKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", marketID, err)
	}

	var s domain.MarketSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", marketID, err)
	}
	return s, nil
}

// Invalidate removes a market's snapshot from the cache.
func (qc *QuoteCache) Invalidate(ctx context.Context, marketID string) error {
	if err := qc.rdb.Del(ctx, snapshotKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot %s: %w", marketID, err)
	}
	return nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
