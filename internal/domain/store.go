package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market records.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PoolStore persists per-market pool balances. Put overwrites the whole pool
// atomically; partial writes are never observable.
type PoolStore interface {
	Put(ctx context.Context, p Pool) error
	Get(ctx context.Context, marketID string) (Pool, error)
}

// PositionStore persists per-(market, account) positions. Get returns
// ErrNotFound for accounts that never traded; Upsert creates or replaces
// the full record.
type PositionStore interface {
	Upsert(ctx context.Context, p Position) error
	Get(ctx context.Context, marketID, account string) (Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
}

// TradeStore persists executed trades.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Trade, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of privileged operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
