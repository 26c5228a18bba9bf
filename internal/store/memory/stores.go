package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/soromarket/marketd/internal/domain"
)

// MarketStore implements domain.MarketStore over a KV map.
type MarketStore struct {
	kv *KV
}

// NewMarketStore creates a MarketStore backed by the given map.
func NewMarketStore(kv *KV) *MarketStore {
	return &MarketStore{kv: kv}
}

// Create stores a new market. It fails with ErrAlreadySetup if the ID is
// already taken; setup is one-time.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	key := marketKey(m.ID)
	if _, ok := s.kv.Get(key); ok {
		return domain.ErrAlreadySetup
	}
	return s.put(key, m)
}

// Update replaces an existing market record.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	key := marketKey(m.ID)
	if _, ok := s.kv.Get(key); !ok {
		return domain.ErrNotFound
	}
	return s.put(key, m)
}

func (s *MarketStore) put(key string, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: marshal market %s: %w", m.ID, err)
	}
	s.kv.Set(key, data)
	return nil
}

// GetByID returns the market or ErrNotFound.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	data, ok := s.kv.Get(marketKey(id))
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("memory: unmarshal market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by ID with pagination.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	raw := s.kv.Scan("market:")
	markets := make([]domain.Market, 0, len(raw))
	for _, data := range raw {
		var m domain.Market
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("memory: unmarshal market: %w", err)
		}
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return paginate(markets, opts), nil
}

// Count reports the number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.kv.Scan("market:"))), nil
}

// PoolStore implements domain.PoolStore over a KV map.
type PoolStore struct {
	kv *KV
}

// NewPoolStore creates a PoolStore backed by the given map.
func NewPoolStore(kv *KV) *PoolStore {
	return &PoolStore{kv: kv}
}

// Put overwrites the market's pool in one write.
func (s *PoolStore) Put(ctx context.Context, p domain.Pool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("memory: marshal pool %s: %w", p.MarketID, err)
	}
	s.kv.Set(poolKey(p.MarketID), data)
	return nil
}

// Get returns the market's pool or ErrNotFound.
func (s *PoolStore) Get(ctx context.Context, marketID string) (domain.Pool, error) {
	data, ok := s.kv.Get(poolKey(marketID))
	if !ok {
		return domain.Pool{}, domain.ErrNotFound
	}
	var p domain.Pool
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Pool{}, fmt.Errorf("memory: unmarshal pool %s: %w", marketID, err)
	}
	return p, nil
}

// PositionStore implements domain.PositionStore over a KV map.
type PositionStore struct {
	kv *KV
}

// NewPositionStore creates a PositionStore backed by the given map.
func NewPositionStore(kv *KV) *PositionStore {
	return &PositionStore{kv: kv}
}

// Upsert creates or replaces the position record.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("memory: marshal position %s/%s: %w", p.MarketID, p.Account, err)
	}
	s.kv.Set(positionKey(p.MarketID, p.Account), data)
	return nil
}

// Get returns the account's position or ErrNotFound for accounts that never
// traded.
func (s *PositionStore) Get(ctx context.Context, marketID, account string) (domain.Position, error) {
	data, ok := s.kv.Get(positionKey(marketID, account))
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	var p domain.Position
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Position{}, fmt.Errorf("memory: unmarshal position %s/%s: %w", marketID, account, err)
	}
	return p, nil
}

// ListByMarket returns every position of the market ordered by account.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	raw := s.kv.Scan(positionPrefix(marketID))
	positions := make([]domain.Position, 0, len(raw))
	for _, data := range raw {
		var p domain.Position
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("memory: unmarshal position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// TradeStore implements domain.TradeStore over a KV map.
type TradeStore struct {
	kv  *KV
	seq atomic.Uint64
}

// NewTradeStore creates a TradeStore backed by the given map.
func NewTradeStore(kv *KV) *TradeStore {
	return &TradeStore{kv: kv}
}

// Insert appends a trade under a monotonically increasing sequence key so
// scans return fills in execution order.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("memory: marshal trade %s: %w", t.ID, err)
	}
	s.kv.Set(tradeKey(t.MarketID, s.seq.Add(1)), data)
	return nil
}

// ListByMarket returns the market's trades in execution order.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	raw := s.kv.Scan(tradePrefix(marketID))
	trades := make([]domain.Trade, 0, len(raw))
	for _, data := range raw {
		var t domain.Trade
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("memory: unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	return paginate(trades, opts), nil
}

// AuditStore implements domain.AuditStore over a KV map.
type AuditStore struct {
	kv  *KV
	seq atomic.Uint64
}

// NewAuditStore creates an AuditStore backed by the given map.
func NewAuditStore(kv *KV) *AuditStore {
	return &AuditStore{kv: kv}
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	seq := s.seq.Add(1)
	entry := domain.AuditEntry{
		ID:        int64(seq),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("memory: marshal audit entry: %w", err)
	}
	s.kv.Set(auditKey(seq), data)
	return nil
}

// List returns audit entries in append order.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	raw := s.kv.Scan(auditPrefix)
	entries := make([]domain.AuditEntry, 0, len(raw))
	for _, data := range raw {
		var e domain.AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("memory: unmarshal audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return paginate(entries, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface checks.
var (
	_ domain.MarketStore   = (*MarketStore)(nil)
	_ domain.PoolStore     = (*PoolStore)(nil)
	_ domain.PositionStore = (*PositionStore)(nil)
	_ domain.TradeStore    = (*TradeStore)(nil)
	_ domain.AuditStore    = (*AuditStore)(nil)
)
