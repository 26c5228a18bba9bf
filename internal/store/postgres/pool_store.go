package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soromarket/marketd/internal/domain"
)

// PoolStore implements domain.PoolStore over PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a PoolStore using the client's connection pool.
func NewPoolStore(client *Client) *PoolStore {
	return &PoolStore{pool: client.Pool()}
}

// Put upserts the whole pool row in one statement.
func (s *PoolStore) Put(ctx context.Context, p domain.Pool) error {
	const q = `
		INSERT INTO pools (market_id, reserves, deposits, share_supply, total_volume, updated_at)
		VALUES ($1, $2::numeric[], $3::numeric[], $4::numeric[], $5::numeric, $6)
		ON CONFLICT (market_id) DO UPDATE SET
			reserves = EXCLUDED.reserves,
			deposits = EXCLUDED.deposits,
			share_supply = EXCLUDED.share_supply,
			total_volume = EXCLUDED.total_volume,
			updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q,
		p.MarketID,
		numStrs(p.Reserves), numStrs(p.Deposits), numStrs(p.ShareSupply),
		numStr(p.TotalVolume), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: put pool %s: %w", p.MarketID, err)
	}
	return nil
}

// Get loads the pool for one market.
func (s *PoolStore) Get(ctx context.Context, marketID string) (domain.Pool, error) {
	const q = `
		SELECT market_id, reserves::text[], deposits::text[], share_supply::text[], total_volume::text
		FROM pools WHERE market_id = $1`

	var (
		p                            domain.Pool
		reserves, deposits, supplies []string
		volume                       string
	)
	err := s.pool.QueryRow(ctx, q, marketID).Scan(
		&p.MarketID, &reserves, &deposits, &supplies, &volume,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", marketID, domain.ErrNotFound)
		}
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", marketID, err)
	}

	if p.Reserves, err = parseNums(reserves); err != nil {
		return domain.Pool{}, err
	}
	if p.Deposits, err = parseNums(deposits); err != nil {
		return domain.Pool{}, err
	}
	if p.ShareSupply, err = parseNums(supplies); err != nil {
		return domain.Pool{}, err
	}
	if p.TotalVolume, err = parseNum(volume); err != nil {
		return domain.Pool{}, err
	}
	return p, nil
}

var _ domain.PoolStore = (*PoolStore)(nil)
