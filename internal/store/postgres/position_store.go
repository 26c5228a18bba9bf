package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soromarket/marketd/internal/domain"
)

// PositionStore implements domain.PositionStore over PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore using the client's connection pool.
func NewPositionStore(client *Client) *PositionStore {
	return &PositionStore{pool: client.Pool()}
}

// Upsert creates or replaces the full position record.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const q = `
		INSERT INTO positions (market_id, account, shares, claimed, updated_at)
		VALUES ($1, $2, $3::numeric[], $4, $5)
		ON CONFLICT (market_id, account) DO UPDATE SET
			shares = EXCLUDED.shares,
			claimed = EXCLUDED.claimed,
			updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q,
		p.MarketID, p.Account, numStrs(p.Shares), p.Claimed, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.MarketID, p.Account, err)
	}
	return nil
}

// Get loads the position of one account in one market. Accounts that never
// traded map to ErrNotFound.
func (s *PositionStore) Get(ctx context.Context, marketID, account string) (domain.Position, error) {
	const q = `
		SELECT market_id, account, shares::text[], claimed, updated_at
		FROM positions WHERE market_id = $1 AND account = $2`
	p, err := scanPosition(s.pool.QueryRow(ctx, q, marketID, account))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, account, domain.ErrNotFound)
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, account, err)
	}
	return p, nil
}

// ListByMarket returns every position in the market in account order.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	const q = `
		SELECT market_id, account, shares::text[], claimed, updated_at
		FROM positions WHERE market_id = $1 ORDER BY account`
	rows, err := s.pool.Query(ctx, q, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", marketID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list positions %s: %w", marketID, err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions %s: %w", marketID, err)
	}
	return positions, nil
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var (
		p      domain.Position
		shares []string
	)
	if err := row.Scan(&p.MarketID, &p.Account, &shares, &p.Claimed, &p.UpdatedAt); err != nil {
		return domain.Position{}, err
	}
	var err error
	if p.Shares, err = parseNums(shares); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
