package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soromarket/marketd/internal/domain"
)

// MarketStore implements domain.MarketStore over PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore using the client's connection pool.
func NewMarketStore(client *Client) *MarketStore {
	return &MarketStore{pool: client.Pool()}
}

const marketColumns = `
	id, description, curve, outcome_count, outcomes,
	liquidity_param::text, prices::text[], initial_reserve::text,
	asset, oracle, admin, status, outcome, resolved_at, created_at, updated_at`

// Create inserts a new market row. A duplicate id maps to ErrAlreadySetup.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const q = `
		INSERT INTO markets (
			id, description, curve, outcome_count, outcomes,
			liquidity_param, prices, initial_reserve,
			asset, oracle, admin, status, outcome, resolved_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7::numeric[], $8::numeric,
			$9, $10, $11, $12, $13, $14, $15, $16
		)`
	_, err := s.pool.Exec(ctx, q,
		m.ID, m.Description, string(m.Curve), m.OutcomeCount, m.Outcomes,
		numStr(m.LiquidityParam), numStrs(m.Prices), numStr(m.InitialReserve),
		m.Asset, m.Oracle, m.Admin, string(m.Status), m.Outcome,
		m.ResolvedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create market %s: %w", m.ID, domain.ErrAlreadySetup)
		}
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// Update replaces the mutable columns of an existing market.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const q = `
		UPDATE markets SET
			description = $2,
			liquidity_param = $3::numeric,
			prices = $4::numeric[],
			status = $5,
			outcome = $6,
			resolved_at = $7,
			updated_at = $8
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q,
		m.ID, m.Description,
		numStr(m.LiquidityParam), numStrs(m.Prices),
		string(m.Status), m.Outcome, m.ResolvedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID loads one market by id.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	q := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`
	m, err := scanMarket(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets in creation order.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	q := `SELECT ` + marketColumns + ` FROM markets ORDER BY created_at, id`
	args := []any{}
	if opts.Limit > 0 {
		q += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		q += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list markets: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                  domain.Market
		curve, status      string
		liquidity, reserve string
		prices             []string
	)
	err := row.Scan(
		&m.ID, &m.Description, &curve, &m.OutcomeCount, &m.Outcomes,
		&liquidity, &prices, &reserve,
		&m.Asset, &m.Oracle, &m.Admin, &status, &m.Outcome,
		&m.ResolvedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Curve = domain.CurveType(curve)
	m.Status = domain.MarketStatus(status)
	if m.LiquidityParam, err = parseNum(liquidity); err != nil {
		return domain.Market{}, err
	}
	if m.Prices, err = parseNums(prices); err != nil {
		return domain.Market{}, err
	}
	if m.InitialReserve, err = parseNum(reserve); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

var _ domain.MarketStore = (*MarketStore)(nil)
