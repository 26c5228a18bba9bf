package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soromarket/marketd/internal/domain"
)

// TradeStore implements domain.TradeStore over PostgreSQL. Rows carry a
// serial sequence so listing returns fills in execution order.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore using the client's connection pool.
func NewTradeStore(client *Client) *TradeStore {
	return &TradeStore{pool: client.Pool()}
}

// Insert appends one executed trade.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	const q = `
		INSERT INTO trades (id, market_id, account, outcome, kind, amount, shares, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8)`
	_, err := s.pool.Exec(ctx, q,
		t.ID, t.MarketID, t.Account, t.Outcome, string(t.Kind),
		numStr(t.Amount), numStr(t.Shares), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListByMarket returns the market's trades in execution order.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	q := `
		SELECT id, market_id, account, outcome, kind, amount::text, shares::text, created_at
		FROM trades WHERE market_id = $1 ORDER BY seq`
	args := []any{marketID}
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
		return nil, fmt.Errorf("postgres: list trades %s: %w", marketID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t              domain.Trade
			kind           string
			amount, shares string
		)
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Account, &t.Outcome, &kind, &amount, &shares, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: list trades %s: %w", marketID, err)
		}
		t.Kind = domain.TradeKind(kind)
		if t.Amount, err = parseNum(amount); err != nil {
			return nil, err
		}
		if t.Shares, err = parseNum(shares); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", marketID, err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
