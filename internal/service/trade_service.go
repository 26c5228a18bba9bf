package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/engine"
)

// TradeService executes trades and claims against live market state. Every
// state-changing call runs under the market's distributed lock and moves
// assets in the order the engine's commit discipline requires: buys debit
// the trader before persisting, sells and claims persist before crediting.
type TradeService struct {
	stores Stores
	assets domain.AssetLedger
	locks  domain.LockManager
	cache  domain.QuoteCache
	bus    domain.SignalBus
	escrow string
	logger *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
// escrow is the fixed ledger account that holds all market funds.
func NewTradeService(
	stores Stores,
	assets domain.AssetLedger,
	locks domain.LockManager,
	cache domain.QuoteCache,
	bus domain.SignalBus,
	escrow string,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		stores: stores,
		assets: assets,
		locks:  locks,
		cache:  cache,
		bus:    bus,
		escrow: escrow,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// TradeResult reports what one executed trade did.
type TradeResult struct {
	Trade    domain.Trade
	Pool     domain.Pool
	Position domain.Position
}

// Buy spends amount of the market's asset on outcome for account.
func (s *TradeService) Buy(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (TradeResult, error) {
	return s.execute(ctx, marketID, account, outcome, amount)
}

// Sell redeems shares of outcome held by account for the curve's payout.
func (s *TradeService) Sell(ctx context.Context, marketID, account string, outcome int, shares *big.Int) (TradeResult, error) {
	if shares == nil || shares.Sign() <= 0 {
		return TradeResult{}, fmt.Errorf("service: sell %s: %w", marketID, domain.ErrInvalidAmount)
	}
	return s.execute(ctx, marketID, account, outcome, new(big.Int).Neg(shares))
}

// Trade is the unified entry point: a positive amount buys, a negative
// amount sells the absolute value as a share count.
func (s *TradeService) Trade(ctx context.Context, marketID, account string, outcome int, signedAmount *big.Int) (TradeResult, error) {
	return s.execute(ctx, marketID, account, outcome, signedAmount)
}

func (s *TradeService) execute(ctx context.Context, marketID, account string, outcome int, signedAmount *big.Int) (TradeResult, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return TradeResult{}, fmt.Errorf("service: trade %s: %w", marketID, err)
	}
	defer unlock()

	market, pool, position, err := s.loadState(ctx, marketID, account)
	if err != nil {
		return TradeResult{}, fmt.Errorf("service: trade %s: %w", marketID, err)
	}

	st := engine.State{Market: market, Pool: pool.Clone(), Position: position.Clone()}
	shares, value, kind, err := engine.Trade(&st, outcome, signedAmount)
	if err != nil {
		return TradeResult{}, fmt.Errorf("service: trade %s: %w", marketID, err)
	}

	// Buys debit the trader before any state persists; a failed debit leaves
	// the market untouched. Sells persist first and credit last, so the
	// ledger never pays against unpersisted state.
	if kind == domain.TradeKindBuy {
		if err := s.assets.TransferFrom(ctx, market.Asset, s.escrow, account, s.escrow, value); err != nil {
			return TradeResult{}, fmt.Errorf("service: trade %s debit: %w", marketID, err)
		}
	}

	now := time.Now().UTC()
	st.Position.UpdatedAt = now
	if err := s.persistState(ctx, st, kind, market, account, value); err != nil {
		return TradeResult{}, err
	}

	if kind == domain.TradeKindSell {
		if err := s.assets.Transfer(ctx, market.Asset, s.escrow, account, value); err != nil {
			// State already persisted; the owed payout must be delivered.
			s.logger.ErrorContext(ctx, "sell payout transfer failed",
				slog.String("market_id", marketID),
				slog.String("account", account),
				slog.String("payout", value.String()),
				slog.String("error", err.Error()),
			)
			return TradeResult{}, fmt.Errorf("service: trade %s payout: %w", marketID, err)
		}
	}

	trade := domain.Trade{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Account:   account,
		Outcome:   outcome,
		Kind:      kind,
		Amount:    value,
		Shares:    shares,
		CreatedAt: now,
	}
	if err := s.stores.Trades.Insert(ctx, trade); err != nil {
		s.logger.ErrorContext(ctx, "trade record insert failed",
			slog.String("market_id", marketID),
			slog.String("trade_id", trade.ID),
			slog.String("error", err.Error()),
		)
	}

	refreshSnapshot(ctx, s.cache, s.logger, market, st.Pool)
	publishEvent(ctx, s.bus, s.logger, marketID, marketEvent{
		Type:     "market.trade",
		MarketID: marketID,
		Account:  account,
		Outcome:  &outcome,
		Kind:     string(kind),
		Amount:   value.String(),
		Shares:   shares.String(),
	})

	s.logger.InfoContext(ctx, "trade executed",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.String("kind", string(kind)),
		slog.Int("outcome", outcome),
		slog.String("amount", value.String()),
		slog.String("shares", shares.String()),
	)
	return TradeResult{Trade: trade, Pool: st.Pool, Position: st.Position}, nil
}

// ClaimResult reports what one claim did. Applied is false for the
// deliberate pre-resolution no-op.
type ClaimResult struct {
	Payout  *big.Int
	Applied bool
}

// Claim settles account's position. Before resolution it is a no-op; after
// resolution it pays the winnings once and marks the position claimed.
func (s *TradeService) Claim(ctx context.Context, marketID, account string) (ClaimResult, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("service: claim %s: %w", marketID, err)
	}
	defer unlock()

	market, pool, position, err := s.loadState(ctx, marketID, account)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("service: claim %s: %w", marketID, err)
	}

	st := engine.State{Market: market, Pool: pool.Clone(), Position: position.Clone()}
	payout, applied, err := engine.Claim(&st)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("service: claim %s: %w", marketID, err)
	}
	if !applied {
		return ClaimResult{Payout: payout, Applied: false}, nil
	}

	// Persist the zeroed position before crediting, so a crash between the
	// two can never double-pay.
	st.Position.UpdatedAt = time.Now().UTC()
	if err := s.stores.Positions.Upsert(ctx, st.Position); err != nil {
		return ClaimResult{}, fmt.Errorf("service: claim %s: %w", marketID, err)
	}

	if payout.Sign() > 0 {
		if err := s.assets.Transfer(ctx, market.Asset, s.escrow, account, payout); err != nil {
			s.logger.ErrorContext(ctx, "claim payout transfer failed",
				slog.String("market_id", marketID),
				slog.String("account", account),
				slog.String("payout", payout.String()),
				slog.String("error", err.Error()),
			)
			return ClaimResult{}, fmt.Errorf("service: claim %s payout: %w", marketID, err)
		}
	}

	publishEvent(ctx, s.bus, s.logger, marketID, marketEvent{
		Type:     "market.claim",
		MarketID: marketID,
		Account:  account,
		Payout:   payout.String(),
	})

	s.logger.InfoContext(ctx, "claim paid",
		slog.String("market_id", marketID),
		slog.String("account", account),
		slog.String("payout", payout.String()),
	)
	return ClaimResult{Payout: payout, Applied: true}, nil
}

// SettlementReport computes every unclaimed account's payout for a resolved
// market without mutating anything. All-or-nothing: one bad position fails
// the whole report.
func (s *TradeService) SettlementReport(ctx context.Context, marketID string) ([]engine.Payout, error) {
	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("service: settlement report %s: %w", marketID, err)
	}
	pool, err := s.stores.Pools.Get(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("service: settlement report %s: %w", marketID, err)
	}
	positions, err := s.stores.Positions.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("service: settlement report %s: %w", marketID, err)
	}
	report, err := engine.SettlementReport(market, pool, positions)
	if err != nil {
		return nil, fmt.Errorf("service: settlement report %s: %w", marketID, err)
	}
	return report, nil
}

// QuoteBuy answers "how many shares would amount buy right now".
func (s *TradeService) QuoteBuy(ctx context.Context, marketID string, outcome int, amount *big.Int) (domain.Quote, error) {
	market, pool, err := s.loadMarketAndPool(ctx, marketID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service: quote buy %s: %w", marketID, err)
	}
	shares, err := engine.QuoteBuy(market, pool, outcome, amount)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service: quote buy %s: %w", marketID, err)
	}
	return domain.Quote{
		MarketID: marketID,
		Outcome:  outcome,
		Kind:     domain.TradeKindBuy,
		Amount:   amount,
		Shares:   shares,
	}, nil
}

// QuoteSell answers "what would redeeming shares pay right now".
func (s *TradeService) QuoteSell(ctx context.Context, marketID string, outcome int, shares *big.Int) (domain.Quote, error) {
	market, pool, err := s.loadMarketAndPool(ctx, marketID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service: quote sell %s: %w", marketID, err)
	}
	payout, err := engine.QuoteSell(market, pool, outcome, shares)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("service: quote sell %s: %w", marketID, err)
	}
	return domain.Quote{
		MarketID: marketID,
		Outcome:  outcome,
		Kind:     domain.TradeKindSell,
		Amount:   payout,
		Shares:   shares,
	}, nil
}

// GetPosition loads account's position, returning an empty position for
// accounts that never traded.
func (s *TradeService) GetPosition(ctx context.Context, marketID, account string) (domain.Position, error) {
	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("service: get position %s: %w", marketID, err)
	}
	position, err := s.stores.Positions.Get(ctx, marketID, account)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewPosition(marketID, account, market.OutcomeCount), nil
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("service: get position %s: %w", marketID, err)
	}
	return position, nil
}

// ListTrades returns the market's trade history in execution order.
func (s *TradeService) ListTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	trades, err := s.stores.Trades.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("service: list trades %s: %w", marketID, err)
	}
	return trades, nil
}

func (s *TradeService) loadMarketAndPool(ctx context.Context, marketID string) (domain.Market, domain.Pool, error) {
	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, domain.Pool{}, err
	}
	pool, err := s.stores.Pools.Get(ctx, marketID)
	if err != nil {
		return domain.Market{}, domain.Pool{}, err
	}
	return market, pool, nil
}

func (s *TradeService) loadState(ctx context.Context, marketID, account string) (domain.Market, domain.Pool, domain.Position, error) {
	market, pool, err := s.loadMarketAndPool(ctx, marketID)
	if err != nil {
		return domain.Market{}, domain.Pool{}, domain.Position{}, err
	}
	position, err := s.stores.Positions.Get(ctx, marketID, account)
	if errors.Is(err, domain.ErrNotFound) {
		position = domain.NewPosition(marketID, account, market.OutcomeCount)
	} else if err != nil {
		return domain.Market{}, domain.Pool{}, domain.Position{}, err
	}
	return market, pool, position, nil
}

func (s *TradeService) persistState(ctx context.Context, st engine.State, kind domain.TradeKind, market domain.Market, account string, value *big.Int) error {
	if err := s.stores.Pools.Put(ctx, st.Pool); err != nil {
		if kind == domain.TradeKindBuy {
			// The debit already happened; surface loudly so the operator can
			// reconcile the ledger against the unpersisted pool.
			s.logger.ErrorContext(ctx, "pool persist failed after debit",
				slog.String("market_id", market.ID),
				slog.String("account", account),
				slog.String("amount", value.String()),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("service: trade %s persist pool: %w", market.ID, err)
	}
	if err := s.stores.Positions.Upsert(ctx, st.Position); err != nil {
		return fmt.Errorf("service: trade %s persist position: %w", market.ID, err)
	}
	return nil
}
