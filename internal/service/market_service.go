// Package service orchestrates market operations: it serializes writers per
// market, runs the pricing engine on cloned state, moves assets on the
// external ledger in the order the engine requires, and persists results.
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

// lockTTL bounds how long a crashed writer can block a market.
const lockTTL = 10 * time.Second

// Stores bundles the persistence interfaces every service needs.
type Stores struct {
	Markets   domain.MarketStore
	Pools     domain.PoolStore
	Positions domain.PositionStore
	Trades    domain.TradeStore
	Audit     domain.AuditStore
}

// MarketService owns the market lifecycle: setup, parameter updates,
// settlement, archival, and the read-only surface.
type MarketService struct {
	stores   Stores
	assets   domain.AssetLedger
	locks    domain.LockManager
	cache    domain.QuoteCache
	bus      domain.SignalBus
	authz    domain.Authorizer
	exporter domain.ArchiveExporter // nil disables export on archive
	escrow   string
	logger   *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
// escrow is the fixed ledger account that holds all market funds; traders
// grant it an allowance before buying. exporter may be nil when no blob
// storage is configured.
func NewMarketService(
	stores Stores,
	assets domain.AssetLedger,
	locks domain.LockManager,
	cache domain.QuoteCache,
	bus domain.SignalBus,
	authz domain.Authorizer,
	exporter domain.ArchiveExporter,
	escrow string,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		stores:   stores,
		assets:   assets,
		locks:    locks,
		cache:    cache,
		bus:      bus,
		authz:    authz,
		exporter: exporter,
		escrow:   escrow,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// SetupRequest carries everything needed to create one market. Creator funds
// the CPMM seed; for other curves no transfer happens at setup.
type SetupRequest struct {
	Description string
	Curve       domain.CurveType
	Outcomes    []string
	Asset       string
	Oracle      string
	Admin       string
	Creator     string

	LiquidityParam *big.Int
	Prices         []*big.Int
	InitialReserve *big.Int
}

// Setup creates a live market with a fresh ID, collects the CPMM seed from
// the creator, and persists the market and its pool.
func (s *MarketService) Setup(ctx context.Context, req SetupRequest) (domain.Market, error) {
	now := time.Now().UTC()
	market, pool, err := engine.NewMarket(engine.SetupParams{
		ID:             uuid.New().String(),
		Description:    req.Description,
		Curve:          req.Curve,
		Outcomes:       req.Outcomes,
		Asset:          req.Asset,
		Oracle:         req.Oracle,
		Admin:          req.Admin,
		LiquidityParam: req.LiquidityParam,
		Prices:         req.Prices,
		InitialReserve: req.InitialReserve,
	}, now)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: setup: %w", err)
	}

	// Collect the seed before the market becomes visible. The ledger debit
	// is atomic, so a failed collection leaves nothing to roll back.
	seed, err := engine.SeedAmount(market)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: setup: %w", err)
	}
	if seed.Sign() > 0 {
		if err := s.assets.TransferFrom(ctx, market.Asset, s.escrow, req.Creator, s.escrow, seed); err != nil {
			return domain.Market{}, fmt.Errorf("service: setup seed transfer: %w", err)
		}
	}

	if err := s.stores.Markets.Create(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("service: setup: %w", err)
	}
	if err := s.stores.Pools.Put(ctx, pool); err != nil {
		return domain.Market{}, fmt.Errorf("service: setup pool: %w", err)
	}

	s.auditLog(ctx, "market.setup", map[string]any{
		"market_id": market.ID,
		"curve":     string(market.Curve),
		"creator":   req.Creator,
		"seed":      seed.String(),
	})
	s.refreshSnapshot(ctx, market, pool)
	s.publishEvent(ctx, market.ID, marketEvent{
		Type:     "market.created",
		MarketID: market.ID,
	})

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", market.ID),
		slog.String("curve", string(market.Curve)),
	)
	return market, nil
}

// Settle reports the winning outcome. Only the market's oracle may settle,
// proven by a signature over the canonical settle payload. Settlement is
// terminal and happens exactly once.
func (s *MarketService) Settle(ctx context.Context, marketID string, outcome int, caller string, sig []byte) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: settle %s: %w", marketID, err)
	}
	defer unlock()

	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: settle %s: %w", marketID, err)
	}

	if caller != market.Oracle {
		return domain.Market{}, fmt.Errorf("service: settle %s: caller is not the oracle: %w", marketID, domain.ErrUnauthorized)
	}
	if err := s.authz.Verify(ctx, caller, settlePayload(marketID, outcome), sig); err != nil {
		return domain.Market{}, fmt.Errorf("service: settle %s: %w", marketID, err)
	}

	if err := engine.Settle(&market, outcome, time.Now().UTC()); err != nil {
		return domain.Market{}, fmt.Errorf("service: settle %s: %w", marketID, err)
	}
	if err := s.stores.Markets.Update(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("service: settle %s: %w", marketID, err)
	}

	s.auditLog(ctx, "market.settle", map[string]any{
		"market_id": marketID,
		"outcome":   outcome,
		"oracle":    caller,
	})
	if pool, err := s.stores.Pools.Get(ctx, marketID); err == nil {
		s.refreshSnapshot(ctx, market, pool)
	}
	s.publishEvent(ctx, marketID, marketEvent{
		Type:     "market.settled",
		MarketID: marketID,
		Outcome:  &outcome,
	})

	s.logger.InfoContext(ctx, "market settled",
		slog.String("market_id", marketID),
		slog.Int("outcome", outcome),
	)
	return market, nil
}

// UpdateParams applies an admin update of the mutable curve parameters
// (parimutuel odds, weighted liquidity) to a live market.
func (s *MarketService) UpdateParams(ctx context.Context, marketID string, prices []*big.Int, liquidity *big.Int, caller string, sig []byte) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: update params %s: %w", marketID, err)
	}
	defer unlock()

	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: update params %s: %w", marketID, err)
	}

	if caller != market.Admin {
		return domain.Market{}, fmt.Errorf("service: update params %s: caller is not the admin: %w", marketID, domain.ErrUnauthorized)
	}
	if err := s.authz.Verify(ctx, caller, paramsPayload(marketID, prices, liquidity), sig); err != nil {
		return domain.Market{}, fmt.Errorf("service: update params %s: %w", marketID, err)
	}

	if err := engine.UpdateParams(&market, prices, liquidity, time.Now().UTC()); err != nil {
		return domain.Market{}, fmt.Errorf("service: update params %s: %w", marketID, err)
	}
	if err := s.stores.Markets.Update(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("service: update params %s: %w", marketID, err)
	}

	s.auditLog(ctx, "market.update_params", map[string]any{
		"market_id": marketID,
		"admin":     caller,
	})
	s.publishEvent(ctx, marketID, marketEvent{
		Type:     "market.params_updated",
		MarketID: marketID,
	})
	return market, nil
}

// Archive moves a resolved market to archived status and exports its full
// record (market, pool, positions, trades) to blob storage when an exporter
// is configured. Only the market's admin may archive.
func (s *MarketService) Archive(ctx context.Context, marketID string, caller string, sig []byte) (domain.Market, error) {
	unlock, err := s.locks.Acquire(ctx, marketLockKey(marketID), lockTTL)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
	}
	defer unlock()

	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
	}

	if caller != market.Admin {
		return domain.Market{}, fmt.Errorf("service: archive %s: caller is not the admin: %w", marketID, domain.ErrUnauthorized)
	}
	if err := s.authz.Verify(ctx, caller, archivePayload(marketID), sig); err != nil {
		return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
	}

	if err := engine.Archive(&market, time.Now().UTC()); err != nil {
		return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
	}
	if err := s.stores.Markets.Update(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
	}

	exportPath := ""
	if s.exporter != nil {
		pool, err := s.stores.Pools.Get(ctx, marketID)
		if err != nil {
			return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
		}
		positions, err := s.stores.Positions.ListByMarket(ctx, marketID)
		if err != nil {
			return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
		}
		trades, err := s.stores.Trades.ListByMarket(ctx, marketID, domain.ListOpts{})
		if err != nil {
			return domain.Market{}, fmt.Errorf("service: archive %s: %w", marketID, err)
		}
		exportPath, err = s.exporter.Export(ctx, market, pool, positions, trades)
		if err != nil {
			// The status change already persisted; the export can be retried
			// out of band, so log and continue.
			s.logger.ErrorContext(ctx, "archive export failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
			exportPath = ""
		}
	}

	s.auditLog(ctx, "market.archive", map[string]any{
		"market_id": marketID,
		"admin":     caller,
		"export":    exportPath,
	})
	s.cacheInvalidate(ctx, marketID)
	s.publishEvent(ctx, marketID, marketEvent{
		Type:     "market.archived",
		MarketID: marketID,
	})

	s.logger.InfoContext(ctx, "market archived",
		slog.String("market_id", marketID),
		slog.String("export", exportPath),
	)
	return market, nil
}

// GetMarket loads one market.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	m, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("service: get market %s: %w", marketID, err)
	}
	return m, nil
}

// ListMarkets returns markets in creation order plus the total count.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error) {
	markets, err := s.stores.Markets.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("service: list markets: %w", err)
	}
	count, err := s.stores.Markets.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("service: list markets: %w", err)
	}
	return markets, count, nil
}

// GetPool loads the pool state of one market.
func (s *MarketService) GetPool(ctx context.Context, marketID string) (domain.Pool, error) {
	p, err := s.stores.Pools.Get(ctx, marketID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("service: get pool %s: %w", marketID, err)
	}
	return p, nil
}

// Probabilities reports the market's current per-outcome probabilities.
func (s *MarketService) Probabilities(ctx context.Context, marketID string) ([]*big.Int, error) {
	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("service: probabilities %s: %w", marketID, err)
	}
	pool, err := s.stores.Pools.Get(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("service: probabilities %s: %w", marketID, err)
	}
	probs, err := engine.Probabilities(market, pool)
	if err != nil {
		return nil, fmt.Errorf("service: probabilities %s: %w", marketID, err)
	}
	return probs, nil
}

// Snapshot returns the cached read-model of one market, falling back to the
// primary store (and refilling the cache) on a miss.
func (s *MarketService) Snapshot(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	if snap, err := s.cache.Get(ctx, marketID); err == nil {
		return snap, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "snapshot cache read failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	market, err := s.stores.Markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("service: snapshot %s: %w", marketID, err)
	}
	pool, err := s.stores.Pools.Get(ctx, marketID)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("service: snapshot %s: %w", marketID, err)
	}

	snap := buildSnapshot(market, pool)
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache write failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
	return snap, nil
}

func (s *MarketService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.stores.Audit.Log(ctx, event, detail); err != nil {
		s.logger.ErrorContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) refreshSnapshot(ctx context.Context, m domain.Market, p domain.Pool) {
	refreshSnapshot(ctx, s.cache, s.logger, m, p)
}

func (s *MarketService) cacheInvalidate(ctx context.Context, marketID string) {
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "snapshot invalidate failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) publishEvent(ctx context.Context, marketID string, ev marketEvent) {
	publishEvent(ctx, s.bus, s.logger, marketID, ev)
}
