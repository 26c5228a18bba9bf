package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/asset"
	cachemem "github.com/soromarket/marketd/internal/cache/memory"
	"github.com/soromarket/marketd/internal/domain"
	storemem "github.com/soromarket/marketd/internal/store/memory"
)

const escrow = "escrow"

type fixture struct {
	markets *MarketService
	trades  *TradeService
	ledger  *asset.Ledger
	stores  Stores
}

// openAuthorizer trusts every caller; signature verification gets its own
// coverage in the auth package.
type openAuthorizer struct{}

func (openAuthorizer) Verify(ctx context.Context, account string, payload, sig []byte) error {
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kv := storemem.NewKV()
	stores := Stores{
		Markets:   storemem.NewMarketStore(kv),
		Pools:     storemem.NewPoolStore(kv),
		Positions: storemem.NewPositionStore(kv),
		Trades:    storemem.NewTradeStore(kv),
		Audit:     storemem.NewAuditStore(kv),
	}
	ledger := asset.NewLedger()
	locks := cachemem.NewLockManager()
	cache := cachemem.NewQuoteCache()
	bus := cachemem.NewSignalBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		markets: NewMarketService(stores, ledger, locks, cache, bus, openAuthorizer{}, nil, escrow, logger),
		trades:  NewTradeService(stores, ledger, locks, cache, bus, escrow, logger),
		ledger:  ledger,
		stores:  stores,
	}
}

func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	f.ledger.Mint("usd", account, big.NewInt(amount))
	// Unlimited-style allowance so balance, not allowance, is the binding
	// constraint in these tests.
	f.ledger.Approve("usd", account, escrow, big.NewInt(1<<40))
}

func (f *fixture) setupCPMM(t *testing.T, reserve int64) domain.Market {
	t.Helper()
	f.fund(t, "creator", 2*reserve)

	m, err := f.markets.Setup(context.Background(), SetupRequest{
		Description:    "binary cpmm",
		Curve:          domain.CurveCPMM,
		Outcomes:       []string{"Yes", "No"},
		Asset:          "usd",
		Oracle:         "oracle",
		Admin:          "admin",
		Creator:        "creator",
		InitialReserve: big.NewInt(reserve),
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) setupParimutuel(t *testing.T) domain.Market {
	t.Helper()
	m, err := f.markets.Setup(context.Background(), SetupRequest{
		Description: "three way",
		Curve:       domain.CurveParimutuel,
		Outcomes:    []string{"Home", "Draw", "Away"},
		Asset:       "usd",
		Oracle:      "oracle",
		Admin:       "admin",
		Creator:     "creator",
		Prices: []*big.Int{
			big.NewInt(450_000), big.NewInt(290_000), big.NewInt(250_000),
		},
	})
	require.NoError(t, err)
	return m
}

func TestSetupCPMMCollectsSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.setupCPMM(t, 1000)
	assert.Equal(t, domain.MarketStatusLive, m.Status)

	// The creator paid 2 * reserve into escrow.
	bal, err := f.ledger.BalanceOf(ctx, "usd", "creator")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Int64())

	esc, err := f.ledger.BalanceOf(ctx, "usd", escrow)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), esc.Int64())

	pool, err := f.markets.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pool.Reserves[0].Int64())
	assert.Equal(t, int64(1000), pool.Reserves[1].Int64())
}

func TestSetupWithoutFundsFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.markets.Setup(context.Background(), SetupRequest{
		Description:    "unfunded",
		Curve:          domain.CurveCPMM,
		Outcomes:       []string{"Yes", "No"},
		Asset:          "usd",
		Oracle:         "oracle",
		Admin:          "admin",
		Creator:        "broke",
		InitialReserve: big.NewInt(1000),
	})
	assert.ErrorIs(t, err, domain.ErrAuthDenied)
}

func TestBuyMovesAssetsBeforeState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 500)

	res, err := f.trades.Buy(ctx, m.ID, "alice", 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindBuy, res.Trade.Kind)
	assert.Equal(t, int64(91), res.Trade.Shares.Int64())

	// Trader paid, escrow collected.
	bal, err := f.ledger.BalanceOf(ctx, "usd", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal.Int64())

	// Pool state advanced.
	pool, err := f.markets.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1100), pool.Reserves[0].Int64())
	assert.Equal(t, int64(909), pool.Reserves[1].Int64())

	// Position credited.
	pos, err := f.trades.GetPosition(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(91), pos.Shares[0].Int64())
}

func TestBuyInsufficientFundsLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 50)

	_, err := f.trades.Buy(ctx, m.ID, "alice", 0, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	pool, err := f.markets.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pool.Reserves[0].Int64())

	pos, err := f.trades.GetPosition(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.True(t, pos.Empty())
}

func TestSellCreditsTrader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 500)

	buy, err := f.trades.Buy(ctx, m.ID, "alice", 0, big.NewInt(100))
	require.NoError(t, err)

	sell, err := f.trades.Sell(ctx, m.ID, "alice", 0, buy.Trade.Shares)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindSell, sell.Trade.Kind)

	// The round trip pays out within truncation error of the buy amount.
	bal, err := f.ledger.BalanceOf(ctx, "usd", "alice")
	require.NoError(t, err)
	diff := bal.Int64() - 500
	assert.LessOrEqual(t, diff, int64(2))
	assert.GreaterOrEqual(t, diff, int64(-2))

	pos, err := f.trades.GetPosition(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.True(t, pos.Empty())
}

func TestUnifiedTradeSignedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 500)

	buy, err := f.trades.Trade(ctx, m.ID, "alice", 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindBuy, buy.Trade.Kind)

	sell, err := f.trades.Trade(ctx, m.ID, "alice", 0, new(big.Int).Neg(buy.Trade.Shares))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindSell, sell.Trade.Kind)

	_, err = f.trades.Trade(ctx, m.ID, "alice", 0, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSettleOracleOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)

	_, err := f.markets.Settle(ctx, m.ID, 0, "impostor", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	settled, err := f.markets.Settle(ctx, m.ID, 0, "oracle", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, settled.Status)
	assert.Equal(t, 0, settled.Outcome)

	// Settlement is terminal.
	_, err = f.markets.Settle(ctx, m.ID, 1, "oracle", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)

	// Trading stops.
	f.fund(t, "late", 100)
	_, err = f.trades.Buy(ctx, m.ID, "late", 0, big.NewInt(50))
	assert.ErrorIs(t, err, domain.ErrMarketNotLive)
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupParimutuel(t)
	f.fund(t, "winner", 600)
	f.fund(t, "loser", 200)

	_, err := f.trades.Buy(ctx, m.ID, "winner", 0, big.NewInt(600))
	require.NoError(t, err)
	_, err = f.trades.Buy(ctx, m.ID, "loser", 1, big.NewInt(200))
	require.NoError(t, err)

	// Claim before resolution is a harmless no-op.
	early, err := f.trades.Claim(ctx, m.ID, "winner")
	require.NoError(t, err)
	assert.False(t, early.Applied)

	_, err = f.markets.Settle(ctx, m.ID, 0, "oracle", nil)
	require.NoError(t, err)

	// Winner gets stake plus the losing pool.
	res, err := f.trades.Claim(ctx, m.ID, "winner")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(800), res.Payout.Int64())

	bal, err := f.ledger.BalanceOf(ctx, "usd", "winner")
	require.NoError(t, err)
	assert.Equal(t, int64(800), bal.Int64())

	// Second claim fails.
	_, err = f.trades.Claim(ctx, m.ID, "winner")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Loser's claim applies with zero payout.
	lost, err := f.trades.Claim(ctx, m.ID, "loser")
	require.NoError(t, err)
	assert.True(t, lost.Applied)
	assert.Equal(t, int64(0), lost.Payout.Int64())
}

func TestSettlementReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupParimutuel(t)
	f.fund(t, "a", 300)
	f.fund(t, "b", 100)

	_, err := f.trades.Buy(ctx, m.ID, "a", 0, big.NewInt(300))
	require.NoError(t, err)
	_, err = f.trades.Buy(ctx, m.ID, "b", 1, big.NewInt(100))
	require.NoError(t, err)

	// Unresolved markets produce no report.
	_, err = f.trades.SettlementReport(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrMarketNotSettled)

	_, err = f.markets.Settle(ctx, m.ID, 0, "oracle", nil)
	require.NoError(t, err)

	report, err := f.trades.SettlementReport(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, report, 2)

	total := new(big.Int)
	for _, p := range report {
		total.Add(total, p.Amount)
	}
	assert.Equal(t, int64(400), total.Int64())
}

func TestUpdateParamsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupParimutuel(t)

	newPrices := []*big.Int{
		big.NewInt(500_000), big.NewInt(250_000), big.NewInt(240_000),
	}

	_, err := f.markets.UpdateParams(ctx, m.ID, newPrices, nil, "impostor", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, err := f.markets.UpdateParams(ctx, m.ID, newPrices, nil, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), updated.Prices[0].Int64())

	// Parameter updates stop at resolution.
	_, err = f.markets.Settle(ctx, m.ID, 0, "oracle", nil)
	require.NoError(t, err)
	_, err = f.markets.UpdateParams(ctx, m.ID, newPrices, nil, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrMarketNotLive)
}

func TestArchiveLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)

	// Live markets cannot be archived.
	_, err := f.markets.Archive(ctx, m.ID, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrMarketNotSettled)

	_, err = f.markets.Settle(ctx, m.ID, 1, "oracle", nil)
	require.NoError(t, err)

	_, err = f.markets.Archive(ctx, m.ID, "impostor", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	archived, err := f.markets.Archive(ctx, m.ID, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusArchived, archived.Status)

	_, err = f.markets.Archive(ctx, m.ID, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyArchived)

	// Claims keep working on archived markets.
	res, err := f.trades.Claim(ctx, m.ID, "creator")
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestSnapshotRefreshedByTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 100)

	_, err := f.trades.Buy(ctx, m.ID, "alice", 0, big.NewInt(100))
	require.NoError(t, err)

	snap, err := f.markets.Snapshot(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, snap.MarketID)
	assert.Equal(t, "1100", snap.Reserves[0])
	assert.Equal(t, "909", snap.Reserves[1])
	assert.Len(t, snap.Probabilities, 2)
}

func TestQuotesDoNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)

	q, err := f.trades.QuoteBuy(ctx, m.ID, 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(91), q.Shares.Int64())

	pool, err := f.markets.GetPool(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pool.Reserves[0].Int64())
}

func TestTradeHistoryRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)
	f.fund(t, "alice", 300)

	_, err := f.trades.Buy(ctx, m.ID, "alice", 0, big.NewInt(100))
	require.NoError(t, err)
	_, err = f.trades.Buy(ctx, m.ID, "alice", 1, big.NewInt(50))
	require.NoError(t, err)

	trades, err := f.trades.ListTrades(ctx, m.ID, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(100), trades[0].Amount.Int64())
	assert.Equal(t, int64(50), trades[1].Amount.Int64())
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.setupCPMM(t, 1000)

	_, err := f.markets.Settle(ctx, m.ID, 0, "oracle", nil)
	require.NoError(t, err)

	entries, err := f.stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "market.setup", entries[0].Event)
	assert.Equal(t, "market.settle", entries[1].Event)
}
