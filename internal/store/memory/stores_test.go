package memory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func testMarket(id string) domain.Market {
	return domain.Market{
		ID:             id,
		Description:    "desc",
		Curve:          domain.CurveCPMM,
		OutcomeCount:   2,
		Outcomes:       []string{"Yes", "No"},
		InitialReserve: big.NewInt(1000),
		Asset:          "usdc",
		Oracle:         "oracle",
		Admin:          "admin",
		Status:         domain.MarketStatusLive,
		Outcome:        domain.OutcomeUndecided,
		CreatedAt:      time.Unix(1700000000, 0).UTC(),
		UpdatedAt:      time.Unix(1700000000, 0).UTC(),
	}
}

func TestMarketStoreCreateOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore(NewKV())

	require.NoError(t, s.Create(ctx, testMarket("m1")))
	assert.ErrorIs(t, s.Create(ctx, testMarket("m1")), domain.ErrAlreadySetup)

	got, err := s.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.InitialReserve.Int64())
	assert.Equal(t, domain.OutcomeUndecided, got.Outcome)

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketStoreUpdateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore(NewKV())

	assert.ErrorIs(t, s.Update(ctx, testMarket("m1")), domain.ErrNotFound)

	require.NoError(t, s.Create(ctx, testMarket("m1")))
	require.NoError(t, s.Create(ctx, testMarket("m2")))

	m := testMarket("m1")
	m.Status = domain.MarketStatusResolved
	m.Outcome = 0
	require.NoError(t, s.Update(ctx, m))

	got, err := s.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusResolved, got.Status)

	list, err := s.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", list[0].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPositionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	s := NewPositionStore(kv)

	_, err := s.Get(ctx, "m1", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pos := domain.NewPosition("m1", "alice", 2)
	pos.Shares[0] = big.NewInt(42)
	require.NoError(t, s.Upsert(ctx, pos))

	other := domain.NewPosition("m1", "bob", 2)
	require.NoError(t, s.Upsert(ctx, other))
	// A different market's positions must not leak into the scan.
	require.NoError(t, s.Upsert(ctx, domain.NewPosition("m2", "carol", 2)))

	got, err := s.Get(ctx, "m1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Shares[0].Int64())
	assert.False(t, got.Claimed)

	all, err := s.ListByMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPoolStore(t *testing.T) {
	ctx := context.Background()
	s := NewPoolStore(NewKV())

	_, err := s.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := domain.NewPool("m1", 2)
	p.Reserves[0] = big.NewInt(1100)
	p.Reserves[1] = big.NewInt(909)
	p.TotalVolume = big.NewInt(100)
	require.NoError(t, s.Put(ctx, p))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), got.Reserves[0].Int64())
	assert.Equal(t, int64(909), got.Reserves[1].Int64())
	assert.Equal(t, int64(100), got.TotalVolume.Int64())
}

func TestTradeStoreOrder(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore(NewKV())

	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.Insert(ctx, domain.Trade{
			ID:       id,
			MarketID: "m1",
			Account:  "alice",
			Outcome:  i % 2,
			Kind:     domain.TradeKindBuy,
			Amount:   big.NewInt(int64(100 + i)),
			Shares:   big.NewInt(int64(90 + i)),
		}))
	}

	trades, err := s.ListByMarket(ctx, "m1", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, "t3", trades[2].ID)
}

func TestAuditStoreAppend(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(NewKV())

	require.NoError(t, s.Log(ctx, "market_settled", map[string]any{"market": "m1", "outcome": 0}))
	require.NoError(t, s.Log(ctx, "market_archived", map[string]any{"market": "m1"}))

	entries, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "market_settled", entries[0].Event)
	assert.Equal(t, "m1", entries[0].Detail["market"])
}
