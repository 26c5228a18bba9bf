package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func newWeightedState(t *testing.T, liquidity int64) *State {
	t.Helper()
	m, pool, err := NewMarket(SetupParams{
		ID:             "mkt-w",
		Description:    "weighted market",
		Curve:          domain.CurveWeighted,
		Outcomes:       []string{"Yes", "No"},
		Asset:          "usdc",
		Oracle:         "oracle",
		Admin:          "admin",
		LiquidityParam: big.NewInt(liquidity),
	}, time.Unix(1700000000, 0))
	require.NoError(t, err)
	return &State{
		Market:   m,
		Pool:     pool,
		Position: domain.NewPosition(m.ID, "alice", 2),
	}
}

func TestWeightedEmptyMarketBootstrap(t *testing.T) {
	st := newWeightedState(t, 500_000)

	// First trade on an empty market gets shares 1:1 regardless of side.
	yes, err := QuoteBuy(st.Market, st.Pool, 0, big.NewInt(100))
	require.NoError(t, err)
	no, err := QuoteBuy(st.Market, st.Pool, 1, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), yes.Int64())
	assert.Equal(t, int64(100), no.Int64())

	shares, err := Buy(st, 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), shares.Int64())
	assert.Equal(t, int64(100), st.Pool.Reserves[0].Int64())
	assert.Equal(t, int64(100), st.Pool.Deposits[0].Int64())
}

func TestWeightedPriceBlendsTowardLiquidity(t *testing.T) {
	st := newWeightedState(t, 0)
	_, err := Buy(st, 0, big.NewInt(300))
	require.NoError(t, err)
	_, err = Buy(st, 1, big.NewInt(100))
	require.NoError(t, err)

	// With zero liquidity the price is the raw probability: 75% / 25%.
	strat := weightedStrategy{liquidity: big.NewInt(0)}
	p0, err := strat.price(st.Pool, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(750_000), p0.Int64())

	// Full liquidity pins every price at Scale.
	strat = weightedStrategy{liquidity: big.NewInt(1_000_000)}
	p0, err = strat.price(st.Pool, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), p0.Int64())
	p1, err := strat.price(st.Pool, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), p1.Int64())

	// Halfway blend: 750000 + 250000/2.
	strat = weightedStrategy{liquidity: big.NewInt(500_000)}
	p0, err = strat.price(st.Pool, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(875_000), p0.Int64())
}

func TestWeightedMinoritySideCheaper(t *testing.T) {
	st := newWeightedState(t, 200_000)
	_, err := Buy(st, 0, big.NewInt(900))
	require.NoError(t, err)
	_, err = Buy(st, 1, big.NewInt(100))
	require.NoError(t, err)

	// The minority side must issue more shares per unit spent.
	majority, err := QuoteBuy(st.Market, st.Pool, 0, big.NewInt(100))
	require.NoError(t, err)
	minority, err := QuoteBuy(st.Market, st.Pool, 1, big.NewInt(100))
	require.NoError(t, err)
	assert.Positive(t, minority.Cmp(majority))
}

func TestWeightedProbabilitiesSumToScale(t *testing.T) {
	st := newWeightedState(t, 300_000)
	_, err := Buy(st, 0, big.NewInt(333))
	require.NoError(t, err)
	_, err = Buy(st, 1, big.NewInt(667))
	require.NoError(t, err)

	probs, err := Probabilities(st.Market, st.Pool)
	require.NoError(t, err)
	sum := new(big.Int).Add(probs[0], probs[1])
	diff := new(big.Int).Sub(big.NewInt(1_000_000), sum)
	assert.LessOrEqual(t, new(big.Int).Abs(diff).Int64(), int64(1))
}

func TestWeightedSellChecksPositionAndPool(t *testing.T) {
	st := newWeightedState(t, 500_000)
	shares, err := Buy(st, 0, big.NewInt(500))
	require.NoError(t, err)

	_, err = Sell(st, 0, new(big.Int).Add(shares, big.NewInt(1)))
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	payout, err := Sell(st, 0, shares)
	require.NoError(t, err)
	assert.Positive(t, payout.Sign())
	assert.LessOrEqual(t, payout.Cmp(big.NewInt(500)), 0,
		"selling everything back cannot pay out more than the side's pool")
	assert.Zero(t, st.Position.Shares[0].Sign())
	assert.GreaterOrEqual(t, st.Pool.Deposits[0].Sign(), 0)
}

func TestWeightedSellZeroAmount(t *testing.T) {
	st := newWeightedState(t, 500_000)
	_, err := Sell(st, 0, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestWeightedLiquidityParamValidation(t *testing.T) {
	_, _, err := NewMarket(SetupParams{
		ID:             "bad",
		Curve:          domain.CurveWeighted,
		Outcomes:       []string{"Yes", "No"},
		LiquidityParam: big.NewInt(1_000_001),
	}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, _, err = NewMarket(SetupParams{
		ID:             "bad",
		Curve:          domain.CurveWeighted,
		Outcomes:       []string{"Yes", "No"},
		LiquidityParam: big.NewInt(-1),
	}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}
