package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func threeWayPrices() []*big.Int {
	// Home / Draw / Away, summing to $0.99 at six decimals.
	return []*big.Int{big.NewInt(450_000), big.NewInt(290_000), big.NewInt(250_000)}
}

func newParimutuelMarket(t *testing.T, outcomes []string, prices []*big.Int) (domain.Market, domain.Pool) {
	t.Helper()
	m, pool, err := NewMarket(SetupParams{
		ID:          "mkt-p",
		Description: "three way",
		Curve:       domain.CurveParimutuel,
		Outcomes:    outcomes,
		Asset:       "usdc",
		Oracle:      "oracle",
		Admin:       "admin",
		Prices:      prices,
	}, time.Unix(1700000000, 0))
	require.NoError(t, err)
	return m, pool
}

func TestParimutuelStakeIsShares(t *testing.T) {
	m, pool := newParimutuelMarket(t, []string{"Home", "Draw", "Away"}, threeWayPrices())
	st := &State{Market: m, Pool: pool, Position: domain.NewPosition(m.ID, "bettor", 3)}

	shares, err := Buy(st, 2, big.NewInt(250))
	require.NoError(t, err)
	assert.Equal(t, int64(250), shares.Int64())
	assert.Equal(t, int64(250), st.Pool.Reserves[2].Int64())
	assert.Equal(t, int64(250), st.Pool.Deposits[2].Int64())
	assert.Equal(t, int64(250), st.Pool.TotalVolume.Int64())
}

func TestParimutuelNoSell(t *testing.T) {
	m, pool := newParimutuelMarket(t, []string{"Home", "Draw", "Away"}, threeWayPrices())
	st := &State{Market: m, Pool: pool, Position: domain.NewPosition(m.ID, "bettor", 3)}

	_, err := Buy(st, 0, big.NewInt(100))
	require.NoError(t, err)

	_, err = Sell(st, 0, big.NewInt(50))
	assert.ErrorIs(t, err, domain.ErrSellUnsupported)
}

func TestParimutuelProbabilities(t *testing.T) {
	m, pool := newParimutuelMarket(t, []string{"Home", "Draw", "Away"}, threeWayPrices())
	st := &State{Market: m, Pool: pool, Position: domain.NewPosition(m.ID, "bettor", 3)}

	// Empty market prices all outcomes evenly, within a rounding unit.
	probs, err := Probabilities(st.Market, st.Pool)
	require.NoError(t, err)
	sum := new(big.Int)
	for _, pr := range probs {
		sum.Add(sum, pr)
	}
	diff := new(big.Int).Sub(big.NewInt(1_000_000), sum)
	assert.LessOrEqual(t, new(big.Int).Abs(diff).Int64(), int64(1))

	_, err = Buy(st, 0, big.NewInt(600))
	require.NoError(t, err)
	_, err = Buy(st, 1, big.NewInt(300))
	require.NoError(t, err)
	_, err = Buy(st, 2, big.NewInt(100))
	require.NoError(t, err)

	probs, err = Probabilities(st.Market, st.Pool)
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), probs[0].Int64())
	assert.Equal(t, int64(300_000), probs[1].Int64())
	assert.Equal(t, int64(100_000), probs[2].Int64())
}

func TestParimutuelPriceValidation(t *testing.T) {
	// Sum off by one.
	bad := []*big.Int{big.NewInt(450_000), big.NewInt(290_000), big.NewInt(250_001)}
	_, _, err := NewMarket(SetupParams{
		ID:       "bad",
		Curve:    domain.CurveParimutuel,
		Outcomes: []string{"Home", "Draw", "Away"},
		Prices:   bad,
	}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	// Below the minimum price.
	bad = []*big.Int{big.NewInt(9_999), big.NewInt(490_001), big.NewInt(490_000)}
	_, _, err = NewMarket(SetupParams{
		ID:       "bad",
		Curve:    domain.CurveParimutuel,
		Outcomes: []string{"Home", "Draw", "Away"},
		Prices:   bad,
	}, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestUpdateParamsParimutuel(t *testing.T) {
	m, _ := newParimutuelMarket(t, []string{"Home", "Draw", "Away"}, threeWayPrices())

	next := []*big.Int{big.NewInt(500_000), big.NewInt(250_000), big.NewInt(240_000)}
	require.NoError(t, UpdateParams(&m, next, nil, time.Now()))
	assert.Equal(t, int64(500_000), m.Prices[0].Int64())

	// Parameter updates stop once the market resolves.
	require.NoError(t, Settle(&m, 0, time.Now()))
	err := UpdateParams(&m, threeWayPrices(), nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrMarketNotLive)
}
