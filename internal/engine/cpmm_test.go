package engine

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func newCPMMState(t *testing.T, reserve int64) *State {
	t.Helper()
	m, pool, err := NewMarket(SetupParams{
		ID:             "mkt-1",
		Description:    "test market",
		Curve:          domain.CurveCPMM,
		Outcomes:       []string{"Yes", "No"},
		Asset:          "usdc",
		Oracle:         "oracle",
		Admin:          "admin",
		InitialReserve: big.NewInt(reserve),
	}, time.Unix(1700000000, 0))
	require.NoError(t, err)
	return &State{
		Market:   m,
		Pool:     pool,
		Position: domain.NewPosition(m.ID, "alice", 2),
	}
}

func TestCPMMBuyMovesReserves(t *testing.T) {
	st := newCPMMState(t, 1000)

	shares, err := Buy(st, 0, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, int64(1100), st.Pool.Reserves[0].Int64())
	assert.Less(t, st.Pool.Reserves[1].Int64(), int64(1000))
	// Seed volume (2 * 1000) plus the trade.
	assert.Equal(t, int64(2100), st.Pool.TotalVolume.Int64())
	// 1000*1000/1100 = 909 -> 91 shares out.
	assert.Equal(t, int64(91), shares.Int64())
	assert.Equal(t, int64(91), st.Position.Shares[0].Int64())
}

func TestCPMMSymmetricBuyPricesMatch(t *testing.T) {
	st := newCPMMState(t, 1000)

	yes, err := QuoteBuy(st.Market, st.Pool, 0, big.NewInt(100))
	require.NoError(t, err)
	no, err := QuoteBuy(st.Market, st.Pool, 1, big.NewInt(100))
	require.NoError(t, err)

	assert.Zero(t, yes.Cmp(no), "symmetric reserves must price both sides identically")
}

func TestCPMMBuyPositiveSharesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	st := newCPMMState(t, 100_000)

	for i := 0; i < 500; i++ {
		amount := big.NewInt(rng.Int63n(5_000) + 1)
		outcome := rng.Intn(2)

		shares, err := Buy(st, outcome, amount)
		require.NoError(t, err)
		assert.Positive(t, shares.Sign())
		assert.Positive(t, st.Pool.Reserves[0].Sign())
		assert.Positive(t, st.Pool.Reserves[1].Sign())
	}
}

func TestCPMMInvariantDriftBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	st := newCPMMState(t, 1_000_000)

	k0 := new(big.Int).Mul(st.Pool.Reserves[0], st.Pool.Reserves[1])
	trades := 0

	for i := 0; i < 400; i++ {
		outcome := rng.Intn(2)
		if rng.Intn(3) == 0 && st.Position.Shares[outcome].Cmp(big.NewInt(10)) > 0 {
			_, err := Sell(st, outcome, big.NewInt(10))
			require.NoError(t, err)
		} else {
			_, err := Buy(st, outcome, big.NewInt(rng.Int63n(1_000)+1))
			require.NoError(t, err)
		}
		trades++

		k := new(big.Int).Mul(st.Pool.Reserves[0], st.Pool.Reserves[1])
		drift := new(big.Int).Abs(new(big.Int).Sub(k, k0))
		// Each truncating division can shave at most one unit of the
		// depleted reserve off k, so drift stays proportional to the
		// trade count times the larger reserve, never unbounded.
		bound := new(big.Int).Mul(big.NewInt(int64(trades)), maxReserve(st.Pool))
		assert.LessOrEqual(t, drift.Cmp(bound), 0,
			"k drift %s exceeded bound %s after %d trades", drift, bound, trades)
	}
}

func maxReserve(p domain.Pool) *big.Int {
	if p.Reserves[0].Cmp(p.Reserves[1]) > 0 {
		return new(big.Int).Set(p.Reserves[0])
	}
	return new(big.Int).Set(p.Reserves[1])
}

func TestCPMMSellRoundTrip(t *testing.T) {
	st := newCPMMState(t, 1000)

	shares, err := Buy(st, 0, big.NewInt(100))
	require.NoError(t, err)

	payout, err := Sell(st, 0, shares)
	require.NoError(t, err)

	// Each leg truncates independently, so the round trip recovers the
	// spent amount give or take a rounding unit per leg.
	diff := new(big.Int).Sub(payout, big.NewInt(100))
	assert.LessOrEqual(t, new(big.Int).Abs(diff).Int64(), int64(2))
	assert.Zero(t, st.Position.Shares[0].Sign())
	assert.GreaterOrEqual(t, st.Pool.Deposits[0].Sign(), 0)
}

func TestCPMMSellMoreThanHeld(t *testing.T) {
	st := newCPMMState(t, 1000)

	_, err := Buy(st, 0, big.NewInt(100))
	require.NoError(t, err)

	_, err = Sell(st, 0, big.NewInt(10_000))
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestCPMMBuyValidation(t *testing.T) {
	st := newCPMMState(t, 1000)

	_, err := Buy(st, 0, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = Buy(st, 0, big.NewInt(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = Buy(st, 2, big.NewInt(10))
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestCPMMReserveWouldBeZero(t *testing.T) {
	// A buy so large that k / newReserve truncates to zero would drain
	// the opposite side entirely and must be rejected.
	st := newCPMMState(t, 1000)
	_, err := Buy(st, 0, big.NewInt(1_000_000))
	assert.ErrorIs(t, err, domain.ErrReserveWouldBeZero)
}

func TestCPMMProbabilitiesSumToScale(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	st := newCPMMState(t, 50_000)

	for i := 0; i < 100; i++ {
		_, err := Buy(st, rng.Intn(2), big.NewInt(rng.Int63n(2_000)+1))
		require.NoError(t, err)

		probs, err := Probabilities(st.Market, st.Pool)
		require.NoError(t, err)

		sum := new(big.Int).Add(probs[0], probs[1])
		diff := new(big.Int).Sub(big.NewInt(1_000_000), sum)
		assert.LessOrEqual(t, new(big.Int).Abs(diff).Int64(), int64(1))
	}
}

func TestCPMMTradeUnified(t *testing.T) {
	st := newCPMMState(t, 1000)

	shares, value, kind, err := Trade(st, 0, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindBuy, kind)
	assert.Equal(t, int64(100), value.Int64())
	assert.Positive(t, shares.Sign())

	sold, payout, kind, err := Trade(st, 0, new(big.Int).Neg(shares))
	require.NoError(t, err)
	assert.Equal(t, domain.TradeKindSell, kind)
	assert.Zero(t, sold.Cmp(shares))
	assert.Positive(t, payout.Sign())

	_, _, _, err = Trade(st, 0, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
