package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func TestSettleOnce(t *testing.T) {
	st := newCPMMState(t, 1000)
	m := st.Market

	require.NoError(t, Settle(&m, 1, time.Unix(1700000100, 0)))
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, 1, m.Outcome)
	require.NotNil(t, m.ResolvedAt)

	err := Settle(&m, 0, time.Now())
	assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.Equal(t, 1, m.Outcome, "a failed settle must not touch the outcome")
}

func TestSettleInvalidOutcome(t *testing.T) {
	st := newCPMMState(t, 1000)
	m := st.Market

	assert.ErrorIs(t, Settle(&m, 2, time.Now()), domain.ErrInvalidOutcome)
	assert.ErrorIs(t, Settle(&m, -1, time.Now()), domain.ErrInvalidOutcome)
	assert.Equal(t, domain.MarketStatusLive, m.Status)
}

func TestTradingStopsAfterSettle(t *testing.T) {
	st := newCPMMState(t, 1000)
	require.NoError(t, Settle(&st.Market, 0, time.Now()))

	_, err := Buy(st, 0, big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrMarketNotLive)
	_, err = Sell(st, 0, big.NewInt(10))
	assert.ErrorIs(t, err, domain.ErrMarketNotLive)
}

func TestArchiveLifecycle(t *testing.T) {
	st := newCPMMState(t, 1000)
	m := st.Market

	// Live markets cannot be archived.
	assert.ErrorIs(t, Archive(&m, time.Now()), domain.ErrMarketNotSettled)

	require.NoError(t, Settle(&m, 0, time.Now()))
	require.NoError(t, Archive(&m, time.Now()))
	assert.Equal(t, domain.MarketStatusArchived, m.Status)

	// Archiving is terminal too.
	assert.ErrorIs(t, Archive(&m, time.Now()), domain.ErrAlreadyArchived)

	// An archived market still reports as resolved so claims keep working.
	assert.True(t, m.Resolved())
}
