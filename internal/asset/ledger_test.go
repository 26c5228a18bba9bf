package asset

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(1000))

	require.NoError(t, l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(300)))

	a, err := l.BalanceOf(ctx, "usd", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(700), a.Int64())

	b, err := l.BalanceOf(ctx, "usd", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(300), b.Int64())
}

func TestTransferInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(100))

	err := l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(101))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// A failed transfer changes nothing.
	a, err := l.BalanceOf(ctx, "usd", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Int64())

	b, err := l.BalanceOf(ctx, "usd", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Int64())
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(1000))
	l.Approve("usd", "alice", "market", big.NewInt(500))

	require.NoError(t, l.TransferFrom(ctx, "usd", "market", "alice", "pool", big.NewInt(400)))

	// Remaining allowance is 100, so a 200 transfer is denied.
	err := l.TransferFrom(ctx, "usd", "market", "alice", "pool", big.NewInt(200))
	assert.ErrorIs(t, err, domain.ErrAuthDenied)

	require.NoError(t, l.TransferFrom(ctx, "usd", "market", "alice", "pool", big.NewInt(100)))

	p, err := l.BalanceOf(ctx, "usd", "pool")
	require.NoError(t, err)
	assert.Equal(t, int64(500), p.Int64())
}

func TestTransferFromInsufficientBalanceKeepsAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(50))
	l.Approve("usd", "alice", "market", big.NewInt(500))

	err := l.TransferFrom(ctx, "usd", "market", "alice", "pool", big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed debit must not have burned allowance.
	l.Mint("usd", "alice", big.NewInt(100))
	assert.NoError(t, l.TransferFrom(ctx, "usd", "market", "alice", "pool", big.NewInt(100)))
}

func TestTransferFromSelfNeedsNoAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(100))

	assert.NoError(t, l.TransferFrom(ctx, "usd", "alice", "alice", "pool", big.NewInt(100)))
}

func TestNegativeAmountRejected(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.Mint("usd", "alice", big.NewInt(100))

	err := l.Transfer(ctx, "usd", "alice", "bob", big.NewInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
