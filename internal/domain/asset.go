package domain

import (
	"context"
	"math/big"
)

// AssetLedger is the external fungible-asset ledger that markets settle
// against. Transfers are atomic: they either apply completely or fail with
// ErrInsufficientFunds / ErrAuthDenied and change nothing. The engine relies
// on that atomicity for its commit ordering: a failed debit must never
// leave market state half-updated.
type AssetLedger interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error

	// TransferFrom moves amount of asset from owner to dest on behalf of
	// spender, which must hold an allowance from owner.
	TransferFrom(ctx context.Context, asset, spender, owner, to string, amount *big.Int) error

	// BalanceOf reports the account's current balance of asset.
	BalanceOf(ctx context.Context, asset, account string) (*big.Int, error)
}
