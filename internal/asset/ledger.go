// Package asset provides an in-process fungible-asset ledger implementing
// domain.AssetLedger. Production deployments point the service at an external
// ledger; the in-memory ledger backs development mode and tests.
package asset

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// Ledger is a thread-safe in-memory asset ledger with per-owner spender
// allowances. All mutations happen under one mutex, so a transfer either
// applies completely or not at all.
type Ledger struct {
	mu         sync.Mutex
	balances   map[string]*big.Int // key: asset|account
	allowances map[string]*big.Int // key: asset|owner|spender
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func balanceKey(asset, account string) string {
	return asset + "|" + account
}

func allowanceKey(asset, owner, spender string) string {
	return asset + "|" + owner + "|" + spender
}

// Mint credits amount of asset to account out of thin air. Test and
// development seeding.
func (l *Ledger) Mint(asset, account string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, account, amount)
}

// Approve grants spender an allowance over owner's balance of asset,
// replacing any previous allowance.
func (l *Ledger) Approve(asset, owner, spender string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(asset, owner, spender)] = fixedpoint.Clone(amount)
}

// Transfer moves amount of asset from one account to another. It fails with
// domain.ErrInsufficientFunds and changes nothing when the source balance is
// too small.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("asset: transfer %s: %w", asset, domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(asset, from, amount); err != nil {
		return err
	}
	l.credit(asset, to, amount)
	return nil
}

// TransferFrom moves amount of asset from owner to dest on behalf of spender,
// consuming spender's allowance. Both the allowance and balance checks pass
// before anything changes.
func (l *Ledger) TransferFrom(ctx context.Context, asset, spender, owner, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("asset: transfer from %s: %w", asset, domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate allowance and balance before mutating either, so a failed
	// transfer never burns allowance.
	ak := allowanceKey(asset, owner, spender)
	if spender != owner {
		allowance, ok := l.allowances[ak]
		if !ok || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("asset: %s allowance for %s: %w", owner, spender, domain.ErrAuthDenied)
		}
	}

	if err := l.debit(asset, owner, amount); err != nil {
		return err
	}
	if spender != owner {
		l.allowances[ak] = new(big.Int).Sub(l.allowances[ak], amount)
	}
	l.credit(asset, to, amount)
	return nil
}

// BalanceOf reports the account's current balance of asset.
func (l *Ledger) BalanceOf(ctx context.Context, asset, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.balances[balanceKey(asset, account)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// debit and credit run under l.mu.

func (l *Ledger) debit(asset, account string, amount *big.Int) error {
	key := balanceKey(asset, account)
	bal, ok := l.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("asset: %s balance of %s: %w", asset, account, domain.ErrInsufficientFunds)
	}
	l.balances[key] = new(big.Int).Sub(bal, amount)
	return nil
}

func (l *Ledger) credit(asset, account string, amount *big.Int) {
	key := balanceKey(asset, account)
	if bal, ok := l.balances[key]; ok {
		l.balances[key] = new(big.Int).Add(bal, amount)
		return
	}
	l.balances[key] = fixedpoint.Clone(amount)
}

var _ domain.AssetLedger = (*Ledger)(nil)
