package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// Credit adds shares of outcome to the position. It is the only way a
// balance grows.
func Credit(pos *domain.Position, outcome int, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	bal, err := fixedpoint.Add(pos.Shares[outcome], amount)
	if err != nil {
		return err
	}
	pos.Shares[outcome] = bal
	return nil
}

// Debit removes shares of outcome from the position. A debit larger than
// the current balance fails with ErrInsufficientShares, so no negative
// balance is ever observable.
func Debit(pos *domain.Position, outcome int, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	if pos.Shares[outcome].Cmp(amount) < 0 {
		return domain.ErrInsufficientShares
	}
	bal, err := fixedpoint.Sub(pos.Shares[outcome], amount)
	if err != nil {
		return err
	}
	pos.Shares[outcome] = bal
	return nil
}
