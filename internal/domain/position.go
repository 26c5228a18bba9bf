package domain

import (
	"math/big"
	"time"
)

// Position is the per-(market, account) share ledger entry. Shares holds one
// non-negative balance per outcome. Claimed markers survive the zero-out at
// claim time; the record is never deleted, which is what makes a second
// claim detectable.
type Position struct {
	MarketID  string
	Account   string
	Shares    []*big.Int
	Claimed   bool
	UpdatedAt time.Time
}

// NewPosition returns an empty position for a market with n outcomes.
func NewPosition(marketID, account string, n int) Position {
	shares := make([]*big.Int, n)
	for i := range shares {
		shares[i] = new(big.Int)
	}
	return Position{MarketID: marketID, Account: account, Shares: shares}
}

// Clone returns a deep copy of the position.
func (p Position) Clone() Position {
	c := p
	c.Shares = make([]*big.Int, len(p.Shares))
	for i := range p.Shares {
		c.Shares[i] = new(big.Int).Set(p.Shares[i])
	}
	return c
}

// Empty reports whether every outcome balance is zero.
func (p Position) Empty() bool {
	for _, s := range p.Shares {
		if s.Sign() != 0 {
			return false
		}
	}
	return true
}
