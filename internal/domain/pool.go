package domain

import "math/big"

// Pool holds the aggregate balances of one market. The meaning of Reserves
// depends on the curve: token reserves for CPMM, cumulative share supply for
// weighted pricing, cumulative staked value for parimutuel markets.
// Deposits tracks value paid in per outcome and is the distributable amount
// at settlement. ShareSupply tracks outstanding shares per outcome so claims
// never need to scan positions. TotalVolume is a monotone gross-value
// counter used for reporting only.
type Pool struct {
	MarketID    string
	Reserves    []*big.Int
	Deposits    []*big.Int
	ShareSupply []*big.Int
	TotalVolume *big.Int
}

// NewPool returns a zeroed pool for a market with n outcomes.
func NewPool(marketID string, n int) Pool {
	p := Pool{
		MarketID:    marketID,
		Reserves:    make([]*big.Int, n),
		Deposits:    make([]*big.Int, n),
		ShareSupply: make([]*big.Int, n),
		TotalVolume: new(big.Int),
	}
	for i := 0; i < n; i++ {
		p.Reserves[i] = new(big.Int)
		p.Deposits[i] = new(big.Int)
		p.ShareSupply[i] = new(big.Int)
	}
	return p
}

// Clone returns a deep copy. Engine operations mutate a clone and commit it
// only after every validation has passed.
func (p Pool) Clone() Pool {
	c := Pool{
		MarketID:    p.MarketID,
		Reserves:    make([]*big.Int, len(p.Reserves)),
		Deposits:    make([]*big.Int, len(p.Deposits)),
		ShareSupply: make([]*big.Int, len(p.ShareSupply)),
		TotalVolume: new(big.Int).Set(p.TotalVolume),
	}
	for i := range p.Reserves {
		c.Reserves[i] = new(big.Int).Set(p.Reserves[i])
	}
	for i := range p.Deposits {
		c.Deposits[i] = new(big.Int).Set(p.Deposits[i])
	}
	for i := range p.ShareSupply {
		c.ShareSupply[i] = new(big.Int).Set(p.ShareSupply[i])
	}
	return c
}

// TotalDeposits sums the per-outcome deposits.
func (p Pool) TotalDeposits() *big.Int {
	sum := new(big.Int)
	for _, d := range p.Deposits {
		sum.Add(sum, d)
	}
	return sum
}
