package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// weightedStrategy prices binary shares by blending the observed probability
// of a side toward a fixed liquidity parameter:
//
//	price = prob + (Scale - prob) * liquidity / Scale
//
// The blend is an approximation of a scoring-rule market maker, not a
// textbook LMSR cost function; it is kept exactly as the product defines it.
// Pool reserves hold the cumulative share supply per side.
type weightedStrategy struct {
	liquidity *big.Int // in [0, Scale]
}

// price returns the per-share price of outcome, scaled by Scale. A zero
// total supply is an empty market priced evenly.
func (s weightedStrategy) price(p domain.Pool, outcome int) (*big.Int, error) {
	probs, err := proportional(p.Reserves)
	if err != nil {
		return nil, err
	}
	prob := probs[outcome]

	rest, err := fixedpoint.Sub(fixedpoint.ScaleInt, prob)
	if err != nil {
		return nil, err
	}
	blend, err := fixedpoint.MulDiv(rest, s.liquidity, fixedpoint.ScaleInt)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Add(prob, blend)
}

// empty reports whether no shares exist on either side yet.
func empty(p domain.Pool) bool {
	for _, r := range p.Reserves {
		if r.Sign() != 0 {
			return false
		}
	}
	return true
}

// QuoteBuy sizes the shares a cost buys at the current price. An empty
// market, or a zero price, falls back to issuing shares 1:1 with the cost;
// that is the deliberate bootstrap rule for the first trade, not a curve
// singularity.
func (s weightedStrategy) QuoteBuy(p domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if empty(p) {
		return fixedpoint.Clone(amount), nil
	}
	price, err := s.price(p, outcome)
	if err != nil {
		return nil, err
	}
	if price.Sign() == 0 {
		return fixedpoint.Clone(amount), nil
	}
	shares, err := fixedpoint.MulDiv(amount, fixedpoint.ScaleInt, price)
	if err != nil {
		return nil, err
	}
	if shares.Sign() <= 0 {
		return nil, domain.ErrZeroSharesReceived
	}
	return shares, nil
}

// QuoteSell is the reverse query: the payout for retiring a share count at
// the current price.
func (s weightedStrategy) QuoteSell(p domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	price, err := s.price(p, outcome)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(shares, price, fixedpoint.ScaleInt)
}

func (s weightedStrategy) ApplyBuy(p *domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	shares, err := s.QuoteBuy(*p, outcome, amount)
	if err != nil {
		return nil, err
	}
	reserve, err := fixedpoint.Add(p.Reserves[outcome], shares)
	if err != nil {
		return nil, err
	}
	deposits, err := fixedpoint.Add(p.Deposits[outcome], amount)
	if err != nil {
		return nil, err
	}
	supply, err := fixedpoint.Add(p.ShareSupply[outcome], shares)
	if err != nil {
		return nil, err
	}
	volume, err := fixedpoint.Add(p.TotalVolume, amount)
	if err != nil {
		return nil, err
	}

	p.Reserves[outcome] = reserve
	p.Deposits[outcome] = deposits
	p.ShareSupply[outcome] = supply
	p.TotalVolume = volume
	return shares, nil
}

// ApplySell retires shares at the current price. The side's deposit pool
// must cover the payout; the position check against the seller's balance
// happens in the trade operation before any pool mutation.
func (s weightedStrategy) ApplySell(p *domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	payout, err := s.QuoteSell(*p, outcome, shares)
	if err != nil {
		return nil, err
	}
	if payout.Sign() <= 0 {
		return nil, domain.ErrZeroPayout
	}
	if p.Deposits[outcome].Cmp(payout) < 0 {
		return nil, domain.ErrInsufficientPool
	}
	if p.Reserves[outcome].Cmp(shares) < 0 {
		return nil, domain.ErrInsufficientShares
	}

	reserve, err := fixedpoint.Sub(p.Reserves[outcome], shares)
	if err != nil {
		return nil, err
	}
	deposits, err := fixedpoint.Sub(p.Deposits[outcome], payout)
	if err != nil {
		return nil, err
	}
	supply, err := fixedpoint.Sub(p.ShareSupply[outcome], shares)
	if err != nil {
		return nil, err
	}
	volume, err := fixedpoint.Add(p.TotalVolume, payout)
	if err != nil {
		return nil, err
	}

	p.Reserves[outcome] = reserve
	p.Deposits[outcome] = deposits
	p.ShareSupply[outcome] = supply
	p.TotalVolume = volume
	return payout, nil
}

func (weightedStrategy) Probabilities(p domain.Pool) ([]*big.Int, error) {
	return proportional(p.Reserves)
}
