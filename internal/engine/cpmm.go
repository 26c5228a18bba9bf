package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// cpmmStrategy prices binary trades against constant-product reserves:
// reserve[0] * reserve[1] = k. A buy pushes one reserve up and pulls the
// other down along the curve; the difference is the shares issued. Reserves
// never reach zero.
type cpmmStrategy struct{}

func other(outcome int) int { return 1 - outcome }

// cpmmBuy computes the post-buy reserves and shares for spending amount on
// outcome. It does not mutate p.
func cpmmBuy(p domain.Pool, outcome int, amount *big.Int) (newOwn, newOpp, shares *big.Int, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, nil, domain.ErrInvalidAmount
	}
	own, opp := p.Reserves[outcome], p.Reserves[other(outcome)]

	k, err := fixedpoint.Mul(own, opp)
	if err != nil {
		return nil, nil, nil, err
	}
	newOwn, err = fixedpoint.Add(own, amount)
	if err != nil {
		return nil, nil, nil, err
	}
	newOpp, err = fixedpoint.Div(k, newOwn)
	if err != nil {
		return nil, nil, nil, err
	}
	if newOpp.Sign() <= 0 {
		return nil, nil, nil, domain.ErrReserveWouldBeZero
	}
	shares, err = fixedpoint.Sub(opp, newOpp)
	if err != nil {
		return nil, nil, nil, err
	}
	if shares.Sign() <= 0 {
		return nil, nil, nil, domain.ErrZeroSharesReceived
	}
	return newOwn, newOpp, shares, nil
}

// cpmmSell computes the post-sell reserves and payout for redeeming shares
// of outcome. Selling is the inverse walk along the curve: the opposite
// reserve grows by the redeemed share count and the own reserve shrinks.
func cpmmSell(p domain.Pool, outcome int, shares *big.Int) (newOwn, newOpp, payout *big.Int, err error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, nil, domain.ErrInvalidAmount
	}
	own, opp := p.Reserves[outcome], p.Reserves[other(outcome)]

	k, err := fixedpoint.Mul(own, opp)
	if err != nil {
		return nil, nil, nil, err
	}
	newOpp, err = fixedpoint.Add(opp, shares)
	if err != nil {
		return nil, nil, nil, err
	}
	newOwn, err = fixedpoint.Div(k, newOpp)
	if err != nil {
		return nil, nil, nil, err
	}
	payout, err = fixedpoint.Sub(own, newOwn)
	if err != nil {
		return nil, nil, nil, err
	}
	if payout.Sign() <= 0 {
		return nil, nil, nil, domain.ErrZeroPayout
	}
	return newOwn, newOpp, payout, nil
}

func (cpmmStrategy) QuoteBuy(p domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	_, _, shares, err := cpmmBuy(p, outcome, amount)
	return shares, err
}

func (cpmmStrategy) QuoteSell(p domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	_, _, payout, err := cpmmSell(p, outcome, shares)
	return payout, err
}

func (cpmmStrategy) ApplyBuy(p *domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	newOwn, newOpp, shares, err := cpmmBuy(*p, outcome, amount)
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

	p.Reserves[outcome] = newOwn
	p.Reserves[other(outcome)] = newOpp
	p.Deposits[outcome] = deposits
	p.ShareSupply[outcome] = supply
	p.TotalVolume = volume
	return shares, nil
}

func (cpmmStrategy) ApplySell(p *domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	newOwn, newOpp, payout, err := cpmmSell(*p, outcome, shares)
	if err != nil {
		return nil, err
	}
	deposits, err := fixedpoint.Sub(p.Deposits[outcome], payout)
	if err != nil {
		return nil, err
	}
	if deposits.Sign() < 0 {
		return nil, domain.ErrInsufficientPool
	}
	supply, err := fixedpoint.Sub(p.ShareSupply[outcome], shares)
	if err != nil {
		return nil, err
	}
	volume, err := fixedpoint.Add(p.TotalVolume, payout)
	if err != nil {
		return nil, err
	}

	p.Reserves[outcome] = newOwn
	p.Reserves[other(outcome)] = newOpp
	p.Deposits[outcome] = deposits
	p.ShareSupply[outcome] = supply
	p.TotalVolume = volume
	return payout, nil
}

// Probabilities reports each side's share of the combined reserves.
func (cpmmStrategy) Probabilities(p domain.Pool) ([]*big.Int, error) {
	return proportional(p.Reserves)
}

// proportional maps per-outcome weights to probabilities scaled by
// fixedpoint.Scale. An all-zero weight vector is an empty market priced
// evenly across outcomes.
func proportional(weights []*big.Int) ([]*big.Int, error) {
	total := new(big.Int)
	for _, w := range weights {
		var err error
		total, err = fixedpoint.Add(total, w)
		if err != nil {
			return nil, err
		}
	}

	probs := make([]*big.Int, len(weights))
	if total.Sign() == 0 {
		even := new(big.Int).Quo(fixedpoint.ScaleInt, big.NewInt(int64(len(weights))))
		for i := range probs {
			probs[i] = fixedpoint.Clone(even)
		}
		return probs, nil
	}
	for i, w := range weights {
		pr, err := fixedpoint.MulDiv(fixedpoint.ScaleInt, w, total)
		if err != nil {
			return nil, err
		}
		probs[i] = pr
	}
	return probs, nil
}
