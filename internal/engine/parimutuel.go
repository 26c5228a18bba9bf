package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// parimutuelStrategy pools stakes per outcome. A bet issues shares 1:1 with
// the staked amount; the price discovery happens at settlement, where the
// losing pools are split pro rata across winning stakes. Stakes cannot be
// sold back.
type parimutuelStrategy struct{}

func (parimutuelStrategy) QuoteBuy(p domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	return fixedpoint.Clone(amount), nil
}

func (parimutuelStrategy) QuoteSell(p domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	return nil, domain.ErrSellUnsupported
}

func (parimutuelStrategy) ApplyBuy(p *domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	reserve, err := fixedpoint.Add(p.Reserves[outcome], amount)
	if err != nil {
		return nil, err
	}
	deposits, err := fixedpoint.Add(p.Deposits[outcome], amount)
	if err != nil {
		return nil, err
	}
	supply, err := fixedpoint.Add(p.ShareSupply[outcome], amount)
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
	return fixedpoint.Clone(amount), nil
}

func (parimutuelStrategy) ApplySell(p *domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	return nil, domain.ErrSellUnsupported
}

// Probabilities reports each outcome's share of the total staked value.
func (parimutuelStrategy) Probabilities(p domain.Pool) ([]*big.Int, error) {
	return proportional(p.Reserves)
}
