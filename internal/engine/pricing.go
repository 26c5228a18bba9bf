// Package engine implements the pricing-and-settlement core: curve
// strategies, the position ledger, the market state machine, and the
// proportional-payout settlement math. Everything here is pure computation
// over in-memory state; callers load state, run one operation against
// clones, and commit only when it succeeds.
package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
)

// Strategy prices trades against one market's pool. Quote methods are
// read-only; Apply methods mutate the pool after all their validations pass.
// Implementations are stateless, all curve state lives in the pool and the
// market's creation parameters.
type Strategy interface {
	// QuoteBuy returns the shares issued for spending amount on outcome.
	QuoteBuy(p domain.Pool, outcome int, amount *big.Int) (*big.Int, error)

	// QuoteSell returns the payout for redeeming shares of outcome.
	QuoteSell(p domain.Pool, outcome int, shares *big.Int) (*big.Int, error)

	// ApplyBuy executes a buy against p and returns the shares issued.
	ApplyBuy(p *domain.Pool, outcome int, amount *big.Int) (*big.Int, error)

	// ApplySell executes a sell against p and returns the payout.
	ApplySell(p *domain.Pool, outcome int, shares *big.Int) (*big.Int, error)

	// Probabilities returns the per-outcome probabilities scaled by
	// fixedpoint.Scale. They sum to Scale within one rounding unit.
	Probabilities(p domain.Pool) ([]*big.Int, error)
}

// ForMarket returns the pricing strategy the market was created with.
func ForMarket(m domain.Market) (Strategy, error) {
	switch m.Curve {
	case domain.CurveCPMM:
		return cpmmStrategy{}, nil
	case domain.CurveWeighted:
		return weightedStrategy{liquidity: m.LiquidityParam}, nil
	case domain.CurveParimutuel:
		return parimutuelStrategy{}, nil
	default:
		return nil, domain.ErrInvalidParams
	}
}
