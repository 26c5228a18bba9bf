package engine

import (
	"math/big"
	"time"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

const (
	// MinPrice is the lowest admissible fixed price for a parimutuel
	// outcome: $0.01 at six decimals.
	MinPrice = 10_000

	// PriceSum is the exact sum parimutuel outcome prices must have:
	// $0.99, the missing cent being the built-in spread.
	PriceSum = 990_000
)

// SetupParams carries everything needed to create one market.
type SetupParams struct {
	ID          string
	Description string
	Curve       domain.CurveType
	Outcomes    []string
	Asset       string
	Oracle      string
	Admin       string

	LiquidityParam *big.Int   // weighted only
	Prices         []*big.Int // parimutuel only
	InitialReserve *big.Int   // cpmm only
}

// NewMarket validates params and returns the live market plus its seeded
// pool. CPMM pools start with InitialReserve on both sides, counted as the
// creator's deposit, mirroring how the market is funded: setup transfers
// twice the initial reserve from the creator.
func NewMarket(params SetupParams, now time.Time) (domain.Market, domain.Pool, error) {
	n := len(params.Outcomes)

	m := domain.Market{
		ID:           params.ID,
		Description:  params.Description,
		Curve:        params.Curve,
		OutcomeCount: n,
		Outcomes:     params.Outcomes,
		Asset:        params.Asset,
		Oracle:       params.Oracle,
		Admin:        params.Admin,
		Status:       domain.MarketStatusLive,
		Outcome:      domain.OutcomeUndecided,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch params.Curve {
	case domain.CurveCPMM:
		if n != 2 {
			return domain.Market{}, domain.Pool{}, domain.ErrInvalidParams
		}
		if params.InitialReserve == nil || params.InitialReserve.Sign() <= 0 {
			return domain.Market{}, domain.Pool{}, domain.ErrInvalidParams
		}
		if !fixedpoint.InRange(params.InitialReserve) {
			return domain.Market{}, domain.Pool{}, fixedpoint.ErrOverflow
		}
		m.InitialReserve = fixedpoint.Clone(params.InitialReserve)

	case domain.CurveWeighted:
		if n != 2 {
			return domain.Market{}, domain.Pool{}, domain.ErrInvalidParams
		}
		if err := validLiquidity(params.LiquidityParam); err != nil {
			return domain.Market{}, domain.Pool{}, err
		}
		m.LiquidityParam = fixedpoint.Clone(params.LiquidityParam)

	case domain.CurveParimutuel:
		if n != 2 && n != 3 {
			return domain.Market{}, domain.Pool{}, domain.ErrInvalidParams
		}
		if err := ValidPrices(params.Prices, n); err != nil {
			return domain.Market{}, domain.Pool{}, err
		}
		m.Prices = clonePrices(params.Prices)

	default:
		return domain.Market{}, domain.Pool{}, domain.ErrInvalidParams
	}

	pool := domain.NewPool(m.ID, n)
	if m.Curve == domain.CurveCPMM {
		// Seed both reserves and count the seed as deposits so the
		// distributable pool includes it.
		for i := 0; i < 2; i++ {
			pool.Reserves[i] = fixedpoint.Clone(m.InitialReserve)
			pool.Deposits[i] = fixedpoint.Clone(m.InitialReserve)
		}
		seed, err := fixedpoint.Mul(m.InitialReserve, big.NewInt(2))
		if err != nil {
			return domain.Market{}, domain.Pool{}, err
		}
		pool.TotalVolume = seed
	}
	return m, pool, nil
}

// SeedAmount is the asset value setup must collect from the creator: twice
// the initial reserve for CPMM markets, zero otherwise.
func SeedAmount(m domain.Market) (*big.Int, error) {
	if m.Curve != domain.CurveCPMM {
		return new(big.Int), nil
	}
	return fixedpoint.Mul(m.InitialReserve, big.NewInt(2))
}

// UpdateParams applies an admin parameter update to a live market. Only the
// mutable curve parameters change; everything else is immutable after
// setup.
func UpdateParams(m *domain.Market, prices []*big.Int, liquidity *big.Int, now time.Time) error {
	if !m.Live() {
		return domain.ErrMarketNotLive
	}
	switch m.Curve {
	case domain.CurveParimutuel:
		if err := ValidPrices(prices, m.OutcomeCount); err != nil {
			return err
		}
		m.Prices = clonePrices(prices)
	case domain.CurveWeighted:
		if err := validLiquidity(liquidity); err != nil {
			return err
		}
		m.LiquidityParam = fixedpoint.Clone(liquidity)
	default:
		return domain.ErrInvalidParams
	}
	m.UpdatedAt = now
	return nil
}

// ValidPrices checks a parimutuel price vector: one price per outcome, each
// at least MinPrice, summing exactly to PriceSum.
func ValidPrices(prices []*big.Int, n int) error {
	if len(prices) != n {
		return domain.ErrInvalidParams
	}
	sum := new(big.Int)
	for _, pr := range prices {
		if pr == nil || pr.Cmp(big.NewInt(MinPrice)) < 0 {
			return domain.ErrInvalidParams
		}
		var err error
		sum, err = fixedpoint.Add(sum, pr)
		if err != nil {
			return err
		}
	}
	if sum.Cmp(big.NewInt(PriceSum)) != 0 {
		return domain.ErrInvalidParams
	}
	return nil
}

func validLiquidity(l *big.Int) error {
	if l == nil || l.Sign() < 0 || l.Cmp(fixedpoint.ScaleInt) > 0 {
		return domain.ErrInvalidParams
	}
	return nil
}

func clonePrices(prices []*big.Int) []*big.Int {
	out := make([]*big.Int, len(prices))
	for i, pr := range prices {
		out[i] = fixedpoint.Clone(pr)
	}
	return out
}
