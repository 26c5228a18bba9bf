package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
)

// State bundles everything one market operation reads and writes: the
// market record, its pool, and the acting account's position. Callers hand
// in clones and persist them only when the operation returns nil.
type State struct {
	Market   domain.Market
	Pool     domain.Pool
	Position domain.Position
}

// Buy spends amount of the market's asset on outcome and credits the issued
// shares to the position. The pool and position are only mutated once every
// validation has passed.
func Buy(st *State, outcome int, amount *big.Int) (*big.Int, error) {
	if !st.Market.Live() {
		return nil, domain.ErrMarketNotLive
	}
	if !st.Market.ValidOutcome(outcome) {
		return nil, domain.ErrInvalidOutcome
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	strat, err := ForMarket(st.Market)
	if err != nil {
		return nil, err
	}
	shares, err := strat.ApplyBuy(&st.Pool, outcome, amount)
	if err != nil {
		return nil, err
	}
	if err := Credit(&st.Position, outcome, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Sell redeems shares of outcome for the curve's payout and debits them
// from the position. The seller's balance is checked before any pool
// mutation.
func Sell(st *State, outcome int, shares *big.Int) (*big.Int, error) {
	if !st.Market.Live() {
		return nil, domain.ErrMarketNotLive
	}
	if !st.Market.ValidOutcome(outcome) {
		return nil, domain.ErrInvalidOutcome
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if st.Position.Shares[outcome].Cmp(shares) < 0 {
		return nil, domain.ErrInsufficientShares
	}
	strat, err := ForMarket(st.Market)
	if err != nil {
		return nil, err
	}
	payout, err := strat.ApplySell(&st.Pool, outcome, shares)
	if err != nil {
		return nil, err
	}
	if err := Debit(&st.Position, outcome, shares); err != nil {
		return nil, err
	}
	return payout, nil
}

// Trade is the unified entry point: a positive amount buys, a negative
// amount sells the absolute value as a share count. Zero is invalid.
// It returns the shares moved and the asset value moved.
func Trade(st *State, outcome int, signedAmount *big.Int) (shares, value *big.Int, kind domain.TradeKind, err error) {
	if signedAmount == nil || signedAmount.Sign() == 0 {
		return nil, nil, "", domain.ErrInvalidAmount
	}
	if signedAmount.Sign() > 0 {
		shares, err = Buy(st, outcome, signedAmount)
		if err != nil {
			return nil, nil, "", err
		}
		return shares, new(big.Int).Set(signedAmount), domain.TradeKindBuy, nil
	}
	sold := new(big.Int).Neg(signedAmount)
	value, err = Sell(st, outcome, sold)
	if err != nil {
		return nil, nil, "", err
	}
	return sold, value, domain.TradeKindSell, nil
}

// Probabilities reports the market's current per-outcome probabilities.
func Probabilities(m domain.Market, p domain.Pool) ([]*big.Int, error) {
	strat, err := ForMarket(m)
	if err != nil {
		return nil, err
	}
	return strat.Probabilities(p)
}

// QuoteBuy answers "how many shares would amount buy right now".
func QuoteBuy(m domain.Market, p domain.Pool, outcome int, amount *big.Int) (*big.Int, error) {
	if !m.ValidOutcome(outcome) {
		return nil, domain.ErrInvalidOutcome
	}
	strat, err := ForMarket(m)
	if err != nil {
		return nil, err
	}
	return strat.QuoteBuy(p, outcome, amount)
}

// QuoteSell answers "what would redeeming shares pay right now".
func QuoteSell(m domain.Market, p domain.Pool, outcome int, shares *big.Int) (*big.Int, error) {
	if !m.ValidOutcome(outcome) {
		return nil, domain.ErrInvalidOutcome
	}
	strat, err := ForMarket(m)
	if err != nil {
		return nil, err
	}
	return strat.QuoteSell(p, outcome, shares)
}
