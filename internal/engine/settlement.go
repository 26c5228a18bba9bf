package engine

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/fixedpoint"
)

// winnings computes what pos is owed given the resolved market and its final
// pool. Parimutuel stakes are refunded plus a pro-rata cut of the losing
// pools; share-based curves split the whole collected pool across winning
// shares. Losing positions are owed zero.
func winnings(m domain.Market, p domain.Pool, pos domain.Position) (*big.Int, error) {
	w := m.Outcome
	held := pos.Shares[w]
	if held.Sign() <= 0 {
		return new(big.Int), nil
	}

	winningTotal := p.ShareSupply[w]
	if winningTotal.Sign() <= 0 {
		// Shares exist on the winning side but the supply counter says
		// otherwise; the pool state is corrupt.
		return nil, fixedpoint.ErrDivisionByZero
	}

	switch m.Curve {
	case domain.CurveParimutuel:
		losing := new(big.Int)
		for i, d := range p.Deposits {
			if i == w {
				continue
			}
			var err error
			losing, err = fixedpoint.Add(losing, d)
			if err != nil {
				return nil, err
			}
		}
		cut, err := fixedpoint.MulDiv(losing, held, winningTotal)
		if err != nil {
			return nil, err
		}
		return fixedpoint.Add(held, cut)
	default:
		return fixedpoint.MulDiv(p.TotalDeposits(), held, winningTotal)
	}
}

// Claim settles one account. Before resolution it is a deliberate no-op:
// claiming early is safe and changes nothing. After resolution it computes
// the winnings once, zeroes the position on every outcome, and marks it
// claimed; a second claim fails with ErrAlreadyClaimed. The returned applied
// flag distinguishes the early no-op from a real (possibly zero-payout)
// claim.
func Claim(st *State) (payout *big.Int, applied bool, err error) {
	if !st.Market.Resolved() {
		return new(big.Int), false, nil
	}
	if st.Position.Claimed {
		return nil, false, domain.ErrAlreadyClaimed
	}

	payout, err = winnings(st.Market, st.Pool, st.Position)
	if err != nil {
		return nil, false, err
	}

	for i := range st.Position.Shares {
		st.Position.Shares[i] = new(big.Int)
	}
	st.Position.Claimed = true
	return payout, true, nil
}

// Payout pairs an account with the amount settlement owes it.
type Payout struct {
	Account string
	Amount  *big.Int
}

// SettlementReport walks every position of a resolved market exactly once
// and computes each account's payout. It is all-or-nothing: if any single
// computation fails, no report is produced and the settlement must be
// retried after the condition is fixed. The total paid never exceeds the
// collected deposits (truncating division can only round down).
func SettlementReport(m domain.Market, p domain.Pool, positions []domain.Position) ([]Payout, error) {
	if !m.Resolved() {
		return nil, domain.ErrMarketNotSettled
	}
	payouts := make([]Payout, 0, len(positions))
	for _, pos := range positions {
		if pos.Claimed {
			continue
		}
		amount, err := winnings(m, p, pos)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, Payout{Account: pos.Account, Amount: amount})
	}
	return payouts, nil
}
