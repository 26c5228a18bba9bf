package domain

import (
	"math/big"
	"time"
)

// TradeKind distinguishes buys from sells in the trade history.
type TradeKind string

const (
	TradeKindBuy  TradeKind = "buy"
	TradeKindSell TradeKind = "sell"
)

// Trade is one executed trade, recorded for reporting and archival. Amount
// is the asset value moved (paid in for buys, paid out for sells) and
// Shares the share count issued or redeemed.
type Trade struct {
	ID        string
	MarketID  string
	Account   string
	Outcome   int
	Kind      TradeKind
	Amount    *big.Int
	Shares    *big.Int
	CreatedAt time.Time
}

// Quote is the read-only answer to "what would this trade do right now".
type Quote struct {
	MarketID string
	Outcome  int
	Kind     TradeKind
	// Amount echoes the asset value quoted against; Shares is the share
	// count issued (buy quotes) or the payout is in Amount (sell quotes,
	// where Shares echoes the input).
	Amount *big.Int
	Shares *big.Int
}
