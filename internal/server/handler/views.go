package handler

import (
	"math/big"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/engine"
)

// Amount fields cross the API boundary as decimal strings so 128-bit values
// survive JSON encoding intact. The view types below are the wire shapes of
// the domain records.

func num(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nums(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = num(v)
	}
	return out
}

type marketView struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Curve        string   `json:"curve"`
	OutcomeCount int      `json:"outcome_count"`
	Outcomes     []string `json:"outcomes"`

	LiquidityParam string   `json:"liquidity_param,omitempty"`
	Prices         []string `json:"prices,omitempty"`
	InitialReserve string   `json:"initial_reserve,omitempty"`

	Asset  string `json:"asset"`
	Oracle string `json:"oracle"`
	Admin  string `json:"admin"`

	Status  string `json:"status"`
	Outcome int    `json:"outcome"`

	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func viewMarket(m domain.Market) marketView {
	v := marketView{
		ID:           m.ID,
		Description:  m.Description,
		Curve:        string(m.Curve),
		OutcomeCount: m.OutcomeCount,
		Outcomes:     m.Outcomes,
		Asset:        m.Asset,
		Oracle:       m.Oracle,
		Admin:        m.Admin,
		Status:       string(m.Status),
		Outcome:      m.Outcome,
		CreatedAt:    m.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    m.UpdatedAt.UTC().Format(timeFormat),
	}
	if m.LiquidityParam != nil {
		v.LiquidityParam = num(m.LiquidityParam)
	}
	if len(m.Prices) > 0 {
		v.Prices = nums(m.Prices)
	}
	if m.InitialReserve != nil {
		v.InitialReserve = num(m.InitialReserve)
	}
	if m.ResolvedAt != nil {
		v.ResolvedAt = m.ResolvedAt.UTC().Format(timeFormat)
	}
	return v
}

func viewMarkets(ms []domain.Market) []marketView {
	out := make([]marketView, len(ms))
	for i, m := range ms {
		out[i] = viewMarket(m)
	}
	return out
}

type poolView struct {
	MarketID    string   `json:"market_id"`
	Reserves    []string `json:"reserves"`
	Deposits    []string `json:"deposits"`
	ShareSupply []string `json:"share_supply"`
	TotalVolume string   `json:"total_volume"`
}

func viewPool(p domain.Pool) poolView {
	return poolView{
		MarketID:    p.MarketID,
		Reserves:    nums(p.Reserves),
		Deposits:    nums(p.Deposits),
		ShareSupply: nums(p.ShareSupply),
		TotalVolume: num(p.TotalVolume),
	}
}

type positionView struct {
	MarketID string   `json:"market_id"`
	Account  string   `json:"account"`
	Shares   []string `json:"shares"`
	Claimed  bool     `json:"claimed"`
}

func viewPosition(p domain.Position) positionView {
	return positionView{
		MarketID: p.MarketID,
		Account:  p.Account,
		Shares:   nums(p.Shares),
		Claimed:  p.Claimed,
	}
}

type tradeView struct {
	ID        string `json:"id"`
	MarketID  string `json:"market_id"`
	Account   string `json:"account"`
	Outcome   int    `json:"outcome"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	Shares    string `json:"shares"`
	CreatedAt string `json:"created_at"`
}

func viewTrade(t domain.Trade) tradeView {
	return tradeView{
		ID:        t.ID,
		MarketID:  t.MarketID,
		Account:   t.Account,
		Outcome:   t.Outcome,
		Kind:      string(t.Kind),
		Amount:    num(t.Amount),
		Shares:    num(t.Shares),
		CreatedAt: t.CreatedAt.UTC().Format(timeFormat),
	}
}

func viewTrades(ts []domain.Trade) []tradeView {
	out := make([]tradeView, len(ts))
	for i, t := range ts {
		out[i] = viewTrade(t)
	}
	return out
}

type quoteView struct {
	MarketID string `json:"market_id"`
	Outcome  int    `json:"outcome"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Shares   string `json:"shares"`
}

func viewQuote(q domain.Quote) quoteView {
	return quoteView{
		MarketID: q.MarketID,
		Outcome:  q.Outcome,
		Kind:     string(q.Kind),
		Amount:   num(q.Amount),
		Shares:   num(q.Shares),
	}
}

type payoutView struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func viewPayouts(ps []engine.Payout) []payoutView {
	out := make([]payoutView, len(ps))
	for i, p := range ps {
		out[i] = payoutView{Account: p.Account, Amount: num(p.Amount)}
	}
	return out
}
