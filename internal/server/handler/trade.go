package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/engine"
	"github.com/soromarket/marketd/internal/service"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	Buy(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error)
	Sell(ctx context.Context, marketID, account string, outcome int, shares *big.Int) (service.TradeResult, error)
	Trade(ctx context.Context, marketID, account string, outcome int, signedAmount *big.Int) (service.TradeResult, error)
	Claim(ctx context.Context, marketID, account string) (service.ClaimResult, error)
	QuoteBuy(ctx context.Context, marketID string, outcome int, amount *big.Int) (domain.Quote, error)
	QuoteSell(ctx context.Context, marketID string, outcome int, shares *big.Int) (domain.Quote, error)
	GetPosition(ctx context.Context, marketID, account string) (domain.Position, error)
	ListTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error)
	SettlementReport(ctx context.Context, marketID string) ([]engine.Payout, error)
}

// TradeHandler serves trading, claiming and position HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logHandler(logger, "trade"),
	}
}

// tradeRequest is the JSON body shared by the buy, sell and trade endpoints.
// Amount is a decimal string; the unified trade endpoint accepts a signed
// value where negative means sell.
type tradeRequest struct {
	Account string `json:"account"`
	Outcome int    `json:"outcome"`
	Amount  string `json:"amount"`
}

// tradeResponse is the wire shape of an executed trade.
type tradeResponse struct {
	Trade    tradeView    `json:"trade"`
	Pool     poolView     `json:"pool"`
	Position positionView `json:"position"`
}

func viewTradeResult(res service.TradeResult) tradeResponse {
	return tradeResponse{
		Trade:    viewTrade(res.Trade),
		Pool:     viewPool(res.Pool),
		Position: viewPosition(res.Position),
	}
}

// Buy spends Amount of the market's asset on shares of one outcome.
// POST /api/markets/{id}/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.trades.Buy)
}

// Sell redeems Amount shares of one outcome for the market's asset.
// POST /api/markets/{id}/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.trades.Sell)
}

// Trade executes a signed-amount trade: positive buys, negative sells.
// POST /api/markets/{id}/trade
func (h *TradeHandler) Trade(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, h.trades.Trade)
}

func (h *TradeHandler) execute(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error),
) {
	id := pathParam(r, "id")

	var body tradeRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	res, err := run(r.Context(), id, body.Account, body.Outcome, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTradeResult(res))
}

// claimRequest is the JSON body for claiming winnings.
type claimRequest struct {
	Account string `json:"account"`
}

// claimResponse reports the payout of a claim. Applied is false when the
// position held no winning shares, in which case Payout is zero.
type claimResponse struct {
	MarketID string `json:"market_id"`
	Account  string `json:"account"`
	Payout   string `json:"payout"`
	Applied  bool   `json:"applied"`
}

// Claim pays out an account's winning shares on a settled market.
// POST /api/markets/{id}/claim
func (h *TradeHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var body claimRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.trades.Claim(r.Context(), id, body.Account)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		MarketID: id,
		Account:  body.Account,
		Payout:   num(res.Payout),
		Applied:  res.Applied,
	})
}

// Quote previews a trade without executing it.
// GET /api/markets/{id}/quote?side=buy&outcome=0&amount=1000000
func (h *TradeHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	q := r.URL.Query()

	outcome, err := strconv.Atoi(q.Get("outcome"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}
	amount, err := parseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	var quote domain.Quote
	switch q.Get("side") {
	case "buy", "":
		quote, err = h.trades.QuoteBuy(r.Context(), id, outcome, amount)
	case "sell":
		quote, err = h.trades.QuoteSell(r.Context(), id, outcome, amount)
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewQuote(quote))
}

// GetPosition returns one account's share balances in a market. Accounts
// with no recorded trades get an empty position rather than a 404.
// GET /api/markets/{id}/positions/{account}
func (h *TradeHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	account := pathParam(r, "account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing account")
		return
	}

	pos, err := h.trades.GetPosition(r.Context(), id, account)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPosition(pos))
}

// listTradesResponse wraps the trade history with pagination metadata.
type listTradesResponse struct {
	Trades []tradeView `json:"trades"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListTrades returns a market's trade history in execution order.
// GET /api/markets/{id}/trades?limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	opts := parseListOpts(r)

	trades, err := h.trades.ListTrades(r.Context(), id, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listTradesResponse{
		Trades: viewTrades(trades),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// settlementReportResponse lists the payout every unclaimed position of a
// resolved market is owed.
type settlementReportResponse struct {
	MarketID string       `json:"market_id"`
	Payouts  []payoutView `json:"payouts"`
}

// SettlementReport computes the outstanding payouts of a resolved market.
// GET /api/markets/{id}/report
func (h *TradeHandler) SettlementReport(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	payouts, err := h.trades.SettlementReport(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementReportResponse{
		MarketID: id,
		Payouts:  viewPayouts(payouts),
	})
}
