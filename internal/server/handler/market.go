package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/service"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	Setup(ctx context.Context, req service.SetupRequest) (domain.Market, error)
	Settle(ctx context.Context, marketID string, outcome int, caller string, sig []byte) (domain.Market, error)
	UpdateParams(ctx context.Context, marketID string, prices []*big.Int, liquidity *big.Int, caller string, sig []byte) (domain.Market, error)
	Archive(ctx context.Context, marketID string, caller string, sig []byte) (domain.Market, error)
	GetMarket(ctx context.Context, marketID string) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error)
	GetPool(ctx context.Context, marketID string) (domain.Pool, error)
	Probabilities(ctx context.Context, marketID string) ([]*big.Int, error)
	Snapshot(ctx context.Context, marketID string) (domain.MarketSnapshot, error)
}

// MarketHandler serves market lifecycle and read-model HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// createMarketRequest is the JSON body for market creation. Amounts are
// decimal strings.
type createMarketRequest struct {
	Description    string   `json:"description"`
	Curve          string   `json:"curve"`
	Outcomes       []string `json:"outcomes"`
	Asset          string   `json:"asset"`
	Oracle         string   `json:"oracle"`
	Admin          string   `json:"admin"`
	Creator        string   `json:"creator"`
	LiquidityParam string   `json:"liquidity_param,omitempty"`
	Prices         []string `json:"prices,omitempty"`
	InitialReserve string   `json:"initial_reserve,omitempty"`
}

// CreateMarket creates a new live market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var body createMarketRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := service.SetupRequest{
		Description: body.Description,
		Curve:       domain.CurveType(body.Curve),
		Outcomes:    body.Outcomes,
		Asset:       body.Asset,
		Oracle:      body.Oracle,
		Admin:       body.Admin,
		Creator:     body.Creator,
	}

	var err error
	if body.LiquidityParam != "" {
		if req.LiquidityParam, err = parseAmount(body.LiquidityParam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid liquidity_param")
			return
		}
	}
	if body.InitialReserve != "" {
		if req.InitialReserve, err = parseAmount(body.InitialReserve); err != nil {
			writeError(w, http.StatusBadRequest, "invalid initial_reserve")
			return
		}
	}
	if len(body.Prices) > 0 {
		req.Prices = make([]*big.Int, len(body.Prices))
		for i, p := range body.Prices {
			if req.Prices[i], err = parseAmount(p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid price")
				return
			}
		}
	}

	market, err := h.markets.Setup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewMarket(market))
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []marketView `json:"markets"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// ListMarkets returns markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, total, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: viewMarkets(markets),
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(market))
}

// settleMarketRequest is the JSON body for settlement. The signature covers
// the canonical settle payload for this market and outcome.
type settleMarketRequest struct {
	Outcome   int    `json:"outcome"`
	Caller    string `json:"caller"`
	Signature string `json:"signature,omitempty"`
}

// SettleMarket reports the winning outcome for a market. Only the market's
// oracle may settle.
// POST /api/markets/{id}/settle
func (h *MarketHandler) SettleMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var body settleMarketRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sig, err := parseSig(body.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature encoding")
		return
	}

	market, err := h.markets.Settle(r.Context(), id, body.Outcome, body.Caller, sig)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(market))
}

// updateParamsRequest is the JSON body for a parameter update. Only the
// fields the market's curve uses are honored.
type updateParamsRequest struct {
	Prices         []string `json:"prices,omitempty"`
	LiquidityParam string   `json:"liquidity_param,omitempty"`
	Caller         string   `json:"caller"`
	Signature      string   `json:"signature,omitempty"`
}

// UpdateParams adjusts curve parameters on a live market. Only the market's
// admin may update.
// PUT /api/markets/{id}/params
func (h *MarketHandler) UpdateParams(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var body updateParamsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sig, err := parseSig(body.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature encoding")
		return
	}

	var liquidity *big.Int
	if body.LiquidityParam != "" {
		if liquidity, err = parseAmount(body.LiquidityParam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid liquidity_param")
			return
		}
	}
	var prices []*big.Int
	if len(body.Prices) > 0 {
		prices = make([]*big.Int, len(body.Prices))
		for i, p := range body.Prices {
			if prices[i], err = parseAmount(p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid price")
				return
			}
		}
	}

	market, err := h.markets.UpdateParams(r.Context(), id, prices, liquidity, body.Caller, sig)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(market))
}

// archiveMarketRequest is the JSON body for archival.
type archiveMarketRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature,omitempty"`
}

// ArchiveMarket moves a settled market to the archived state and, when blob
// storage is configured, exports its full history.
// POST /api/markets/{id}/archive
func (h *MarketHandler) ArchiveMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var body archiveMarketRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sig, err := parseSig(body.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature encoding")
		return
	}

	market, err := h.markets.Archive(r.Context(), id, body.Caller, sig)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(market))
}

// GetPool returns the aggregate pool balances of a market.
// GET /api/markets/{id}/pool
func (h *MarketHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	pool, err := h.markets.GetPool(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPool(pool))
}

// probabilitiesResponse carries per-outcome implied probabilities as
// fixed-point decimal strings.
type probabilitiesResponse struct {
	MarketID      string   `json:"market_id"`
	Probabilities []string `json:"probabilities"`
}

// Probabilities returns the implied probability per outcome.
// GET /api/markets/{id}/probabilities
func (h *MarketHandler) Probabilities(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	probs, err := h.markets.Probabilities(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, probabilitiesResponse{
		MarketID:      id,
		Probabilities: nums(probs),
	})
}

// Snapshot returns the cached read-model of a market's pricing state.
// GET /api/markets/{id}/snapshot
func (h *MarketHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snap, err := h.markets.Snapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
