package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/engine"
	"github.com/soromarket/marketd/internal/service"
)

type fakeMarketService struct {
	setup  func(ctx context.Context, req service.SetupRequest) (domain.Market, error)
	get    func(ctx context.Context, id string) (domain.Market, error)
	settle func(ctx context.Context, id string, outcome int, caller string, sig []byte) (domain.Market, error)
}

func (f *fakeMarketService) Setup(ctx context.Context, req service.SetupRequest) (domain.Market, error) {
	return f.setup(ctx, req)
}

func (f *fakeMarketService) Settle(ctx context.Context, id string, outcome int, caller string, sig []byte) (domain.Market, error) {
	return f.settle(ctx, id, outcome, caller, sig)
}

func (f *fakeMarketService) UpdateParams(ctx context.Context, id string, prices []*big.Int, liquidity *big.Int, caller string, sig []byte) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketService) Archive(ctx context.Context, id string, caller string, sig []byte) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return f.get(ctx, id)
}

func (f *fakeMarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error) {
	return nil, 0, nil
}

func (f *fakeMarketService) GetPool(ctx context.Context, id string) (domain.Pool, error) {
	return domain.Pool{}, domain.ErrNotFound
}

func (f *fakeMarketService) Probabilities(ctx context.Context, id string) ([]*big.Int, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeMarketService) Snapshot(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	return domain.MarketSnapshot{}, domain.ErrNotFound
}

type fakeTradeService struct {
	buy   func(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error)
	quote func(ctx context.Context, marketID string, outcome int, amount *big.Int) (domain.Quote, error)
}

func (f *fakeTradeService) Buy(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error) {
	return f.buy(ctx, marketID, account, outcome, amount)
}

func (f *fakeTradeService) Sell(ctx context.Context, marketID, account string, outcome int, shares *big.Int) (service.TradeResult, error) {
	return service.TradeResult{}, domain.ErrNotFound
}

func (f *fakeTradeService) Trade(ctx context.Context, marketID, account string, outcome int, signedAmount *big.Int) (service.TradeResult, error) {
	return service.TradeResult{}, domain.ErrNotFound
}

func (f *fakeTradeService) Claim(ctx context.Context, marketID, account string) (service.ClaimResult, error) {
	return service.ClaimResult{}, domain.ErrMarketNotSettled
}

func (f *fakeTradeService) QuoteBuy(ctx context.Context, marketID string, outcome int, amount *big.Int) (domain.Quote, error) {
	return f.quote(ctx, marketID, outcome, amount)
}

func (f *fakeTradeService) QuoteSell(ctx context.Context, marketID string, outcome int, shares *big.Int) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrSellUnsupported
}

func (f *fakeTradeService) GetPosition(ctx context.Context, marketID, account string) (domain.Position, error) {
	return domain.NewPosition(marketID, account, 2), nil
}

func (f *fakeTradeService) ListTrades(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (f *fakeTradeService) SettlementReport(ctx context.Context, marketID string) ([]engine.Payout, error) {
	return nil, domain.ErrMarketNotSettled
}

func testMux(markets MarketService, trades TradeService) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mh := NewMarketHandler(markets, logger)
	th := NewTradeHandler(trades, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets", mh.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", mh.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/settle", mh.SettleMarket)
	mux.HandleFunc("POST /api/markets/{id}/buy", th.Buy)
	mux.HandleFunc("POST /api/markets/{id}/claim", th.Claim)
	mux.HandleFunc("GET /api/markets/{id}/quote", th.Quote)
	mux.HandleFunc("GET /api/markets/{id}/positions/{account}", th.GetPosition)
	return mux
}

func TestGetMarketNotFound(t *testing.T) {
	mux := testMux(&fakeMarketService{
		get: func(ctx context.Context, id string) (domain.Market, error) {
			return domain.Market{}, domain.ErrNotFound
		},
	}, &fakeTradeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "not found")
}

func TestCreateMarketDecodesAmounts(t *testing.T) {
	var got service.SetupRequest
	mux := testMux(&fakeMarketService{
		setup: func(ctx context.Context, req service.SetupRequest) (domain.Market, error) {
			got = req
			return domain.Market{
				ID:           "m1",
				Curve:        req.Curve,
				OutcomeCount: len(req.Outcomes),
				Outcomes:     req.Outcomes,
				Status:       domain.MarketStatusLive,
				Outcome:      domain.OutcomeUndecided,
			}, nil
		},
	}, &fakeTradeService{})

	payload := `{
		"description": "resolves yes?",
		"curve": "cpmm",
		"outcomes": ["Yes", "No"],
		"asset": "usd",
		"oracle": "oracle",
		"admin": "admin",
		"creator": "alice",
		"initial_reserve": "1000000"
	}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(payload)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, domain.CurveCPMM, got.Curve)
	require.Equal(t, "1000000", got.InitialReserve.String())

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "m1", view["id"])
	require.Equal(t, "live", view["status"])
}

func TestCreateMarketRejectsUnknownFields(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets",
		strings.NewReader(`{"curve":"cpmm","bogus":true}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettleUnauthorized(t *testing.T) {
	mux := testMux(&fakeMarketService{
		settle: func(ctx context.Context, id string, outcome int, caller string, sig []byte) (domain.Market, error) {
			return domain.Market{}, domain.ErrUnauthorized
		},
	}, &fakeTradeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets/m1/settle",
		strings.NewReader(`{"outcome":0,"caller":"impostor"}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuyInsufficientFundsMapsTo422(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{
		buy: func(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error) {
			return service.TradeResult{}, domain.ErrInsufficientFunds
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets/m1/buy",
		strings.NewReader(`{"account":"alice","outcome":0,"amount":"500"}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBuyAmountsAreDecimalStrings(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{
		buy: func(ctx context.Context, marketID, account string, outcome int, amount *big.Int) (service.TradeResult, error) {
			pool := domain.NewPool(marketID, 2)
			pool.Reserves[0] = big.NewInt(1_500_000)
			pool.Reserves[1] = big.NewInt(666_667)
			pos := domain.NewPosition(marketID, account, 2)
			pos.Shares[outcome] = big.NewInt(333_333)
			return service.TradeResult{
				Trade: domain.Trade{
					ID:       "t1",
					MarketID: marketID,
					Account:  account,
					Outcome:  outcome,
					Kind:     domain.TradeKindBuy,
					Amount:   amount,
					Shares:   big.NewInt(333_333),
				},
				Pool:     pool,
				Position: pos,
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets/m1/buy",
		strings.NewReader(`{"account":"alice","outcome":0,"amount":"500000"}`)))

	require.Equal(t, http.StatusOK, rec.Code)

	var body tradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "500000", body.Trade.Amount)
	require.Equal(t, "333333", body.Trade.Shares)
	require.Equal(t, []string{"1500000", "666667"}, body.Pool.Reserves)
	require.Equal(t, []string{"333333", "0"}, body.Position.Shares)
}

func TestQuoteParsesQuery(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{
		quote: func(ctx context.Context, marketID string, outcome int, amount *big.Int) (domain.Quote, error) {
			return domain.Quote{
				MarketID: marketID,
				Outcome:  outcome,
				Kind:     domain.TradeKindBuy,
				Amount:   amount,
				Shares:   big.NewInt(42),
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/m1/quote?side=buy&outcome=1&amount=777", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body quoteView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "m1", body.MarketID)
	require.Equal(t, 1, body.Outcome)
	require.Equal(t, "777", body.Amount)
	require.Equal(t, "42", body.Shares)
}

func TestQuoteRejectsBadSide(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/m1/quote?side=hold&outcome=0&amount=1", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPositionEmptyForUnknownAccount(t *testing.T) {
	mux := testMux(&fakeMarketService{}, &fakeTradeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/m1/positions/carol", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body positionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "carol", body.Account)
	require.Equal(t, []string{"0", "0"}, body.Shares)
	require.False(t, body.Claimed)
}
