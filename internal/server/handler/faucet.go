package handler

import (
	"log/slog"
	"math/big"
	"net/http"
)

// Faucet mints assets and grants the escrow allowance on the in-process
// ledger. Only dev mode registers the faucet; in production the external
// ledger owns balances.
type Faucet interface {
	Mint(asset, account string, amount *big.Int)
	Approve(asset, owner, spender string, amount *big.Int)
}

// FaucetHandler serves the dev-mode funding endpoint.
type FaucetHandler struct {
	ledger Faucet
	escrow string
	logger *slog.Logger
}

// NewFaucetHandler creates a FaucetHandler minting on the given ledger.
// escrow is the account granted the allowance over minted funds.
func NewFaucetHandler(ledger Faucet, escrow string, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{
		ledger: ledger,
		escrow: escrow,
		logger: logHandler(logger, "faucet"),
	}
}

// faucetRequest is the JSON body for a faucet drip. Amount is a decimal
// string.
type faucetRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Drip mints Amount of Asset to Account and approves the escrow account to
// spend it, so the account can immediately create markets and buy shares.
// POST /api/faucet
func (h *FaucetHandler) Drip(w http.ResponseWriter, r *http.Request) {
	var body faucetRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Asset == "" || body.Account == "" {
		writeError(w, http.StatusBadRequest, "asset and account are required")
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	h.ledger.Mint(body.Asset, body.Account, amount)
	h.ledger.Approve(body.Asset, body.Account, h.escrow, amount)

	h.logger.InfoContext(r.Context(), "faucet drip",
		slog.String("asset", body.Asset),
		slog.String("account", body.Account),
		slog.String("amount", amount.String()),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   body.Asset,
		"account": body.Account,
		"amount":  amount.String(),
	})
}
