package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/engine"
)

// marketEvent is the JSON frame published on the signal bus for every
// state-changing market operation. Amounts are decimal strings.
type marketEvent struct {
	Type     string `json:"type"`
	MarketID string `json:"market_id"`
	Account  string `json:"account,omitempty"`
	Outcome  *int   `json:"outcome,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Shares   string `json:"shares,omitempty"`
	Payout   string `json:"payout,omitempty"`
}

// eventChannel is the per-market Pub/Sub channel. Consumers subscribe with
// the pattern "market:*" to receive every market's events.
func eventChannel(marketID string) string {
	return "market:" + marketID
}

func marketLockKey(marketID string) string {
	return "market:" + marketID
}

func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, marketID string, ev marketEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorContext(ctx, "event marshal failed",
			slog.String("market_id", marketID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, eventChannel(marketID), data); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("market_id", marketID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Canonical payloads privileged callers sign. The service rebuilds the same
// bytes from the request, so a signature never authorizes anything beyond
// the one operation it names.

func settlePayload(marketID string, outcome int) []byte {
	return []byte(fmt.Sprintf("settle|%s|%d", marketID, outcome))
}

func archivePayload(marketID string) []byte {
	return []byte(fmt.Sprintf("archive|%s", marketID))
}

func paramsPayload(marketID string, prices []*big.Int, liquidity *big.Int) []byte {
	buf := []byte(fmt.Sprintf("params|%s", marketID))
	for _, p := range prices {
		buf = append(buf, '|')
		buf = append(buf, p.String()...)
	}
	if liquidity != nil {
		buf = append(buf, '|', 'L')
		buf = append(buf, liquidity.String()...)
	}
	return buf
}

// SettlePayload exposes the canonical settle payload for signing clients.
func SettlePayload(marketID string, outcome int) []byte { return settlePayload(marketID, outcome) }

// ArchivePayload exposes the canonical archive payload for signing clients.
func ArchivePayload(marketID string) []byte { return archivePayload(marketID) }

// ParamsPayload exposes the canonical parameter-update payload for signing
// clients.
func ParamsPayload(marketID string, prices []*big.Int, liquidity *big.Int) []byte {
	return paramsPayload(marketID, prices, liquidity)
}

func buildSnapshot(m domain.Market, p domain.Pool) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		MarketID:    m.ID,
		Status:      string(m.Status),
		Outcome:     m.Outcome,
		Reserves:    decimalStrings(p.Reserves),
		Deposits:    decimalStrings(p.Deposits),
		ShareSupply: decimalStrings(p.ShareSupply),
		TotalVolume: p.TotalVolume.String(),
		UpdatedAt:   time.Now().UTC(),
	}
	if probs, err := engine.Probabilities(m, p); err == nil {
		snap.Probabilities = decimalStrings(probs)
	}
	return snap
}

func refreshSnapshot(ctx context.Context, cache domain.QuoteCache, logger *slog.Logger, m domain.Market, p domain.Pool) {
	if err := cache.Set(ctx, buildSnapshot(m, p)); err != nil {
		logger.WarnContext(ctx, "snapshot refresh failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func decimalStrings(vs []*big.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
