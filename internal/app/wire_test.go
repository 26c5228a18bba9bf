package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soromarket/marketd/internal/config"
	"github.com/soromarket/marketd/internal/service"
	"github.com/soromarket/marketd/internal/store/postgres"
)

// The serve path hands the postgres client straight to the store
// constructors; this pins their signatures so a constructor change
// surfaces here instead of in Wire.
var _ = func(c *postgres.Client) service.Stores {
	return service.Stores{
		Markets:   postgres.NewMarketStore(c),
		Pools:     postgres.NewPoolStore(c),
		Positions: postgres.NewPositionStore(c),
		Trades:    postgres.NewTradeStore(c),
		Audit:     postgres.NewAuditStore(c),
	}
}

func TestWireDevMode(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "dev"
	cfg.Auth.Scheme = "static"
	cfg.Auth.Accounts = []string{"admin"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup, err := Wire(context.Background(), &cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Stores.Markets)
	require.NotNil(t, deps.Stores.Pools)
	require.NotNil(t, deps.Stores.Positions)
	require.NotNil(t, deps.Stores.Trades)
	require.NotNil(t, deps.Stores.Audit)
	require.NotNil(t, deps.AssetLedger)
	require.NotNil(t, deps.LockManager)
	require.NotNil(t, deps.QuoteCache)
	require.NotNil(t, deps.SignalBus)
	require.NotNil(t, deps.Authorizer)
	require.NotNil(t, deps.Notifier)
	require.Nil(t, deps.Exporter)
}

func TestWireRejectsUnknownAuthScheme(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "dev"
	cfg.Auth.Scheme = "mystery"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, _, err := Wire(context.Background(), &cfg, logger)
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth scheme")
}
