package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soromarket/marketd/internal/asset"
	"github.com/soromarket/marketd/internal/server"
	"github.com/soromarket/marketd/internal/server/handler"
	"github.com/soromarket/marketd/internal/server/ws"
	"github.com/soromarket/marketd/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// shutdown signal.
const shutdownTimeout = 5 * time.Second

// Serve builds the service layer on top of the wired dependencies and runs
// the HTTP + WebSocket API server until the context is cancelled.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	marketSvc := service.NewMarketService(
		deps.Stores,
		deps.AssetLedger,
		deps.LockManager,
		deps.QuoteCache,
		deps.SignalBus,
		deps.Authorizer,
		deps.Exporter,
		a.cfg.Market.EscrowAccount,
		a.logger,
	)
	tradeSvc := service.NewTradeService(
		deps.Stores,
		deps.AssetLedger,
		deps.LockManager,
		deps.QuoteCache,
		deps.SignalBus,
		a.cfg.Market.EscrowAccount,
		a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return a.watchEvents(ctx, deps)
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Markets: handler.NewMarketHandler(marketSvc, a.logger),
			Trades:  handler.NewTradeHandler(tradeSvc, a.logger),
			Faucet:  a.faucetHandler(deps),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// faucetHandler returns the dev-mode funding endpoint, or nil outside dev
// mode. The faucet mints directly on the in-process ledger, which only makes
// sense when that ledger is the source of truth.
func (a *App) faucetHandler(deps *Dependencies) *handler.FaucetHandler {
	if strings.ToLower(a.cfg.Mode) != "dev" {
		return nil
	}
	ledger, ok := deps.AssetLedger.(*asset.Ledger)
	if !ok {
		return nil
	}
	return handler.NewFaucetHandler(ledger, a.cfg.Market.EscrowAccount, a.logger)
}

// watchEvents forwards market lifecycle events from the signal bus to the
// operator notifier. Which event types are forwarded is decided by the
// notify config; sender failures are logged inside the notifier and never
// stop the watcher.
func (a *App) watchEvents(ctx context.Context, deps *Dependencies) error {
	msgCh, err := deps.SignalBus.Subscribe(ctx, "market:*")
	if err != nil {
		return fmt.Errorf("app: subscribe market events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgCh:
			if !ok {
				return nil
			}
			var evt struct {
				Type     string `json:"type"`
				MarketID string `json:"market_id"`
				Outcome  *int   `json:"outcome"`
			}
			if err := json.Unmarshal(data, &evt); err != nil || evt.Type == "" {
				continue
			}
			message := "market " + evt.MarketID
			if evt.Outcome != nil {
				message = fmt.Sprintf("%s, outcome %d", message, *evt.Outcome)
			}
			_ = deps.Notifier.Notify(ctx, evt.Type, evt.Type, message)
		}
	}
}
