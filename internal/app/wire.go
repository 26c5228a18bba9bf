package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soromarket/marketd/internal/asset"
	"github.com/soromarket/marketd/internal/auth"
	s3blob "github.com/soromarket/marketd/internal/blob/s3"
	cachemem "github.com/soromarket/marketd/internal/cache/memory"
	"github.com/soromarket/marketd/internal/cache/redis"
	"github.com/soromarket/marketd/internal/config"
	"github.com/soromarket/marketd/internal/domain"
	"github.com/soromarket/marketd/internal/notify"
	"github.com/soromarket/marketd/internal/service"
	storemem "github.com/soromarket/marketd/internal/store/memory"
	"github.com/soromarket/marketd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application needs.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Stores service.Stores

	// AssetLedger stands in for the external ledger that holds trader
	// funds. The in-process implementation keeps the commit ordering
	// contract observable end to end.
	AssetLedger domain.AssetLedger

	LockManager domain.LockManager
	QuoteCache  domain.QuoteCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	Authorizer domain.Authorizer

	// Signer holds the operator's signing key when one is configured. It
	// is not required to serve traffic; operational tooling uses it to
	// sign settle and archive payloads.
	Signer *auth.Signer

	// Exporter is nil when no S3 bucket is configured; archival then skips
	// the blob export step.
	Exporter domain.ArchiveExporter

	// Notifier forwards market lifecycle events to operator channels. It
	// is always non-nil; with no senders configured it is a no-op.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		AssetLedger: asset.NewLedger(),
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	if err := wireAuthorizer(cfg, deps); err != nil {
		return nil, nil, err
	}

	if cfg.Auth.SignerKey != "" || cfg.Auth.EncryptedKeyPath != "" {
		keyHex, err := auth.LoadKey(auth.KeyConfig{
			RawPrivateKey:    cfg.Auth.SignerKey,
			EncryptedKeyPath: cfg.Auth.EncryptedKeyPath,
			KeyPassword:      cfg.Auth.KeyPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: load signer key: %w", err)
		}
		signer, err := auth.NewSigner(keyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		logger.Info("wire: operator signer loaded",
			slog.String("address", signer.Address()),
		)
	}

	if strings.ToLower(cfg.Mode) == "dev" {
		wireMemory(deps)
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.Stores = service.Stores{
		Markets:   postgres.NewMarketStore(pgClient),
		Pools:     postgres.NewPoolStore(pgClient),
		Positions: postgres.NewPositionStore(pgClient),
		Trades:    postgres.NewTradeStore(pgClient),
		Audit:     postgres.NewAuditStore(pgClient),
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 blob storage (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Exporter = s3blob.NewExporter(s3blob.NewWriter(s3Client), deps.Stores.Audit)
	} else {
		logger.Info("wire: s3 bucket not configured, archive export disabled")
	}

	return deps, cleanup, nil
}

// wireAuthorizer selects the operation authorizer from the auth config.
func wireAuthorizer(cfg *config.Config, deps *Dependencies) error {
	switch strings.ToLower(cfg.Auth.Scheme) {
	case "signature":
		deps.Authorizer = auth.NewSignatureAuthorizer()
	case "static":
		deps.Authorizer = auth.NewStaticAuthorizer(cfg.Auth.Accounts)
	default:
		return fmt.Errorf("wire: unknown auth scheme %q", cfg.Auth.Scheme)
	}
	return nil
}

// wireMemory fills Dependencies with in-process implementations. Dev mode
// runs without Postgres, Redis or S3.
func wireMemory(deps *Dependencies) {
	kv := storemem.NewKV()
	deps.Stores = service.Stores{
		Markets:   storemem.NewMarketStore(kv),
		Pools:     storemem.NewPoolStore(kv),
		Positions: storemem.NewPositionStore(kv),
		Trades:    storemem.NewTradeStore(kv),
		Audit:     storemem.NewAuditStore(kv),
	}
	deps.LockManager = cachemem.NewLockManager()
	deps.QuoteCache = cachemem.NewQuoteCache()
	deps.SignalBus = cachemem.NewSignalBus()
}
