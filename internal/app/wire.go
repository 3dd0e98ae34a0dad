package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/falconadvisor/taxharvest/internal/blob/s3"
	"github.com/falconadvisor/taxharvest/internal/broker/alpaca"
	"github.com/falconadvisor/taxharvest/internal/cache/redis"
	"github.com/falconadvisor/taxharvest/internal/config"
	"github.com/falconadvisor/taxharvest/internal/domain"
	"github.com/falconadvisor/taxharvest/internal/notify"
	"github.com/falconadvisor/taxharvest/internal/store/postgres"
)

// PortfolioLister enumerates the portfolios present in the holdings snapshot.
type PortfolioLister interface {
	ListPortfolios(ctx context.Context) ([]string, error)
}

// Pinger reports liveness of an infrastructure client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Positions  domain.PositionProvider
	Portfolios PortfolioLister
	Ledger     domain.TradeLedger
	Executions domain.ExecutionStore
	Audit      domain.AuditStore

	// Caches
	Reports domain.OpportunityCache
	Locks   domain.LockManager

	// Brokerage (only wired in server mode)
	Broker domain.Brokerage

	// Blob storage (only wired when S3 is enabled)
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Raw clients, for health checks.
	DBPinger    Pinger
	CachePinger Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	positionStore := postgres.NewPositionStore(pool)
	deps.Positions = positionStore
	deps.Portfolios = positionStore
	deps.Ledger = postgres.NewTradeStore(pool)
	deps.Executions = postgres.NewExecutionStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)
	deps.DBPinger = pgClient

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

	deps.Reports = redis.NewOpportunityCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.CachePinger = redisClient

	// --- Brokerage (executions only run in server mode) ---
	if strings.ToLower(cfg.Mode) == "server" {
		baseURL := cfg.Broker.BaseURL
		if cfg.Broker.Paper {
			baseURL = alpaca.DefaultPaperURL
		}
		deps.Broker = alpaca.NewClient(baseURL, cfg.Broker.APIKey, cfg.Broker.APISecret)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Executions, deps.Audit)
	}

	// --- Notifications ---
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

	return deps, cleanup, nil
}
