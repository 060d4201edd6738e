package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/polytracker/internal/blob/s3"
	"github.com/alanyoungcy/polytracker/internal/cache/memory"
	"github.com/alanyoungcy/polytracker/internal/cache/redis"
	"github.com/alanyoungcy/polytracker/internal/config"
	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/notify"
	"github.com/alanyoungcy/polytracker/internal/platform/polymarket"
	"github.com/alanyoungcy/polytracker/internal/store/file"
	"github.com/alanyoungcy/polytracker/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the application
// needs. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	PositionStore domain.PositionStore
	AlertStore    domain.AlertStore

	PriceCache domain.PriceCache
	SignalBus  domain.SignalBus

	Clob  *polymarket.ClobClient
	Gamma *polymarket.GammaClient

	Notifier *notify.Notifier

	// Archiver is nil unless S3 is enabled.
	Archiver *s3blob.Archiver
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to call
// on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Position and alert stores ---
	switch strings.ToLower(cfg.Storage.Backend) {
	case "postgres":
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

		pool := pgClient.Pool()
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.AlertStore = postgres.NewAlertStore(pool)

	default:
		store, err := file.NewPositionStore(cfg.Storage.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: file store: %w", err)
		}
		deps.PositionStore = store
		deps.AlertStore = file.NewAlertStore(cfg.Storage.AlertLogPath)
	}

	// --- Price cache and event bus ---
	if cfg.Redis.Enabled {
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

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.PriceCache = memory.NewPriceCache()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- Polymarket API clients ---
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)

	// --- S3 snapshot archiver ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         strings.HasPrefix(cfg.S3.Endpoint, "https://") || cfg.S3.Endpoint == "",
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.PositionStore,
			deps.AlertStore,
			logger,
		)
	}

	// --- Notification channels ---
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
	if cfg.Notify.ResendAPIKey != "" {
		senders = append(senders, notify.NewEmailSender(
			cfg.Notify.ResendAPIKey,
			cfg.Notify.EmailFrom,
			cfg.Notify.EmailTo,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	return deps, cleanup, nil
}
