package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRACKER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
//
// A missing file is not an error: defaults plus env overrides still make a
// usable config for the file backend.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRACKER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYTRACKER_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYTRACKER_POLYMARKET_GAMMA_HOST")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "POLYTRACKER_STORAGE_BACKEND")
	setStr(&cfg.Storage.Path, "POLYTRACKER_STORAGE_PATH")
	setStr(&cfg.Storage.AlertLogPath, "POLYTRACKER_STORAGE_ALERT_LOG_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYTRACKER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYTRACKER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRACKER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRACKER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRACKER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRACKER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRACKER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYTRACKER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYTRACKER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRACKER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYTRACKER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYTRACKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRACKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRACKER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRACKER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRACKER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRACKER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRACKER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRACKER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRACKER_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRACKER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRACKER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRACKER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRACKER_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "POLYTRACKER_S3_ARCHIVE_INTERVAL")

	// ── Poll ──
	setBool(&cfg.Poll.Enabled, "POLYTRACKER_POLL_ENABLED")
	setDuration(&cfg.Poll.Interval, "POLYTRACKER_POLL_INTERVAL")
	setDuration(&cfg.Poll.FetchTimeout, "POLYTRACKER_POLL_FETCH_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYTRACKER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYTRACKER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRACKER_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRACKER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRACKER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYTRACKER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.ResendAPIKey, "POLYTRACKER_NOTIFY_RESEND_API_KEY")
	setStr(&cfg.Notify.EmailFrom, "POLYTRACKER_NOTIFY_EMAIL_FROM")
	setStr(&cfg.Notify.EmailTo, "POLYTRACKER_NOTIFY_EMAIL_TO")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYTRACKER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
