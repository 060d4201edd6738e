package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, time.Minute, cfg.Poll.Interval.Duration)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
log_level = "debug"

[storage]
backend = "file"
path = "custom/positions.json"

[poll]
enabled = true
interval = "30s"
fetch_timeout = "5s"

[server]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom/positions.json", cfg.Storage.Path)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval.Duration)
	assert.Equal(t, 5*time.Second, cfg.Poll.FetchTimeout.Duration)
	assert.False(t, cfg.Server.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLYTRACKER_STORAGE_BACKEND", "postgres")
	t.Setenv("POLYTRACKER_POSTGRES_HOST", "db.internal")
	t.Setenv("POLYTRACKER_SERVER_PORT", "9090")
	t.Setenv("POLYTRACKER_POLL_INTERVAL", "2m")
	t.Setenv("POLYTRACKER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Poll.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestDatabaseURLAlias(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@host:5432/db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@host:5432/db", cfg.Postgres.DSN)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Storage.Backend = "sqlite"
	cfg.Server.Port = 0
	cfg.Notify.TelegramToken = "token-without-chat-id"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "backend")
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "telegram")
}

func TestValidatePostgresBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Backend = "postgres"
	assert.NoError(t, cfg.Validate())

	cfg.Postgres.Database = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")

	// A DSN replaces the discrete connection fields.
	cfg.Postgres.DSN = "postgres://u:p@host:5432/db"
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.TelegramChatID = "42"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "42", red.Notify.TelegramChatID)
	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}

func TestValidateResendTriple(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.ResendAPIKey = "re_123"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend")

	cfg.Notify.EmailFrom = "alerts@example.com"
	cfg.Notify.EmailTo = "me@example.com"
	assert.NoError(t, cfg.Validate())
}
