package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7000
log_level: debug
sqlite_path: from-file.db
retention_period: 48h
cors_origins:
  - https://chat.example.com
`), 0o600))

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "key")
	t.Setenv("HTTP_PORT", "7100")
	t.Setenv("WS_EVENT_RATE", "2.5")
	t.Setenv("LEGACY_ENCRYPTION_KEYS", "old-a, old-b")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-file.db", cfg.SQLitePath)
	assert.Equal(t, 48*time.Hour, cfg.RetentionPeriod)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 2.5, cfg.WSEventRate)
	assert.Equal(t, []string{"old-a", "old-b"}, cfg.LegacyKeys)
	assert.Equal(t, "0.0.0.0:7100", cfg.HTTPAddr())
}

func TestLoadPostgresURLFromParts(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "key")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "chatdb")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Contains(t, cfg.DatabaseURL, "@db:5432/chatdb")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.JWTSecret = "s"
	cfg.EncryptKey = "k"
	cfg.StoreDriver = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestValidateRetentionCron(t *testing.T) {
	cfg := Default()
	cfg.JWTSecret = "s"
	cfg.EncryptKey = "k"
	cfg.RetentionEnabled = true
	require.NoError(t, cfg.Validate())

	cfg.RetentionCron = "every night"
	assert.Error(t, cfg.Validate())
}
