package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Backend.Retries)
	assert.Equal(t, 10*time.Second, cfg.Market.RefreshInterval)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
app:
  app_id: aura
backend:
  base_url: http://backend.local
  retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("BACKEND_URL", "http://override.local")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "aura", cfg.App.AppID)
	assert.Equal(t, "http://override.local", cfg.Backend.BaseURL)
	assert.Equal(t, 5, cfg.Backend.Retries)
	assert.True(t, cfg.Redis.Enabled)
	// keys absent from the file keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "aura", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=aura sslmode=disable", db.DSN())
}
