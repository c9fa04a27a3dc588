package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  accessSecret: test-access
  refreshSecret: test-refresh
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "viewmaxx", cfg.Database.DBName)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.RateLimit.RPS)
	assert.Equal(t, 30, cfg.RateLimit.Burst)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 8080
auth:
  accessSecret: test-access
  refreshSecret: test-refresh
  accessTokenTTL: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	path := writeConfig(t, `
auth:
  accessSecret: test-access
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refreshSecret")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
