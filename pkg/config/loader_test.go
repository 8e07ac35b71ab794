package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gatekeeper.yaml"), []byte(contents), 0o644))
	return dir
}

func TestInitialize_AppliesDefaultsAndParsesProviders(t *testing.T) {
	dir := writeTestConfig(t, `
server:
  address: ":9090"
kvstore:
  backend: memory
providers:
  stocks:
    category: stock
    base_url: https://example.test/quote
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.KVStore.Backend)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout, "request_timeout falls back to the built-in default")
	assert.Equal(t, 10*time.Minute, cfg.AckTokenTTL)
	assert.Contains(t, cfg.Providers, "stocks")

	stats := cfg.Stats()
	assert.Equal(t, 1, stats.Providers)
	assert.Equal(t, "memory", stats.Backend)
}

func TestInitialize_ConfigNotFound(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitialize_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("STOCKS_BASE_URL", "https://configured.example.test")
	dir := writeTestConfig(t, `
kvstore:
  backend: memory
providers:
  stocks:
    category: stock
    base_url: ${STOCKS_BASE_URL}
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "https://configured.example.test", cfg.Providers["stocks"].BaseURL)
}

func TestInitialize_RejectsInvalidKVStoreBackend(t *testing.T) {
	dir := writeTestConfig(t, `
kvstore:
  backend: carrier-pigeon
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kvstore validation failed")
}

func TestInitialize_RejectsDuplicateSchedulerJobIDs(t *testing.T) {
	dir := writeTestConfig(t, `
kvstore:
  backend: memory
scheduler:
  jobs:
    - id: sweep
      interval_ms: 1000
    - id: sweep
      cron: "0 * * * *"
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate job id")
}
