package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestYAMLConfig_UnmarshalsProvidersAndSchedulerJobs(t *testing.T) {
	raw := `
providers:
  stocks:
    category: stock
    base_url: https://example.test/quote
    api_key_env: STOCKS_API_KEY
    timeout_ms: 4000
scheduler:
  jobs:
    - id: retention-sweep
      interval_ms: 3600000
      exclusive: true
`
	var cfg YAMLConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	require.Contains(t, cfg.Providers, "stocks")
	assert.Equal(t, "stock", cfg.Providers["stocks"].Category)
	assert.Equal(t, int64(4000), cfg.Providers["stocks"].TimeoutMs)

	require.Len(t, cfg.Scheduler.Jobs, 1)
	assert.Equal(t, "retention-sweep", cfg.Scheduler.Jobs[0].ID)
	assert.True(t, cfg.Scheduler.Jobs[0].Exclusive)
}

func TestRetentionYAMLConfig_PolicyOverride(t *testing.T) {
	raw := `
sweep_interval: 6h
policies:
  audit_event:
    retention_days: 30
`
	var cfg RetentionYAMLConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "6h", cfg.SweepInterval)
	require.Contains(t, cfg.Policies, "audit_event")
	assert.Equal(t, 30, cfg.Policies["audit_event"].RetentionDays)
}
