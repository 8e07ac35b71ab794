package config

import "time"

// Config is the umbrella configuration object produced by Initialize
// and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	Server    *ServerYAMLConfig
	KVStore   *KVStoreYAMLConfig
	RateLimit *RateLimitYAMLConfig
	Shield    *ShieldYAMLConfig
	Providers map[string]ProviderYAMLConfig
	Scheduler *SchedulerYAMLConfig
	Retention *RetentionYAMLConfig
	Audit     *AuditYAMLConfig
	LLM       *LLMYAMLConfig

	// Resolved durations, computed once at load time from the YAML's
	// string fields so the rest of the codebase works in time.Duration
	// rather than re-parsing strings at call sites.
	RequestTimeout         time.Duration
	AckTokenTTL            time.Duration
	RetentionSweepInterval time.Duration
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ConfigStats summarizes loaded configuration for startup logging.
type ConfigStats struct {
	Providers int
	Jobs      int
	Backend   string
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	jobs := 0
	if c.Scheduler != nil {
		jobs = len(c.Scheduler.Jobs)
	}
	return ConfigStats{
		Providers: len(c.Providers),
		Jobs:      jobs,
		Backend:   c.KVStore.Backend,
	}
}

// GetProvider retrieves a provider configuration by name.
func (c *Config) GetProvider(name string) (ProviderYAMLConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}
