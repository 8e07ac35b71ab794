package config

// YAMLConfig represents the complete gatekeeper.yaml file structure.
type YAMLConfig struct {
	Server    *ServerYAMLConfig              `yaml:"server"`
	KVStore   *KVStoreYAMLConfig             `yaml:"kvstore"`
	RateLimit *RateLimitYAMLConfig           `yaml:"rate_limit"`
	Shield    *ShieldYAMLConfig              `yaml:"shield"`
	Providers map[string]ProviderYAMLConfig  `yaml:"providers"`
	Scheduler *SchedulerYAMLConfig           `yaml:"scheduler"`
	Retention *RetentionYAMLConfig           `yaml:"retention"`
	Audit     *AuditYAMLConfig               `yaml:"audit"`
	LLM       *LLMYAMLConfig                 `yaml:"llm"`
}

// ServerYAMLConfig groups HTTP listener settings.
type ServerYAMLConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RequestTimeout string   `yaml:"request_timeout,omitempty"`
	InstanceID     string   `yaml:"instance_id,omitempty"`
}

// KVStoreYAMLConfig selects and configures the storage backend.
type KVStoreYAMLConfig struct {
	Backend          string `yaml:"backend" validate:"required,oneof=memory redis postgres"` // memory | redis | postgres
	RedisAddr        string `yaml:"redis_addr,omitempty"`
	RedisPasswordEnv string `yaml:"redis_password_env,omitempty"`
	PostgresDSNEnv   string `yaml:"postgres_dsn_env,omitempty"`
}

// RateLimitYAMLConfig configures the per-tier token buckets.
type RateLimitYAMLConfig struct {
	AnonymousMaxTokens     float64 `yaml:"anonymous_max_tokens,omitempty"`
	AnonymousWindowMs      int64   `yaml:"anonymous_window_ms,omitempty"`
	AuthenticatedMaxTokens float64 `yaml:"authenticated_max_tokens,omitempty"`
	AuthenticatedWindowMs  int64   `yaml:"authenticated_window_ms,omitempty"`
}

// ShieldYAMLConfig configures the safety-signal gate.
type ShieldYAMLConfig struct {
	AckTokenTTL  string `yaml:"ack_token_ttl,omitempty"`
	WarnBehavior string `yaml:"warn_behavior,omitempty"` // halt | continue
}

// ProviderYAMLConfig configures one live-data provider.
type ProviderYAMLConfig struct {
	Category  string `yaml:"category" validate:"required"`
	BaseURL   string `yaml:"base_url" validate:"required"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	TimeoutMs int64  `yaml:"timeout_ms,omitempty"`
}

// SchedulerJobYAMLConfig configures one registered scheduled job.
type SchedulerJobYAMLConfig struct {
	ID           string `yaml:"id" validate:"required"`
	Cron         string `yaml:"cron,omitempty"`
	IntervalMs   int64  `yaml:"interval_ms,omitempty"`
	TimeoutMs    int64  `yaml:"timeout_ms,omitempty"`
	Exclusive    bool   `yaml:"exclusive,omitempty"`
	RunOnStartup bool   `yaml:"run_on_startup,omitempty"`
}

// SchedulerYAMLConfig lists the jobs to register at startup.
type SchedulerYAMLConfig struct {
	Jobs []SchedulerJobYAMLConfig `yaml:"jobs,omitempty"`
}

// RetentionPolicyYAMLConfig overrides one category's built-in retention
// policy fields; unset fields keep the built-in default (see
// pkg/retention.DefaultPolicies).
type RetentionPolicyYAMLConfig struct {
	RetentionDays        int    `yaml:"retention_days,omitempty"`
	Action               string `yaml:"action,omitempty"`
	ArchiveBeforeDelete  bool   `yaml:"archive_before_delete,omitempty"`
	ArchiveRetentionDays int    `yaml:"archive_retention_days,omitempty"`
	Enabled              *bool  `yaml:"enabled,omitempty"`
}

// RetentionYAMLConfig configures the cleanup sweep cadence and any
// per-category policy overrides.
type RetentionYAMLConfig struct {
	SweepInterval string                                `yaml:"sweep_interval,omitempty"`
	Policies      map[string]RetentionPolicyYAMLConfig `yaml:"policies,omitempty"`
}

// AuditYAMLConfig configures the audit log's event TTL.
type AuditYAMLConfig struct {
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// LLMYAMLConfig configures the generation backend.
type LLMYAMLConfig struct {
	Model       string  `yaml:"model,omitempty"`
	MaxTokens   int64   `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
}
