package config

import "time"

// DefaultServer returns the built-in server defaults applied when the
// YAML omits the section entirely.
func DefaultServer() *ServerYAMLConfig {
	return &ServerYAMLConfig{
		Address:        ":8080",
		RequestTimeout: "30s",
	}
}

// DefaultKVStore returns the built-in kvstore defaults: an in-memory
// store, suitable for local development but never for a multi-instance
// deployment (scheduler lock exclusivity requires a shared backend).
func DefaultKVStore() *KVStoreYAMLConfig {
	return &KVStoreYAMLConfig{Backend: "memory"}
}

// DefaultRateLimit returns the built-in anonymous/authenticated tiers.
func DefaultRateLimit() *RateLimitYAMLConfig {
	return &RateLimitYAMLConfig{
		AnonymousMaxTokens:     10,
		AnonymousWindowMs:      60_000,
		AuthenticatedMaxTokens: 60,
		AuthenticatedWindowMs:  60_000,
	}
}

// DefaultShield returns the built-in shield defaults: a 10-minute
// acknowledgment window and halt-on-medium behavior (see the
// corresponding open-question decision recorded in DESIGN.md).
func DefaultShield() *ShieldYAMLConfig {
	return &ShieldYAMLConfig{
		AckTokenTTL:  "10m",
		WarnBehavior: "halt",
	}
}

// DefaultAudit returns the built-in audit retention default.
func DefaultAudit() *AuditYAMLConfig {
	return &AuditYAMLConfig{RetentionDays: 90}
}

// DefaultLLM returns the built-in generation backend defaults.
func DefaultLLM() *LLMYAMLConfig {
	return &LLMYAMLConfig{
		Model:       "claude-sonnet-4-5",
		MaxTokens:   1024,
		Temperature: 0.7,
		APIKeyEnv:   "ANTHROPIC_API_KEY",
	}
}

// DefaultRetentionSweepInterval is how often the retention service
// re-evaluates its policies absent an override.
const DefaultRetentionSweepInterval = 12 * time.Hour

// DefaultSchedulerJobs returns the 12 recurring jobs spec §4.5 requires
// to exist, with their required schedules. A deployment's YAML may
// override any of these by repeating the same id with different
// fields; any id not repeated keeps this built-in definition.
func DefaultSchedulerJobs() []SchedulerJobYAMLConfig {
	const hour = int64(60 * 60 * 1000)
	return []SchedulerJobYAMLConfig{
		{ID: "memory-decay", Cron: "0 3 * * *", TimeoutMs: 5 * 60_000},
		{ID: "spark-reminders", Cron: "0 * * * *", TimeoutMs: 60_000},
		{ID: "goal-deadline-check-ins", Cron: "0 9 * * *", TimeoutMs: 60_000},
		{ID: "session-cleanup", IntervalMs: 6 * hour, TimeoutMs: 2 * 60_000},
		{ID: "conversation-cleanup", Cron: "0 0 * * 0", TimeoutMs: 5 * 60_000},
		{ID: "expired-tokens-cleanup", Cron: "0 * * * *", TimeoutMs: 60_000, RunOnStartup: true},
		{ID: "metrics-aggregation", IntervalMs: 5 * 60_000, TimeoutMs: 30_000},
		{ID: "health-check", IntervalMs: 60_000, TimeoutMs: 10_000},
		{ID: "daily-curriculum-generation", Cron: "0 0 * * *", TimeoutMs: 5 * 60_000},
		{ID: "reminder-escalation", IntervalMs: 3 * hour, TimeoutMs: 60_000},
		{ID: "day-end-reconciliation", Cron: "0 23 * * *", TimeoutMs: 5 * 60_000},
		{ID: "retention-enforcement", Cron: "0 3 * * *", TimeoutMs: 5 * 60_000, Exclusive: true},
	}
}
