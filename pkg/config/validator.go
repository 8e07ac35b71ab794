package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at
// the first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateKVStore(); err != nil {
		return fmt.Errorf("kvstore validation failed: %w", err)
	}
	if err := v.validateRateLimit(); err != nil {
		return fmt.Errorf("rate_limit validation failed: %w", err)
	}
	if err := v.validateShield(); err != nil {
		return fmt.Errorf("shield validation failed: %w", err)
	}
	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}
	if err := v.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateServer() error {
	s := v.cfg.Server
	if s == nil || s.Address == "" {
		return NewValidationError("server", "", "address", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateKVStore() error {
	kv := v.cfg.KVStore
	if kv == nil {
		return NewValidationError("kvstore", "", "", ErrMissingRequiredField)
	}
	switch kv.Backend {
	case "memory":
		return nil
	case "redis":
		if kv.RedisAddr == "" {
			return NewValidationError("kvstore", "redis", "redis_addr", ErrMissingRequiredField)
		}
	case "postgres":
		if kv.PostgresDSNEnv == "" {
			return NewValidationError("kvstore", "postgres", "postgres_dsn_env", ErrMissingRequiredField)
		}
	default:
		return NewValidationError("kvstore", "", "backend", fmt.Errorf("%w: %q (want memory, redis, or postgres)", ErrInvalidValue, kv.Backend))
	}
	return nil
}

func (v *Validator) validateRateLimit() error {
	rl := v.cfg.RateLimit
	if rl == nil {
		return NewValidationError("rate_limit", "", "", ErrMissingRequiredField)
	}
	if rl.AnonymousMaxTokens <= 0 {
		return NewValidationError("rate_limit", "anonymous", "anonymous_max_tokens", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if rl.AuthenticatedMaxTokens <= 0 {
		return NewValidationError("rate_limit", "authenticated", "authenticated_max_tokens", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateShield() error {
	s := v.cfg.Shield
	if s == nil {
		return NewValidationError("shield", "", "", ErrMissingRequiredField)
	}
	switch s.WarnBehavior {
	case "halt", "continue":
	default:
		return NewValidationError("shield", "", "warn_behavior", fmt.Errorf("%w: %q (want halt or continue)", ErrInvalidValue, s.WarnBehavior))
	}
	return nil
}

func (v *Validator) validateProviders() error {
	for name, p := range v.cfg.Providers {
		if p.Category == "" {
			return NewValidationError("provider", name, "category", ErrMissingRequiredField)
		}
		if p.BaseURL == "" {
			return NewValidationError("provider", name, "base_url", ErrMissingRequiredField)
		}
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	if v.cfg.Scheduler == nil {
		return nil
	}
	seen := map[string]bool{}
	for _, job := range v.cfg.Scheduler.Jobs {
		if job.ID == "" {
			return NewValidationError("scheduler", "", "id", ErrMissingRequiredField)
		}
		if seen[job.ID] {
			return NewValidationError("scheduler", job.ID, "id", fmt.Errorf("%w: duplicate job id", ErrInvalidValue))
		}
		seen[job.ID] = true
		if job.Cron == "" && job.IntervalMs <= 0 {
			return NewValidationError("scheduler", job.ID, "cron/interval_ms", fmt.Errorf("%w: job must specify either cron or interval_ms", ErrInvalidValue))
		}
		if job.Cron != "" && job.IntervalMs > 0 {
			return NewValidationError("scheduler", job.ID, "cron/interval_ms", fmt.Errorf("%w: job must not specify both cron and interval_ms", ErrInvalidValue))
		}
	}
	return nil
}
