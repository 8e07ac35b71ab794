package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load gatekeeper.yaml from configDir
//  2. Expand environment variables
//  3. Merge built-in defaults under whatever the YAML specifies
//  4. Resolve duration strings into time.Duration
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"providers", stats.Providers,
		"scheduled_jobs", stats.Jobs,
		"kvstore_backend", stats.Backend)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadGatekeeperYAML()
	if err != nil {
		return nil, NewLoadError("gatekeeper.yaml", err)
	}

	server := DefaultServer()
	if yamlCfg.Server != nil {
		if err := mergo.Merge(server, yamlCfg.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging server config: %w", err)
		}
	}

	kv := DefaultKVStore()
	if yamlCfg.KVStore != nil {
		if err := mergo.Merge(kv, yamlCfg.KVStore, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging kvstore config: %w", err)
		}
	}

	rl := DefaultRateLimit()
	if yamlCfg.RateLimit != nil {
		if err := mergo.Merge(rl, yamlCfg.RateLimit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging rate_limit config: %w", err)
		}
	}

	shield := DefaultShield()
	if yamlCfg.Shield != nil {
		if err := mergo.Merge(shield, yamlCfg.Shield, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging shield config: %w", err)
		}
	}

	audit := DefaultAudit()
	if yamlCfg.Audit != nil {
		if err := mergo.Merge(audit, yamlCfg.Audit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging audit config: %w", err)
		}
	}

	llm := DefaultLLM()
	if yamlCfg.LLM != nil {
		if err := mergo.Merge(llm, yamlCfg.LLM, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging llm config: %w", err)
		}
	}

	scheduler := yamlCfg.Scheduler
	if scheduler == nil {
		scheduler = &SchedulerYAMLConfig{}
	}

	retention := yamlCfg.Retention
	if retention == nil {
		retention = &RetentionYAMLConfig{}
	}

	requestTimeout, err := parseDurationOr(server.RequestTimeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parsing server.request_timeout: %w", err)
	}
	ackTokenTTL, err := parseDurationOr(shield.AckTokenTTL, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("parsing shield.ack_token_ttl: %w", err)
	}
	sweepInterval, err := parseDurationOr(retention.SweepInterval, DefaultRetentionSweepInterval)
	if err != nil {
		return nil, fmt.Errorf("parsing retention.sweep_interval: %w", err)
	}

	return &Config{
		configDir:              configDir,
		Server:                 server,
		KVStore:                kv,
		RateLimit:              rl,
		Shield:                 shield,
		Providers:              yamlCfg.Providers,
		Scheduler:              scheduler,
		Retention:              retention,
		Audit:                  audit,
		LLM:                    llm,
		RequestTimeout:         requestTimeout,
		AckTokenTTL:            ackTokenTTL,
		RetentionSweepInterval: sweepInterval,
	}, nil
}

func parseDurationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using standard $VAR / ${VAR} syntax.
	// Note: ExpandEnv has no error path; anything that is not a $
	// reference passes through unchanged, leaving the YAML parser to
	// handle the content (or fail with a clearer error message).
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadGatekeeperYAML() (*YAMLConfig, error) {
	var cfg YAMLConfig
	cfg.Providers = make(map[string]ProviderYAMLConfig)

	if err := l.loadYAML("gatekeeper.yaml", &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderYAMLConfig)
	}
	return &cfg, nil
}
