// Command gatekeeper runs the safety-gated conversational response
// pipeline: HTTP API, live-data orchestration, scheduled jobs, and
// retention enforcement, wired from the on-disk configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lensguard/gatekeeper/pkg/api"
	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/config"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
	"github.com/lensguard/gatekeeper/pkg/freshness"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/livedata"
	"github.com/lensguard/gatekeeper/pkg/llm"
	"github.com/lensguard/gatekeeper/pkg/pipeline"
	"github.com/lensguard/gatekeeper/pkg/ratelimit"
	"github.com/lensguard/gatekeeper/pkg/retention"
	"github.com/lensguard/gatekeeper/pkg/scheduler"
	"github.com/lensguard/gatekeeper/pkg/shield"
	"github.com/lensguard/gatekeeper/pkg/slack"
	"github.com/lensguard/gatekeeper/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir); err != nil {
		slog.Error("gatekeeper exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir string) error {
	slog.Info("starting gatekeeper", "version", version.Full(), "config_dir", configDir)

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("initializing configuration: %w", err)
	}

	store, err := newStore(ctx, cfg.KVStore)
	if err != nil {
		return fmt.Errorf("connecting to kvstore backend %q: %w", cfg.KVStore.Backend, err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Error("closing kvstore connection", "error", err)
			}
		}()
	}

	auditLog := audit.New(store, cfg.Audit.RetentionDays)
	limiter := ratelimit.New(store, auditLog)
	shieldEngine := shield.New(store, auditLog).WithAckTokenTTL(cfg.AckTokenTTL)

	orchestrator := livedata.New(classify.New(freshness.NewChecker()), buildProviderRegistry(cfg))

	generator, err := llm.NewAnthropicClient()
	if err != nil {
		return fmt.Errorf("constructing anthropic client: %w", err)
	}
	validator := llm.HeuristicValidator{}

	notifier := slack.NewNotifier(slack.NotifierConfig{
		Token:     os.Getenv("SLACK_BOT_TOKEN"),
		ChannelID: os.Getenv("SLACK_ALERT_CHANNEL_ID"),
	})

	executor := pipeline.New(shieldEngine, orchestrator, generator, validator, nil, auditLog).WithNotifier(notifier)

	consentStore := retention.NewConsentStore(store)
	dataSubject := retention.NewDataSubjectHandler(consentStore, auditLog, shieldEngine)
	retentionPolicies := mergeRetentionPolicies(cfg.Retention)
	retentionService := retention.NewService(store, auditLog, retentionPolicies, cfg.RetentionSweepInterval)
	retentionService.Start(ctx)
	defer retentionService.Stop()

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		if hostname, err := os.Hostname(); err == nil {
			instanceID = hostname
		} else {
			instanceID = "gatekeeper"
		}
	}
	sched := scheduler.New(store, auditLog, instanceID)
	if err := registerScheduledJobs(sched, cfg.Scheduler, retentionService); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	stopTicker := driveScheduler(ctx, sched)
	defer stopTicker()

	server := api.NewServer(cfg, executor, limiter, shieldEngine, dataSubject)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", cfg.Server.Address)
		if err := server.Start(cfg.Server.Address); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newStore constructs the kvstore backend selected by cfg.Backend.
func newStore(ctx context.Context, cfg *config.KVStoreYAMLConfig) (kvstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return kvstore.NewMemory(), nil
	case "redis":
		password := ""
		if cfg.RedisPasswordEnv != "" {
			password = os.Getenv(cfg.RedisPasswordEnv)
		}
		redisURL := cfg.RedisAddr
		if password != "" {
			redisURL = fmt.Sprintf("redis://:%s@%s", password, cfg.RedisAddr)
		} else {
			redisURL = fmt.Sprintf("redis://%s", cfg.RedisAddr)
		}
		return kvstore.NewRedisFromURL(ctx, redisURL)
	case "postgres":
		dsn := os.Getenv(cfg.PostgresDSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.PostgresDSNEnv)
		}
		pgCfg, err := parsePostgresDSN(dsn)
		if err != nil {
			return nil, err
		}
		return kvstore.NewPostgres(ctx, pgCfg)
	default:
		return nil, fmt.Errorf("unknown kvstore backend %q", cfg.Backend)
	}
}

// parsePostgresDSN turns a postgres:// URL into the structured fields
// kvstore.NewPostgres expects.
func parsePostgresDSN(dsn string) (kvstore.PostgresConfig, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return kvstore.PostgresConfig{}, fmt.Errorf("parsing postgres DSN: %w", err)
	}

	port := 5432
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	password, _ := u.User.Password()
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return kvstore.PostgresConfig{
		Host:            u.Hostname(),
		Port:            port,
		User:            u.User.Username(),
		Password:        password,
		Database:        strings.TrimPrefix(u.Path, "/"),
		SSLMode:         sslMode,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}, nil
}

// buildProviderRegistry registers one live-data provider per configured
// entry, dispatching on category to the matching concrete constructor.
func buildProviderRegistry(cfg *config.Config) *dataprovider.Registry {
	registry := dataprovider.NewRegistry()
	for name, p := range cfg.Providers {
		var provider dataprovider.Provider
		switch p.Category {
		case string(classify.CategoryStock):
			provider = dataprovider.NewStockProvider(p.BaseURL, nil)
		case string(classify.CategoryCrypto):
			provider = dataprovider.NewCryptoProvider(p.BaseURL, nil)
		case string(classify.CategoryWeather):
			provider = dataprovider.NewWeatherProvider(p.BaseURL, nil)
		case string(classify.CategoryFX):
			provider = dataprovider.NewFXProvider(p.BaseURL, nil)
		case string(classify.CategoryNews):
			provider = dataprovider.NewNewsProvider(p.BaseURL, nil)
		case string(classify.CategoryTime):
			tp, err := dataprovider.NewTimeProvider(p.BaseURL)
			if err != nil {
				slog.Error("skipping misconfigured time provider", "provider", name, "error", err)
				continue
			}
			provider = tp
		default:
			slog.Warn("skipping provider with unknown category", "provider", name, "category", p.Category)
			continue
		}
		registry.Register(provider)
	}
	return registry
}

// mergeRetentionPolicies overlays YAML policy overrides on the built-in
// defaults, leaving unconfigured categories untouched.
func mergeRetentionPolicies(cfg *config.RetentionYAMLConfig) map[retention.Category]retention.Policy {
	policies := retention.DefaultPolicies()
	if cfg == nil {
		return policies
	}
	for name, override := range cfg.Policies {
		cat := retention.Category(name)
		policy, ok := policies[cat]
		if !ok {
			continue
		}
		if override.RetentionDays > 0 {
			policy.RetentionDays = override.RetentionDays
		}
		if override.Action != "" {
			policy.Action = retention.Action(override.Action)
		}
		if override.Enabled != nil {
			policy.Enabled = *override.Enabled
		}
		policy.ArchiveBeforeDelete = override.ArchiveBeforeDelete
		if override.ArchiveRetentionDays > 0 {
			policy.ArchiveRetentionDays = override.ArchiveRetentionDays
		}
		policies[cat] = policy
	}
	return policies
}

// registerScheduledJobs registers the 12 recurring jobs spec §4.5
// requires to exist (config.DefaultSchedulerJobs), then layers any
// YAML-configured jobs on top: a configured id with the same name as a
// default replaces it outright, and any additional configured id is
// registered alongside the defaults. The "retention-enforcement" job id
// is special-cased to drive the retention service's enforcement pass
// under the scheduler's distributed-lock exclusivity rather than its
// own internal ticker.
func registerScheduledJobs(sched *scheduler.Scheduler, cfg *config.SchedulerYAMLConfig, retentionService *retention.Service) error {
	byID := make(map[string]config.SchedulerJobYAMLConfig)
	var order []string
	for _, job := range config.DefaultSchedulerJobs() {
		byID[job.ID] = job
		order = append(order, job.ID)
	}
	if cfg != nil {
		for _, job := range cfg.Jobs {
			if _, exists := byID[job.ID]; !exists {
				order = append(order, job.ID)
			}
			byID[job.ID] = job
		}
	}

	for _, id := range order {
		job := byID[id]
		sch, err := jobSchedule(job)
		if err != nil {
			return fmt.Errorf("job %q: %w", job.ID, err)
		}

		handler := genericJobHandler(job.ID)
		if job.ID == "retention-enforcement" {
			handler = func(ctx context.Context, _ int64) error {
				return retentionService.RunOnce(ctx)
			}
		}

		sched.Register(scheduler.JobDefinition{
			ID:                  job.ID,
			Schedule:            sch,
			Handler:             handler,
			Timeout:             time.Duration(job.TimeoutMs) * time.Millisecond,
			Exclusive:           job.Exclusive,
			RunOnStartup:        job.RunOnStartup,
			DeadLetterOnFailure: true,
		})
	}
	return nil
}

func jobSchedule(job config.SchedulerJobYAMLConfig) (scheduler.Schedule, error) {
	if job.Cron != "" {
		return scheduler.NewCronSchedule(job.Cron)
	}
	return scheduler.IntervalSchedule{Interval: time.Duration(job.IntervalMs) * time.Millisecond}, nil
}

// genericJobHandler is used for configured jobs with no dedicated
// binding above; it records that the tick happened so the job still
// participates in scheduling, locking, and dead-letter bookkeeping.
func genericJobHandler(jobID string) scheduler.Handler {
	return func(_ context.Context, fencingToken int64) error {
		slog.Info("scheduled job tick", "job_id", jobID, "fencing_token", fencingToken)
		return nil
	}
}

// driveScheduler polls the scheduler once per second until ctx is
// canceled. A one-second resolution is finer than any realistic cron
// or interval job needs, while keeping jobs responsive to RunOnStartup.
func driveScheduler(ctx context.Context, sched *scheduler.Scheduler) func() {
	ticker := time.NewTicker(time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				sched.Tick(ctx, now)
			}
		}
	}()
	return func() {
		ticker.Stop()
		<-done
	}
}
