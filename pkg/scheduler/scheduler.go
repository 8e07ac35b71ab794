package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/metrics"
)

const deadLetterZSetKey = "scheduler:deadletter"

// jobState is the scheduler's bookkeeping for one registered job.
type jobState struct {
	def     JobDefinition
	breaker *gobreaker.CircuitBreaker
	nextRun time.Time
}

// Scheduler executes registered jobs on schedule with at-most-one-
// execution-in-flight semantics across process instances (spec §4.5).
type Scheduler struct {
	store      kvstore.Store
	audit      *audit.Logger
	instanceID string

	mu   sync.Mutex
	jobs map[string]*jobState
}

// New constructs a Scheduler bound to one process instance identity.
func New(store kvstore.Store, logger *audit.Logger, instanceID string) *Scheduler {
	return &Scheduler{store: store, audit: logger, instanceID: instanceID, jobs: map[string]*jobState{}}
}

// Register adds a job definition. If RunOnStartup is set, its first
// eligible tick is immediate.
func (s *Scheduler) Register(def JobDefinition) {
	if def.Retry == (RetryPolicy{}) {
		def.Retry = DefaultRetryPolicy
	}

	breakerSettings := gobreaker.Settings{
		Name:    def.ID,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	next := time.Now()
	if !def.RunOnStartup {
		next = def.Schedule.Next(time.Now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[def.ID] = &jobState{
		def:     def,
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
		nextRun: next,
	}
}

// Tick evaluates every job's eligibility against now and runs the ones
// that are due, per spec §4.5's per-tick algorithm.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*jobState, 0, len(s.jobs))
	for _, js := range s.jobs {
		if !now.Before(js.nextRun) {
			due = append(due, js)
			js.nextRun = js.def.Schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, js := range due {
		go s.runJob(ctx, js.def, js.breaker)
	}
}

func (s *Scheduler) runJob(ctx context.Context, def JobDefinition, breaker *gobreaker.CircuitBreaker) {
	var handle LockHandle
	var haveLock bool

	if def.Exclusive {
		owned, err := ownsLock(ctx, s.store, def.ID, s.instanceID)
		if err != nil {
			slog.Error("scheduler: checking lock ownership failed", "job", def.ID, "error", err)
			return
		}
		if owned {
			haveLock = true
		} else {
			var acquired bool
			var lockErr error
			handle, acquired, lockErr = acquireLock(ctx, s.store, def.ID, s.instanceID, def.Timeout)
			if lockErr != nil {
				slog.Error("scheduler: lock acquisition failed", "job", def.ID, "error", lockErr)
				return
			}
			if !acquired {
				slog.Debug("scheduler: job already running on another instance, skipping", "job", def.ID)
				return
			}
			haveLock = true
		}
		defer func() {
			if haveLock {
				if err := releaseLock(ctx, s.store, def.ID, s.instanceID); err != nil {
					slog.Error("scheduler: failed to release lock", "job", def.ID, "error", err)
				}
			}
		}()
	}

	lastErr := s.executeWithRetryAndBreaker(ctx, def, breaker, handle.FencingToken)
	if lastErr == nil {
		metrics.SchedulerJobsTotal.WithLabelValues(def.ID, "success").Inc()
		return
	}
	metrics.SchedulerJobsTotal.WithLabelValues(def.ID, "failure").Inc()

	if def.DeadLetterOnFailure {
		s.appendDeadLetter(ctx, def.ID, lastErr, def.Retry.MaxAttempts)
	}
	if def.AlertOnFailure {
		s.recordAudit(ctx, audit.CategorySchedulerJobFailure, def.ID, lastErr.Error())
	}
}

func (s *Scheduler) executeWithRetryAndBreaker(ctx context.Context, def JobDefinition, breaker *gobreaker.CircuitBreaker, fencingToken int64) error {
	var lastErr error

	for attempt := 1; attempt <= def.Retry.MaxAttempts; attempt++ {
		_, err := breaker.Execute(func() (interface{}, error) {
			watchdogCtx, cancel := context.WithTimeout(ctx, def.Timeout)
			defer cancel()
			return nil, def.Handler(watchdogCtx, fencingToken)
		})

		if err == nil {
			return nil
		}

		if err == gobreaker.ErrOpenState {
			// Circuit is open: a fast failure counts as a skip, not a
			// retryable failure (spec §4.5's circuit breaker rule).
			slog.Debug("scheduler: circuit open, skipping attempt", "job", def.ID)
			return nil
		}

		lastErr = err
		if attempt < def.Retry.MaxAttempts {
			delay := nextDelay(def.Retry, attempt)
			slog.Warn("scheduler: job attempt failed, retrying", "job", def.ID, "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

func (s *Scheduler) appendDeadLetter(ctx context.Context, jobID string, cause error, attempts int) {
	entry := DeadLetterEntry{JobID: jobID, Reason: "max retries exhausted", LastError: cause.Error(), Attempts: attempts, Timestamp: time.Now()}
	raw := fmt.Sprintf(`{"jobId":%q,"reason":%q,"lastError":%q,"attempts":%d,"timestamp":%q}`,
		entry.JobID, entry.Reason, entry.LastError, entry.Attempts, entry.Timestamp.Format(time.RFC3339))
	if err := s.store.ZAdd(ctx, deadLetterZSetKey, float64(entry.Timestamp.Unix()), raw); err != nil {
		slog.Error("scheduler: failed to append dead-letter entry", "job", jobID, "error", err)
	}
	s.recordAudit(ctx, audit.CategorySchedulerDeadLetter, jobID, cause.Error())
}

func (s *Scheduler) recordAudit(ctx context.Context, category audit.Category, jobID, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Event{Category: category, Message: fmt.Sprintf("job %s: %s", jobID, message)}); err != nil {
		slog.Warn("scheduler: failed to record audit event", "error", err)
	}
}
