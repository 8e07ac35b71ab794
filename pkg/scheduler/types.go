// Package scheduler implements job scheduling (C15): cron/interval job
// registration, distributed-lock-backed exclusive execution across
// instances, retry with jittered backoff, a dead-letter queue, and a
// circuit breaker wrapping each job's handler.
package scheduler

import (
	"context"
	"time"
)

// Handler is a job's unit of work. fencingToken must be included in any
// writes the handler makes so a stale writer that lost its lock can be
// detected downstream.
type Handler func(ctx context.Context, fencingToken int64) error

// RetryPolicy configures the backoff-with-jitter retry loop.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            float64 // 0..1, fraction of the computed delay to randomize
}

// DefaultRetryPolicy is a conservative default for jobs that don't
// specify their own.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:       3,
	InitialDelay:      time.Second,
	MaxDelay:          time.Minute,
	BackoffMultiplier: 2.0,
	Jitter:            0.2,
}

// JobDefinition is one registered job, per spec §4.5.
type JobDefinition struct {
	ID       string
	Schedule Schedule
	Handler  Handler
	Timeout  time.Duration

	Retry RetryPolicy

	Priority             int
	Exclusive            bool
	RunOnStartup         bool
	AlertOnFailure       bool
	DeadLetterOnFailure  bool
}

// DeadLetterEntry is an appended record of a job that exhausted retries.
type DeadLetterEntry struct {
	JobID     string    `json:"jobId"`
	Reason    string    `json:"reason"`
	LastError string    `json:"lastError"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}
