// Package ratelimit implements the token-bucket and sliding-window
// limiters described in spec §4.6. Both fail open on store errors: an
// unreachable backing store must never itself become the reason a
// request is denied.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/metrics"
)

// Tier configures the limits applied to a class of caller (e.g.
// "anonymous", "authenticated", "internal").
type Tier struct {
	Name        string
	WindowMs    int64
	MaxTokens   float64
	RefillRate  float64 // tokens per second
}

// AnonymousTier is the hardwired lower limit spec §4.6 requires for
// unauthenticated callers.
var AnonymousTier = Tier{
	Name:       "anonymous",
	WindowMs:   60_000,
	MaxTokens:  10,
	RefillRate: 10.0 / 60.0,
}

// Decision is the outcome of a Check call.
type Decision struct {
	Allowed      bool
	Remaining    int64
	ResetMs      int64
	RetryAfterMs int64
}

// bucketState is the JSON-serialized token bucket persisted per key.
type bucketState struct {
	Tokens         float64 `json:"tokens"`
	LastRefillUnix int64   `json:"last_refill_unix_ms"`
}

// Limiter is a token-bucket rate limiter backed by a kvstore.Store.
type Limiter struct {
	store  kvstore.Store
	logger *audit.Logger // may be nil; used only to record fail-open events
	now    func() time.Time
}

// New creates a Limiter over store. logger, if non-nil, is used to audit
// fail-open decisions when the store is unreachable.
func New(store kvstore.Store, logger *audit.Logger) *Limiter {
	return &Limiter{store: store, logger: logger, now: time.Now}
}

func (l *Limiter) nowMs() int64 {
	if l.now != nil {
		return l.now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// Check applies tier's token bucket to scope:key, consuming one token on
// success. On store error the request is allowed (fail open) and, if a
// logger was supplied, an audit event is recorded.
func (l *Limiter) Check(ctx context.Context, scope, key string, tier Tier) (Decision, error) {
	storeKey := fmt.Sprintf("ratelimit:%s:%s:%s", tier.Name, scope, key)

	raw, ok, err := l.store.Get(ctx, storeKey)
	if err != nil {
		l.auditFailOpen(ctx, storeKey, err)
		return Decision{Allowed: true}, nil
	}

	now := l.nowMs()
	state := bucketState{Tokens: tier.MaxTokens, LastRefillUnix: now}
	if ok {
		if err := json.Unmarshal(raw, &state); err != nil {
			slog.Warn("ratelimit: corrupt bucket state, resetting", "key", storeKey, "error", err)
			state = bucketState{Tokens: tier.MaxTokens, LastRefillUnix: now}
		}
	}

	elapsedSeconds := float64(now-state.LastRefillUnix) / 1000.0
	if elapsedSeconds > 0 {
		state.Tokens += elapsedSeconds * tier.RefillRate
		if state.Tokens > tier.MaxTokens {
			state.Tokens = tier.MaxTokens
		}
		state.LastRefillUnix = now
	}

	windowTTL := time.Duration(tier.WindowMs) * time.Millisecond

	if state.Tokens >= 1 {
		state.Tokens--
		if err := l.persist(ctx, storeKey, state, windowTTL); err != nil {
			l.auditFailOpen(ctx, storeKey, err)
			return Decision{Allowed: true}, nil
		}
		resetMs := int64(0)
		if tier.RefillRate > 0 {
			resetMs = int64((tier.MaxTokens - state.Tokens) / tier.RefillRate * 1000)
		}
		return Decision{
			Allowed:   true,
			Remaining: int64(state.Tokens),
			ResetMs:   resetMs,
		}, nil
	}

	if err := l.persist(ctx, storeKey, state, windowTTL); err != nil {
		l.auditFailOpen(ctx, storeKey, err)
		return Decision{Allowed: true}, nil
	}
	retryAfterMs := int64(0)
	if tier.RefillRate > 0 {
		retryAfterMs = int64((1 - state.Tokens) / tier.RefillRate * 1000)
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfterMs: retryAfterMs}, nil
}

func (l *Limiter) persist(ctx context.Context, key string, state bucketState, ttl time.Duration) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding bucket state: %w", err)
	}
	return l.store.Set(ctx, key, encoded, ttl)
}

func (l *Limiter) auditFailOpen(ctx context.Context, key string, cause error) {
	slog.Warn("ratelimit: store error, failing open", "key", key, "error", cause)
	metrics.RateLimitFailOpenTotal.WithLabelValues(key).Inc()
	if l.logger == nil {
		return
	}
	l.logger.Record(ctx, audit.Event{
		Category: audit.CategoryRateLimitFailOpen,
		Message:  fmt.Sprintf("rate limiter failed open for %s: %v", key, cause),
	})
}
