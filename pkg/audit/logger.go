// Package audit implements the append-only event log (C5): every write
// gets a monotonic index and a tamper-evident hash, and is indexed by
// user and category so later components (retention, data-subject
// export) can query it efficiently.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

// Category is a closed-ish classification used for indexing and
// severity inference. New categories should be added here rather than
// passed as free-form strings, so severity inference stays exhaustive.
type Category string

const (
	CategorySafetyViolation      Category = "safety_violation"
	CategorySecurityViolation    Category = "security_violation"
	CategoryCrisisOpened         Category = "crisis_opened"
	CategoryCrisisResolved       Category = "crisis_resolved"
	CategoryShieldWarn           Category = "shield_warn"
	CategoryInvariantViolation   Category = "invariant_violation"
	CategoryRateLimitFailOpen    Category = "rate_limit_fail_open"
	CategoryProviderFailure      Category = "provider_failure"
	CategorySchedulerJobFailure  Category = "scheduler_job_failure"
	CategorySchedulerDeadLetter  Category = "scheduler_dead_letter"
	CategoryConsentChange        Category = "consent_change"
	CategoryDataSubjectRequest   Category = "data_subject_request"
	CategoryRetentionEnforcement Category = "retention_enforcement"
	CategoryGeneric              Category = "generic"
)

// Severity is inferred from Category at write time; callers never set it
// directly, keeping the mapping centralized and auditable in one place.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func severityFor(c Category) Severity {
	switch c {
	case CategorySafetyViolation, CategorySecurityViolation, CategoryInvariantViolation:
		return SeverityCritical
	case CategoryCrisisOpened, CategoryShieldWarn, CategoryRateLimitFailOpen,
		CategoryProviderFailure, CategorySchedulerJobFailure, CategorySchedulerDeadLetter:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Event is one append-only audit record.
type Event struct {
	ID        string         `json:"id"`
	Index     int64          `json:"index"`
	Category  Category       `json:"category"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Hash      string         `json:"hash"`
	Timestamp time.Time      `json:"timestamp"`
}

// hashInput is the deterministic subset of Event fields that feed the
// tamper-detection hash; Hash itself is excluded to avoid recursion, and
// Index is included so reordering is also detectable.
type hashInput struct {
	ID        string         `json:"id"`
	Index     int64          `json:"index"`
	Category  Category       `json:"category"`
	UserID    string         `json:"user_id,omitempty"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func computeHash(e Event) string {
	in := hashInput{
		ID:        e.ID,
		Index:     e.Index,
		Category:  e.Category,
		UserID:    e.UserID,
		Message:   e.Message,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
	b, err := json.Marshal(in)
	if err != nil {
		// json.Marshal on this struct shape cannot fail in practice
		// (no channels/funcs); treat as a bug, not a runtime error.
		panic(fmt.Sprintf("audit: hashing event: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

const (
	indexCounterKey    = "audit:index"
	eventKeyPrefix     = "audit:event:"
	userIndexKeyPrefix = "audit:by-user:"
	catIndexKeyPrefix  = "audit:by-category:"
)

// Logger is the append-only audit log. Multiple writers contend only on
// the monotonic index counter (an atomic INCR); events themselves are
// never read by writers, matching spec §5's shared-resource policy.
type Logger struct {
	store         kvstore.Store
	retentionDays int
}

// New creates a Logger. retentionDays controls the TTL applied to each
// event and its index entries (spec §6.6: TTL = retentionDays × 86400).
func New(store kvstore.Store, retentionDays int) *Logger {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Logger{store: store, retentionDays: retentionDays}
}

// Record appends e to the log, assigning it an id, index, hash, and
// timestamp if unset. Never returns an error to the caller's hot path in
// practice — write failures are logged, since the audit log must not
// become a reason to fail the primary request — but the error is still
// returned for callers (like retention enforcement) that need to know.
func (l *Logger) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = severityFor(e.Category)
	}

	idx, err := l.store.Incr(ctx, indexCounterKey)
	if err != nil {
		slog.Error("audit: failed to allocate index", "error", err)
		return fmt.Errorf("allocating audit index: %w", err)
	}
	e.Index = idx
	e.Hash = computeHash(e)

	encoded, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}

	ttl := time.Duration(l.retentionDays) * 24 * time.Hour
	if err := l.store.Set(ctx, eventKeyPrefix+e.ID, encoded, ttl); err != nil {
		slog.Error("audit: failed to persist event", "error", err, "event_id", e.ID)
		return fmt.Errorf("persisting audit event: %w", err)
	}

	score := float64(e.Timestamp.UnixNano())
	if e.UserID != "" {
		if err := l.store.ZAdd(ctx, userIndexKeyPrefix+e.UserID, score, e.ID); err != nil {
			slog.Warn("audit: failed to index event by user", "error", err, "event_id", e.ID)
		}
	}
	if err := l.store.ZAdd(ctx, catIndexKeyPrefix+string(e.Category), score, e.ID); err != nil {
		slog.Warn("audit: failed to index event by category", "error", err, "event_id", e.ID)
	}

	if e.Severity == SeverityCritical {
		slog.Error("audit: critical event recorded", "category", e.Category, "user_id", e.UserID, "message", e.Message)
	}

	return nil
}

// Get reads a single event by id.
func (l *Logger) Get(ctx context.Context, id string) (Event, bool, error) {
	raw, ok, err := l.store.Get(ctx, eventKeyPrefix+id)
	if err != nil || !ok {
		return Event{}, ok, err
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, false, fmt.Errorf("decoding audit event %s: %w", id, err)
	}
	return e, true, nil
}

// ByUser returns the most recent limit events for userID, newest first.
func (l *Logger) ByUser(ctx context.Context, userID string, limit int64) ([]Event, error) {
	return l.resolveIndex(ctx, userIndexKeyPrefix+userID, limit)
}

// ByCategory returns the most recent limit events in category, newest first.
func (l *Logger) ByCategory(ctx context.Context, category Category, limit int64) ([]Event, error) {
	return l.resolveIndex(ctx, catIndexKeyPrefix+string(category), limit)
}

func (l *Logger) resolveIndex(ctx context.Context, indexKey string, limit int64) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := l.store.ZRevRange(ctx, indexKey, 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("reading audit index %s: %w", indexKey, err)
	}
	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		e, ok, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, e)
		}
	}
	return events, nil
}

// Verify recomputes e's hash and reports whether it matches e.Hash,
// detecting tampering with a record fetched from the store.
func Verify(e Event) bool {
	return computeHash(e) == e.Hash
}
