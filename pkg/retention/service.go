package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lensguard/gatekeeper/pkg/audit"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

// Service periodically enforces retention policies. Each pass sweeps the
// scheduler's dead-letter sorted set for entries past that category's
// retention window. Consent records and shield sessions are not swept:
// their policies are not acted on here, and consent history is neither
// archived nor purged by the Service.
//
// Audit events carry their own TTL set at write time and are not swept
// here (spec §6.6).
type Service struct {
	store    kvstore.Store
	audit    *audit.Logger
	policies map[Category]Policy
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a retention Service. A nil policies map falls
// back to DefaultPolicies.
func NewService(store kvstore.Store, logger *audit.Logger, policies map[Category]Policy, interval time.Duration) *Service {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &Service{store: store, audit: logger, policies: policies, interval: interval, now: time.Now}
}

// Start launches the background enforcement loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention service started", "interval", s.interval)
}

// Stop signals the enforcement loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.sweepDeadLetters(ctx)
}

// RunOnce executes one enforcement pass synchronously. It exists
// alongside Start/Stop so the sweep can also be driven as a scheduler
// job (pkg/scheduler) rather than only via this Service's own ticker —
// useful when retention enforcement should participate in the
// scheduler's distributed-lock exclusivity and dead-letter handling.
func (s *Service) RunOnce(ctx context.Context) error {
	s.runAll(ctx)
	return nil
}

// sweepDeadLetters removes dead-letter entries older than the
// CategoryDeadLetter policy's retention window, since a sorted set
// member has no per-entry TTL of its own.
func (s *Service) sweepDeadLetters(ctx context.Context) {
	policy, ok := s.policies[CategoryDeadLetter]
	if !ok || !policy.Enabled || policy.Action != ActionDelete {
		return
	}

	const deadLetterZSetKey = "scheduler:deadletter"
	cutoff := float64(s.now().Add(-policy.ttl()).Unix())

	members, err := s.store.ZRangeByScore(ctx, deadLetterZSetKey, 0, cutoff)
	if err != nil {
		slog.Error("retention: listing expired dead letters failed", "error", err)
		return
	}
	for _, member := range members {
		if err := s.store.ZRem(ctx, deadLetterZSetKey, member); err != nil {
			slog.Error("retention: removing expired dead letter failed", "error", err)
			continue
		}
	}
	if len(members) > 0 {
		slog.Info("retention: purged expired dead letters", "count", len(members))
		s.recordAudit(ctx, "", fmt.Sprintf("purged %d expired scheduler dead letters", len(members)))
	}
}

func (s *Service) recordAudit(ctx context.Context, userID, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Event{Category: audit.CategoryRetentionEnforcement, UserID: userID, Message: message}); err != nil {
		slog.Warn("retention: failed to record audit event", "error", err)
	}
}
