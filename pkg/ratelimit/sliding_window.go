package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SlidingWindow implements the fixed-bucket sliding-window counter
// variant from spec §4.6: key = "base:floor(now/windowMs)", atomic incr,
// expire set only on the bucket's first write.
type SlidingWindow struct {
	limiter *Limiter
}

// NewSlidingWindow builds a sliding-window counter sharing the same
// fail-open Limiter plumbing (store + audit logger).
func NewSlidingWindow(l *Limiter) *SlidingWindow {
	return &SlidingWindow{limiter: l}
}

// Check increments the counter for base in the current window and
// reports whether the count is within max. Fails open on store error.
func (s *SlidingWindow) Check(ctx context.Context, base string, windowMs int64, max int64) (Decision, error) {
	now := s.limiter.nowMs()
	bucket := now / windowMs
	key := fmt.Sprintf("ratelimit:sw:%s:%d", base, bucket)

	count, err := s.limiter.store.Incr(ctx, key)
	if err != nil {
		s.limiter.auditFailOpen(ctx, key, err)
		return Decision{Allowed: true}, nil
	}
	if count == 1 {
		// Only the first writer in this window sets the TTL; later
		// writers must not extend it past the window boundary.
		windowEnd := (bucket + 1) * windowMs
		ttl := time.Duration(windowEnd-now) * time.Millisecond
		if err := s.limiter.store.Expire(ctx, key, ttl); err != nil {
			s.limiter.auditFailOpen(ctx, key, err)
		}
	}

	if count > max {
		windowEnd := (bucket + 1) * windowMs
		return Decision{Allowed: false, RetryAfterMs: windowEnd - now}, nil
	}
	return Decision{Allowed: true, Remaining: max - count}, nil
}
