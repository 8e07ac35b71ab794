package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

// fakeClock lets tests advance time deterministically instead of sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLimiter_TokenBucket_S7Scenario(t *testing.T) {
	// spec §8 S7: maxTokens=5, refillRate=1/s, issue 7 requests at t=0.
	ctx := context.Background()
	store := kvstore.NewMemory()
	l := New(store, nil)
	clock := &fakeClock{t: time.Unix(0, 0)}
	l.now = clock.now

	tier := Tier{Name: "s7", WindowMs: 60_000, MaxTokens: 5, RefillRate: 1}

	var results []Decision
	for i := 0; i < 7; i++ {
		d, err := l.Check(ctx, "scope", "key", tier)
		require.NoError(t, err)
		results = append(results, d)
	}

	for i := 0; i < 5; i++ {
		assert.Truef(t, results[i].Allowed, "request %d should be allowed", i+1)
	}
	for i := 5; i < 7; i++ {
		assert.Falsef(t, results[i].Allowed, "request %d should be denied", i+1)
	}

	clock.advance(2 * time.Second)
	d, err := l.Check(ctx, "scope", "key", tier)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "after 2s at 1 token/s a new request should be allowed")
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	l := New(&erroringStore{}, nil)
	tier := Tier{Name: "t", WindowMs: 1000, MaxTokens: 1, RefillRate: 1}

	d, err := l.Check(ctx, "scope", "key", tier)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "store errors must fail open, not deny")
}

func TestSlidingWindow_DeniesOverMax(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	l := New(store, nil)
	clock := &fakeClock{t: time.Unix(0, 0)}
	l.now = clock.now
	sw := NewSlidingWindow(l)

	for i := 0; i < 3; i++ {
		d, err := sw.Check(ctx, "base", 1000, 3)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := sw.Check(ctx, "base", 1000, 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

// erroringStore is a minimal Store whose every method returns an error,
// used to exercise fail-open behavior.
type erroringStore struct{ kvstore.Store }

func (e *erroringStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, assert.AnError
}

func (e *erroringStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return assert.AnError
}

func (e *erroringStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, assert.AnError
}
