package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

func TestNextDelay_GrowsExponentiallyWithinCap(t *testing.T) {
	policy := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2, Jitter: 0}
	d1 := nextDelay(policy, 1)
	d2 := nextDelay(policy, 2)
	d3 := nextDelay(policy, 5)
	assert.Equal(t, 100*time.Millisecond, d1)
	assert.Equal(t, 200*time.Millisecond, d2)
	assert.LessOrEqual(t, d3, time.Second)
}

func TestAcquireLock_SecondInstanceFailsUntilReleased(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	handle, ok, err := acquireLock(ctx, store, "job-1", "instance-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), handle.FencingToken)

	_, ok2, err := acquireLock(ctx, store, "job-1", "instance-b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok2)

	require.NoError(t, releaseLock(ctx, store, "job-1", "instance-a"))

	handle2, ok3, err := acquireLock(ctx, store, "job-1", "instance-b", time.Second)
	require.NoError(t, err)
	require.True(t, ok3)
	assert.Equal(t, int64(2), handle2.FencingToken, "fencing token must monotonically increase across acquisitions")
}

func TestReleaseLock_NoOpIfNotOwner(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	_, ok, err := acquireLock(ctx, store, "job-1", "instance-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, releaseLock(ctx, store, "job-1", "instance-b"))

	owned, err := ownsLock(ctx, store, "job-1", "instance-a")
	require.NoError(t, err)
	assert.True(t, owned, "a release attempt from a non-owner must not release the lock")
}

func TestScheduler_ExclusiveJob_RetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	sched := New(store, nil, "instance-a")

	var calls int32
	done := make(chan struct{})

	sched.Register(JobDefinition{
		ID:       "flaky-job",
		Schedule: IntervalSchedule{Interval: time.Hour},
		Timeout:  time.Second,
		Retry:    RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffMultiplier: 1, Jitter: 0},
		Exclusive: true,
		RunOnStartup: true,
		DeadLetterOnFailure: true,
		Handler: func(_ context.Context, _ int64) error {
			n := atomic.AddInt32(&calls, 1)
			if n == 2 {
				close(done)
			}
			return errors.New("boom")
		},
	})

	sched.Tick(ctx, time.Now())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not retry in time")
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	entries, err := store.ZRange(ctx, deadLetterZSetKey, 0, -1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
