package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

func TestService_SweepDeadLetters_RemovesOnlyExpiredEntries(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()

	const key = "scheduler:deadletter"
	old := time.Now().Add(-30 * 24 * time.Hour)
	fresh := time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.ZAdd(ctx, key, float64(old.Unix()), "expired-entry"))
	require.NoError(t, store.ZAdd(ctx, key, float64(fresh.Unix()), "fresh-entry"))

	svc := NewService(store, nil, nil, time.Hour)
	svc.now = func() time.Time { return time.Now() }
	svc.sweepDeadLetters(ctx)

	remaining, err := store.ZRange(ctx, key, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh-entry"}, remaining)
}

func TestService_StartStop_RunsWithoutPanicking(t *testing.T) {
	store := kvstore.NewMemory()
	svc := NewService(store, nil, nil, 50*time.Millisecond)

	svc.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	svc.Stop()
}
