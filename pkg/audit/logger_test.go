package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

func newTestLogger() *Logger {
	return New(kvstore.NewMemory(), 30)
}

func TestLogger_RecordAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger()

	err := l.Record(ctx, Event{
		Category: CategoryCrisisOpened,
		UserID:   "user-1",
		Message:  "crisis session opened",
	})
	require.NoError(t, err)

	events, err := l.ByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	fetched, ok, err := l.Get(ctx, events[0].ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, events[0], fetched)
	assert.True(t, Verify(fetched), "round-tripped event must verify against its stored hash")
	assert.Equal(t, SeverityWarning, fetched.Severity, "crisis_opened must infer warning severity")
}

func TestLogger_SeverityInference(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger()

	require.NoError(t, l.Record(ctx, Event{Category: CategorySafetyViolation, Message: "x"}))
	require.NoError(t, l.Record(ctx, Event{Category: CategoryGeneric, Message: "y"}))

	critical, err := l.ByCategory(ctx, CategorySafetyViolation, 10)
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, SeverityCritical, critical[0].Severity)

	info, err := l.ByCategory(ctx, CategoryGeneric, 10)
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, SeverityInfo, info[0].Severity)
}

func TestLogger_TamperDetection(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger()

	require.NoError(t, l.Record(ctx, Event{Category: CategoryGeneric, Message: "original"}))
	events, err := l.ByCategory(ctx, CategoryGeneric, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	tampered := events[0]
	tampered.Message = "tampered"
	assert.False(t, Verify(tampered), "modifying a field after the fact must break hash verification")
}

func TestLogger_ByCategoryOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLogger()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(ctx, Event{Category: CategoryGeneric, Message: "msg"}))
	}

	events, err := l.ByCategory(ctx, CategoryGeneric, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 0; i < len(events)-1; i++ {
		assert.Greater(t, events[i].Index, events[i+1].Index)
	}
}
