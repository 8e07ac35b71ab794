package shield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/kvstore"
)

func newEngine() *Engine {
	return New(kvstore.NewMemory(), nil)
}

func TestEvaluate_NoneOrLow_Skips(t *testing.T) {
	e := newEngine()
	out, err := e.Evaluate(context.Background(), "u1", "hello", SignalNone, false)
	require.NoError(t, err)
	assert.Equal(t, RouteSkip, out.Route)
}

func TestEvaluate_Medium_WarnsThenRequiresExplicitAck(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	out, err := e.Evaluate(ctx, "u1", "msg", SignalMedium, false)
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, out.Action)
	assert.NotEmpty(t, out.WarningMessage)

	// Same user, next message, no ack: still warned.
	out2, err := e.Evaluate(ctx, "u1", "another msg", SignalLow, false)
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, out2.Action)

	// With an explicit ack, the user returns to clear.
	out3, err := e.Evaluate(ctx, "u1", "ok I'm fine", SignalNone, true)
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, out3.Action)
}

func TestEvaluate_High_OpensCrisisAndBlocksFollowUps(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	out, err := e.Evaluate(ctx, "u1", "I want to kill myself", SignalHigh, false)
	require.NoError(t, err)
	assert.Equal(t, ActionCrisis, out.Action)
	assert.NotEmpty(t, out.SessionID)
	assert.False(t, out.CrisisBlocked)

	// Any subsequent message — even a clearly benign one — stays blocked.
	out2, err := e.Evaluate(ctx, "u1", "never mind, what's the weather", SignalNone, false)
	require.NoError(t, err)
	assert.Equal(t, ActionCrisis, out2.Action)
	assert.True(t, out2.CrisisBlocked)
	assert.Equal(t, out.SessionID, out2.SessionID)

	require.NoError(t, e.ResolveCrisis(ctx, "u1"))
	out3, err := e.Evaluate(ctx, "u1", "hi", SignalNone, false)
	require.NoError(t, err)
	assert.Equal(t, RouteSkip, out3.Route)
}

func TestAckToken_OneTimeUse(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	token, err := e.IssueAckToken(ctx, "u1", "msg")
	require.NoError(t, err)

	ok, err := e.RedeemAckToken(ctx, token, "u1", "msg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok2, err := e.RedeemAckToken(ctx, token, "u1", "msg")
	require.NoError(t, err)
	assert.False(t, ok2, "a redeemed token must not be usable again")
}

func TestAckToken_MismatchedMessageFails(t *testing.T) {
	ctx := context.Background()
	e := newEngine()

	token, err := e.IssueAckToken(ctx, "u1", "msg-a")
	require.NoError(t, err)

	ok, err := e.RedeemAckToken(ctx, token, "u1", "msg-b")
	require.NoError(t, err)
	assert.False(t, ok)
}
