package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/freshness"
	"github.com/lensguard/gatekeeper/pkg/kvstore"
	"github.com/lensguard/gatekeeper/pkg/livedata"
	"github.com/lensguard/gatekeeper/pkg/shield"
)

type stubGenerator struct{ text string }

func (s stubGenerator) Generate(_ context.Context, _ string, _ evidence.Constraints) (Generation, error) {
	return Generation{Text: s.text, TokensUsed: 10}, nil
}

func newExecutor(genText string) *Executor {
	store := kvstore.NewMemory()
	shieldEngine := shield.New(store, nil)
	orchestrator := livedata.New(classify.New(freshness.NewChecker()), dataprovider.NewRegistry())
	return New(shieldEngine, orchestrator, stubGenerator{text: genText}, nil, nil, nil)
}

func TestExecute_OrdinaryMessage_Succeeds(t *testing.T) {
	ex := newExecutor("Sure, here's the answer.")
	out := ex.Execute(context.Background(), Request{UserID: "u1", Message: "tell me a joke"})
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, "Sure, here's the answer.", out.Text)
}

func TestExecute_CrisisMessage_StopsWithCrisisBlock(t *testing.T) {
	ex := newExecutor("irrelevant")
	out := ex.Execute(context.Background(), Request{UserID: "u2", Message: "I want to kill myself"})
	require.Equal(t, KindStopped, out.Kind)
	assert.Equal(t, StanceShield, out.Stance)
	assert.Contains(t, out.Text, "988")
}

func TestExecute_CrisisSession_BlocksFollowUpMessages(t *testing.T) {
	ex := newExecutor("irrelevant")
	ctx := context.Background()
	_ = ex.Execute(ctx, Request{UserID: "u3", Message: "I want to kill myself"})

	out := ex.Execute(ctx, Request{UserID: "u3", Message: "never mind, tell me a joke"})
	require.Equal(t, KindStopped, out.Kind)
	assert.Contains(t, out.Text, "988")
}

func TestExecute_WarnSignal_AwaitsAckThenProceeds(t *testing.T) {
	ex := newExecutor("ok here you go")
	ctx := context.Background()

	out := ex.Execute(ctx, Request{UserID: "u4", Message: "I feel hopeless lately"})
	require.Equal(t, KindAwaitAck, out.Kind)
	require.NotEmpty(t, out.AckToken)

	ok, err := ex.shield.RedeemAckToken(ctx, out.AckToken, "u4", "I feel hopeless lately")
	require.NoError(t, err)
	require.True(t, ok)

	out2 := ex.Execute(ctx, Request{UserID: "u4", Message: "thanks, I'm doing better now", AckTokenValid: true})
	assert.Equal(t, KindSuccess, out2.Kind)
}

func TestExecute_GoalStatement_Redirects(t *testing.T) {
	ex := newExecutor("irrelevant")
	out := ex.Execute(context.Background(), Request{UserID: "u5", Message: "I want to learn Spanish to travel in 8 weeks"})
	require.Equal(t, KindRedirect, out.Kind)
	assert.Equal(t, "Spanish", out.RedirectTopic)
}
