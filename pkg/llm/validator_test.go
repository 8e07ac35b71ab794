package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/evidence"
)

func TestHeuristicValidator_AcceptsOrdinaryText(t *testing.T) {
	v := HeuristicValidator{}
	_, verified, ok, err := v.Validate(context.Background(), "Here's a balanced answer to your question.")
	require.NoError(t, err)
	assert.True(t, verified)
	assert.True(t, ok)
}

func TestHeuristicValidator_RejectsBannedPhrase(t *testing.T) {
	v := HeuristicValidator{}
	_, _, ok, err := v.Validate(context.Background(), "I am 100% certain this will work.")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSystemPromptFor_VariesByConstraintLevel(t *testing.T) {
	assert.Contains(t, systemPromptFor(evidence.Constraints{Level: evidence.ConstraintQualitativeOnly}), "qualitatively")
	assert.Contains(t, systemPromptFor(evidence.Constraints{Level: evidence.ConstraintForbidNumeric}), "Do not invent")
	assert.Empty(t, systemPromptFor(evidence.Constraints{Level: evidence.ConstraintPermissive}))
}
