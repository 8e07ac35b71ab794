package riskassess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lensguard/gatekeeper/pkg/classify"
)

func TestAssess_LocalTruthMode_NotForceHigh(t *testing.T) {
	a := Assess(classify.Classification{TruthMode: classify.TruthModeLocal})
	assert.False(t, a.ForceHigh)
	assert.Equal(t, StakeLow, a.StakeLevel)
}

func TestAssess_LiveFeed_ForcesHigh(t *testing.T) {
	a := Assess(classify.Classification{TruthMode: classify.TruthModeLiveFeed})
	assert.True(t, a.ForceHigh)
	assert.Equal(t, StakeHigh, a.StakeLevel)
}

func TestAssess_Mixed_ForcesHigh(t *testing.T) {
	a := Assess(classify.Classification{TruthMode: classify.TruthModeMixed})
	assert.True(t, a.ForceHigh)
}

func TestAssess_IsDeterministic(t *testing.T) {
	cls := classify.Classification{
		TruthMode:                classify.TruthModeMixed,
		RequiresNumericPrecision: true,
		FallbackMode:             classify.FallbackRefuse,
		LiveCategories:           map[classify.Category]struct{}{classify.CategoryStock: {}},
	}
	first := Assess(cls)
	second := Assess(cls)
	assert.Equal(t, first, second)
}
