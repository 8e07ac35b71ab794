package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lensguard/gatekeeper/pkg/freshness"
)

func newClassifier() *Classifier {
	return New(freshness.NewChecker())
}

func TestClassify_LocalMessage(t *testing.T) {
	c := newClassifier()
	cls := c.Classify("tell me a joke")
	assert.Equal(t, TruthModeLocal, cls.TruthMode)
	assert.False(t, cls.HasLiveCategories())
}

func TestClassify_StockQuery_IsLiveFeed(t *testing.T) {
	c := newClassifier()
	cls := c.Classify("What's AAPL trading at?")
	assert.Equal(t, TruthModeLiveFeed, cls.TruthMode)
	_, ok := cls.LiveCategories[CategoryStock]
	assert.True(t, ok)
	assert.True(t, cls.FreshnessCritical)
	assert.True(t, cls.RequiresNumericPrecision)
	assert.Equal(t, FallbackRefuse, cls.FallbackMode)
}

func TestClassify_WeatherQuery_QualitativeFallback(t *testing.T) {
	c := newClassifier()
	cls := c.Classify("what's the weather like today")
	assert.Equal(t, FallbackQualitativeOnly, cls.FallbackMode)
}

func TestClassify_TimeQuery_AlwaysRefuses(t *testing.T) {
	c := newClassifier()
	cls := c.Classify("what time is it")
	_, ok := cls.LiveCategories[CategoryTime]
	assert.True(t, ok)
	assert.Equal(t, FallbackRefuse, cls.FallbackMode)
}

func TestClassify_MixedCategories(t *testing.T) {
	c := newClassifier()
	cls := c.Classify("what time is it and what's bitcoin's price right now")
	assert.Equal(t, TruthModeMixed, cls.TruthMode)
	assert.Len(t, cls.LiveCategories, 2)
}
