package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectDomain(t *testing.T) {
	c := NewChecker()

	cases := []struct {
		message string
		want    Domain
	}{
		{"What's AAPL trading at?", DomainStockPrices},
		{"What's the price of bitcoin right now?", DomainCryptoPrices},
		{"What's the weather like today?", DomainWeather},
		{"breaking news about the election", DomainBreakingNews},
		{"who discovered penicillin", DomainHistoricalFacts},
		{"tell me a joke", DomainGeneral},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, c.DetectDomain(tc.message), "message=%q", tc.message)
	}
}

func TestEvaluate_UnknownAgeOnImmediateDomain_BlocksNumerics(t *testing.T) {
	c := NewChecker()
	res := c.Evaluate("What's AAPL trading at?", nil)
	assert.Equal(t, DomainStockPrices, res.Domain)
	assert.Equal(t, ActionBlockNumerics, res.RequiredAction)
}

func TestEvaluate_FreshData_NoAction(t *testing.T) {
	c := NewChecker()
	age := 2 * time.Minute
	res := c.Evaluate("What's AAPL trading at?", &age)
	assert.False(t, res.IsStale)
	assert.Equal(t, ActionNone, res.RequiredAction)
}

func TestEvaluate_StaleData_Warn(t *testing.T) {
	c := NewChecker()
	age := 20 * time.Minute // stock window is 15m; not over 2x (30m)
	res := c.Evaluate("What's AAPL trading at?", &age)
	assert.True(t, res.IsStale)
	assert.Equal(t, ActionWarn, res.RequiredAction)
}

func TestEvaluate_VeryStaleData_Verify(t *testing.T) {
	c := NewChecker()
	age := 45 * time.Minute // > 2x the 15m stock window
	res := c.Evaluate("What's AAPL trading at?", &age)
	assert.True(t, res.IsStale)
	assert.Equal(t, ActionVerify, res.RequiredAction)
}

func TestEvaluate_UnboundedDomain_NeverStale(t *testing.T) {
	c := NewChecker()
	age := 1000 * 24 * time.Hour
	res := c.Evaluate("who discovered penicillin", &age)
	assert.False(t, res.IsStale)
	assert.Equal(t, ActionNone, res.RequiredAction)
}
