package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
)

func TestBuild_FormatsStockLineWithExplicitCurrency(t *testing.T) {
	results := map[classify.Category]dataprovider.Result{
		classify.CategoryStock: {
			OK: true, Provider: "stock-quotes", FetchedAt: time.Now(),
			Data: map[string]any{"symbol": "AAPL", "price": 123.45, "currency": "USD"},
		},
	}
	pack := Build(results, Constraints{Level: ConstraintQuoteEvidenceOnly})
	assert.Contains(t, pack.FormattedContext, "$123.45 USD")
	assert.True(t, pack.AllowsToken("$123.45"))
	assert.True(t, pack.IsComplete)
}

func TestBuild_FailedResultMarksIncomplete(t *testing.T) {
	results := map[classify.Category]dataprovider.Result{
		classify.CategoryStock: {OK: false},
	}
	pack := Build(results, Constraints{Level: ConstraintForbidNumeric})
	assert.False(t, pack.IsComplete)
	assert.Empty(t, pack.ContextItems)
}

func TestBuild_NumericTokensAreDeterministicAcrossRuns(t *testing.T) {
	results := map[classify.Category]dataprovider.Result{
		classify.CategoryWeather: {
			OK: true, Provider: "weather-current",
			Data: map[string]any{"condition": "clear", "tempF": 70, "tempC": 21, "humidity": 40},
		},
	}
	p1 := Build(results, Constraints{})
	p2 := Build(results, Constraints{})
	assert.Equal(t, p1.FormattedContext, p2.FormattedContext)
	assert.Equal(t, p1.NumericTokens, p2.NumericTokens)
}

func TestPromptAdditions_QualitativeOnly(t *testing.T) {
	pack := Build(nil, Constraints{Level: ConstraintQualitativeOnly})
	assert.Contains(t, pack.SystemPromptAdditions[0], "qualitatively")
}
