// Package evidence implements evidence injection (C14): it converts
// successful provider results into a deterministic prose block the LLM
// is given as grounding, and extracts the exact numeric literals the
// generated response is permitted to reproduce.
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
)

// ConstraintLevel controls how free the generator is to make numeric
// or action-recommending claims.
type ConstraintLevel string

const (
	ConstraintPermissive       ConstraintLevel = "permissive"
	ConstraintQualitativeOnly  ConstraintLevel = "qualitative_only"
	ConstraintForbidNumeric    ConstraintLevel = "forbid_numeric_claims"
	ConstraintQuoteEvidenceOnly ConstraintLevel = "quote_evidence_only"
	ConstraintInsufficient     ConstraintLevel = "insufficient"
)

// Constraints is ResponseConstraints from the data model (spec §3).
type Constraints struct {
	Level ConstraintLevel
}

// Pack is the EvidencePack from the data model: the formatted context
// handed to the generator plus the numeric allow-list that downstream
// invariant checking enforces against.
type Pack struct {
	ContextItems          []string
	NumericTokens         map[string]struct{}
	Constraints           Constraints
	FormattedContext       string
	SystemPromptAdditions []string
	FreshnessWarnings     []string
	IsComplete            bool
}

// numericLiteral matches integers and decimals, with or without a
// leading currency symbol or trailing percent sign, so every number
// that could appear in generated text is captured verbatim.
var numericLiteral = regexp.MustCompile(`[$]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?%?`)

// Build formats results into a Pack. categories controls ordering so
// the prose block is deterministic across runs given the same results.
func Build(results map[classify.Category]dataprovider.Result, constraints Constraints) Pack {
	categories := make([]classify.Category, 0, len(results))
	for c := range results {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	pack := Pack{
		NumericTokens: map[string]struct{}{},
		Constraints:   constraints,
		IsComplete:    true,
	}

	var blocks []string
	for _, category := range categories {
		res := results[category]
		if !res.OK {
			pack.IsComplete = false
			continue
		}
		line := formatLine(category, res)
		blocks = append(blocks, line)
		pack.ContextItems = append(pack.ContextItems, line)
		for _, tok := range numericLiteral.FindAllString(line, -1) {
			pack.NumericTokens[tok] = struct{}{}
		}
	}

	pack.FormattedContext = strings.Join(blocks, "\n")
	pack.SystemPromptAdditions = promptAdditionsFor(constraints.Level)
	return pack
}

// formatLine renders one ProviderResult as a deterministic prose line
// with explicit units, per spec §4.2 step 6 ("dollars, %, °F/°C, km/h")
// and the numeric-semantics rule that currency codes are always
// rendered explicitly (e.g. "$123.45 USD", never bare "$123.45").
func formatLine(category classify.Category, res dataprovider.Result) string {
	switch category {
	case classify.CategoryStock:
		return fmt.Sprintf("%s quote: $%v %v (source: %s)", res.Data["symbol"], res.Data["price"], currencyOrUSD(res.Data["currency"]), res.Provider)
	case classify.CategoryCrypto:
		return fmt.Sprintf("%s spot price: $%v %v (source: %s)", res.Data["symbol"], res.Data["price"], currencyOrUSD(res.Data["currency"]), res.Provider)
	case classify.CategoryWeather:
		return fmt.Sprintf("Current conditions: %v, %v°F (%v°C), humidity %v%% (source: %s)", res.Data["condition"], res.Data["tempF"], res.Data["tempC"], res.Data["humidity"], res.Provider)
	case classify.CategoryFX:
		return fmt.Sprintf("Exchange rate %v→%v: %v (source: %s)", res.Data["base"], res.Data["quote"], res.Data["rate"], res.Provider)
	case classify.CategoryNews:
		return fmt.Sprintf("Headline (%v, %v): %v (source: %s)", res.Data["source"], res.Data["publishedAt"], res.Data["headline"], res.Provider)
	case classify.CategoryTime:
		return fmt.Sprintf("Current time in %v: %v (source: %s)", res.Data["location"], res.Data["iso8601"], res.Provider)
	default:
		return fmt.Sprintf("%v (source: %s)", res.Data, res.Provider)
	}
}

func currencyOrUSD(v any) string {
	if v == nil {
		return "USD"
	}
	return fmt.Sprintf("%v", v)
}

func promptAdditionsFor(level ConstraintLevel) []string {
	switch level {
	case ConstraintQualitativeOnly:
		return []string{"Describe this qualitatively only; do not state specific numbers."}
	case ConstraintForbidNumeric:
		return []string{"Do not invent numbers. No specific numeric claims are permitted in this response."}
	case ConstraintQuoteEvidenceOnly:
		return []string{"Only reproduce numeric values that appear verbatim in the evidence above; do not invent numbers."}
	case ConstraintInsufficient:
		return []string{"Evidence is insufficient; state that the data could not be confirmed."}
	default:
		return nil
	}
}

// AllowsToken reports whether tok appears in the pack's numeric
// allow-list, the check the invariant checker runs against generated
// text under quote_evidence_only constraints.
func (p Pack) AllowsToken(tok string) bool {
	_, ok := p.NumericTokens[tok]
	return ok
}

// ExtractNumericTokens finds every numeric literal in text using the
// same pattern Build uses to populate a Pack's allow-list, so the
// invariant checker can scan generated text with an identical notion
// of "numeric literal" to the one that built the allow-list.
func ExtractNumericTokens(text string) []string {
	return numericLiteral.FindAllString(text, -1)
}
