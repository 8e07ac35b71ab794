// Package classify implements the data-need classifier (C6): it decides
// whether a message needs locally-known facts, a live data feed, or a
// mix of both, and what to do if live data cannot be obtained.
package classify

import (
	"regexp"
	"strings"

	"github.com/lensguard/gatekeeper/pkg/freshness"
)

// TruthMode describes how grounded in live data the response must be.
type TruthMode string

const (
	TruthModeLocal    TruthMode = "local"
	TruthModeLiveFeed TruthMode = "live_feed"
	TruthModeMixed    TruthMode = "mixed"
)

// FallbackMode is what to do when live data cannot be fetched.
type FallbackMode string

const (
	FallbackRefuse           FallbackMode = "refuse"
	FallbackProceedDegraded  FallbackMode = "proceed_degraded"
	FallbackQualitativeOnly  FallbackMode = "qualitative_only"
)

// Category is a live-data category a provider can be registered under.
type Category string

const (
	CategoryStock    Category = "stock"
	CategoryWeather  Category = "weather"
	CategoryCrypto   Category = "crypto"
	CategoryFX       Category = "fx"
	CategoryTime     Category = "time"
	CategoryNews     Category = "news"
	CategorySports   Category = "sports"
	CategoryProducts Category = "products"
)

// domainToCategory maps a freshness domain onto the live-data category
// that can satisfy it. Domains with no live provider are omitted — they
// stay local.
var domainToCategory = map[freshness.Domain]Category{
	freshness.DomainStockPrices:   CategoryStock,
	freshness.DomainCryptoPrices:  CategoryCrypto,
	freshness.DomainWeather:       CategoryWeather,
	freshness.DomainExchangeRates: CategoryFX,
	freshness.DomainBreakingNews:  CategoryNews,
	freshness.DomainNews:          CategoryNews,
	freshness.DomainSportsScores:  CategorySports,
	freshness.DomainProductPrices: CategoryProducts,
}

var timePattern = regexp.MustCompile(`(?i)\bwhat (time|day|date) is it\b|\bcurrent (time|date)\b`)

// Classification is the output of Classify: the data-need profile for
// one message.
type Classification struct {
	TruthMode                 TruthMode
	LiveCategories            map[Category]struct{}
	Entities                  []string
	FallbackMode              FallbackMode
	FreshnessCritical         bool
	MaxDataAge                *int64 // milliseconds; nil means unconstrained
	RequiresNumericPrecision  bool
	AllowsActionRecommendations bool
	Domain                    freshness.Domain
}

// HasLiveCategories reports whether any category requires a live fetch.
func (c Classification) HasLiveCategories() bool { return len(c.LiveCategories) > 0 }

// Classifier maps raw user messages to DataNeedClassification per spec §3/§4.2.
type Classifier struct {
	freshness *freshness.Checker
}

// New constructs a Classifier backed by a freshness.Checker for domain
// detection and window lookups.
func New(checker *freshness.Checker) *Classifier {
	return &Classifier{freshness: checker}
}

// Classify inspects message and returns its DataNeedClassification.
func (c *Classifier) Classify(message string) Classification {
	domain := c.freshness.DetectDomain(message)
	window := c.freshness.WindowFor(domain)

	cls := Classification{
		Domain:                      domain,
		LiveCategories:              map[Category]struct{}{},
		FallbackMode:                FallbackRefuse,
		RequiresNumericPrecision:    false,
		AllowsActionRecommendations: true,
	}

	if timePattern.MatchString(message) {
		cls.LiveCategories[CategoryTime] = struct{}{}
	}

	if category, ok := domainToCategory[domain]; ok {
		cls.LiveCategories[category] = struct{}{}
	}

	cls.Entities = extractEntities(message)

	if !cls.HasLiveCategories() {
		cls.TruthMode = TruthModeLocal
		return cls
	}

	// More than one live category (e.g. the time category alongside a
	// domain's live category) counts as mixed; a single live category is
	// pure live_feed, whatever entities were extracted. Either way liveCategories is non-empty so the risk
	// assessor must force high per the invariant in spec §3.
	if len(cls.LiveCategories) > 1 {
		cls.TruthMode = TruthModeMixed
	} else {
		cls.TruthMode = TruthModeLiveFeed
	}

	cls.FreshnessCritical = window.Immediate
	if window.MaxAge > 0 {
		ms := window.MaxAge.Milliseconds()
		cls.MaxDataAge = &ms
	}
	cls.RequiresNumericPrecision = window.Immediate

	switch domain {
	case freshness.DomainStockPrices, freshness.DomainCryptoPrices, freshness.DomainExchangeRates:
		cls.FallbackMode = FallbackRefuse
	case freshness.DomainWeather, freshness.DomainSportsScores:
		cls.FallbackMode = FallbackQualitativeOnly
	default:
		cls.FallbackMode = FallbackProceedDegraded
	}

	if _, wantsTime := cls.LiveCategories[CategoryTime]; wantsTime {
		// Time is either correct or wrong; no degraded answer is safe
		// (spec §4.2 step 4), so it always refuses on failure.
		cls.FallbackMode = FallbackRefuse
	}

	return cls
}

// tickerPattern recognizes bare uppercase stock-ticker-like tokens (1-5
// letters), a cheap entity extractor sufficient for provider lookups.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

func extractEntities(message string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range tickerPattern.FindAllString(message, -1) {
		if isCommonWord(m) {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

var commonAcronyms = map[string]struct{}{
	"I": {}, "A": {}, "CEO": {}, "USD": {}, "EUR": {}, "GBP": {}, "FX": {},
}

func isCommonWord(token string) bool {
	_, ok := commonAcronyms[strings.ToUpper(token)]
	return ok
}
