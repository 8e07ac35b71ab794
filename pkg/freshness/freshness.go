// Package freshness classifies a message into a data domain and decides
// what the evidence-injection stage must require before the pipeline is
// allowed to make numeric claims about it (spec §4.7).
package freshness

import (
	"regexp"
	"time"
)

// Domain is one of the recognized freshness domains. "general" is the
// fallback when nothing more specific matches.
type Domain string

const (
	DomainCryptoPrices     Domain = "crypto_prices"
	DomainStockPrices      Domain = "stock_prices"
	DomainWeather          Domain = "weather"
	DomainBreakingNews     Domain = "breaking_news"
	DomainNews             Domain = "news"
	DomainSportsScores     Domain = "sports_scores"
	DomainExchangeRates    Domain = "exchange_rates"
	DomainProductPrices    Domain = "product_prices"
	DomainCompanyInfo      Domain = "company_info"
	DomainLawsRegulations  Domain = "laws_regulations"
	DomainMedicalGuideline Domain = "medical_guidelines"
	DomainHistoricalFacts  Domain = "historical_facts"
	DomainGeneral          Domain = "general"
)

// RequiredAction is what the downstream evidence/generation stages must
// do about staleness.
type RequiredAction string

const (
	ActionNone          RequiredAction = "none"
	ActionWarn          RequiredAction = "warn"
	ActionVerify        RequiredAction = "verify"
	ActionBlockNumerics RequiredAction = "block_numerics"
)

// Window is the freshness policy for one domain.
type Window struct {
	MaxAge    time.Duration // zero means unbounded (historical_facts etc.)
	Immediate bool          // true: unverified data forbids numeric claims
}

// domainRule binds a domain to the patterns that detect it and a scan
// priority; rules are tried highest priority first and the first match
// wins, mirroring spec §4.7's ordered-tuple scan.
type domainRule struct {
	domain   Domain
	priority int
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// rules is ordered by descending priority. More specific / more volatile
// domains are checked before their broader siblings (e.g. breaking_news
// before news, crypto_prices before stock_prices's generic "price" terms).
var rules = []domainRule{
	{DomainCryptoPrices, 100, compile(`(?i)\b(bitcoin|btc|ethereum|eth|crypto(currency)?|doge(coin)?|solana)\b.*\b(price|worth|trading|value)\b`, `(?i)\bprice of (bitcoin|btc|ethereum|eth)\b`)},
	{DomainStockPrices, 95, compile(`(?i)\b(stock|share)s?\b.*\b(price|trading|worth|quote)\b`, `(?i)\b[A-Z]{1,5}\b (stock|shares?|trading)`, `(?i)\btrading at\b`)},
	{DomainExchangeRates, 90, compile(`(?i)\b(exchange rate|currency conversion|USD to|EUR to|forex)\b`)},
	{DomainWeather, 85, compile(`(?i)\b(weather|temperature|forecast|rain(ing)?|snow(ing)?|humidity)\b.*\b(today|now|currently|outside)?\b`)},
	{DomainBreakingNews, 80, compile(`(?i)\bbreaking( news)?\b`, `(?i)\bwhat('s| is) happening (right now|today)\b`)},
	{DomainSportsScores, 75, compile(`(?i)\b(score|scoreline|final score)\b.*\b(game|match)\b`, `(?i)\bwho('s| is) winning\b`)},
	{DomainNews, 70, compile(`(?i)\b(latest news|current events|news about|news on)\b`)},
	{DomainProductPrices, 65, compile(`(?i)\b(price of|cost of|how much (is|does)).*\b(cost|buy|purchase)\b`, `(?i)\bhow much does .* cost\b`)},
	{DomainCompanyInfo, 60, compile(`(?i)\b(ceo of|headquarters of|founded in|employees does)\b`)},
	{DomainLawsRegulations, 55, compile(`(?i)\b(law|regulation|statute|compliance requirement)s?\b`)},
	{DomainMedicalGuideline, 50, compile(`(?i)\b(medical guideline|dosage|treatment protocol|clinical recommendation)s?\b`)},
	{DomainHistoricalFacts, 10, compile(`(?i)\b(in (17|18|19)\d{2}|historical(ly)?|who (was|discovered|invented))\b`, `(?i)\b(math(ematics)?|physics|theorem|formula for)\b`)},
}

// windows defines the maxAge/immediate policy per domain, per spec §4.7.
var windows = map[Domain]Window{
	DomainCryptoPrices:     {MaxAge: 5 * time.Minute, Immediate: true},
	DomainStockPrices:      {MaxAge: 15 * time.Minute, Immediate: true},
	DomainWeather:          {MaxAge: time.Hour, Immediate: true},
	DomainBreakingNews:     {MaxAge: 4 * time.Hour, Immediate: true},
	DomainNews:             {MaxAge: 24 * time.Hour},
	DomainSportsScores:     {MaxAge: 2 * time.Hour},
	DomainExchangeRates:    {MaxAge: 24 * time.Hour},
	DomainProductPrices:    {MaxAge: 7 * 24 * time.Hour},
	DomainCompanyInfo:      {MaxAge: 30 * 24 * time.Hour},
	DomainLawsRegulations:  {MaxAge: 90 * 24 * time.Hour},
	DomainMedicalGuideline: {MaxAge: 180 * 24 * time.Hour},
	DomainHistoricalFacts:  {}, // unbounded
	DomainGeneral:          {},
}

// Result is the output of a freshness check.
type Result struct {
	Domain         Domain
	Window         Window
	IsStale        bool
	StaleBy        time.Duration
	RequiredAction RequiredAction
}

// Checker classifies messages into domains and evaluates staleness.
type Checker struct{}

// NewChecker constructs a Checker. It carries no state; the rule table
// above is fixed at compile time.
func NewChecker() *Checker { return &Checker{} }

// DetectDomain scans message against the ordered rule table and returns
// the highest-priority matching domain, or DomainGeneral if none match.
func (c *Checker) DetectDomain(message string) Domain {
	best := DomainGeneral
	bestPriority := -1
	for _, rule := range rules {
		if rule.priority <= bestPriority {
			continue
		}
		for _, pattern := range rule.patterns {
			if pattern.MatchString(message) {
				best = rule.domain
				bestPriority = rule.priority
				break
			}
		}
	}
	return best
}

// WindowFor returns the configured Window for domain.
func (c *Checker) WindowFor(domain Domain) Window {
	if w, ok := windows[domain]; ok {
		return w
	}
	return windows[DomainGeneral]
}

// Evaluate classifies message and evaluates it against an optional known
// data age. If dataAge is nil, the data's age is unknown — for an
// "immediate" domain that forces block_numerics per spec §4.7.
func (c *Checker) Evaluate(message string, dataAge *time.Duration) Result {
	domain := c.DetectDomain(message)
	window := c.WindowFor(domain)

	res := Result{Domain: domain, Window: window, RequiredAction: ActionNone}

	if window.MaxAge == 0 {
		// Unbounded domain (historical facts, math, general knowledge):
		// staleness is not applicable.
		return res
	}

	if dataAge == nil {
		if window.Immediate {
			res.RequiredAction = ActionBlockNumerics
		}
		return res
	}

	age := *dataAge
	if age <= window.MaxAge {
		return res
	}

	res.IsStale = true
	res.StaleBy = age - window.MaxAge

	switch {
	case age > 2*window.MaxAge:
		res.RequiredAction = ActionVerify
	default:
		res.RequiredAction = ActionWarn
	}
	return res
}
