package dataprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lensguard/gatekeeper/pkg/classify"
)

// HTTPProvider is a generic JSON-over-HTTP provider: it GETs
// baseURL/entity, decodes the response through extract, and wraps the
// result as a ProviderResult. Concrete providers (stock, weather,
// crypto, fx, news) are thin configurations of this shape — the
// upstream APIs differ only in URL layout and field extraction.
type HTTPProvider struct {
	category classify.Category
	name     string
	resType  ResultType
	client   *http.Client
	baseURL  string
	extract  func(body []byte) (map[string]any, error)
}

// NewHTTPProvider constructs an HTTPProvider. client may be nil, in
// which case http.DefaultClient is used.
func NewHTTPProvider(category classify.Category, name string, resType ResultType, baseURL string, client *http.Client, extract func([]byte) (map[string]any, error)) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{category: category, name: name, resType: resType, client: client, baseURL: baseURL, extract: extract}
}

func (p *HTTPProvider) Category() classify.Category { return p.category }
func (p *HTTPProvider) Name() string                 { return p.name }

func (p *HTTPProvider) Fetch(ctx context.Context, entity string) (Result, error) {
	target := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(entity))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request to %s: %w", p.name, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Type: p.resType, OK: false, Provider: p.name, ErrCode: ErrorUpstream, ErrMessage: fmt.Sprintf("%s returned status %d", p.name, resp.StatusCode), Retryable: resp.StatusCode >= 500}, nil
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decoding %s response: %w", p.name, err)
	}

	data, err := p.extract(raw)
	if err != nil {
		return Result{Type: p.resType, OK: false, Provider: p.name, ErrCode: ErrorUpstream, ErrMessage: err.Error(), Retryable: false}, nil
	}

	return Result{Type: p.resType, OK: true, Data: data, Provider: p.name, FetchedAt: time.Now()}, nil
}

// NewStockProvider builds an HTTPProvider for stock quotes.
func NewStockProvider(baseURL string, client *http.Client) *HTTPProvider {
	return NewHTTPProvider(classify.CategoryStock, "stock-quotes", ResultTypeStock, baseURL, client, extractFields("price", "currency", "symbol"))
}

// NewCryptoProvider builds an HTTPProvider for crypto spot prices.
func NewCryptoProvider(baseURL string, client *http.Client) *HTTPProvider {
	return NewHTTPProvider(classify.CategoryCrypto, "crypto-spot", ResultTypeCrypto, baseURL, client, extractFields("price", "currency", "symbol"))
}

// NewWeatherProvider builds an HTTPProvider for current weather.
func NewWeatherProvider(baseURL string, client *http.Client) *HTTPProvider {
	return NewHTTPProvider(classify.CategoryWeather, "weather-current", ResultTypeWeather, baseURL, client, extractFields("tempF", "tempC", "condition", "humidity"))
}

// NewFXProvider builds an HTTPProvider for exchange rates.
func NewFXProvider(baseURL string, client *http.Client) *HTTPProvider {
	return NewHTTPProvider(classify.CategoryFX, "fx-rates", ResultTypeFX, baseURL, client, extractFields("rate", "base", "quote"))
}

// NewNewsProvider builds an HTTPProvider for headline lookups.
func NewNewsProvider(baseURL string, client *http.Client) *HTTPProvider {
	return NewHTTPProvider(classify.CategoryNews, "news-headlines", ResultTypeNews, baseURL, client, extractFields("headline", "source", "publishedAt"))
}

// extractFields builds an extract function that copies the named
// top-level fields out of a JSON object into a map[string]any,
// erroring if the document isn't a JSON object.
func extractFields(fields ...string) func([]byte) (map[string]any, error) {
	return func(body []byte) (map[string]any, error) {
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("response is not a JSON object: %w", err)
		}
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := doc[f]; ok {
				out[f] = v
			}
		}
		return out, nil
	}
}

// TimeProvider answers "what time is it" queries locally — there is no
// upstream to fail except a misconfigured location, so Fetch never
// times out in practice. It is still registered like any provider so
// the orchestrator's special-casing (spec §4.2 step 4) only needs to
// know the category, not the implementation.
type TimeProvider struct {
	loc *time.Location
}

// NewTimeProvider constructs a TimeProvider for the given IANA location
// name (e.g. "UTC", "America/New_York").
func NewTimeProvider(locationName string) (*TimeProvider, error) {
	loc, err := time.LoadLocation(locationName)
	if err != nil {
		return nil, fmt.Errorf("loading location %q: %w", locationName, err)
	}
	return &TimeProvider{loc: loc}, nil
}

func (p *TimeProvider) Category() classify.Category { return classify.CategoryTime }
func (p *TimeProvider) Name() string                 { return "local-clock" }

func (p *TimeProvider) Fetch(_ context.Context, _ string) (Result, error) {
	now := time.Now().In(p.loc)
	return Result{
		Type:     ResultTypeTime,
		OK:       true,
		Provider: p.Name(),
		Data: map[string]any{
			"iso8601":  now.Format(time.RFC3339),
			"location": p.loc.String(),
		},
		FetchedAt: now,
	}, nil
}
