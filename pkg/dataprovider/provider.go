// Package dataprovider implements the provider registry (C8): a catalog
// of live-data providers keyed by category, each fetched with a
// per-call timeout.
package dataprovider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/metrics"
)

// ResultType discriminates the payload shape of a ProviderResult.
type ResultType string

const (
	ResultTypeStock   ResultType = "stock"
	ResultTypeWeather ResultType = "weather"
	ResultTypeCrypto  ResultType = "crypto"
	ResultTypeFX      ResultType = "fx"
	ResultTypeTime    ResultType = "time"
	ResultTypeNews    ResultType = "news"
)

// ErrorCode classifies why a fetch failed.
type ErrorCode string

const (
	ErrorTimeout    ErrorCode = "timeout"
	ErrorUpstream   ErrorCode = "upstream_error"
	ErrorNotFound   ErrorCode = "not_found"
	ErrorRateLimited ErrorCode = "rate_limited"
)

// Result is the tagged ProviderResult variant from spec §3: either ok
// with data, or err with a retryable code.
type Result struct {
	Type      ResultType
	OK        bool
	Data      map[string]any
	Provider  string
	FetchedAt time.Time

	ErrCode     ErrorCode
	ErrMessage  string
	Retryable   bool
}

// Provider fetches live data for one entity within a category.
type Provider interface {
	Category() classify.Category
	Name() string
	Fetch(ctx context.Context, entity string) (Result, error)
}

// DefaultTimeout is the per-provider call budget absent an override,
// per spec §4.2 step 3.
const DefaultTimeout = 5 * time.Second

// Registry catalogs providers by category. A category may have at most
// one active provider; registering again replaces it.
type Registry struct {
	mu        sync.RWMutex
	providers map[classify.Category]Provider
	timeout   time.Duration
}

// NewRegistry constructs an empty Registry using DefaultTimeout.
func NewRegistry() *Registry {
	return &Registry{providers: map[classify.Category]Provider{}, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-call fetch timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register binds a provider to its category.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Category()] = p
}

// Lookup returns the provider registered for category, if any.
func (r *Registry) Lookup(category classify.Category) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[category]
	return p, ok
}

// FetchOne calls provider.Fetch bounded by the registry's per-call
// timeout, converting a context deadline into a synthetic timeout
// Result rather than propagating the context error directly.
func (r *Registry) FetchOne(ctx context.Context, category classify.Category, entity string) Result {
	provider, ok := r.Lookup(category)
	if !ok {
		return Result{Type: ResultType(category), OK: false, ErrCode: ErrorNotFound, ErrMessage: fmt.Sprintf("no provider registered for category %q", category), Retryable: false}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	fetchStart := time.Now()

	resultCh := make(chan Result, 1)
	go func() {
		res, err := provider.Fetch(fetchCtx, entity)
		if err != nil {
			resultCh <- Result{Type: ResultType(category), OK: false, Provider: provider.Name(), ErrCode: ErrorUpstream, ErrMessage: err.Error(), Retryable: true}
			return
		}
		resultCh <- res
	}()

	select {
	case res := <-resultCh:
		outcome := "ok"
		if !res.OK {
			outcome = string(res.ErrCode)
		}
		metrics.ProviderFetchDurationSeconds.WithLabelValues(string(category), provider.Name(), outcome).Observe(time.Since(fetchStart).Seconds())
		return res
	case <-fetchCtx.Done():
		slog.Warn("provider fetch timed out", "category", category, "entity", entity, "timeout", r.timeout)
		metrics.ProviderFetchDurationSeconds.WithLabelValues(string(category), provider.Name(), string(ErrorTimeout)).Observe(time.Since(fetchStart).Seconds())
		return Result{Type: ResultType(category), OK: false, Provider: provider.Name(), ErrCode: ErrorTimeout, ErrMessage: "fetch exceeded timeout", Retryable: true}
	}
}

// FetchAll fans out one FetchOne call per requested category
// concurrently and returns every Result keyed by category, per spec
// §4.2 step 3 ("fire a fetch call concurrently").
func (r *Registry) FetchAll(ctx context.Context, categories map[classify.Category]struct{}, entity string) map[classify.Category]Result {
	out := make(map[classify.Category]Result, len(categories))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for category := range categories {
		category := category
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.FetchOne(ctx, category, entity)
			mu.Lock()
			out[category] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
