package dataprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/classify"
)

func TestHTTPProvider_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 123.45, "currency": "USD", "symbol": "AAPL"})
	}))
	defer srv.Close()

	p := NewStockProvider(srv.URL, srv.Client())
	res, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 123.45, res.Data["price"])
}

func TestHTTPProvider_FetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewStockProvider(srv.URL, srv.Client())
	res, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, ErrorUpstream, res.ErrCode)
	assert.True(t, res.Retryable)
}

func TestRegistry_FetchOne_TimeoutProducesSyntheticResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 1})
	}))
	defer srv.Close()

	reg := NewRegistry().WithTimeout(5 * time.Millisecond)
	reg.Register(NewStockProvider(srv.URL, srv.Client()))

	res := reg.FetchOne(context.Background(), classify.CategoryStock, "AAPL")
	assert.False(t, res.OK)
	assert.Equal(t, ErrorTimeout, res.ErrCode)
}

func TestRegistry_FetchOne_UnregisteredCategory(t *testing.T) {
	reg := NewRegistry()
	res := reg.FetchOne(context.Background(), classify.CategoryWeather, "nyc")
	assert.False(t, res.OK)
	assert.Equal(t, ErrorNotFound, res.ErrCode)
}

func TestRegistry_FetchAll_Concurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"price": 1, "tempF": 70})
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.Register(NewStockProvider(srv.URL, srv.Client()))
	reg.Register(NewWeatherProvider(srv.URL, srv.Client()))

	results := reg.FetchAll(context.Background(), map[classify.Category]struct{}{
		classify.CategoryStock:   {},
		classify.CategoryWeather: {},
	}, "x")

	require.Len(t, results, 2)
	assert.True(t, results[classify.CategoryStock].OK)
	assert.True(t, results[classify.CategoryWeather].OK)
}

func TestTimeProvider_Fetch(t *testing.T) {
	p, err := NewTimeProvider("UTC")
	require.NoError(t, err)
	res, err := p.Fetch(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.NotEmpty(t, res.Data["iso8601"])
}
