package livedata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensguard/gatekeeper/pkg/classify"
	"github.com/lensguard/gatekeeper/pkg/dataprovider"
	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/freshness"
)

func TestOrchestrate_LocalMessage_Passthrough(t *testing.T) {
	o := New(classify.New(freshness.NewChecker()), dataprovider.NewRegistry())
	res := o.Orchestrate(context.Background(), "tell me a joke", Options{})
	assert.Equal(t, ModePassthrough, res.Mode)
	assert.False(t, res.ForceHigh)
}

func TestOrchestrate_StockQuery_AllSucceed_QuoteEvidenceOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"symbol": "AAPL", "price": 123.45, "currency": "USD"})
	}))
	defer srv.Close()

	reg := dataprovider.NewRegistry()
	reg.Register(dataprovider.NewStockProvider(srv.URL, srv.Client()))

	o := New(classify.New(freshness.NewChecker()), reg)
	res := o.Orchestrate(context.Background(), "What's AAPL trading at?", Options{Entity: "AAPL"})

	require.Equal(t, ModeLiveFetch, res.Mode)
	assert.True(t, res.ForceHigh)
	require.NotNil(t, res.Evidence)
	assert.Equal(t, evidence.ConstraintQuoteEvidenceOnly, res.ResponseConstraints.Level)
}

func TestOrchestrate_TimeQueryFails_AlwaysBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := dataprovider.NewRegistry()
	reg.Register(dataprovider.NewStockProvider(srv.URL, srv.Client())) // unused, just to keep registry non-empty

	// Register a time provider that always fails via a tiny wrapper.
	reg.Register(failingTimeProvider{})

	o := New(classify.New(freshness.NewChecker()), reg)
	res := o.Orchestrate(context.Background(), "what time is it right now", Options{})
	assert.Equal(t, ModeBlocked, res.Mode)
	assert.NotEmpty(t, res.RefusalMessage)
}

func TestOrchestrate_AllFetchesFail_RefuseFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := dataprovider.NewRegistry()
	reg.Register(dataprovider.NewStockProvider(srv.URL, srv.Client()))

	o := New(classify.New(freshness.NewChecker()), reg)
	res := o.Orchestrate(context.Background(), "What's AAPL trading at?", Options{Entity: "AAPL"})
	assert.Equal(t, ModeBlocked, res.Mode)
	assert.Contains(t, res.UserOptions, OptionRetry)
}

// failingTimeProvider always returns an errored fetch, used to exercise
// the "time is special" blocking rule deterministically.
type failingTimeProvider struct{}

func (failingTimeProvider) Category() classify.Category { return classify.CategoryTime }
func (failingTimeProvider) Name() string                 { return "failing-clock" }
func (failingTimeProvider) Fetch(_ context.Context, _ string) (dataprovider.Result, error) {
	return dataprovider.Result{Type: dataprovider.ResultTypeTime, OK: false, ErrCode: dataprovider.ErrorUpstream, ErrMessage: "clock unavailable"}, nil
}
