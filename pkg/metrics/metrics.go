// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_requests_total",
			Help: "Total number of pipeline executions by outcome kind.",
		},
		[]string{"outcome"},
	)

	RequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_request_duration_seconds",
			Help:    "Wall-clock duration of a full pipeline execution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ShieldActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_shield_activations_total",
			Help: "Shield engine activations by resulting action.",
		},
		[]string{"action"},
	)

	GateViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_invariant_violations_total",
			Help: "Invariant checker violations by invariant name and severity.",
		},
		[]string{"invariant", "severity"},
	)

	ProviderFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_provider_fetch_duration_seconds",
			Help:    "Duration of live-data provider fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category", "provider", "outcome"},
	)

	SchedulerJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_scheduler_jobs_total",
			Help: "Scheduled job executions by job ID and outcome.",
		},
		[]string{"job", "outcome"},
	)

	RateLimitFailOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_rate_limit_fail_open_total",
			Help: "Count of rate limiter decisions that fail-opened due to a store error.",
		},
		[]string{"limiter"},
	)
)

var registerOnce sync.Once
var registry *prometheus.Registry

// Registry lazily builds and returns the process-wide collector registry,
// registering every domain collector alongside the Go runtime collectors.
func Registry() *prometheus.Registry {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			RequestsTotal,
			RequestDurationSeconds,
			ShieldActivationsTotal,
			GateViolationsTotal,
			ProviderFetchDurationSeconds,
			SchedulerJobsTotal,
			RateLimitFailOpenTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}

// Handler returns the HTTP handler that serves the registry in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
