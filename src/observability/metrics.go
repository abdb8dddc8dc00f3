// Package observability provides Prometheus metrics for the hub.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the hub. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// Fetch metrics
	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	// Aggregator metrics
	CacheRequests   *prometheus.CounterVec
	PhaseResponses  *prometheus.CounterVec
	OpeningCaptures prometheus.Counter
	DailyResets     prometheus.Counter

	// Poller metrics
	PollerCycles        prometheus.Counter
	PollerAccountErrors prometheus.Counter
	PollerCycleDuration prometheus.Histogram

	// Websocket
	WSClients prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every metric registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mtm_hub"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		FetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "terminal",
			Name:      "fetch_total",
			Help:      "Remote MTM fetches by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "terminal",
			Name:      "fetch_duration_seconds",
			Help:      "Remote MTM fetch latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "cache_requests_total",
			Help:      "Response cache lookups by result",
		}, []string{"result"}),
		PhaseResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "phase_responses_total",
			Help:      "MTM responses served by session phase",
		}, []string{"phase"}),
		OpeningCaptures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "opening_captures_total",
			Help:      "Opening baselines captured",
		}),
		DailyResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "daily_resets_total",
			Help:      "Daily state resets performed",
		}),

		PollerCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Background poll cycles dispatched",
		}),
		PollerAccountErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "account_errors_total",
			Help:      "Per-account failures inside poll cycles",
		}),
		PollerCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full poll cycle in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordFetch records one remote fetch.
func (m *Metrics) RecordFetch(seconds float64, err error) {
	m.FetchDuration.Observe(seconds)
	if err != nil {
		m.FetchTotal.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	m.FetchTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// RecordCache records a cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	m.CacheRequests.WithLabelValues("miss").Inc()
}
