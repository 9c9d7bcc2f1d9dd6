package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the lookup service.
type Metrics struct {
	LookupsTotal *prometheus.CounterVec // labels: outcome={ok,empty,ambiguous,remote_unavailable,bad_input}

	// Remote provider metrics.
	RemoteRequests        *prometheus.CounterVec   // labels: dataset, outcome={success,error,empty}
	RemoteRequestDuration *prometheus.HistogramVec // labels: dataset

	// Coordinate cache metrics.
	CoordCache *prometheus.CounterVec // labels: result={hit,miss}

	// Neighbourhood comparison metrics.
	ComparisonSampleSize prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "areacheck",
			Name:      "lookups_total",
			Help:      "Property lookups by outcome.",
		}, []string{"outcome"}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "areacheck",
			Name:      "remote_requests_total",
			Help:      "Open-data API requests by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "areacheck",
			Name:      "remote_request_duration_seconds",
			Help:      "Open-data API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"dataset"}),
		CoordCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "areacheck",
			Name:      "coordinate_cache_total",
			Help:      "Coordinate cache lookups by result.",
		}, []string{"result"}),
		ComparisonSampleSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "areacheck",
			Name:      "comparison_sample_size",
			Help:      "Usable percent-change samples per neighbourhood comparison.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	prometheus.MustRegister(
		m.LookupsTotal,
		m.RemoteRequests,
		m.RemoteRequestDuration,
		m.CoordCache,
		m.ComparisonSampleSize,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		LookupsTotal:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "areacheck", Name: "lookups_total"}, []string{"outcome"}),
		RemoteRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "areacheck", Name: "remote_requests_total"}, []string{"dataset", "outcome"}),
		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "areacheck", Name: "remote_request_duration_seconds"}, []string{"dataset"}),
		CoordCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "areacheck", Name: "coordinate_cache_total"}, []string{"result"}),
		ComparisonSampleSize:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "areacheck", Name: "comparison_sample_size"}),
	}
}
