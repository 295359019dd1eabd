package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchRequests = "search_requests_total"
	MetricSearchResults  = "search_results_total"
	MetricSearchDuration = "search_duration_seconds"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics contains Prometheus metrics for search requests.
// All operations are thread-safe.
type Metrics struct {
	requests *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchRequests,
				Help: "Total number of search requests by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchResults,
				Help: "Total number of rows returned by search, by entity",
			},
			[]string{"entity"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Search latency in seconds, by entity",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"entity"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(entity Entity, outcome string, results int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(entity), outcome).Inc()
	if results > 0 {
		m.results.WithLabelValues(string(entity)).Add(float64(results))
	}
	m.duration.WithLabelValues(string(entity)).Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.results,
		m.duration,
	}
}
