package recency

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricInteractions = "recency_interactions_total"
	MetricEvictions    = "recency_evictions_total"
	MetricErrors       = "recency_errors_total"
)

// Metrics contains Prometheus metrics for recency list maintenance.
// All operations are thread-safe.
type Metrics struct {
	interactions *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	errors       *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricInteractions,
				Help: "Total number of recorded interactions by list and outcome",
			},
			[]string{"list", "outcome"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEvictions,
				Help: "Total number of entries evicted by the capacity policy",
			},
			[]string{"list"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricErrors,
				Help: "Total number of failed recency store operations",
			},
			[]string{"list", "op"},
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

func (m *Metrics) observeRecord(list List, res Result) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(string(list), res.Outcome.String()).Inc()
	if res.Evicted > 0 {
		m.evictions.WithLabelValues(string(list)).Add(float64(res.Evicted))
	}
}

func (m *Metrics) incError(list List, op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(string(list), op).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.interactions,
		m.evictions,
		m.errors,
	}
}
