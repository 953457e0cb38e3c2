package link

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "omekalink"

// Metrics exposes run progress to Prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pages         prometheus.Counter
	items         prometheus.Counter
	found         *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

// NewMetrics creates the link metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "pages_total",
			Help:      "Item pages retrieved.",
		}),
		items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "items_scanned_total",
			Help:      "Items scanned for relationship properties.",
		}),
		found: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "found_total",
			Help:      "Referenced items discovered for the first time in a run.",
		}, []string{"property"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "memberships_total",
			Help:      "Membership writes by property and outcome.",
		}, []string{"property", "outcome"}),
		writeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "membership_write_duration_seconds",
			Help:      "Time spent in one fetch plus optional replace.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.pages, m.items, m.found, m.outcomes, m.writeDuration)
	}
	return m
}

func (m *Metrics) observePage(items int) {
	if m == nil {
		return
	}
	m.pages.Inc()
	m.items.Add(float64(items))
}

func (m *Metrics) observeFound(field string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.found.WithLabelValues(field).Add(float64(n))
}

func (m *Metrics) observeOutcome(field string, outcome Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(field, outcome.String()).Inc()
}

func (m *Metrics) observeWrite(outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.writeDuration.WithLabelValues(outcome.String()).Observe(d.Seconds())
}
