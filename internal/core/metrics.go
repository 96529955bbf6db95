package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ghostwatch/pkg/domain"
)

const metricsNamespace = "ghostwatch"

// Metrics is a prometheus.Collector describing the pipeline. Every method is
// safe on a nil receiver so callers can run without instrumentation.
type Metrics struct {
	registry     *prometheus.Registry
	cycles       *prometheus.CounterVec
	fetchRetries prometheus.Counter
	events       *prometheus.CounterVec
	diffDuration prometheus.Histogram
	baseline     prometheus.Gauge
	state        *prometheus.GaugeVec
}

// NewMetrics builds the collectors and registers them, together with the
// process and Go collectors, on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cycles_total",
				Help:      "Completed pipeline cycles by outcome.",
			}, []string{"outcome"},
		),
		fetchRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fetch_retries_total",
				Help:      "Failed fetch or validation attempts that were retried.",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Change events detected by kind.",
			}, []string{"kind"},
		),
		diffDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "diff_duration_seconds",
				Help:      "Time spent diffing two snapshots.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		baseline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "baseline_captured_timestamp_seconds",
				Help:      "Capture time of the current baseline snapshot.",
			},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pipeline_state",
				Help:      "1 for the state the coordinator is in, 0 otherwise.",
			}, []string{"state"},
		),
	}
	m.registry.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry returns the private registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.cycles.Describe(ch)
	m.fetchRetries.Describe(ch)
	m.events.Describe(ch)
	m.diffDuration.Describe(ch)
	m.baseline.Describe(ch)
	m.state.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.cycles.Collect(ch)
	m.fetchRetries.Collect(ch)
	m.events.Collect(ch)
	m.diffDuration.Collect(ch)
	m.baseline.Collect(ch)
	m.state.Collect(ch)
}

// CycleFinished counts a cycle with the given outcome.
func (m *Metrics) CycleFinished(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

// FetchRetried counts one retried attempt.
func (m *Metrics) FetchRetried() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// EventsDetected adds the events of set to the per-kind counter.
func (m *Metrics) EventsDetected(set domain.ChangeSet) {
	if m == nil {
		return
	}
	for _, kind := range domain.Kinds() {
		if n := set.Count(kind); n > 0 {
			m.events.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
}

// DiffObserved records a diff duration.
func (m *Metrics) DiffObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.diffDuration.Observe(d.Seconds())
}

// BaselineAdvanced records the capture time of the new baseline.
func (m *Metrics) BaselineAdvanced(capturedAt time.Time) {
	if m == nil {
		return
	}
	m.baseline.Set(float64(capturedAt.UnixNano()) / 1e9)
}

// SetState marks state as current.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	m.state.Reset()
	m.state.WithLabelValues(state).Set(1)
}
