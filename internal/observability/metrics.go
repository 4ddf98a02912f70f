package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	runtimemetrics "svcrunner/internal/runtime/metrics"
)

// Metrics exposes the scheduler's per-service counters as real Prometheus
// instruments. The teacher's go.mod already pulled in
// github.com/prometheus/client_golang, but this file used to stub it out
// behind a no-op shim ("to remove the Prometheus dependency while keeping
// code paths intact"); this replaces the shim with instruments an Exporter
// actually feeds.
type Metrics struct {
	StepsTotal             *prometheus.CounterVec
	ErrorsTotal            *prometheus.CounterVec
	ConsecutiveErrorsGauge *prometheus.GaugeVec
	StepDurationSeconds    *prometheus.HistogramVec
	WorkersManaged         prometheus.Gauge
}

// NewMetrics registers the scheduler instruments against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		StepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "svcrunner_service_steps_total",
			Help: "Successful work steps per service.",
		}, []string{"service"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "svcrunner_service_errors_total",
			Help: "Failed work steps per service.",
		}, []string{"service"}),
		ConsecutiveErrorsGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svcrunner_service_consecutive_errors",
			Help: "Current consecutive error count per service.",
		}, []string{"service"}),
		StepDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svcrunner_service_step_duration_seconds",
			Help:    "Observed work step duration per service.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		WorkersManaged: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "svcrunner_workers_total",
			Help: "Number of workers in the scheduler's pool.",
		}),
	}
}

// counterDeltas tracks the last-seen cumulative value per service so
// repeated syncs against the same monotonic counters only add the delta —
// CounterVec.Add isn't idempotent against a re-observed cumulative total.
type counterDeltas struct {
	steps  map[string]int64
	errors map[string]int64
}

// Exporter mirrors scheduler.AllMetrics() snapshots into the Metrics
// instruments on each call to Sync, meant to be driven by the same sweep
// ticker that calls Scheduler.ReapCompleted.
type Exporter struct {
	metrics *Metrics
	deltas  counterDeltas
}

// NewExporter builds an Exporter bound to m.
func NewExporter(m *Metrics) *Exporter {
	return &Exporter{
		metrics: m,
		deltas: counterDeltas{
			steps:  make(map[string]int64),
			errors: make(map[string]int64),
		},
	}
}

// Sync applies one scheduler metrics snapshot to the Prometheus instruments.
func (e *Exporter) Sync(snapshot map[string]runtimemetrics.Snapshot, workerCount int) {
	e.metrics.WorkersManaged.Set(float64(workerCount))

	for name, snap := range snapshot {
		if delta := snap.StepCount - e.deltas.steps[name]; delta > 0 {
			e.metrics.StepsTotal.WithLabelValues(name).Add(float64(delta))
			e.deltas.steps[name] = snap.StepCount
		}
		if delta := snap.ErrorCount - e.deltas.errors[name]; delta > 0 {
			e.metrics.ErrorsTotal.WithLabelValues(name).Add(float64(delta))
			e.deltas.errors[name] = snap.ErrorCount
		}
		e.metrics.ConsecutiveErrorsGauge.WithLabelValues(name).Set(float64(snap.ConsecutiveErrors))
		if snap.StepCount > 0 {
			avgNanos := float64(snap.TotalStepNanos) / float64(snap.StepCount)
			e.metrics.StepDurationSeconds.WithLabelValues(name).Observe(avgNanos / 1e9)
		}
	}
}
