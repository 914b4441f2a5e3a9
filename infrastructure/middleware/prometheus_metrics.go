// Package middleware provides cross-cutting observability for the rating
// ledger: Prometheus metrics and OpenTelemetry operation spans.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tally/internal/ports"
)

// Metric names understood by PrometheusMetrics. Unknown counters fall into
// the generic operation counter and unknown gauges into the state gauge.
const (
	MetricOperations = "ledger_operations_total"
	MetricReloads    = "ledger_reloads_total"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks per-operation latency and outcome, snapshot
// reloads caused by other processes, and the size of the ledger.
type PrometheusMetrics struct {
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	reloads          prometheus.Counter
	stateGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the ledger metrics and registers them with
// reg. A nil reg uses the global Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Execution time of ledger operations, including snapshot persistence.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricOperations,
				Help: "Total number of ledger operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReloads,
				Help: "Snapshot reloads triggered by a newer file on disk.",
			},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_state",
				Help: "Current size of the in-memory ledger.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation, statusLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricReloads:
		pm.reloads.Add(value)
	case MetricOperations:
		op := labels["operation"]
		if op == "" {
			op = "unknown"
		}
		pm.operationCounter.WithLabelValues(op, statusLabel(labels)).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, statusLabel(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.stateGauges.WithLabelValues(metric).Set(value)
}

func statusLabel(labels map[string]string) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "ok"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
