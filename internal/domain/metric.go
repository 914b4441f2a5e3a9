package domain

// Metric identifies one independently aggregated dimension of a problem.
type Metric int

// Supported metrics. The order is fixed; it indexes per-problem blocks.
const (
	MetricThinking Metric = iota
	MetricImplementation
	MetricOverall
	MetricQuality

	metricCount
)

// Metrics lists every metric in block order.
var Metrics = [metricCount]Metric{
	MetricThinking,
	MetricImplementation,
	MetricOverall,
	MetricQuality,
}

// String returns the metric name used in persisted field suffixes and logs.
func (m Metric) String() string {
	switch m {
	case MetricThinking:
		return "thinking"
	case MetricImplementation:
		return "implementation"
	case MetricOverall:
		return "overall"
	case MetricQuality:
		return "quality"
	default:
		return "unknown"
	}
}

// MetricSummary is the externally visible statistic for one metric of a
// problem. Mean, StdDev and Median are nil when no live vote carries a
// value for the metric.
type MetricSummary struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"stddev"`
	Median *float64 `json:"median"`
}
