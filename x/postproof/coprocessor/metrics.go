package coprocessor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for job execution
type Metrics struct {
	JobsQueued       prometheus.Gauge
	JobsExecuted     *prometheus.CounterVec
	JobsDropped      *prometheus.CounterVec
	FetchFailures    *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	ExecutionLatency prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics creates and registers coprocessor metrics (singleton pattern)
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			JobsQueued: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "jobs_queued",
				Help:      "Jobs accepted and waiting for a worker",
			}),
			JobsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "jobs_executed_total",
				Help:      "Jobs executed by verdict",
			}, []string{"verdict"}),
			JobsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "jobs_dropped_total",
				Help:      "Jobs dropped without delivery by reason",
			}, []string{"reason"}),
			FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "fetch_failures_total",
				Help:      "Content fetch failures by reason",
			}, []string{"reason"}),
			DeliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "delivery_failures_total",
				Help:      "Results rejected by the ledger",
			}),
			ExecutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "pop",
				Subsystem: "coprocessor",
				Name:      "execution_seconds",
				Help:      "Time from pickup to delivery",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			}),
		}
	})
	return metrics
}
