package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fcrepo/ocfl-persistence/pkg/metrics"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics,
// labeled by the backend that constructed it.
type storeMetrics struct {
	backend           string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates a new Prometheus-backed StoreMetrics instance
// for the given backend label ("memory", "badger", "postgres",
// "filesystem", "s3"), or a no-op implementation if metrics are disabled.
func NewStoreMetrics(backend string) metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStoreMetrics()
	}

	reg := metrics.GetRegistry()

	return &storeMetrics{
		backend: backend,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fcrepo_persist_store_operations_total",
				Help: "Total number of FOI/OSA backend operations by backend, operation, and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fcrepo_persist_store_operation_duration_seconds",
				Help: "Duration of FOI/OSA backend operations by backend and operation",
				Buckets: []float64{
					0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
				},
			},
			[]string{"backend", "operation"},
		),
	}
}

func (m *storeMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(m.backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(m.backend, operation).Observe(duration.Seconds())
}
