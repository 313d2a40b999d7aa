package metrics

import (
	"time"

	"github.com/marmos91/binder/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storageMetrics is the Prometheus implementation of storage.Metrics.
type storageMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesWritten      *prometheus.CounterVec
	quotaRejections   prometheus.Counter
	inconsistencies   *prometheus.CounterVec
	usedBytes         prometheus.Gauge
	limitBytes        prometheus.Gauge
}

// NewStorageMetrics returns coordinator metrics registered on the global
// registry, or nil when metrics are disabled.
func NewStorageMetrics() storage.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewStorageMetricsWith(GetRegistry())
}

// NewStorageMetricsWith registers coordinator metrics on reg.
func NewStorageMetricsWith(reg prometheus.Registerer) storage.Metrics {
	f := promauto.With(reg)
	return &storageMetrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Coordinator operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "operation_duration_seconds",
				Help:      "Duration of coordinator operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bytesWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "bytes_written_total",
				Help:      "Payload bytes appended to the content store",
			},
			[]string{"operation"},
		),
		quotaRejections: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "quota_rejections_total",
				Help:      "Uploads refused by quota admission",
			},
		),
		inconsistencies: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "inconsistencies_total",
				Help:      "Operations that left the content store and entry index out of step",
			},
			[]string{"kind"},
		),
		usedBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "used_bytes",
				Help:      "Container usage at the last admission or usage query",
			},
		),
		limitBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "storage",
				Name:      "limit_bytes",
				Help:      "Configured container limit",
			},
		),
	}
}

func (m *storageMetrics) ObserveOperation(op string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *storageMetrics) RecordBytes(op string, bytes int64) {
	m.bytesWritten.WithLabelValues(op).Add(float64(bytes))
}

func (m *storageMetrics) RecordQuotaRejection() {
	m.quotaRejections.Inc()
}

func (m *storageMetrics) RecordInconsistency(kind string) {
	m.inconsistencies.WithLabelValues(kind).Inc()
}

func (m *storageMetrics) SetUsage(used, limit uint64) {
	m.usedBytes.Set(float64(used))
	m.limitBytes.Set(float64(limit))
}
