package metrics

import (
	"time"

	"github.com/marmos91/binder/pkg/store/content/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// s3Metrics is the Prometheus implementation of s3.S3Metrics.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewS3Metrics returns S3 metrics registered on the global registry, or nil
// when metrics are disabled.
func NewS3Metrics() s3.S3Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewS3MetricsWith(GetRegistry())
}

// NewS3MetricsWith registers S3 metrics on reg.
func NewS3MetricsWith(reg prometheus.Registerer) s3.S3Metrics {
	return &s3Metrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "s3",
				Name:      "operations_total",
				Help:      "S3 API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "s3",
				Name:      "operation_duration_seconds",
				Help:      "S3 API call latency",
				// 10ms .. ~15s
				Buckets: prometheus.ExponentialBuckets(0.01, 2.5, 9),
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "s3",
				Name:      "bytes_transferred_total",
				Help:      "Bytes moved to and from the bucket, by direction",
			},
			[]string{"direction"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *s3Metrics) RecordBytes(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}
