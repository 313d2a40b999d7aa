package metrics

import (
	"strconv"
	"time"

	"github.com/marmos91/binder/pkg/adapter/rest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics is the Prometheus implementation of rest.Metrics.
type httpMetrics struct {
	requestDurations *prometheus.HistogramVec
	requestBytes     *prometheus.CounterVec
	responseBytes    *prometheus.CounterVec
	rateLimited      prometheus.Counter
}

var httpLabels = []string{"method", "operation", "status"}

// NewHTTPMetrics returns HTTP metrics registered on the global registry, or
// nil when metrics are disabled.
func NewHTTPMetrics() rest.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewHTTPMetricsWith(GetRegistry())
}

// NewHTTPMetricsWith registers HTTP metrics on reg.
func NewHTTPMetricsWith(reg prometheus.Registerer) rest.Metrics {
	f := promauto.With(reg)
	return &httpMetrics{
		requestDurations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Time spent answering file API requests",
				Buckets:   prometheus.DefBuckets,
			},
			httpLabels,
		),
		requestBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_bytes_total",
				Help:      "Total volume of request payloads received in bytes",
			},
			httpLabels,
		),
		responseBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "response_bytes_total",
				Help:      "Total volume of response payloads emitted in bytes",
			},
			httpLabels,
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}
}

// ObserveRequest records one finished request.
func (m *httpMetrics) ObserveRequest(method, operation string, status int, duration time.Duration, requestBytes, responseBytes int64) {
	labels := prometheus.Labels{
		"method":    method,
		"operation": operation,
		"status":    strconv.Itoa(status),
	}
	m.requestDurations.With(labels).Observe(duration.Seconds())
	m.requestBytes.With(labels).Add(float64(requestBytes))
	m.responseBytes.With(labels).Add(float64(responseBytes))
}

// RecordRateLimited counts a request rejected with 429.
func (m *httpMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
