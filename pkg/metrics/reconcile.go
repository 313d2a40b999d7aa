package metrics

import (
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type reconcileMetrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	findings     *prometheus.CounterVec
	lastRunStamp prometheus.Gauge
}

// NewReconcileMetrics returns reconcile metrics registered on the global
// registry, or nil when metrics are disabled.
func NewReconcileMetrics() reconcile.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewReconcileMetricsWith(GetRegistry())
}

// NewReconcileMetricsWith registers reconcile metrics on reg.
func NewReconcileMetricsWith(reg prometheus.Registerer) reconcile.Metrics {
	f := promauto.With(reg)
	return &reconcileMetrics{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reconcile",
				Name:      "runs_total",
				Help:      "Reconcile runs by status",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "reconcile",
				Name:      "run_duration_seconds",
				Help:      "Duration of reconcile runs in seconds",
				Buckets:   []float64{0.01, 0.1, 1, 10, 60, 300},
			},
		),
		findings: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "reconcile",
				Name:      "findings_total",
				Help:      "Drift found and handled by reconcile runs",
			},
			[]string{"kind"}, // stale, orphaned, deferred, repaired, failed
		),
		lastRunStamp: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "reconcile",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last reconcile run finished",
			},
		),
	}
}

func (m *reconcileMetrics) ObserveRun(stats *reconcile.Stats, err error) {
	m.runsTotal.WithLabelValues(statusLabel(err)).Inc()
	if stats == nil {
		return
	}

	m.runDuration.Observe(stats.Duration().Seconds())
	m.findings.WithLabelValues("stale").Add(float64(stats.Stale))
	m.findings.WithLabelValues("orphaned").Add(float64(stats.Orphaned))
	m.findings.WithLabelValues("deferred").Add(float64(stats.Deferred))
	m.findings.WithLabelValues("repaired").Add(float64(stats.Repaired))
	m.findings.WithLabelValues("failed").Add(float64(stats.Failed))
	m.lastRunStamp.SetToCurrentTime()
}
