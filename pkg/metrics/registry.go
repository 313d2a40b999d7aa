// Package metrics provides Prometheus implementations of the optional
// metrics interfaces declared by binder components.
//
// Metrics are opt-in: until InitRegistry is called every constructor returns
// nil and the component falls back to its no-op implementation.
//
// Usage:
//
//	metrics.InitRegistry()
//
//	coord, _ := storage.New(storage.Config{
//	    ...
//	    Metrics: metrics.NewStorageMetrics(),
//	})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every binder metric name.
const Namespace = "binder"

var (
	// registry is written once by InitRegistry and read thereafter.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry with Go runtime and process
// collectors attached. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
