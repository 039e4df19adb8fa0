// Package metrics provides Prometheus metrics collection for the
// persistence core.
//
// All metrics are optional: if InitRegistry is never called, every
// constructor returns a no-op implementation with zero overhead. This
// lets the persistence core run standalone (as a library, or in tests)
// without dragging a Prometheus registry along.
//
// Usage:
//
//	// Initialize the global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	sessionMetrics := prometheus.NewSessionMetrics()
//	storeMetrics := prometheus.NewStoreMetrics("badger")
//
//	// Or pass nil / the noop constructor for zero overhead
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Must be called before creating any metrics instances. Safe to call
// multiple times; subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
