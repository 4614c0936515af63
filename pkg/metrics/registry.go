// Package metrics provides Prometheus metrics collection for the server.
//
// All metrics are optional. If the registry is never initialized, the
// constructors return no-op implementations with zero overhead, so the
// server runs identically with metrics disabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry. Write-once via
	// registryOnce, read-many afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call
// multiple times; subsequent calls are ignored. If never called,
// GetRegistry returns nil and all constructors hand out no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
