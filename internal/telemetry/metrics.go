package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AdvertisementsProcessed counts advertisements merged into a scanner store
	AdvertisementsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blehub",
			Name:      "advertisements_processed_total",
			Help:      "Total number of advertisements merged per scanner source",
		},
		[]string{"source"},
	)

	// DevicesExpired counts devices dropped by the expiry sweep
	DevicesExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blehub",
			Name:      "devices_expired_total",
			Help:      "Total number of stale devices removed per scanner source",
		},
		[]string{"source"},
	)

	// CallbacksDispatched counts service info events delivered to subscribers
	CallbacksDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blehub",
			Name:      "callbacks_dispatched_total",
			Help:      "Total number of service info events delivered to subscribers",
		},
	)

	// SlotAllocations counts connection slot allocation attempts
	SlotAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blehub",
			Name:      "slot_allocations_total",
			Help:      "Total number of connection slot allocation attempts",
		},
		[]string{"source", "outcome"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(AdvertisementsProcessed)
		prometheus.MustRegister(DevicesExpired)
		prometheus.MustRegister(CallbacksDispatched)
		prometheus.MustRegister(SlotAllocations)
	})
}
