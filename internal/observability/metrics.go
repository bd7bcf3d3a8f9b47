// Package observability holds the node's Prometheus metrics and OpenTelemetry
// tracing setup.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts dispatched instructions by outcome.
type SettlementMetrics struct {
	instructions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	throttles    *prometheus.CounterVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the lazily registered settlement metrics.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "token_sales",
				Subsystem: "settlement",
				Name:      "instructions_total",
				Help:      "Dispatched instructions segmented by instruction and outcome.",
			}, []string{"instruction", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "token_sales",
				Subsystem: "settlement",
				Name:      "dispatch_duration_seconds",
				Help:      "Latency of verifying and settling one transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"instruction"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "token_sales",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			settlementRegistry.instructions,
			settlementRegistry.latency,
			settlementRegistry.throttles,
		)
	})
	return settlementRegistry
}

// Observe records one dispatch. outcome is "ok", an error name such as
// "SaleClosed", or "internal".
func (m *SettlementMetrics) Observe(instruction, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if instruction == "" {
		instruction = "unknown"
	}
	m.instructions.WithLabelValues(instruction, outcome).Inc()
	m.latency.WithLabelValues(instruction).Observe(elapsed.Seconds())
}

// RecordThrottle counts a request rejected on route.
func (m *SettlementMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.throttles.WithLabelValues(route).Inc()
}
