// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the ssepipe core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ssepipe_circuit_breaker_state",
		Help: "Circuit breaker state by breaker name (active state = 1, others 0)",
	}, []string{"name", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssepipe_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"name", "reason"})

	circuitBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssepipe_circuit_breaker_rejections_total",
		Help: "Total number of calls refused while the circuit was open",
	}, []string{"name"})
)

var circuitStates = []string{"closed", "half_open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a breaker.
func SetCircuitBreakerState(name, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(name, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}

// RecordCircuitBreakerRejection increments the refused-call counter.
func RecordCircuitBreakerRejection(name string) {
	circuitBreakerRejections.WithLabelValues(name).Inc()
}
