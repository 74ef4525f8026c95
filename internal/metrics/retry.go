// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssepipe_retry_attempts_total",
		Help: "Total retry attempts, by outcome (retried, exhausted, fatal)",
	}, []string{"outcome"})

	timeoutFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssepipe_timeouts_total",
		Help: "Total timeout firings, by kind (request, idle)",
	}, []string{"kind"})

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssepipe_decode_errors_total",
		Help: "Total malformed SSE data lines dropped by the decoder",
	})
)

// Retry outcomes recorded by RecordRetry.
const (
	RetryOutcomeRetried   = "retried"
	RetryOutcomeExhausted = "exhausted"
	RetryOutcomeFatal     = "fatal"
)

// RecordRetry counts one retry decision.
func RecordRetry(outcome string) {
	retryAttempts.WithLabelValues(outcome).Inc()
}

// RecordTimeout counts one timeout firing of the given kind.
func RecordTimeout(kind string) {
	timeoutFirings.WithLabelValues(kind).Inc()
}

// RecordDecodeError counts one dropped malformed data line.
func RecordDecodeError() {
	decodeErrors.Inc()
}
