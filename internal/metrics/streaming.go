// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ssepipe_streams_active",
		Help: "Number of currently open SSE streams",
	})

	streamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssepipe_stream_frames_total",
		Help: "Total SSE frames written, by frame kind",
	}, []string{"kind"})

	streamBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssepipe_stream_bytes_total",
		Help: "Total bytes written to SSE streams",
	})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ssepipe_stream_duration_seconds",
		Help:    "Lifetime of closed SSE streams in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})

	streamAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ssepipe_stream_aborts_total",
		Help: "Total SSE streams terminated by abort",
	})
)

// Frame kinds recorded by RecordStreamFrame.
const (
	FrameKindData      = "data"
	FrameKindEvent     = "event"
	FrameKindHeartbeat = "heartbeat"
)

// StreamOpened increments the active stream gauge.
func StreamOpened() {
	streamsActive.Inc()
}

// StreamClosed decrements the active stream gauge and records its lifetime.
func StreamClosed(seconds float64) {
	streamsActive.Dec()
	streamDuration.Observe(seconds)
}

// RecordStreamFrame counts one written frame and its payload size.
func RecordStreamFrame(kind string, bytes int) {
	streamFrames.WithLabelValues(kind).Inc()
	streamBytes.Add(float64(bytes))
}

// RecordStreamAbort counts one aborted stream.
func RecordStreamAbort() {
	streamAborts.Inc()
}
