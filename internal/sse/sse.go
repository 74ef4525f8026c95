// SPDX-License-Identifier: MIT

// Package sse implements the Server-Sent-Events wire format: frame encoding
// and incremental decoding across arbitrarily fragmented chunks.
// See: https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"errors"
	"net/http"
)

// ContentTypeEventStream is the MIME type for SSE responses.
const ContentTypeEventStream = "text/event-stream"

// SSE field prefixes as they appear on the wire.
const (
	fieldID      = "id: "
	fieldRetry   = "retry: "
	fieldEvent   = "event: "
	fieldData    = "data: "
	fieldComment = ":"
)

// DefaultHeartbeatMessage is the comment text used when no message is given.
const DefaultHeartbeatMessage = "heartbeat"

// maxReportedLineBytes bounds the raw line content attached to decode errors.
const maxReportedLineBytes = 256

var (
	// ErrNoData indicates a frame without a data payload.
	ErrNoData = errors.New("sse: frame has no data")

	// ErrLineBreakInField indicates a field value containing a line break,
	// which would corrupt the framing.
	ErrLineBreakInField = errors.New("sse: field value contains line break")
)

// SetStreamHeaders applies the response headers required for an SSE stream.
// X-Accel-Buffering defeats buffering in intermediary proxies.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", ContentTypeEventStream)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
