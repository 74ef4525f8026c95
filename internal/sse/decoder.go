// SPDX-License-Identifier: MIT

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decoder incrementally reassembles SSE frames from a fragmented chunk
// stream. It buffers input until a double-newline frame terminator arrives,
// so a data line split across reads is never parsed early. A malformed data
// line is reported and dropped; the decoder keeps going with the next frame.
type Decoder struct {
	buf       strings.Builder
	onMessage func(data json.RawMessage)
	onError   func(line string, err error)
}

// NewDecoder returns a decoder dispatching parsed data payloads to
// onMessage. onError receives malformed data lines; either callback may be
// nil.
func NewDecoder(onMessage func(data json.RawMessage), onError func(line string, err error)) *Decoder {
	return &Decoder{onMessage: onMessage, onError: onError}
}

// Feed appends a chunk and dispatches every complete frame it finishes, in
// arrival order. A trailing partial frame is retained for the next call.
func (d *Decoder) Feed(chunk string) {
	d.buf.WriteString(chunk)
	data := d.buf.String()

	frames := strings.Split(data, "\n\n")
	// The final element is an unterminated partial frame (possibly empty).
	rest := frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	d.buf.Reset()
	d.buf.WriteString(rest)

	for _, frame := range frames {
		d.dispatchFrame(frame)
	}
}

func (d *Decoder) dispatchFrame(frame string) {
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, fieldComment):
			// Comment or heartbeat, discarded.
			continue
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if !json.Valid([]byte(payload)) {
				d.reportError(line, fmt.Errorf("sse: invalid JSON in data line"))
				continue
			}
			if d.onMessage != nil {
				d.onMessage(json.RawMessage(payload))
			}
		}
	}
}

func (d *Decoder) reportError(line string, err error) {
	if d.onError == nil {
		return
	}
	if len(line) > maxReportedLineBytes {
		line = line[:maxReportedLineBytes]
	}
	d.onError(line, err)
}
