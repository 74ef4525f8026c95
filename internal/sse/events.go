// SPDX-License-Identifier: MIT

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StreamError is the failure surfaced when the remote side emits a frame
// tagged with the error event. It carries the original payload so callers
// can inspect application-level detail.
type StreamError struct {
	Payload Update
}

func (e *StreamError) Error() string {
	if e.Payload.Error != "" {
		return "sse: stream error: " + e.Payload.Error
	}
	if e.Payload.Message != "" {
		return "sse: stream error: " + e.Payload.Message
	}
	return "sse: stream error"
}

// EventHandlers receives typed dispatches from an EventDecoder. Every
// handler is optional; nil handlers are skipped.
type EventHandlers struct {
	OnStart    func(Update)
	OnDelta    func(Update)
	OnDone     func(Update)
	OnError    func(Update)
	OnProgress func(phase string, u Update) // fallback for untagged frames
	OnDecode   func(line string, err error) // malformed data lines
}

// EventDecoder layers typed event dispatch on top of incremental frame
// reassembly. It tracks the current event tag within a frame, resets it
// after each frame, and routes the parsed Update to the matching handler.
type EventDecoder struct {
	buf strings.Builder
	h   EventHandlers
}

// NewEventDecoder returns a decoder dispatching to h.
func NewEventDecoder(h EventHandlers) *EventDecoder {
	return &EventDecoder{h: h}
}

// Feed appends a chunk and dispatches every complete frame. A frame tagged
// with the error event stops processing: its handler fires, then Feed
// returns a StreamError carrying the payload so the read loop fails.
func (d *EventDecoder) Feed(chunk string) error {
	d.buf.WriteString(chunk)
	data := d.buf.String()

	frames := strings.Split(data, "\n\n")
	rest := frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	d.buf.Reset()
	d.buf.WriteString(rest)

	for i, frame := range frames {
		if err := d.dispatchFrame(frame); err != nil {
			// Frames after the error event stay buffered; the caller is
			// about to tear the stream down anyway.
			for _, left := range frames[i+1:] {
				d.buf.WriteString(left)
				d.buf.WriteString("\n\n")
			}
			return err
		}
	}
	return nil
}

func (d *EventDecoder) dispatchFrame(frame string) error {
	event := ""
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, fieldComment):
			continue
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			var u Update
			if err := json.Unmarshal([]byte(payload), &u); err != nil {
				d.reportDecode(line, fmt.Errorf("sse: malformed data line: %w", err))
				continue
			}
			if err := d.dispatch(event, u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *EventDecoder) dispatch(event string, u Update) error {
	switch event {
	case EventStart:
		if d.h.OnStart != nil {
			d.h.OnStart(u)
		}
	case EventDelta:
		if d.h.OnDelta != nil {
			d.h.OnDelta(u)
		}
	case EventDone:
		if d.h.OnDone != nil {
			d.h.OnDone(u)
		}
	case EventError:
		if d.h.OnError != nil {
			d.h.OnError(u)
		}
		return &StreamError{Payload: u}
	default:
		if d.h.OnProgress != nil {
			d.h.OnProgress(u.Phase, u)
		}
	}
	return nil
}

func (d *EventDecoder) reportDecode(line string, err error) {
	if d.h.OnDecode == nil {
		return
	}
	if len(line) > maxReportedLineBytes {
		line = line[:maxReportedLineBytes]
	}
	d.h.OnDecode(line, err)
}
