// SPDX-License-Identifier: MIT

package sse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Frame is one self-contained SSE wire unit, terminated by a blank line.
// ID is an opaque resumption hint and is never interpreted here.
type Frame struct {
	ID    string
	Event string
	Data  any
	Retry int // client reconnect delay hint in milliseconds, 0 = unset
}

// Update is the application-level payload carried inside a frame's data
// field. Phase names the current stage; its vocabulary belongs to the
// caller. Extra is an open extension point for caller-defined fields.
type Update struct {
	Phase   string         `json:"phase"`
	Message string         `json:"message,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Well-known event tags dispatched by the EventDecoder.
const (
	EventStart = "start"
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// Encode renders a frame into wire format. Field order is fixed (id, retry,
// event, data) for compatibility with deployed clients. Data is required
// and is always JSON.
func Encode(f Frame) (string, error) {
	if f.Data == nil {
		return "", ErrNoData
	}
	if strings.ContainsAny(f.ID, "\r\n") || strings.ContainsAny(f.Event, "\r\n") {
		return "", ErrLineBreakInField
	}

	payload, err := json.Marshal(f.Data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if f.ID != "" {
		sb.WriteString(fieldID)
		sb.WriteString(f.ID)
		sb.WriteByte('\n')
	}
	if f.Retry > 0 {
		sb.WriteString(fieldRetry)
		sb.WriteString(strconv.Itoa(f.Retry))
		sb.WriteByte('\n')
	}
	if f.Event != "" {
		sb.WriteString(fieldEvent)
		sb.WriteString(f.Event)
		sb.WriteByte('\n')
	}
	sb.WriteString(fieldData)
	sb.Write(payload)
	sb.WriteString("\n\n")
	return sb.String(), nil
}

// EncodeHeartbeat renders a comment frame. Heartbeats carry no data field;
// clients discard them, but intermediaries see traffic and keep the
// connection alive.
func EncodeHeartbeat(message string) string {
	if message == "" {
		message = DefaultHeartbeatMessage
	}
	return fieldComment + " " + message + "\n\n"
}
