// SPDX-License-Identifier: MIT

package sse

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectDecoder() (*Decoder, *[]string, *[]string) {
	var messages, badLines []string
	d := NewDecoder(
		func(data json.RawMessage) { messages = append(messages, string(data)) },
		func(line string, _ error) { badLines = append(badLines, line) },
	)
	return d, &messages, &badLines
}

func TestDecoderRoundTrip(t *testing.T) {
	d, messages, _ := collectDecoder()

	encoded, err := Encode(Frame{Data: Update{Phase: "working", Message: "hello"}})
	require.NoError(t, err)
	d.Feed(encoded)

	require.Len(t, *messages, 1)
	var u Update
	require.NoError(t, json.Unmarshal([]byte((*messages)[0]), &u))
	assert.Equal(t, "working", u.Phase)
	assert.Equal(t, "hello", u.Message)
}

func TestDecoderSplitAtEveryBoundary(t *testing.T) {
	encoded, err := Encode(Frame{Data: map[string]any{"phase": "working", "n": 7}})
	require.NoError(t, err)

	for i := 0; i <= len(encoded); i++ {
		d, messages, badLines := collectDecoder()
		d.Feed(encoded[:i])
		d.Feed(encoded[i:])

		assert.Len(t, *messages, 1, "split at byte %d", i)
		assert.Empty(t, *badLines, "split at byte %d", i)
	}
}

func TestDecoderMultipleFramesInOneChunk(t *testing.T) {
	d, messages, _ := collectDecoder()

	d.Feed("data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: {\"n\":3}\n\n")

	require.Len(t, *messages, 3)
	assert.Equal(t, "{\"n\":1}", (*messages)[0])
	assert.Equal(t, "{\"n\":3}", (*messages)[2])
}

func TestDecoderDoesNotParseBeforeTerminator(t *testing.T) {
	d, messages, badLines := collectDecoder()

	// A complete-looking data line without its blank-line terminator must
	// stay buffered, even across several feeds.
	d.Feed("data: {\"n\":1}\n")
	d.Feed("")
	assert.Empty(t, *messages)
	assert.Empty(t, *badLines)

	d.Feed("\n")
	assert.Len(t, *messages, 1)
}

func TestDecoderSkipsCommentsAndEmptyFrames(t *testing.T) {
	d, messages, badLines := collectDecoder()

	d.Feed(": heartbeat\n\n\n\ndata: {\"ok\":true}\n\n")

	require.Len(t, *messages, 1)
	assert.Equal(t, "{\"ok\":true}", (*messages)[0])
	assert.Empty(t, *badLines)
}

func TestDecoderMalformedLineReportedAndSkipped(t *testing.T) {
	d, messages, badLines := collectDecoder()

	d.Feed("data: {not json\n\ndata: {\"n\":2}\n\n")

	require.Len(t, *badLines, 1)
	assert.Contains(t, (*badLines)[0], "not json")
	require.Len(t, *messages, 1)
	assert.Equal(t, "{\"n\":2}", (*messages)[0])
}

func TestDecoderTruncatesReportedLine(t *testing.T) {
	d, _, badLines := collectDecoder()

	long := "data: {" + strings.Repeat("x", 4096)
	d.Feed(long + "\n\n")

	require.Len(t, *badLines, 1)
	assert.Len(t, (*badLines)[0], maxReportedLineBytes)
}

func TestDecoderHandlesCRLF(t *testing.T) {
	d, messages, _ := collectDecoder()

	d.Feed("data: {\"n\":1}\r\n\n")

	require.Len(t, *messages, 1)
}
