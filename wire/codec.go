// Package wire serializes Message envelopes for the TCP stream.
//
// Each envelope is a self-contained JSON object. TCP gives no record
// boundaries, so several envelopes may arrive coalesced in one read and a
// single envelope may span two reads. Split cuts a byte buffer into complete
// frames by scanning for balanced braces, treating anything inside a JSON
// string (including escaped quotes) as opaque.
package wire

import (
	"encoding/json"
	"fmt"

	"chat-relay/domain"
)

// Encode renders one envelope ready to be written to the stream.
func Encode(m domain.Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a single complete frame. A failure here is a protocol
// error, never a transport error: callers log and drop the frame.
func Decode(frame []byte) (domain.Message, error) {
	var m domain.Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return domain.Message{}, fmt.Errorf("undecodable frame: %w", err)
	}
	return m, nil
}

// Split cuts buf into complete top-level JSON objects and returns them along
// with the unconsumed remainder (the prefix of a frame still in flight).
// Bytes before the first opening brace are discarded.
func Split(buf []byte) (frames [][]byte, rest []byte) {
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i, b := range buf {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray close, skip
			}
			depth--
			if depth == 0 {
				frames = append(frames, buf[start:i+1])
				start = -1
			}
		}
	}

	if start >= 0 {
		rest = buf[start:]
	}
	return frames, rest
}
