// Package sse frames recommendation text as Server-Sent Events and decodes
// such streams incrementally on the client side.
//
// A frame is a single "data: " line carrying a JSON TextFrame, terminated by
// a blank line. The payload [DONE] marks the logical end of a stream.
package sse

import (
	"fmt"

	"github.com/goccy/go-json"
)

const (
	// DataPrefix starts every payload line.
	DataPrefix = "data: "

	// Done is the sentinel payload sent after the last text frame.
	Done = "[DONE]"

	TypeText = "text"
)

// TextFrame is the JSON payload of one text frame.
type TextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EncodeText renders text as a complete frame including the blank line.
func EncodeText(text string) ([]byte, error) {
	payload, err := json.Marshal(TextFrame{Type: TypeText, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return frame(payload), nil
}

// EncodeDone renders the sentinel frame.
func EncodeDone() []byte {
	return frame([]byte(Done))
}

func frame(payload []byte) []byte {
	out := make([]byte, 0, len(DataPrefix)+len(payload)+2)
	out = append(out, DataPrefix...)
	out = append(out, payload...)
	return append(out, '\n', '\n')
}
