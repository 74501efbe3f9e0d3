// Package llm defines the model capabilities the identify and recommend
// packages depend on. Adapters live in the claude and ollama subpackages.
package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2/jsonschema"
)

// Image is a base64 encoded picture with its MIME type.
type Image struct {
	MimeType string
	Data     string
}

// Options bound a single generation.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// StreamEvent carries either one text delta or the error that ended the stream.
type StreamEvent struct {
	Text string
	Err  error
}

// VisionModel answers a text prompt about an image.
type VisionModel interface {
	DescribeImage(ctx context.Context, img Image, prompt string, opts Options) (string, error)
}

// StructuredModel returns JSON conforming to schema.
type StructuredModel interface {
	GenerateStructured(ctx context.Context, prompt string, schema jsonschema.Definition, opts Options) ([]byte, error)
}

// StreamModel streams text deltas for a prompt. The returned channel is
// unbuffered and closed when the upstream finishes, fails or ctx is cancelled.
// A failure is delivered as a final event with Err set.
type StreamModel interface {
	StreamText(ctx context.Context, prompt string, opts Options) (<-chan StreamEvent, error)
}

// Provider is a backend offering every capability.
type Provider interface {
	VisionModel
	StructuredModel
	StreamModel
	Name() string
}

// StatusError reports a non-OK upstream HTTP response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}
