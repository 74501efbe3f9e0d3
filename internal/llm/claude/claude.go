// Package claude adapts the Anthropic Messages API to the llm interfaces.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/liushuangls/go-anthropic/v2/jsonschema"

	"github.com/vbonduro/boardgamer/internal/llm"
)

const providerName = "claude"

// structuredToolName is the tool the model is forced to call so that its
// input carries the schema-constrained answer.
const structuredToolName = "record_result"

type Client struct {
	api         *anthropic.Client
	visionModel string
	textModel   string
}

type options struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at another Messages API root (tests, proxies).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func New(apiKey, visionModel, textModel string, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []anthropic.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, anthropic.WithHTTPClient(o.httpClient))
	}

	return &Client{
		api:         anthropic.NewClient(apiKey, clientOpts...),
		visionModel: visionModel,
		textModel:   textModel,
	}
}

func (c *Client) Name() string { return providerName }

func (c *Client) request(model string, msg anthropic.Message, opts llm.Options) anthropic.MessagesRequest {
	temp := opts.Temperature
	return anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		Messages:    []anthropic.Message{msg},
		MaxTokens:   opts.MaxTokens,
		Temperature: &temp,
	}
}

// DescribeImage sends the image followed by the prompt and returns the first
// text block of the reply.
func (c *Client) DescribeImage(ctx context.Context, img llm.Image, prompt string, opts llm.Options) (string, error) {
	msg := anthropic.Message{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				normaliseMIME(img.MimeType),
				img.Data,
			)),
			anthropic.NewTextMessageContent(prompt),
		},
	}

	resp, err := c.api.CreateMessages(ctx, c.request(c.visionModel, msg, opts))
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeText {
			return blk.GetText(), nil
		}
	}
	return "", nil
}

// GenerateStructured forces a single tool call whose input schema is schema
// and returns the raw tool input.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema jsonschema.Definition, opts llm.Options) ([]byte, error) {
	req := c.request(c.textModel, anthropic.NewUserTextMessage(prompt), opts)
	req.Tools = []anthropic.ToolDefinition{{
		Name:        structuredToolName,
		Description: "Record the answer in the required structure.",
		InputSchema: schema,
	}}
	req.ToolChoice = &anthropic.ToolChoice{Type: "tool", Name: structuredToolName}

	resp, err := c.api.CreateMessages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeToolUse && blk.MessageContentToolUse != nil {
			return blk.MessageContentToolUse.Input, nil
		}
	}
	return nil, errors.New("claude response contained no tool call")
}

// StreamText runs a streaming Messages request in a goroutine and forwards
// each text delta on an unbuffered channel.
func (c *Client) StreamText(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)

	req := anthropic.MessagesStreamRequest{
		MessagesRequest: c.request(c.textModel, anthropic.NewUserTextMessage(prompt), opts),
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if data.Delta.Text == nil || *data.Delta.Text == "" {
				return
			}
			select {
			case ch <- llm.StreamEvent{Text: *data.Delta.Text}:
			case <-ctx.Done():
			}
		},
	}

	go func() {
		defer close(ch)
		_, err := c.api.CreateMessagesStream(ctx, req)
		if err != nil && ctx.Err() == nil {
			select {
			case ch <- llm.StreamEvent{Err: fmt.Errorf("claude stream failed: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// normaliseMIME maps browser MIME types to the values the Anthropic API accepts.
// Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
