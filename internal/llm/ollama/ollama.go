// Package ollama adapts a local Ollama host's /api/generate endpoint to the
// llm interfaces.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/liushuangls/go-anthropic/v2/jsonschema"

	"github.com/vbonduro/boardgamer/internal/llm"
)

const providerName = "ollama"

// errStreamTruncated reports a stream body that ended without a done line.
var errStreamTruncated = errors.New("ollama stream ended before done")

type Client struct {
	host        string
	visionModel string
	textModel   string
	client      *http.Client
}

func New(host, visionModel, textModel string) *Client {
	return &Client{
		host:        strings.TrimRight(host, "/"),
		visionModel: visionModel,
		textModel:   textModel,
		client:      &http.Client{},
	}
}

func (c *Client) Name() string { return providerName }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Stream  bool            `json:"stream"`
	Format  json.RawMessage `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) newRequest(model, prompt string, opts llm.Options) generateRequest {
	return generateRequest{
		Model:  model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
}

// post sends body and returns the response once a 200 has been received.
// Callers own the returned body.
func (c *Client) post(ctx context.Context, body generateRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		closeBody(resp)
		return nil, &llm.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}
	return resp, nil
}

func (c *Client) generate(ctx context.Context, body generateRequest) (string, error) {
	resp, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}

func (c *Client) DescribeImage(ctx context.Context, img llm.Image, prompt string, opts llm.Options) (string, error) {
	body := c.newRequest(c.visionModel, prompt, opts)
	body.Images = []string{img.Data}
	return c.generate(ctx, body)
}

// GenerateStructured passes schema as Ollama's format constraint.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema jsonschema.Definition, opts llm.Options) ([]byte, error) {
	format, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	body := c.newRequest(c.textModel, prompt, opts)
	body.Format = format

	text, err := c.generate(ctx, body)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// StreamText reads Ollama's newline-delimited JSON stream and forwards each
// non-empty response fragment. A failed initial request is reported as the
// first event so callers see one failure path.
func (c *Client) StreamText(ctx context.Context, prompt string, opts llm.Options) (<-chan llm.StreamEvent, error) {
	body := c.newRequest(c.textModel, prompt, opts)
	body.Stream = true

	ch := make(chan llm.StreamEvent)

	go func() {
		defer close(ch)

		send := func(ev llm.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := c.post(ctx, body)
		if err != nil {
			if ctx.Err() == nil {
				send(llm.StreamEvent{Err: err})
			}
			return
		}
		defer closeBody(resp)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk generateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				slog.Warn("skipping malformed ollama stream line", "error", err)
				continue
			}
			if chunk.Error != "" {
				send(llm.StreamEvent{Err: fmt.Errorf("ollama error: %s", chunk.Error)})
				return
			}
			if chunk.Response != "" && !send(llm.StreamEvent{Text: chunk.Response}) {
				return
			}
			if chunk.Done {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		if err := scanner.Err(); err != nil {
			send(llm.StreamEvent{Err: fmt.Errorf("read ollama stream: %w", err)})
			return
		}
		send(llm.StreamEvent{Err: errStreamTruncated})
	}()

	return ch, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Error("failed to close ollama response body", "error", err)
	}
}
