package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liushuangls/go-anthropic/v2/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/boardgamer/internal/llm"
)

func TestDescribeImage(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "Catan, Azul", "done": true})
	}))
	defer server.Close()

	c := New(server.URL+"/", "llava", "llama3.2")
	text, err := c.DescribeImage(context.Background(), llm.Image{MimeType: "image/png", Data: "AAAA"}, "list", llm.Options{MaxTokens: 256, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Catan, Azul", text)

	assert.Equal(t, "llava", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, []any{"AAAA"}, got["images"])
	options := got["options"].(map[string]any)
	assert.EqualValues(t, 256, options["num_predict"])
	assert.NotContains(t, got, "format")
}

func TestGenerateStructuredSendsFormat(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"games":[{"gameName":"Catan"}]}`, "done": true})
	}))
	defer server.Close()

	schema := jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{"games": {Type: jsonschema.Array}},
		Required:   []string{"games"},
	}
	out, err := New(server.URL, "llava", "llama3.2").GenerateStructured(context.Background(), "p", schema, llm.Options{MaxTokens: 128})
	require.NoError(t, err)
	assert.JSONEq(t, `{"games":[{"gameName":"Catan"}]}`, string(out))

	assert.Equal(t, "llama3.2", got["model"])
	format := got["format"].(map[string]any)
	assert.Equal(t, "object", format["type"])
	assert.Equal(t, []any{"games"}, format["required"])
}

func TestGenerateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "llava", "llama3.2").DescribeImage(context.Background(), llm.Image{}, "p", llm.Options{})
	var statusErr *llm.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "model not found", statusErr.Body)
}

func TestGenerateNetworkError(t *testing.T) {
	_, err := New("http://localhost:99999", "llava", "llama3.2").DescribeImage(context.Background(), llm.Image{}, "p", llm.Options{})
	assert.Error(t, err)
}

func TestStreamText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"response":"**Azul**","done":false}` + "\n" +
			"not json\n" +
			`{"response":"","done":false}` + "\n" +
			`{"response":" fits","done":false}` + "\n" +
			`{"response":"","done":true}` + "\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL, "llava", "llama3.2").StreamText(context.Background(), "p", llm.Options{MaxTokens: 300})
	require.NoError(t, err)

	var texts []string
	for ev := range ch {
		require.NoError(t, ev.Err)
		texts = append(texts, ev.Text)
	}
	assert.Equal(t, []string{"**Azul**", " fits"}, texts)
}

func TestStreamTextFailsBeforeFirstDelta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ch, err := New(server.URL, "llava", "llama3.2").StreamText(context.Background(), "p", llm.Options{})
	require.NoError(t, err)

	ev := <-ch
	assert.Error(t, ev.Err)
	_, open := <-ch
	assert.False(t, open)
}

func TestStreamTextErrorLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"a","done":false}` + "\n" + `{"error":"out of memory"}` + "\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL, "llava", "llama3.2").StreamText(context.Background(), "p", llm.Options{})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "a", first.Text)
	second := <-ch
	assert.ErrorContains(t, second.Err, "out of memory")
}

func TestStreamTextTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"**Catan**","done":false}` + "\n"))
	}))
	defer server.Close()

	ch, err := New(server.URL, "llava", "llama3.2").StreamText(context.Background(), "p", llm.Options{})
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, "**Catan**", first.Text)

	second := <-ch
	assert.ErrorIs(t, second.Err, errStreamTruncated)
	_, open := <-ch
	assert.False(t, open)
}
