package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for input, want := range map[string]Provider{
		"openai":    OpenAI,
		" Gemini ":  Gemini,
		"ANTHROPIC": Anthropic,
	} {
		got, err := ParseProvider(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseProvider("mistral")
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), OpenAI, Options{})
	assert.ErrorContains(t, err, "API key not set")

	_, err = New(context.Background(), "mistral", Options{APIKey: "k"})
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{APIKey: "k"}.withDefaults("model-a")
	assert.Equal(t, "model-a", opts.Model)
	assert.Equal(t, DefaultTemperature, opts.Temperature)
	assert.Equal(t, int64(DefaultMaxTokens), opts.MaxTokens)

	custom := Options{Model: "model-b", Temperature: 0.9, MaxTokens: 10}.withDefaults("model-a")
	assert.Equal(t, "model-b", custom.Model)
	assert.Equal(t, 0.9, custom.Temperature)
	assert.Equal(t, int64(10), custom.MaxTokens)
}

// providerServer answers every POST whose path ends in suffix with body and
// keeps the last decoded request.
func providerServer(t *testing.T, suffix, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, suffix) {
			http.Error(w, `{"error": {"message": "not found"}}`, http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		last = map[string]any{}
		_ = json.Unmarshal(raw, &last)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestOpenAIClient(t *testing.T) {
	srv, last := providerServer(t, "/chat/completions", `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello from OpenAI"}}]
	}`)

	client, err := New(context.Background(), OpenAI, Options{APIKey: "test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	assert.Equal(t, OpenAI, client.Provider())
	assert.Equal(t, defaultOpenAIModel, client.Model())

	reply, err := client.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI", reply)

	assert.Equal(t, defaultOpenAIModel, (*last)["model"])
	messages := (*last)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestAnthropicClient(t *testing.T) {
	srv, last := providerServer(t, "/v1/messages", `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
		"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "from Claude"}],
		"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 4}
	}`)

	client, err := New(context.Background(), Anthropic, Options{APIKey: "test", BaseURL: srv.URL + "/", Model: "claude-test"})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Claude", reply)

	assert.Equal(t, "claude-test", (*last)["model"])
	system := (*last)["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}

func TestGeminiClient(t *testing.T) {
	srv, last := providerServer(t, ":generateContent", `{
		"candidates": [{"content": {"role": "model", "parts": [
			{"text": "thinking...", "thought": true},
			{"text": "Hello from Gemini"}
		]}}]
	}`)

	client, err := New(context.Background(), Gemini, Options{APIKey: "test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini", reply)
	assert.Contains(t, *last, "systemInstruction")
}

func TestProviderHTTPError(t *testing.T) {
	srv, _ := providerServer(t, "/never", "{}")

	client, err := New(context.Background(), OpenAI, Options{APIKey: "test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), "", "hi")
	assert.ErrorContains(t, err, "openai request failed")
}
