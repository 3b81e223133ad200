package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zara-assistant-be/pkg/llm"
)

func TestOllamaChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Oil "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"output rose."},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3")

	var chunks []string
	text, err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "trend?"}}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Oil output rose.", text)
	assert.Equal(t, []string{"Oil ", "output rose."}, chunks)
}

func TestOllamaChatStream_EndsWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"half"},"done":false}`)
	}))
	defer server.Close()

	text, err := NewOllamaProvider(server.URL, "llama3").ChatStream(context.Background(), nil, func(string) error { return nil })

	assert.Error(t, err)
	assert.Equal(t, "half", text)
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "mistral", req.Model)
		fmt.Fprint(w, `{"model":"mistral","message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))
	defer server.Close()

	text, err := NewOllamaProvider(server.URL, "llama3").Generate(context.Background(), "hello", llm.WithModel("mistral"))

	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}
