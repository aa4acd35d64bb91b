package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-labeler/pkg/client"
)

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)

	_, err = NewClient("http://localhost:11434/api/chat")
	assert.NoError(t, err)
}

func TestDescribe(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"a lighthouse at dusk"},"done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	text, err := c.Describe(context.Background(), client.Request{
		Model: "llava", Prompt: "What is this?", ImageB64: "aGVsbG8=", MaxTokens: 40, Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "a lighthouse at dusk", text)

	assert.Equal(t, "llava", got.Model)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Images, 1)
	assert.Equal(t, "hello", string(got.Messages[0].Images[0]))
	assert.EqualValues(t, 40, got.Options["num_predict"])
}

func TestDescribeBadImage(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = c.Describe(context.Background(), client.Request{Model: "m", ImageB64: "%%%"})
	assert.Error(t, err)
}

func TestDescribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llava' not found"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Describe(context.Background(), client.Request{Model: "llava", ImageB64: "aGVsbG8="})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
