package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: got.Model, Response: `{"scores":[]}`, Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(WithBaseURL(srv.URL+"/"), WithModel("judge"))
	out, err := client.Generate(context.Background(), "rate these", GenerateOptions{
		SystemPrompt: "be strict",
		MaxTokens:    64,
		JSON:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"scores":[]}`, out)
	assert.Equal(t, "judge", got.Model)
	assert.Equal(t, "rate these", got.Prompt)
	assert.Equal(t, "be strict", got.System)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 0, got.Options["temperature"])
	assert.EqualValues(t, 64, got.Options["num_predict"])
}

func TestOllamaClient_ModelOverride(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), "hi", GenerateOptions{Model: "other"})
	require.NoError(t, err)

	assert.Equal(t, "other", got.Model)
	assert.Empty(t, got.Format)
	assert.NotContains(t, got.Options, "num_predict")
}

func TestOllamaClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(WithBaseURL(srv.URL)).Generate(context.Background(), "hi", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}
