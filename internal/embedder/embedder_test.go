package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int    { return 2 }
func (c *countingEmbedder) ModelName() string { return "counting" }

func TestCachedEmbedder_HitsCacheForRepeatedText(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	first, err := cached.Embed(context.Background(), "notice period")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "notice period")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "counting", cached.ModelName())
	assert.Equal(t, 2, cached.Dimension())
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("backend down")}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "q")
	require.Error(t, err)
	_, err = cached.Embed(context.Background(), "q")
	require.Error(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestOllamaEmbedder_EmbedAndBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Embedding: []float64{float64(len(req.Prompt)), 0.5},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})
	assert.Equal(t, DefaultOllamaModel, e.ModelName())
	assert.Equal(t, 768, e.Dimension())

	vec, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0.5}, vec)

	batch, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, v := range batch {
		assert.Equal(t, float32(i+1), v[0], "batch order must follow input order")
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "missing"})
	_, err := e.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 404"))
}

func TestDimensionFor(t *testing.T) {
	assert.Equal(t, 3072, DimensionFor("gemini-embedding-001", 1))
	assert.Equal(t, 42, DimensionFor("unknown-model", 42))
}
