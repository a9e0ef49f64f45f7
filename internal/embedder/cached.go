package embedder

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mehul-raul/contract-analysis-agent/internal/metrics"
)

// DefaultCacheSize is the default number of query embeddings kept in memory.
const DefaultCacheSize = 1024

// CachedEmbedder memoises single-text embeddings in an LRU cache.
// Embeddings are deterministic per text and model, so a cached vector is
// interchangeable with a fresh one. Batch calls bypass the cache.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns a cached embedding or calls the inner embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch delegates to the inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

// Dimension returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// ModelName returns the inner embedder's model name.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

var _ Embedder = (*CachedEmbedder)(nil)
