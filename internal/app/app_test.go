package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/embedder"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/memory"
	"github.com/mehul-raul/contract-analysis-agent/internal/reranker"
)

func testConfig() *config.Config {
	return &config.Config{
		EmbeddingProvider:        "ollama",
		OllamaURL:                "http://127.0.0.1:1",
		OllamaEmbeddingModel:     "nomic-embed-text",
		OllamaLLMModel:           "llama3.2",
		EmbeddingDimension:       768,
		EmbeddingCacheSize:       8,
		RerankerProvider:         "crossencoder",
		RerankerURL:              "http://127.0.0.1:1",
		RerankerModel:            "cross-encoder/ms-marco-MiniLM-L-6-v2",
		RerankBatchSize:          8,
		RerankTimeout:            time.Second,
		RRFK:                     30,
		PerDocumentCandidates:    4,
		PerDocumentRerank:        2,
		SingleDocumentCandidates: 6,
		GlobalTopK:               3,
		MaxConcurrentDocuments:   2,
		DocumentTimeout:          5 * time.Second,
		RescorePool:              true,
	}
}

func TestNewEmbedder_Ollama(t *testing.T) {
	emb, err := NewEmbedder(context.Background(), testConfig())
	require.NoError(t, err)

	_, cached := emb.(*embedder.CachedEmbedder)
	assert.True(t, cached)
	assert.Equal(t, "nomic-embed-text", emb.ModelName())
	assert.Equal(t, 768, emb.Dimension())
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.EmbeddingProvider = "openai"

	_, err := NewEmbedder(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown embedding provider "openai"`)
}

func TestNewScorer(t *testing.T) {
	cfg := testConfig()
	ce := NewScorer(cfg, slog.Default())
	assert.IsType(t, &reranker.CrossEncoder{}, ce)
	assert.Equal(t, "cross-encoder/ms-marco-MiniLM-L-6-v2", ce.ModelName())

	cfg.RerankerProvider = "llm"
	judge := NewScorer(cfg, slog.Default())
	assert.IsType(t, &reranker.LLMScorer{}, judge)
	assert.Equal(t, "llama3.2", judge.ModelName())
}

func TestNewWithStore(t *testing.T) {
	store, err := memory.New()
	require.NoError(t, err)
	defer store.Close()
	store.AddDocument(repository.Document{ID: 1, OwnerID: 1, Filename: "lease.pdf"})

	a, err := NewWithStore(context.Background(), testConfig(), store, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Engine)
	require.NotNil(t, a.Search)
	assert.Nil(t, a.DB)
	assert.NoError(t, a.Ready(context.Background()))

	opts := a.Engine.Options()
	assert.Equal(t, 30, opts.RRFK)
	assert.Equal(t, 4, opts.PerDocumentCandidateLimit)
	assert.Equal(t, 2, opts.PerDocumentRerankLimit)
	assert.Equal(t, 3, opts.GlobalTopK)

	// An empty scope never reaches the embedder or the reranker.
	res, err := a.Search.SearchAll(context.Background(), 2, "notice period", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Passages)
}
