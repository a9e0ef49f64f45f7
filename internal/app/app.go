// Package app wires configuration into the retrieval stack shared by ragd and ragctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/embedder"
	"github.com/mehul-raul/contract-analysis-agent/internal/llm"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/postgres"
	"github.com/mehul-raul/contract-analysis-agent/internal/reranker"
	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
	"github.com/mehul-raul/contract-analysis-agent/internal/service"
	"github.com/mehul-raul/contract-analysis-agent/internal/vectorstore"
)

// Store is a candidate store that also answers ownership lookups.
type Store interface {
	repository.DocumentRepository
	repository.ChunkRepository
}

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	DB       *postgres.DB
	Docs     repository.DocumentRepository
	Chunks   repository.ChunkRepository
	Qdrant   *vectorstore.QdrantStore
	Embedder embedder.Embedder
	Scorer   reranker.Scorer
	Engine   *retrieval.Engine
	Search   *service.SearchService

	closers []func()
}

// New connects to Postgres (and Qdrant when configured) and builds the engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL, cfg.EmbeddingDimension); err != nil {
			return nil, err
		}
		logger.Info("database schema is up to date")
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	a := &App{
		Config:  cfg,
		DB:      db,
		Docs:    postgres.NewDocumentRepo(db),
		Chunks:  postgres.NewChunkRepo(db),
		closers: []func(){db.Close},
	}

	var opts []retrieval.EngineOption
	if cfg.VectorBackend == "qdrant" {
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantGRPCURL, cfg.QdrantCollection)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		a.Qdrant = qs
		a.closers = append(a.closers, func() { _ = qs.Close() })
		opts = append(opts, retrieval.WithVectorIndex(qs))
		logger.Info("using Qdrant vector backend", "collection", cfg.QdrantCollection)
	}

	if err := a.build(ctx, cfg, logger, opts...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the engine over an already populated store, such as a
// memory fixture.
func NewWithStore(ctx context.Context, cfg *config.Config, store Store, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Docs: store, Chunks: store}
	if err := a.build(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...retrieval.EngineOption) error {
	emb, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	a.Embedder = emb
	logger.Info("initialized embedder", "provider", cfg.EmbeddingProvider, "model", emb.ModelName(), "dimension", emb.Dimension())

	a.Scorer = NewScorer(cfg, logger)
	logger.Info("initialized reranker", "provider", cfg.RerankerProvider, "model", a.Scorer.ModelName())

	rr := retrieval.NewCrossEncoderReranker(a.Scorer,
		retrieval.WithBatchSize(cfg.RerankBatchSize),
		retrieval.WithCallTimeout(cfg.RerankTimeout),
		retrieval.WithRerankLogger(logger),
	)

	opts = append(opts, retrieval.WithOptions(cfg.RetrievalOptions()), retrieval.WithLogger(logger))
	a.Engine = retrieval.NewEngine(emb, a.Chunks, rr, opts...)
	a.Search = service.NewSearchService(a.Docs, a.Engine, service.WithLogger(logger))
	return nil
}

// NewEmbedder builds the query embedder named by EMBEDDING_PROVIDER, wrapped
// in an LRU cache.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	var inner embedder.Embedder
	switch cfg.EmbeddingProvider {
	case "ollama":
		inner = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.OllamaEmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
	case "gemini":
		g, err := embedder.NewGeminiEmbedder(ctx, embedder.GeminiConfig{
			APIKey:    cfg.GoogleAPIKey,
			Model:     cfg.GeminiEmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	cached, err := embedder.NewCachedEmbedder(inner, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// NewScorer builds the relevance oracle named by RERANKER_PROVIDER.
func NewScorer(cfg *config.Config, logger *slog.Logger) reranker.Scorer {
	if cfg.RerankerProvider == "llm" {
		client := llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaLLMModel),
		)
		return reranker.NewLLMScorer(client, reranker.WithModel(cfg.OllamaLLMModel))
	}
	return reranker.NewCrossEncoder(reranker.CrossEncoderConfig{
		BaseURL: cfg.RerankerURL,
		Model:   cfg.RerankerModel,
		Timeout: cfg.RerankTimeout,
		Logger:  logger,
	})
}

// Ready reports whether the database is reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.Ping(ctx); err != nil {
		return errors.Join(errors.New("database unreachable"), err)
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second
