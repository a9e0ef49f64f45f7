package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mehul-raul/contract-analysis-agent/internal/app"
	"github.com/mehul-raul/contract-analysis-agent/internal/auth"
	"github.com/mehul-raul/contract-analysis-agent/internal/config"
	"github.com/mehul-raul/contract-analysis-agent/internal/embedder"
	"github.com/mehul-raul/contract-analysis-agent/internal/llm"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/memory"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository/postgres"
	"github.com/mehul-raul/contract-analysis-agent/internal/reranker"
	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
	"github.com/mehul-raul/contract-analysis-agent/internal/server"
	"github.com/mehul-raul/contract-analysis-agent/internal/service"
	"github.com/mehul-raul/contract-analysis-agent/internal/vectorstore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting retrieval service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"vector_backend", cfg.VectorBackend,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Issuer = cfg.JWTIssuer
	jwtCfg.Expiry = cfg.JWTExpiry

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: []string{"*"}, // Configure in production
		JWT:            auth.NewJWTManager(jwtCfg),
		Search:         a.Search,
		Ready:          a.Ready,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	slog.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.DocumentRepository = (*postgres.DocumentRepo)(nil)
	_ repository.ChunkRepository    = (*postgres.ChunkRepo)(nil)
	_ app.Store                     = (*memory.Store)(nil)
	_ retrieval.VectorIndex         = (*vectorstore.QdrantStore)(nil)
	_ vectorstore.VectorStore       = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder             = (*embedder.CachedEmbedder)(nil)
	_ retrieval.QueryEmbedder       = (*embedder.CachedEmbedder)(nil)
	_ retrieval.Scorer              = (*reranker.CrossEncoder)(nil)
	_ reranker.Scorer               = (*reranker.LLMScorer)(nil)
	_ llm.LLM                       = (*llm.OllamaClient)(nil)
	_ server.SearchService          = (*service.SearchService)(nil)
)
