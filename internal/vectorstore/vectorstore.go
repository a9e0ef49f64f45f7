// Package vectorstore provides an external nearest-neighbour index for chunk
// embeddings, used instead of pgvector when the deployment runs Qdrant.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// DefaultCollection is the collection chunk vectors are mirrored into.
const DefaultCollection = "contract_chunks"

// VectorStore defines the interface for vector storage operations
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist yet
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates chunk vectors
	Upsert(ctx context.Context, chunks []*repository.Chunk) error

	// NearestChunks returns up to limit chunks of the document by ascending L2 distance
	NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]repository.VectorMatch, error)

	// DeleteDocument removes every vector of a document
	DeleteDocument(ctx context.Context, documentID int64) error
}

// ChunkSource lists the embedded chunks of a document.
type ChunkSource interface {
	ListEmbeddedChunks(ctx context.Context, documentID int64) ([]*repository.Chunk, error)
}

// SyncStats summarises a Sync run.
type SyncStats struct {
	Documents int
	Chunks    int
}

// Sync mirrors the chunk vectors of the given documents from source into
// store. Each document's vectors are replaced, so re-running is safe.
func Sync(ctx context.Context, source ChunkSource, store VectorStore, documentIDs []int64, batchSize int) (SyncStats, error) {
	if batchSize <= 0 {
		batchSize = 256
	}

	var stats SyncStats
	for _, docID := range documentIDs {
		chunks, err := source.ListEmbeddedChunks(ctx, docID)
		if err != nil {
			return stats, fmt.Errorf("failed to list chunks of document %d: %w", docID, err)
		}
		if err := store.DeleteDocument(ctx, docID); err != nil {
			return stats, fmt.Errorf("failed to clear document %d: %w", docID, err)
		}
		for lo := 0; lo < len(chunks); lo += batchSize {
			hi := min(lo+batchSize, len(chunks))
			if err := store.Upsert(ctx, chunks[lo:hi]); err != nil {
				return stats, fmt.Errorf("failed to upsert chunks of document %d: %w", docID, err)
			}
		}

		stats.Documents++
		stats.Chunks += len(chunks)
		slog.Debug("document vectors synced", "document_id", docID, "chunks", len(chunks))
	}
	return stats, nil
}
