// Package repository defines domain models and data access interfaces for documents and their chunks.
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document represents an uploaded document owned by exactly one user
type Document struct {
	ID         int64
	OwnerID    int64
	Filename   string
	ChunkCount int
	UploadedAt time.Time
}

// Chunk represents a bounded span of a document's text, the atomic retrieval unit.
// Index is the position within the document and is only used for display.
type Chunk struct {
	ID         int64
	DocumentID int64
	Text       string
	Index      int
	Embedding  []float32
}

// VectorMatch is a nearest-neighbour hit; smaller Distance means more similar
type VectorMatch struct {
	ChunkID  int64
	Distance float64
}

// LexicalMatch is a full-text hit. Stores only return chunks that actually
// match the query, so a missing chunk means "no match" rather than a low score.
type LexicalMatch struct {
	ChunkID int64
	Score   float64
}

// DocumentRepository defines document lookups used for ownership scoping
type DocumentRepository interface {
	GetByID(ctx context.Context, id int64) (*Document, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*Document, error)
}

// ChunkRepository defines the candidate store queries, all scoped to a single document
type ChunkRepository interface {
	// NearestChunks returns up to limit chunks of the document ordered by ascending distance
	NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]VectorMatch, error)

	// MatchChunks returns up to limit chunks of the document that lexically match query,
	// ordered by descending relevance
	MatchChunks(ctx context.Context, documentID int64, query string, limit int) ([]LexicalMatch, error)

	// GetChunks performs a point lookup of chunks by id. Unknown ids are omitted.
	GetChunks(ctx context.Context, ids []int64) ([]*Chunk, error)
}
