package postgres

import (
	"context"
	"fmt"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepo implements repository.ChunkRepository over the contract_chunks table.
// Vector search uses pgvector L2 distance; lexical search uses Postgres full-text
// search with the english configuration, which matches the GIN index.
type ChunkRepo struct {
	db *DB
}

// NewChunkRepo creates a new chunk repository
func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// NearestChunks returns the chunks of a document closest to embedding
func (r *ChunkRepo) NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]repository.VectorMatch, error) {
	query := `
		SELECT id, embedding <-> $2 AS distance
		FROM contract_chunks
		WHERE contract_id = $1 AND embedding IS NOT NULL
		ORDER BY distance ASC, id ASC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, documentID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer rows.Close()

	matches := make([]repository.VectorMatch, 0, limit)
	for rows.Next() {
		var m repository.VectorMatch
		if err := rows.Scan(&m.ChunkID, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}

	return matches, nil
}

// MatchChunks returns the chunks of a document sharing at least one stemmed
// term with query, by ts_rank. plainto_tsquery ANDs the terms, so its
// operators are rewritten to OR; the @@ predicate still excludes chunks with
// no lexical overlap entirely.
func (r *ChunkRepo) MatchChunks(ctx context.Context, documentID int64, query string, limit int) ([]repository.LexicalMatch, error) {
	sql := `
		WITH q AS (
			SELECT replace(plainto_tsquery('english', $2)::text, '&', '|')::tsquery AS terms
		)
		SELECT c.id, ts_rank(to_tsvector('english', c.chunk_text), q.terms) AS rank
		FROM contract_chunks c, q
		WHERE c.contract_id = $1
		  AND to_tsvector('english', c.chunk_text) @@ q.terms
		ORDER BY rank DESC, c.id ASC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, sql, documentID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	matches := make([]repository.LexicalMatch, 0, limit)
	for rows.Next() {
		var (
			m    repository.LexicalMatch
			rank float32
		)
		if err := rows.Scan(&m.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan keyword match: %w", err)
		}
		m.Score = float64(rank)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}

	return matches, nil
}

// GetChunks looks up chunks by id, without embeddings
func (r *ChunkRepo) GetChunks(ctx context.Context, ids []int64) ([]*repository.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, contract_id, chunk_text, chunk_index
		FROM contract_chunks
		WHERE id = ANY($1)
	`
	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]*repository.Chunk, 0, len(ids))
	for rows.Next() {
		var chunk repository.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.Index); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	return chunks, nil
}

// ListEmbeddedChunks returns every chunk of a document that has an embedding, in reading order
func (r *ChunkRepo) ListEmbeddedChunks(ctx context.Context, documentID int64) ([]*repository.Chunk, error) {
	query := `
		SELECT id, contract_id, chunk_text, chunk_index, embedding
		FROM contract_chunks
		WHERE contract_id = $1 AND embedding IS NOT NULL
		ORDER BY chunk_index
	`
	rows, err := r.db.Pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*repository.Chunk
	for rows.Next() {
		var (
			chunk repository.Chunk
			vec   pgvector.Vector
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.Index, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Embedding = vec.Slice()
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	return chunks, nil
}

// Ensure ChunkRepo implements the interface
var _ repository.ChunkRepository = (*ChunkRepo)(nil)
