package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// DocumentRepo implements repository.DocumentRepository over the contracts table
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetByID retrieves a document by ID
func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*repository.Document, error) {
	query := `
		SELECT id, user_id, filename, num_chunks, upload_date
		FROM contracts
		WHERE id = $1
	`
	var doc repository.Document
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.ChunkCount, &doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByOwner retrieves every document owned by a user, oldest first
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*repository.Document, error) {
	query := `
		SELECT id, user_id, filename, num_chunks, upload_date
		FROM contracts
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.ChunkCount, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, nil
}

// ListIDs returns the ids of every document, in id order
func (r *DocumentRepo) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM contracts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}
	return ids, nil
}

// Ensure DocumentRepo implements the interface
var _ repository.DocumentRepository = (*DocumentRepo)(nil)
