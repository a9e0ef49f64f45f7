package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schemaStatements creates the tables the retrieval engine reads from.
// Embedding dimension is fixed by the column type; 3072 matches gemini-embedding-001.
func schemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			id              SERIAL PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id          SERIAL PRIMARY KEY,
			user_id     INTEGER NOT NULL REFERENCES users(id),
			filename    TEXT NOT NULL,
			upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			num_chunks  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_user_id ON contracts (user_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contract_chunks (
			id          SERIAL PRIMARY KEY,
			contract_id INTEGER NOT NULL REFERENCES contracts(id),
			chunk_text  TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding   vector(%d)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS idx_chunk_contract_id ON contract_chunks (contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_fts ON contract_chunks USING gin (to_tsvector('english', chunk_text))`,
	}
}

// Migrate creates the extension, tables and indexes if they do not exist.
// It uses a dedicated connection because the pool registers pgvector types on
// connect, which fails until the extension exists.
func Migrate(ctx context.Context, databaseURL string, dimension int) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect for migration: %w", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range schemaStatements(dimension) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
