package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(3072)

	require.NotEmpty(t, stmts)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS vector", stmts[0])

	joined := strings.Join(stmts, "\n")
	assert.Contains(t, joined, "embedding   vector(3072)")
	assert.Contains(t, joined, "to_tsvector('english', chunk_text)")
	for _, s := range stmts {
		assert.Contains(t, s, "IF NOT EXISTS", "statements must be re-runnable")
	}
}

// TestRepos_Integration runs against a disposable database named by
// TEST_DATABASE_URL.
func TestRepos_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, url, 3))
	db, err := New(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	var userID, docID int64
	require.NoError(t, db.Pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password) VALUES ('it-' || gen_random_uuid() || '@example.com', 'x') RETURNING id`,
	).Scan(&userID))
	require.NoError(t, db.Pool.QueryRow(ctx,
		`INSERT INTO contracts (user_id, filename, num_chunks) VALUES ($1, 'lease.pdf', 2) RETURNING id`, userID,
	).Scan(&docID))
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO contract_chunks (contract_id, chunk_text, chunk_index, embedding) VALUES
		($1, 'termination clause: 30 days notice', 0, '[0,1,0]'),
		($1, 'payment due monthly', 1, '[1,0,0]')`, docID)
	require.NoError(t, err)

	docs := NewDocumentRepo(db)
	owned, err := docs.ListByOwner(ctx, userID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "lease.pdf", owned[0].Filename)

	_, err = docs.GetByID(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	chunks := NewChunkRepo(db)
	nearest, err := chunks.NearestChunks(ctx, docID, []float32{1, 0.1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, nearest, 2)
	assert.Less(t, nearest[0].Distance, nearest[1].Distance)

	lexical, err := chunks.MatchChunks(ctx, docID, "notice period", 5)
	require.NoError(t, err)
	require.Len(t, lexical, 1)

	got, err := chunks.GetChunks(ctx, []int64{lexical[0].ChunkID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "termination clause: 30 days notice", got[0].Text)

	embedded, err := chunks.ListEmbeddedChunks(ctx, docID)
	require.NoError(t, err)
	require.Len(t, embedded, 2)
	assert.Equal(t, []float32{0, 1, 0}, embedded[0].Embedding)
}
