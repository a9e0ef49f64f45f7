package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

const fixture = `{
  "documents": [
    {"id": 1, "owner_id": 7, "filename": "lease.pdf"},
    {"id": 2, "owner_id": 7, "filename": "nda.pdf"},
    {"id": 3, "owner_id": 8, "filename": "other.pdf"}
  ],
  "chunks": [
    {"id": 10, "document_id": 1, "index": 0, "text": "Termination clause: 30 days notice", "embedding": [0, 1]},
    {"id": 11, "document_id": 1, "index": 1, "text": "Payment due monthly", "embedding": [1, 0]},
    {"id": 12, "document_id": 1, "index": 2, "text": "Notices must be delivered in writing", "embedding": [1, 0]},
    {"id": 20, "document_id": 2, "index": 0, "text": "The notice period is two weeks", "embedding": [0.5, 0.5]}
  ]
}`

func loadFixture(t *testing.T) *Store {
	t.Helper()
	s, err := Load(strings.NewReader(fixture))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Documents(t *testing.T) {
	s := loadFixture(t)
	ctx := context.Background()

	doc, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "lease.pdf", doc.Filename)
	assert.Equal(t, 3, doc.ChunkCount)

	_, err = s.GetByID(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	docs, err := s.ListByOwner(ctx, 7)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(1), docs[0].ID)
	assert.Equal(t, int64(2), docs[1].ID)
}

func TestStore_NearestChunks(t *testing.T) {
	s := loadFixture(t)

	got, err := s.NearestChunks(context.Background(), 1, []float32{1, 0}, 10)
	require.NoError(t, err)

	// 11 and 12 tie at distance 0 and are ordered by id.
	require.Len(t, got, 3)
	assert.Equal(t, int64(11), got[0].ChunkID)
	assert.Equal(t, int64(12), got[1].ChunkID)
	assert.Equal(t, int64(10), got[2].ChunkID)
	assert.InDelta(t, 1.41421356, got[2].Distance, 1e-6)

	got, err = s.NearestChunks(context.Background(), 1, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.NearestChunks(context.Background(), 1, []float32{1, 0, 0}, 1)
	assert.ErrorContains(t, err, "dimension")
}

func TestStore_MatchChunks_StemsAndScopes(t *testing.T) {
	s := loadFixture(t)

	got, err := s.MatchChunks(context.Background(), 1, "notice period", 10)
	require.NoError(t, err)

	ids := make([]int64, len(got))
	for i, m := range got {
		ids[i] = m.ChunkID
		assert.Greater(t, m.Score, 0.0)
	}
	// "Notices" stems to the same term as "notice"; document 2 is out of scope.
	assert.ElementsMatch(t, []int64{10, 12}, ids)
}

func TestStore_MatchChunks_NoOverlap(t *testing.T) {
	s := loadFixture(t)

	got, err := s.MatchChunks(context.Background(), 1, "governing law", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_GetChunks(t *testing.T) {
	s := loadFixture(t)

	got, err := s.GetChunks(context.Background(), []int64{20, 999, 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(20), got[0].ID)
	assert.Equal(t, "Termination clause: 30 days notice", got[1].Text)

	// Callers get copies.
	got[0].Text = "changed"
	again, err := s.GetChunks(context.Background(), []int64{20})
	require.NoError(t, err)
	assert.Equal(t, "The notice period is two weeks", again[0].Text)
}

func TestStore_AddChunksRejectsUnknownDocument(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	s.AddDocument(repository.Document{ID: 1, OwnerID: 7, Filename: "lease.pdf"})

	err = s.AddChunks(
		repository.Chunk{ID: 10, DocumentID: 1, Text: "30 days notice", Embedding: []float32{0, 1}},
		repository.Chunk{ID: 11, DocumentID: 99, Text: "orphan notice", Embedding: []float32{1, 0}},
	)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Nothing of the rejected batch is visible.
	ctx := context.Background()
	nearest, err := s.NearestChunks(ctx, 1, []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Empty(t, nearest)

	lexical, err := s.MatchChunks(ctx, 1, "notice", 10)
	require.NoError(t, err)
	assert.Empty(t, lexical)

	doc, err := s.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, doc.ChunkCount)

	// The same chunk id can still be added afterwards.
	require.NoError(t, s.AddChunks(repository.Chunk{ID: 10, DocumentID: 1, Text: "30 days notice", Embedding: []float32{0, 1}}))
}

func TestStore_AddChunksRejectsDuplicateInBatch(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	s.AddDocument(repository.Document{ID: 1, OwnerID: 7, Filename: "lease.pdf"})

	err = s.AddChunks(
		repository.Chunk{ID: 10, DocumentID: 1, Text: "first"},
		repository.Chunk{ID: 10, DocumentID: 1, Text: "second"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 10 appears twice")

	chunks, err := s.GetChunks(context.Background(), []int64{10})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
