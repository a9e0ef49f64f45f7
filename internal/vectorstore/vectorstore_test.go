package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

type fakeSource map[int64][]*repository.Chunk

func (f fakeSource) ListEmbeddedChunks(_ context.Context, documentID int64) ([]*repository.Chunk, error) {
	if documentID < 0 {
		return nil, errors.New("boom")
	}
	return f[documentID], nil
}

type recordingStore struct {
	deleted  []int64
	upserts  [][]int64
	failOnUp bool
}

func (r *recordingStore) EnsureCollection(context.Context, int) error { return nil }

func (r *recordingStore) Upsert(_ context.Context, chunks []*repository.Chunk) error {
	if r.failOnUp {
		return errors.New("qdrant unavailable")
	}
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	r.upserts = append(r.upserts, ids)
	return nil
}

func (r *recordingStore) NearestChunks(context.Context, int64, []float32, int) ([]repository.VectorMatch, error) {
	return nil, nil
}

func (r *recordingStore) DeleteDocument(_ context.Context, documentID int64) error {
	r.deleted = append(r.deleted, documentID)
	return nil
}

func chunks(docID int64, ids ...int64) []*repository.Chunk {
	out := make([]*repository.Chunk, len(ids))
	for i, id := range ids {
		out[i] = &repository.Chunk{ID: id, DocumentID: docID, Embedding: []float32{1, 2}}
	}
	return out
}

func TestSync_ReplacesDocumentsInBatches(t *testing.T) {
	source := fakeSource{
		1: chunks(1, 10, 11, 12),
		2: chunks(2, 20),
	}
	store := &recordingStore{}

	stats, err := Sync(context.Background(), source, store, []int64{1, 2, 3}, 2)
	require.NoError(t, err)

	assert.Equal(t, SyncStats{Documents: 3, Chunks: 4}, stats)
	assert.Equal(t, []int64{1, 2, 3}, store.deleted)
	assert.Equal(t, [][]int64{{10, 11}, {12}, {20}}, store.upserts)
}

func TestSync_Errors(t *testing.T) {
	_, err := Sync(context.Background(), fakeSource{}, &recordingStore{}, []int64{-1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document -1")

	stats, err := Sync(context.Background(), fakeSource{1: chunks(1, 10)}, &recordingStore{failOnUp: true}, []int64{1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant unavailable")
	assert.Zero(t, stats.Documents)
}
