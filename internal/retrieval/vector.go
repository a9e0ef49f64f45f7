package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mehul-raul/contract-analysis-agent/internal/metrics"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// VectorStage ranks a document's chunks by embedding distance to the query.
type VectorStage struct {
	index VectorIndex
}

// NewVectorStage creates a vector search stage over index.
func NewVectorStage(index VectorIndex) *VectorStage {
	return &VectorStage{index: index}
}

// Search returns up to limit chunks of the document, nearest first, ties broken
// by ascending chunk id.
func (s *VectorStage) Search(ctx context.Context, embedding []float32, documentID int64, limit int) ([]repository.VectorMatch, error) {
	if limit <= 0 {
		return []repository.VectorMatch{}, nil
	}

	start := time.Now()
	matches, err := s.index.NearestChunks(ctx, documentID, embedding, limit)
	metrics.StageDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: vector search on document %d: %w", ErrRetrievalUnavailable, documentID, err)
	}

	// Backends disagree on tie order; fix it here.
	matches = slices.Clone(matches)
	slices.SortStableFunc(matches, func(a, b repository.VectorMatch) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	matches = firstByChunk(matches, func(m repository.VectorMatch) int64 { return m.ChunkID })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// firstByChunk keeps the first occurrence of every chunk id, in order.
// It reuses the backing array of items.
func firstByChunk[T any](items []T, id func(T) int64) []T {
	seen := make(map[int64]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, dup := seen[id(it)]; dup {
			continue
		}
		seen[id(it)] = struct{}{}
		out = append(out, it)
	}
	return out
}
