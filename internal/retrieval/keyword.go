package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/mehul-raul/contract-analysis-agent/internal/metrics"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// KeywordStage ranks a document's chunks by lexical relevance. Chunks that do
// not match any query term are absent from the result, not scored zero.
type KeywordStage struct {
	index LexicalIndex
}

// NewKeywordStage creates a keyword search stage over index.
func NewKeywordStage(index LexicalIndex) *KeywordStage {
	return &KeywordStage{index: index}
}

// Search returns up to limit matching chunks, most relevant first, ties broken
// by ascending chunk id. An empty result is normal.
func (s *KeywordStage) Search(ctx context.Context, query string, documentID int64, limit int) ([]repository.LexicalMatch, error) {
	if limit <= 0 || !hasTerms(query) {
		return []repository.LexicalMatch{}, nil
	}

	start := time.Now()
	matches, err := s.index.MatchChunks(ctx, documentID, query, limit)
	metrics.StageDuration.WithLabelValues("keyword").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search on document %d: %w", ErrRetrievalUnavailable, documentID, err)
	}

	matches = slices.Clone(matches)
	slices.SortStableFunc(matches, func(a, b repository.LexicalMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	matches = firstByChunk(matches, func(m repository.LexicalMatch) int64 { return m.ChunkID })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func hasTerms(query string) bool {
	return strings.IndexFunc(query, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
