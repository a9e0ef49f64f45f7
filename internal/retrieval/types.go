package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// Stage score keys recorded on every SearchCandidate. Ranks are zero-based.
const (
	ScoreVectorRank     = "vector_rank"
	ScoreVectorDistance = "vector_distance"
	ScoreKeywordRank    = "keyword_rank"
	ScoreKeywordScore   = "keyword_score"
)

// QueryEmbedder turns query text into the vector space of the stored chunks.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex answers nearest-neighbour queries scoped to one document.
type VectorIndex interface {
	NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]repository.VectorMatch, error)
}

// LexicalIndex answers full-text queries scoped to one document.
type LexicalIndex interface {
	MatchChunks(ctx context.Context, documentID int64, query string, limit int) ([]repository.LexicalMatch, error)
}

// ChunkLookup resolves chunk ids to their text.
type ChunkLookup interface {
	GetChunks(ctx context.Context, ids []int64) ([]*repository.Chunk, error)
}

// Scorer is the pairwise relevance oracle used by the cross-encoder stage.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// DocumentRef is one document the caller is authorized to search.
type DocumentRef struct {
	ID    int64
	Label string
}

func (d DocumentRef) label() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("document %d", d.ID)
}

// SearchCandidate is a chunk surfaced by at least one retrieval stage.
type SearchCandidate struct {
	ChunkID     int64              `json:"chunk_id"`
	DocumentID  int64              `json:"document_id"`
	Text        string             `json:"text"`
	Index       int                `json:"index"`
	StageScores map[string]float64 `json:"stage_scores,omitempty"`
}

// FusedCandidate is a SearchCandidate with its reciprocal rank fusion score.
type FusedCandidate struct {
	SearchCandidate
	HybridScore float64 `json:"hybrid_score"`
}

// RerankedCandidate is the final unit of output.
type RerankedCandidate struct {
	FusedCandidate
	RerankScore    float64 `json:"rerank_score"`
	SourceDocument string  `json:"source_document"`
}

// Outcome classifies a multi-document search.
type Outcome string

const (
	// OutcomeFound means at least one passage survived the pipeline.
	OutcomeFound Outcome = "found"

	// OutcomeEmptyScope means the caller owns no documents. Nothing was searched.
	OutcomeEmptyScope Outcome = "empty_scope"

	// OutcomeNoRelevantContent means documents were searched but none matched.
	OutcomeNoRelevantContent Outcome = "no_relevant_content"
)

// DocumentOutcome is the result of the per-document pipeline. Err is set when
// the document contributed nothing because of a failure.
type DocumentOutcome struct {
	DocumentID int64
	Label      string
	Candidates []RerankedCandidate
	Err        error
}

// AggregateResult is the result of a multi-document search.
type AggregateResult struct {
	Outcome   Outcome
	Passages  []RerankedCandidate
	Documents []DocumentOutcome
}

// Failed returns the documents that failed, in scope order.
func (r *AggregateResult) Failed() []DocumentOutcome {
	var failed []DocumentOutcome
	for _, d := range r.Documents {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

// sortReranked orders candidates by rerank score, then hybrid score, then
// document and chunk id, which is a total order.
func sortReranked(candidates []RerankedCandidate) {
	slices.SortFunc(candidates, func(a, b RerankedCandidate) int {
		if c := cmp.Compare(b.RerankScore, a.RerankScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.HybridScore, a.HybridScore); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DocumentID, b.DocumentID); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
}
