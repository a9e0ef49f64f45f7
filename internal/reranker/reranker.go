// Package reranker provides pairwise relevance oracles for the retrieval
// engine's cross-encoder stage.
//
// A Scorer sees the query and each passage together, which is slower than
// comparing independently computed embeddings but much more precise when the
// hybrid candidates have similar scores.
//
// # Trade-offs
//
//   - CrossEncoder: a dedicated scoring service (TEI-style /rerank). Fast and
//     deterministic, requires the service to be deployed.
//   - LLMScorer: asks a local LLM to judge relevance. No extra service, but
//     adds seconds per batch and is only as stable as the model's JSON output.
package reranker

import (
	"context"
)

// Scorer is a pairwise relevance oracle.
type Scorer interface {
	// Score returns one relevance score per passage, in passage order.
	// Higher is more relevant. Scores are only comparable within one query.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName identifies the model behind the scores.
	ModelName() string
}
