package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mehul-raul/contract-analysis-agent/internal/metrics"
)

// Cross-encoder defaults.
const (
	DefaultRerankBatchSize   = 16
	DefaultBatchParallelism  = 2
	DefaultRerankCallTimeout = 10 * time.Second
)

// CrossEncoderReranker orders candidates by a pairwise relevance oracle.
// The hybrid score is only consulted to break exact ties.
type CrossEncoderReranker struct {
	scorer      Scorer
	batchSize   int
	parallelism int
	callTimeout time.Duration
	logger      *slog.Logger
}

// RerankerOption is a functional option for configuring CrossEncoderReranker.
type RerankerOption func(*CrossEncoderReranker)

// WithBatchSize sets how many passages go to the oracle per call.
func WithBatchSize(n int) RerankerOption {
	return func(r *CrossEncoderReranker) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBatchParallelism sets how many oracle calls may be in flight at once.
func WithBatchParallelism(n int) RerankerOption {
	return func(r *CrossEncoderReranker) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithCallTimeout bounds each oracle call.
func WithCallTimeout(d time.Duration) RerankerOption {
	return func(r *CrossEncoderReranker) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithRerankLogger sets the logger.
func WithRerankLogger(l *slog.Logger) RerankerOption {
	return func(r *CrossEncoderReranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewCrossEncoderReranker creates a reranker backed by scorer.
func NewCrossEncoderReranker(scorer Scorer, opts ...RerankerOption) *CrossEncoderReranker {
	r := &CrossEncoderReranker{
		scorer:      scorer,
		batchSize:   DefaultRerankBatchSize,
		parallelism: DefaultBatchParallelism,
		callTimeout: DefaultRerankCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores every candidate against query and returns them in descending
// rerank order, truncated to topK. topK <= 0 keeps everything. No oracle call
// is made for an empty candidate list.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []FusedCandidate, topK int) ([]RerankedCandidate, error) {
	if len(candidates) == 0 {
		return []RerankedCandidate{}, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Text
	}

	start := time.Now()
	scores, err := r.score(ctx, query, passages)
	metrics.StageDuration.WithLabelValues("rerank").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	out := make([]RerankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = RerankedCandidate{FusedCandidate: c, RerankScore: scores[i]}
	}
	sortReranked(out)

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// score splits passages into batches and fills scores in passage order.
func (r *CrossEncoderReranker) score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for lo := 0; lo < len(passages); lo += r.batchSize {
		hi := min(lo+r.batchSize, len(passages))
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.callTimeout)
			defer cancel()

			batch, err := r.scorer.Score(callCtx, query, passages[lo:hi])
			if err == nil {
				err = validateScores(batch, hi-lo)
			}
			if err != nil {
				metrics.RerankBatchesTotal.WithLabelValues("failed").Inc()
				r.logger.Warn("rerank batch failed",
					"offset", lo,
					"size", hi-lo,
					"error", err,
				)
				return fmt.Errorf("%w: batch at offset %d: %w", ErrRerankUnavailable, lo, err)
			}
			metrics.RerankBatchesTotal.WithLabelValues("ok").Inc()
			copy(scores[lo:hi], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func validateScores(scores []float64, want int) error {
	if len(scores) != want {
		return fmt.Errorf("oracle returned %d scores for %d passages", len(scores), want)
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("oracle returned non-finite score for passage %d", i)
		}
	}
	return nil
}
