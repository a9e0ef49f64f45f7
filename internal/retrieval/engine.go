// Package retrieval implements hybrid retrieval over a user's documents:
// vector and keyword search per document, reciprocal rank fusion, and
// cross-encoder reranking of the pooled candidates.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mehul-raul/contract-analysis-agent/internal/metrics"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	// RRFK is the reciprocal rank fusion constant.
	RRFK int

	// PerDocumentCandidateLimit bounds each stage and the fused set per
	// document in multi-document mode.
	PerDocumentCandidateLimit int

	// PerDocumentRerankLimit is how many candidates each document contributes
	// to the global pool.
	PerDocumentRerankLimit int

	// SingleDocumentCandidateLimit bounds each stage in single-document mode.
	SingleDocumentCandidateLimit int

	// GlobalTopK is the multi-document result size when the caller passes 0.
	GlobalTopK int

	// MaxConcurrentDocuments caps in-flight per-document pipelines.
	MaxConcurrentDocuments int

	// DocumentTimeout bounds one document's pipeline.
	DocumentTimeout time.Duration

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration

	// RescorePool rescores the pooled survivors in one oracle pass so scores
	// from different documents come from the same call.
	RescorePool bool
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		RRFK:                         DefaultRRFK,
		PerDocumentCandidateLimit:    5,
		PerDocumentRerankLimit:       3,
		SingleDocumentCandidateLimit: 10,
		GlobalTopK:                   5,
		MaxConcurrentDocuments:       4,
		DocumentTimeout:              15 * time.Second,
		EmbedTimeout:                 10 * time.Second,
		RescorePool:                  true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RRFK <= 0 {
		o.RRFK = d.RRFK
	}
	if o.PerDocumentCandidateLimit <= 0 {
		o.PerDocumentCandidateLimit = d.PerDocumentCandidateLimit
	}
	if o.PerDocumentRerankLimit <= 0 {
		o.PerDocumentRerankLimit = d.PerDocumentRerankLimit
	}
	if o.SingleDocumentCandidateLimit <= 0 {
		o.SingleDocumentCandidateLimit = d.SingleDocumentCandidateLimit
	}
	if o.GlobalTopK <= 0 {
		o.GlobalTopK = d.GlobalTopK
	}
	if o.MaxConcurrentDocuments <= 0 {
		o.MaxConcurrentDocuments = d.MaxConcurrentDocuments
	}
	if o.DocumentTimeout <= 0 {
		o.DocumentTimeout = d.DocumentTimeout
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = d.EmbedTimeout
	}
	return o
}

// Engine runs the retrieval pipeline. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	embedder QueryEmbedder
	vector   *VectorStage
	keyword  *KeywordStage
	fusion   *RankFusion
	chunks   ChunkLookup
	reranker *CrossEncoderReranker
	opts     Options
	logger   *slog.Logger
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*Engine)

// WithOptions sets the tuning options.
func WithOptions(opts Options) EngineOption {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVectorIndex replaces the vector backend, e.g. with Qdrant.
func WithVectorIndex(index VectorIndex) EngineOption {
	return func(e *Engine) {
		e.vector = NewVectorStage(index)
	}
}

// NewEngine creates an engine over a candidate store that serves vector,
// keyword and point-lookup queries.
func NewEngine(
	embedder QueryEmbedder,
	store repository.ChunkRepository,
	reranker *CrossEncoderReranker,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		embedder: embedder,
		vector:   NewVectorStage(store),
		keyword:  NewKeywordStage(store),
		chunks:   store,
		reranker: reranker,
		opts:     DefaultOptions(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.opts = e.opts.withDefaults()
	e.fusion = NewRankFusion(e.opts.RRFK)
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// HybridSearch runs the pipeline over a single document and returns up to
// topK passages. Every failure is returned to the caller.
func (e *Engine) HybridSearch(ctx context.Context, query string, doc DocumentRef, topK int) ([]RerankedCandidate, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = e.opts.GlobalTopK
	}

	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("single", "error").Inc()
		return nil, err
	}

	docCtx, cancel := context.WithTimeout(ctx, e.opts.DocumentTimeout)
	defer cancel()

	passages, err := e.searchDocument(docCtx, query, embedding, doc, e.opts.SingleDocumentCandidateLimit, topK)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("single", "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	outcome := OutcomeFound
	if len(passages) == 0 {
		outcome = OutcomeNoRelevantContent
	}
	metrics.RetrievalRequestsTotal.WithLabelValues("single", string(outcome)).Inc()

	e.logger.Debug("single document search complete",
		"document_id", doc.ID,
		"passages", len(passages),
		"duration", time.Since(start),
	)
	return passages, nil
}

// AggregateSearch runs the pipeline over every document in scope concurrently,
// pools each document's best candidates and returns up to globalTopK passages.
// A failing document contributes nothing; the request only fails when every
// document failed, the query could not be embedded, or the pooled rescoring
// failed. An empty scope returns OutcomeEmptyScope without touching any
// collaborator.
func (e *Engine) AggregateSearch(ctx context.Context, query string, docs []DocumentRef, globalTopK int) (*AggregateResult, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("multi").Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if globalTopK <= 0 {
		globalTopK = e.opts.GlobalTopK
	}

	docs = dedupeDocuments(docs)
	if len(docs) == 0 {
		metrics.RetrievalRequestsTotal.WithLabelValues("multi", string(OutcomeEmptyScope)).Inc()
		return &AggregateResult{Outcome: OutcomeEmptyScope, Passages: []RerankedCandidate{}}, nil
	}

	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("multi", "error").Inc()
		return nil, err
	}

	outcomes := e.fanOut(ctx, query, embedding, docs)
	if err := ctx.Err(); err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("multi", "error").Inc()
		return nil, err
	}

	var (
		pool   []RerankedCandidate
		errs   []error
		seen   = make(map[int64]struct{})
		labels = make(map[int64]string, len(docs))
	)
	for _, o := range outcomes {
		labels[o.DocumentID] = o.Label
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", o.DocumentID, o.Err))
			continue
		}
		for _, c := range o.Candidates {
			if _, dup := seen[c.ChunkID]; dup {
				continue
			}
			seen[c.ChunkID] = struct{}{}
			pool = append(pool, c)
		}
	}

	if len(errs) == len(docs) {
		metrics.RetrievalRequestsTotal.WithLabelValues("multi", "error").Inc()
		return nil, fmt.Errorf("all %d documents failed: %w", len(docs), errors.Join(errs...))
	}

	passages, err := e.rankPool(ctx, query, pool, labels, globalTopK)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("multi", "error").Inc()
		return nil, err
	}

	result := &AggregateResult{
		Outcome:   OutcomeFound,
		Passages:  passages,
		Documents: outcomes,
	}
	if len(passages) == 0 {
		result.Outcome = OutcomeNoRelevantContent
	}
	metrics.RetrievalRequestsTotal.WithLabelValues("multi", string(result.Outcome)).Inc()

	e.logger.Info("aggregate search complete",
		"documents", len(docs),
		"failed_documents", len(errs),
		"pooled", len(pool),
		"passages", len(passages),
		"outcome", result.Outcome,
		"duration", time.Since(start),
	)
	return result, nil
}

// fanOut runs the per-document pipeline for every document with bounded
// concurrency. Outcomes are returned in scope order.
func (e *Engine) fanOut(ctx context.Context, query string, embedding []float32, docs []DocumentRef) []DocumentOutcome {
	outcomes := make([]DocumentOutcome, len(docs))

	var g errgroup.Group
	g.SetLimit(e.opts.MaxConcurrentDocuments)

	for i, doc := range docs {
		outcomes[i] = DocumentOutcome{DocumentID: doc.ID, Label: doc.label()}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}

			docCtx, cancel := context.WithTimeout(ctx, e.opts.DocumentTimeout)
			defer cancel()

			candidates, err := e.searchDocument(docCtx, query, embedding, doc,
				e.opts.PerDocumentCandidateLimit, e.opts.PerDocumentRerankLimit)
			if err != nil {
				status := "failed"
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					status = "timeout"
				}
				metrics.DocumentSearchesTotal.WithLabelValues(status).Inc()
				e.logger.Warn("document search failed",
					"document_id", doc.ID,
					"label", doc.label(),
					"status", status,
					"error", err,
				)
				outcomes[i].Err = err
				return nil
			}

			metrics.DocumentSearchesTotal.WithLabelValues("ok").Inc()
			outcomes[i].Candidates = candidates
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// rankPool orders the pooled survivors and truncates to topK.
func (e *Engine) rankPool(ctx context.Context, query string, pool []RerankedCandidate, labels map[int64]string, topK int) ([]RerankedCandidate, error) {
	if len(pool) == 0 {
		return []RerankedCandidate{}, nil
	}

	if !e.opts.RescorePool {
		sortReranked(pool)
		if len(pool) > topK {
			pool = pool[:topK]
		}
		return pool, nil
	}

	fused := make([]FusedCandidate, len(pool))
	for i, c := range pool {
		fused[i] = c.FusedCandidate
	}
	rescored, err := e.reranker.Rerank(ctx, query, fused, topK)
	if err != nil {
		return nil, fmt.Errorf("rescoring pooled candidates: %w", err)
	}
	for i := range rescored {
		rescored[i].SourceDocument = labels[rescored[i].DocumentID]
	}
	return rescored, nil
}

// searchDocument runs vector search, keyword search, fusion and reranking on
// one document.
func (e *Engine) searchDocument(ctx context.Context, query string, embedding []float32, doc DocumentRef, candidateLimit, rerankLimit int) ([]RerankedCandidate, error) {
	vectorHits, err := e.vector.Search(ctx, embedding, doc.ID, candidateLimit)
	if err != nil {
		return nil, err
	}
	keywordHits, err := e.keyword.Search(ctx, query, doc.ID, candidateLimit)
	if err != nil {
		return nil, err
	}

	stageScores := make(map[int64]map[string]float64, len(vectorHits)+len(keywordHits))
	scoresFor := func(id int64) map[string]float64 {
		s, ok := stageScores[id]
		if !ok {
			s = make(map[string]float64, 4)
			stageScores[id] = s
		}
		return s
	}

	vectorRanking := make([]int64, len(vectorHits))
	for rank, h := range vectorHits {
		vectorRanking[rank] = h.ChunkID
		s := scoresFor(h.ChunkID)
		s[ScoreVectorRank] = float64(rank)
		s[ScoreVectorDistance] = h.Distance
	}
	keywordRanking := make([]int64, len(keywordHits))
	for rank, h := range keywordHits {
		keywordRanking[rank] = h.ChunkID
		s := scoresFor(h.ChunkID)
		s[ScoreKeywordRank] = float64(rank)
		s[ScoreKeywordScore] = h.Score
	}

	ranked := Rank(e.fusion.Fuse(vectorRanking, keywordRanking))
	if len(ranked) > candidateLimit {
		ranked = ranked[:candidateLimit]
	}
	if len(ranked) == 0 {
		return []RerankedCandidate{}, nil
	}

	fused, err := e.lookup(ctx, doc.ID, ranked, stageScores)
	if err != nil {
		return nil, err
	}

	reranked, err := e.reranker.Rerank(ctx, query, fused, rerankLimit)
	if err != nil {
		return nil, fmt.Errorf("document %d: %w", doc.ID, err)
	}
	for i := range reranked {
		reranked[i].SourceDocument = doc.label()
	}
	return reranked, nil
}

// lookup resolves fused chunk ids to candidates, preserving fused order.
func (e *Engine) lookup(ctx context.Context, documentID int64, ranked []ScoredChunk, stageScores map[int64]map[string]float64) ([]FusedCandidate, error) {
	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ChunkID
	}

	start := time.Now()
	chunks, err := e.chunks.GetChunks(ctx, ids)
	metrics.StageDuration.WithLabelValues("lookup").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: chunk lookup on document %d: %w", ErrRetrievalUnavailable, documentID, err)
	}

	byID := make(map[int64]*repository.Chunk, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if c.DocumentID != documentID {
			return nil, fmt.Errorf("%w: chunk %d belongs to document %d, not %d", ErrMalformedChunk, c.ID, c.DocumentID, documentID)
		}
		byID[c.ID] = c
	}

	fused := make([]FusedCandidate, len(ranked))
	for i, r := range ranked {
		c, ok := byID[r.ChunkID]
		if !ok {
			return nil, fmt.Errorf("%w: chunk %d of document %d not found", ErrMalformedChunk, r.ChunkID, documentID)
		}
		fused[i] = FusedCandidate{
			SearchCandidate: SearchCandidate{
				ChunkID:     c.ID,
				DocumentID:  c.DocumentID,
				Text:        c.Text,
				Index:       c.Index,
				StageScores: stageScores[c.ID],
			},
			HybridScore: r.Score,
		}
	}
	return fused, nil
}

// embedQuery embeds the query under EmbedTimeout. Expiry of that deadline is
// an unavailable backend; cancellation of ctx is returned as is.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
	defer cancel()

	start := time.Now()
	embedding, err := e.embedder.Embed(embedCtx, query)
	metrics.StageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalUnavailable, err)
	}
	return embedding, nil
}

func dedupeDocuments(docs []DocumentRef) []DocumentRef {
	seen := make(map[int64]struct{}, len(docs))
	out := make([]DocumentRef, 0, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}
