// Package service scopes retrieval to the documents a user owns.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
)

// Searcher is the retrieval engine.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, doc retrieval.DocumentRef, topK int) ([]retrieval.RerankedCandidate, error)
	AggregateSearch(ctx context.Context, query string, docs []retrieval.DocumentRef, globalTopK int) (*retrieval.AggregateResult, error)
}

// DocumentSearchResult is the result of searching one document.
type DocumentSearchResult struct {
	Document *repository.Document
	Passages []retrieval.RerankedCandidate
}

// SearchAllResult is the result of searching every document a user owns.
type SearchAllResult struct {
	Outcome   retrieval.Outcome
	Passages  []retrieval.RerankedCandidate
	Documents []*repository.Document
	// FailedDocuments lists documents that contributed nothing because of an error.
	FailedDocuments []int64
}

// SearchService resolves ownership before any retrieval work starts.
type SearchService struct {
	docRepo  repository.DocumentRepository
	searcher Searcher
	logger   *slog.Logger
}

// SearchServiceOption is a functional option for configuring SearchService.
type SearchServiceOption func(*SearchService)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSearchService creates a new SearchService
func NewSearchService(docRepo repository.DocumentRepository, searcher Searcher, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		docRepo:  docRepo,
		searcher: searcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchDocument searches a single document. A document owned by someone
// else is reported as repository.ErrNotFound.
func (s *SearchService) SearchDocument(ctx context.Context, userID, documentID int64, query string, topK int) (*DocumentSearchResult, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.OwnerID != userID {
		s.logger.Warn("document access denied", "user_id", userID, "document_id", documentID)
		return nil, repository.ErrNotFound
	}

	passages, err := s.searcher.HybridSearch(ctx, query, retrieval.DocumentRef{ID: doc.ID, Label: doc.Filename}, topK)
	if err != nil {
		return nil, err
	}

	return &DocumentSearchResult{Document: doc, Passages: passages}, nil
}

// SearchAll searches every document the user owns.
func (s *SearchService) SearchAll(ctx context.Context, userID int64, query string, topK int) (*SearchAllResult, error) {
	docs, err := s.docRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	refs := make([]retrieval.DocumentRef, 0, len(docs))
	for _, d := range docs {
		if d.OwnerID != userID {
			continue
		}
		refs = append(refs, retrieval.DocumentRef{ID: d.ID, Label: d.Filename})
	}

	res, err := s.searcher.AggregateSearch(ctx, query, refs, topK)
	if err != nil {
		return nil, err
	}

	out := &SearchAllResult{
		Outcome:   res.Outcome,
		Passages:  res.Passages,
		Documents: docs,
	}
	for _, f := range res.Failed() {
		out.FailedDocuments = append(out.FailedDocuments, f.DocumentID)
	}
	return out, nil
}
