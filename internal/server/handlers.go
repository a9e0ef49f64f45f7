package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mehul-raul/contract-analysis-agent/internal/auth"
	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
	"github.com/mehul-raul/contract-analysis-agent/internal/retrieval"
	"github.com/mehul-raul/contract-analysis-agent/internal/service"
)

// maxTopK caps client-requested result sizes.
const maxTopK = 50

// SearchService is the user-scoped search API
type SearchService interface {
	SearchDocument(ctx context.Context, userID, documentID int64, query string, topK int) (*service.DocumentSearchResult, error)
	SearchAll(ctx context.Context, userID int64, query string, topK int) (*service.SearchAllResult, error)
}

type handlers struct {
	search SearchService
	logger *slog.Logger
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type documentSearchResponse struct {
	DocumentID int64                         `json:"document_id"`
	Filename   string                        `json:"filename"`
	Passages   []retrieval.RerankedCandidate `json:"passages"`
	Text       string                        `json:"text"`
}

type searchAllResponse struct {
	Outcome           retrieval.Outcome             `json:"outcome"`
	Passages          []retrieval.RerankedCandidate `json:"passages"`
	SearchedDocuments []int64                       `json:"searched_documents"`
	FailedDocuments   []int64                       `json:"failed_documents,omitempty"`
	Text              string                        `json:"text"`
}

func (h *handlers) searchAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.search.SearchAll(r.Context(), userID, req.Query, req.TopK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	searched := make([]int64, len(res.Documents))
	for i, d := range res.Documents {
		searched[i] = d.ID
	}

	writeJSON(w, http.StatusOK, searchAllResponse{
		Outcome:           res.Outcome,
		Passages:          nonNil(res.Passages),
		SearchedDocuments: searched,
		FailedDocuments:   res.FailedDocuments,
		Text:              service.FormatSearchAllResult(res),
	})
}

func (h *handlers) searchDocument(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	documentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || documentID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.search.SearchDocument(r.Context(), userID, documentID, req.Query, req.TopK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentSearchResponse{
		DocumentID: res.Document.ID,
		Filename:   res.Document.Filename,
		Passages:   nonNil(res.Passages),
		Text:       service.FormatDocumentResult(res),
	})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top_k must be between 0 and " + strconv.Itoa(maxTopK)})
		return req, false
	}
	return req, true
}

// writeError maps domain errors to HTTP status codes
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, msg = http.StatusNotFound, "document not found"
	case errors.Is(err, retrieval.ErrEmptyQuery):
		status, msg = http.StatusBadRequest, "query is required"
	case errors.Is(err, retrieval.ErrRetrievalUnavailable):
		status, msg = http.StatusServiceUnavailable, "retrieval backend unavailable"
	case errors.Is(err, retrieval.ErrRerankUnavailable):
		status, msg = http.StatusServiceUnavailable, "reranker unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "search timed out"
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		status, msg = 499, "request canceled"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("search failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil(p []retrieval.RerankedCandidate) []retrieval.RerankedCandidate {
	if p == nil {
		return []retrieval.RerankedCandidate{}
	}
	return p
}
