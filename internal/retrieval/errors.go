package retrieval

import "errors"

var (
	// ErrRetrievalUnavailable is returned when the embedding backend or the
	// candidate store did not answer.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRerankUnavailable is returned when the cross-encoder oracle failed.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrMalformedChunk is returned when the store hands back a chunk that does
	// not belong to the searched document, or loses a chunk it just ranked.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")
)
