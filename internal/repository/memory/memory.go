// Package memory provides an in-process candidate store for documents and chunks.
//
// Lexical matching is backed by an in-memory bleve index using the English
// analyzer (lowercasing, stop words, Porter stemming), which mirrors the
// behaviour of Postgres' english text search configuration: a chunk that
// shares no stemmed term with the query is not returned at all.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

const (
	textField     = "text"
	documentField = "document"
)

// Store holds documents and chunks in memory
type Store struct {
	mu        sync.RWMutex
	documents map[int64]*repository.Document
	chunks    map[int64]*repository.Chunk
	byDoc     map[int64][]int64
	index     bleve.Index
}

// New creates an empty store
func New() (*Store, error) {
	docMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = false
	docMapping.AddFieldMappingsAt(textField, text)

	scope := bleve.NewTextFieldMapping()
	scope.Analyzer = keyword.Name
	scope.Store = false
	docMapping.AddFieldMappingsAt(documentField, scope)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create text index: %w", err)
	}

	return &Store{
		documents: make(map[int64]*repository.Document),
		chunks:    make(map[int64]*repository.Chunk),
		byDoc:     make(map[int64][]int64),
		index:     index,
	}, nil
}

// Close releases the text index
func (s *Store) Close() error {
	return s.index.Close()
}

// AddDocument registers a document. Its ChunkCount is maintained by AddChunks.
func (s *Store) AddDocument(doc repository.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := doc
	d.ChunkCount = len(s.byDoc[doc.ID])
	s.documents[doc.ID] = &d
}

// AddChunks indexes chunks of already registered documents. The call is all
// or nothing: on error no chunk of the batch is visible.
func (s *Store) AddChunks(chunks ...repository.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	pending := make(map[int64]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := s.documents[c.DocumentID]; !ok {
			return fmt.Errorf("chunk %d: document %d: %w", c.ID, c.DocumentID, repository.ErrNotFound)
		}
		if _, exists := s.chunks[c.ID]; exists {
			return fmt.Errorf("chunk %d already exists", c.ID)
		}
		if _, dup := pending[c.ID]; dup {
			return fmt.Errorf("chunk %d appears twice", c.ID)
		}
		pending[c.ID] = struct{}{}

		if err := batch.Index(indexID(c.ID), map[string]any{
			textField:     c.Text,
			documentField: strconv.FormatInt(c.DocumentID, 10),
		}); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", c.ID, err)
		}
	}

	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}

	for _, c := range chunks {
		chunk := c
		s.chunks[c.ID] = &chunk
		s.byDoc[c.DocumentID] = append(s.byDoc[c.DocumentID], c.ID)
		s.documents[c.DocumentID].ChunkCount++
	}
	return nil
}

// GetByID retrieves a document by ID
func (s *Store) GetByID(_ context.Context, id int64) (*repository.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := *doc
	return &d, nil
}

// ListByOwner retrieves every document owned by a user, ordered by id
func (s *Store) ListByOwner(_ context.Context, ownerID int64) ([]*repository.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*repository.Document
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			d := *doc
			docs = append(docs, &d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// NearestChunks scans the document's chunks and returns the closest by L2 distance
func (s *Store) NearestChunks(ctx context.Context, documentID int64, embedding []float32, limit int) ([]repository.VectorMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]repository.VectorMatch, 0, len(s.byDoc[documentID]))
	for _, id := range s.byDoc[documentID] {
		chunk := s.chunks[id]
		if len(chunk.Embedding) == 0 {
			continue
		}
		if len(chunk.Embedding) != len(embedding) {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d, query dimension %d",
				id, len(chunk.Embedding), len(embedding))
		}
		matches = append(matches, repository.VectorMatch{
			ChunkID:  id,
			Distance: l2Distance(chunk.Embedding, embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})

	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// MatchChunks runs a full-text match query restricted to one document
func (s *Store) MatchChunks(ctx context.Context, documentID int64, query string, limit int) ([]repository.LexicalMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField(textField)

	scope := bleve.NewTermQuery(strconv.FormatInt(documentID, 10))
	scope.SetField(documentField)

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(scope, match), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search text index: %w", err)
	}

	matches := make([]repository.LexicalMatch, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid indexed chunk id %q: %w", hit.ID, err)
		}
		matches = append(matches, repository.LexicalMatch{ChunkID: id, Score: hit.Score})
	}
	return matches, nil
}

// GetChunks looks up chunks by id
func (s *Store) GetChunks(_ context.Context, ids []int64) ([]*repository.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := make([]*repository.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			chunk := *c
			chunks = append(chunks, &chunk)
		}
	}
	return chunks, nil
}

// Fixture is the JSON layout accepted by Load
type Fixture struct {
	Documents []struct {
		ID       int64  `json:"id"`
		OwnerID  int64  `json:"owner_id"`
		Filename string `json:"filename"`
	} `json:"documents"`
	Chunks []struct {
		ID         int64     `json:"id"`
		DocumentID int64     `json:"document_id"`
		Text       string    `json:"text"`
		Index      int       `json:"index"`
		Embedding  []float32 `json:"embedding"`
	} `json:"chunks"`
}

// Load builds a store from a JSON fixture
func Load(r io.Reader) (*Store, error) {
	var fx Fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}

	s, err := New()
	if err != nil {
		return nil, err
	}
	for _, d := range fx.Documents {
		s.AddDocument(repository.Document{ID: d.ID, OwnerID: d.OwnerID, Filename: d.Filename})
	}
	chunks := make([]repository.Chunk, 0, len(fx.Chunks))
	for _, c := range fx.Chunks {
		chunks = append(chunks, repository.Chunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Index:      c.Index,
			Embedding:  c.Embedding,
		})
	}
	if err := s.AddChunks(chunks...); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// indexID zero-pads ids so the index's lexical id order equals numeric order
func indexID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

var (
	_ repository.DocumentRepository = (*Store)(nil)
	_ repository.ChunkRepository    = (*Store)(nil)
)
