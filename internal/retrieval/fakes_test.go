package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mehul-raul/contract-analysis-agent/internal/repository"
)

type fakeEmbedder struct {
	err   error
	block bool // wait for ctx instead of answering
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

// fakeStore ranks a document's chunks by their index for vector search and by
// query word overlap for keyword search.
type fakeStore struct {
	chunks   map[int64]*repository.Chunk
	byDoc    map[int64][]int64
	failing  map[int64]error
	blocking map[int64]bool
	foreign  map[int64]int64 // chunk id -> document id reported on lookup
	calls    atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:   make(map[int64]*repository.Chunk),
		byDoc:    make(map[int64][]int64),
		failing:  make(map[int64]error),
		blocking: make(map[int64]bool),
		foreign:  make(map[int64]int64),
	}
}

// addDoc registers chunks with ids documentID*100+i.
func (f *fakeStore) addDoc(documentID int64, texts ...string) {
	for i, text := range texts {
		id := documentID*100 + int64(i)
		f.chunks[id] = &repository.Chunk{ID: id, DocumentID: documentID, Text: text, Index: i}
		f.byDoc[documentID] = append(f.byDoc[documentID], id)
	}
}

func (f *fakeStore) guard(ctx context.Context, documentID int64) error {
	f.calls.Add(1)
	if f.blocking[documentID] {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.failing[documentID]
}

func (f *fakeStore) NearestChunks(ctx context.Context, documentID int64, _ []float32, limit int) ([]repository.VectorMatch, error) {
	if err := f.guard(ctx, documentID); err != nil {
		return nil, err
	}
	var out []repository.VectorMatch
	for _, id := range f.byDoc[documentID] {
		out = append(out, repository.VectorMatch{ChunkID: id, Distance: float64(f.chunks[id].Index) * 0.1})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MatchChunks(ctx context.Context, documentID int64, query string, limit int) ([]repository.LexicalMatch, error) {
	if err := f.guard(ctx, documentID); err != nil {
		return nil, err
	}
	var out []repository.LexicalMatch
	for _, id := range f.byDoc[documentID] {
		if n := overlap(query, f.chunks[id].Text); n > 0 {
			out = append(out, repository.LexicalMatch{ChunkID: id, Score: float64(n)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetChunks(_ context.Context, ids []int64) ([]*repository.Chunk, error) {
	f.calls.Add(1)
	var out []*repository.Chunk
	for _, id := range ids {
		c, ok := f.chunks[id]
		if !ok {
			continue
		}
		cp := *c
		if doc, ok := f.foreign[id]; ok {
			cp.DocumentID = doc
		}
		out = append(out, &cp)
	}
	return out, nil
}

// overlapScorer scores a passage by how many query words it contains.
type overlapScorer struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	err     error
	failOn  string // fail any batch containing this passage
}

func (s *overlapScorer) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	s.mu.Lock()
	s.calls++
	s.batches = append(s.batches, passages)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	scores := make([]float64, len(passages))
	for i, p := range passages {
		if s.failOn != "" && p == s.failOn {
			return nil, errors.New("oracle rejected passage")
		}
		scores[i] = float64(overlap(query, p))
	}
	return scores, nil
}

func (s *overlapScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func overlap(query, text string) int {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	n := 0
	for _, q := range strings.Fields(strings.ToLower(query)) {
		if _, ok := set[q]; ok {
			n++
		}
	}
	return n
}
