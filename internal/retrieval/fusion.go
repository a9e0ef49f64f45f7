package retrieval

import (
	"cmp"
	"slices"
)

// DefaultRRFK is the reciprocal rank fusion damping constant.
const DefaultRRFK = 60

// RankFusion merges rankings with Reciprocal Rank Fusion:
//
//	score(chunk) = sum over rankings containing chunk of 1 / (k + rank + 1)
//
// where rank is the zero-based position in that ranking.
type RankFusion struct {
	k int
}

// NewRankFusion creates a fusion stage. k <= 0 selects DefaultRRFK.
func NewRankFusion(k int) *RankFusion {
	if k <= 0 {
		k = DefaultRRFK
	}
	return &RankFusion{k: k}
}

// K returns the damping constant in use.
func (f *RankFusion) K() int {
	return f.k
}

// Fuse returns the hybrid score of every chunk present in either ranking.
// A chunk repeated inside one ranking only counts at its first position.
func (f *RankFusion) Fuse(vectorRanking, keywordRanking []int64) map[int64]float64 {
	scores := make(map[int64]float64, len(vectorRanking)+len(keywordRanking))
	for _, ranking := range [][]int64{vectorRanking, keywordRanking} {
		seen := make(map[int64]struct{}, len(ranking))
		for rank, id := range ranking {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			scores[id] += 1.0 / float64(f.k+rank+1)
		}
	}
	return scores
}

// ScoredChunk is a chunk id with its fused score.
type ScoredChunk struct {
	ChunkID int64
	Score   float64
}

// Rank orders a fused score map by descending score, ties broken by ascending
// chunk id.
func Rank(scores map[int64]float64) []ScoredChunk {
	ranked := make([]ScoredChunk, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredChunk{ChunkID: id, Score: score})
	}
	slices.SortFunc(ranked, func(a, b ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	return ranked
}
