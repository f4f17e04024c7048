package testutil

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/shardreduce/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Zipf returns a Zipf-distributed value in [0,n) with exponent s.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// ScoreTopDocs generates a score-sorted TopDocs for one shard.
// Scores are drawn from `levels` distinct values so that ties are common.
// Docs are ordered by score descending, then doc ascending.
func (r *RNG) ScoreTopDocs(shardIndex, n, levels int) model.TopDocs {
	r.mu.Lock()
	docs := make([]model.ScoredDoc, n)
	for i := range docs {
		docs[i] = model.ScoredDoc{
			ShardIndex: shardIndex,
			Doc:        i,
			Score:      float32(r.rand.Intn(levels) + 1),
		}
	}
	r.mu.Unlock()

	SortByScore(docs)
	return model.TopDocs{
		TotalHits: model.TotalHits{Value: int64(n)},
		ScoreDocs: docs,
	}
}

// SortByScore orders docs by score descending, shard ascending, doc ascending.
func SortByScore(docs []model.ScoredDoc) {
	slices.SortFunc(docs, func(a, b model.ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ShardIndex, b.ShardIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.Doc, b.Doc)
	})
}

// Docs builds score-sorted docs for one shard from (doc, score) pairs given in rank order.
func Docs(shardIndex int, scores ...float32) []model.ScoredDoc {
	docs := make([]model.ScoredDoc, len(scores))
	for i, s := range scores {
		docs[i] = model.ScoredDoc{ShardIndex: shardIndex, Doc: i, Score: s}
	}
	return docs
}
