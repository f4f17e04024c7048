package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	rng := NewRNG(7)
	a := rng.Perm(10)
	rng.Reset()
	b := rng.Perm(10)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(7), rng.Seed())
}

func TestScoreTopDocs_Sorted(t *testing.T) {
	rng := NewRNG(1)
	td := rng.ScoreTopDocs(3, 50, 4)
	require.Len(t, td.ScoreDocs, 50)
	assert.Equal(t, int64(50), td.TotalHits.Value)

	for i := 1; i < len(td.ScoreDocs); i++ {
		prev, cur := td.ScoreDocs[i-1], td.ScoreDocs[i]
		assert.Equal(t, 3, cur.ShardIndex)
		if prev.Score == cur.Score {
			assert.Less(t, prev.Doc, cur.Doc)
		} else {
			assert.Greater(t, prev.Score, cur.Score)
		}
	}
}

func TestZipf_Range(t *testing.T) {
	rng := NewRNG(3)
	counts := make([]int, 5)
	for range 1000 {
		v := rng.Zipf(5, 1.5)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 5)
		counts[v]++
	}
	assert.Greater(t, counts[0], counts[4])
}
