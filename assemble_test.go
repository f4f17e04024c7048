package shardreduce

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
	"github.com/hupe1980/shardreduce/topdocs"
)

// fetchAll serves, for every shard, one hit per requested doc id with ID
// "<shard>-<doc>".
func fetchAll(ids [][]int, skip ...int) FetchLookup {
	results := make(map[int]*FetchResult)
	for shard, docs := range ids {
		if len(docs) == 0 {
			continue
		}
		fr := &FetchResult{Target: target(shard)}
		for _, doc := range docs {
			fr.Hits = append(fr.Hits, model.Hit{ID: fmt.Sprintf("%d-%d", shard, doc)})
		}
		results[shard] = fr
	}
	for _, shard := range skip {
		delete(results, shard)
	}
	return func(shardIndex int) (*FetchResult, bool) {
		fr, ok := results[shardIndex]
		return fr, ok
	}
}

func hitIDs(hits []SearchHit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func TestAssemble(t *testing.T) {
	ctrl := NewController()

	t.Run("Empty", func(t *testing.T) {
		reduced, err := ctrl.ReduceQueryPhase(nil, NewRequest())
		require.NoError(t, err)

		resp := Assemble(reduced, nil)
		assert.Empty(t, resp.Hits.Hits)
		assert.NotNil(t, resp.Hits.Hits)
		assert.Equal(t, model.TotalHits{Relation: model.EqualTo}, *resp.Hits.TotalHits)
		assert.True(t, math.IsNaN(float64(resp.Hits.MaxScore)))
		assert.Equal(t, 1, resp.NumReducePhases)
	})

	t.Run("EmptyWithoutTotalHits", func(t *testing.T) {
		req := NewRequest()
		req.TrackTotalHitsUpTo = topdocs.TrackTotalHitsDisabled
		reduced, err := ctrl.ReduceQueryPhase(nil, req)
		require.NoError(t, err)
		require.True(t, reduced.IsEmptyResult)

		resp := Assemble(reduced, nil)
		assert.Nil(t, resp.Hits.TotalHits)
		assert.Empty(t, resp.Hits.Hits)
	})

	t.Run("ScoreOrder", func(t *testing.T) {
		results := []*PartialQueryResult{
			scoredResult(0, 6, 9, 6),
			scoredResult(1, 6, 8, 5),
			scoredResult(2, 6, 7, 4),
		}
		reduced, err := ctrl.ReduceQueryPhase(results, NewRequest())
		require.NoError(t, err)

		resp := Assemble(reduced, fetchAll(FillDocIdsToLoad(3, reduced.SortedTopDocs.ScoreDocs)))
		assert.Equal(t, []string{"0-0", "1-0", "2-0", "0-1", "1-1", "2-1"}, hitIDs(resp.Hits.Hits))
		assert.Equal(t, float32(9), resp.Hits.MaxScore)
		assert.Equal(t, float32(8), resp.Hits.Hits[1].Score)
		assert.Equal(t, 1, resp.Hits.Hits[1].ShardIndex)
		assert.Equal(t, target(1), resp.Hits.Hits[1].Target)
		assert.Equal(t, model.TotalHits{Value: 6, Relation: model.EqualTo}, *resp.Hits.TotalHits)
	})

	t.Run("MissingShardIsSkipped", func(t *testing.T) {
		results := []*PartialQueryResult{
			scoredResult(0, 6, 9, 6),
			scoredResult(1, 6, 8, 5),
			scoredResult(2, 6, 7, 4),
		}
		reduced, err := ctrl.ReduceQueryPhase(results, NewRequest())
		require.NoError(t, err)

		metrics := &BasicMetricsCollector{}
		lookup := fetchAll(FillDocIdsToLoad(3, reduced.SortedTopDocs.ScoreDocs), 2)

		var resp *SearchResponse
		require.NotPanics(t, func() {
			resp = Assemble(reduced, lookup, WithFetchMetrics(metrics), WithFetchLogger(NoopLogger()))
		})
		assert.Equal(t, []string{"0-0", "1-0", "0-1", "1-1"}, hitIDs(resp.Hits.Hits))
		assert.Equal(t, int64(2), metrics.GetStats().FetchMisses)
	})

	t.Run("Window", func(t *testing.T) {
		results := []*PartialQueryResult{
			scoredResult(0, 2, 10, 7, 4, 1),
			scoredResult(1, 2, 9, 6, 3, 0.5),
			scoredResult(2, 2, 8, 5, 2, 0.25),
		}
		for _, r := range results {
			r.From = 2
		}
		reduced, err := ctrl.ReduceQueryPhase(results, NewRequest())
		require.NoError(t, err)

		sorted := reduced.SortedTopDocs
		ids := FillDocIdsToLoad(3, sorted.ScoreDocs[:sorted.NumHits])
		assert.Equal(t, [][]int{{1}, nil, {0}}, ids)

		resp := Assemble(reduced, fetchAll(ids))
		assert.Equal(t, []string{"2-0", "0-1"}, hitIDs(resp.Hits.Hits))
	})

	t.Run("ScrollIgnoresFrom", func(t *testing.T) {
		a, b := scoredResult(0, 2, 3, 1), scoredResult(1, 2, 2)
		a.From, b.From = 5, 5
		reduced, err := ctrl.ReduceScroll([]*PartialQueryResult{a, b})
		require.NoError(t, err)
		lookup := fetchAll(FillDocIdsToLoad(2, reduced.SortedTopDocs.ScoreDocs))

		assert.Empty(t, Assemble(reduced, lookup).Hits.Hits)
		assert.Equal(t, []string{"0-0", "1-0"}, hitIDs(Assemble(reduced, lookup, WithIgnoreFrom()).Hits.Hits))
	})

	t.Run("FieldSortedScore", func(t *testing.T) {
		fields := []model.SortField{{Field: "price", Type: model.SortInt}, model.ScoreSort}
		mk := func(shard int, values ...[]any) *PartialQueryResult {
			r := NewPartialQueryResult(shard, target(shard))
			docs := make([]model.ScoredDoc, len(values))
			for i, v := range values {
				docs[i] = model.ScoredDoc{Doc: i, Score: model.NaNScore, SortValues: v}
			}
			r.SetTopDocs(model.TopDocs{TotalHits: model.TotalHits{Value: int64(len(values))}, ScoreDocs: docs, Fields: fields}, model.NaNScore)
			return r
		}
		results := []*PartialQueryResult{
			mk(0, []any{int64(1), float32(2)}, []any{int64(3), float32(1)}),
			mk(1, []any{int64(2), float32(5)}),
		}
		reduced, err := ctrl.ReduceQueryPhase(results, NewRequest())
		require.NoError(t, err)

		resp := Assemble(reduced, fetchAll(FillDocIdsToLoad(2, reduced.SortedTopDocs.ScoreDocs)))
		require.Len(t, resp.Hits.Hits, 3)
		assert.Equal(t, []string{"0-0", "1-0", "0-1"}, hitIDs(resp.Hits.Hits))
		assert.Equal(t, float32(5), resp.Hits.Hits[1].Score)
		assert.Equal(t, []any{int64(2), float32(5)}, resp.Hits.Hits[1].SortValues)
		assert.Equal(t, fields, resp.Hits.SortFields)
	})

	t.Run("RunsOutOfFetchedHits", func(t *testing.T) {
		reduced, err := ctrl.ReduceQueryPhase([]*PartialQueryResult{scoredResult(0, 10, 3, 2)}, NewRequest())
		require.NoError(t, err)

		short := func(int) (*FetchResult, bool) {
			return &FetchResult{Target: target(0), Hits: []model.Hit{{ID: "only"}}}, true
		}
		assert.Panics(t, func() { Assemble(reduced, short) })
	})
}

func TestAssembleCompletions(t *testing.T) {
	ctrl := NewController()

	a := scoredResult(0, 2, 10, 9)
	a.Suggestions = []suggest.Suggestion{
		completion("song", suggest.CompletionOption{Text: "alpha", Score: 3, Doc: 7}),
	}
	b := scoredResult(1, 2, 8)
	b.Suggestions = []suggest.Suggestion{
		completion("song", suggest.CompletionOption{Text: "beta", Score: 5, Doc: 2}),
	}

	reduced, err := ctrl.ReduceQueryPhase([]*PartialQueryResult{a, b}, NewRequest())
	require.NoError(t, err)

	sorted := reduced.SortedTopDocs
	assert.Equal(t, 2, sorted.NumHits)
	assert.Equal(t, []SuggestionSlice{{Name: "song", Offset: 2, Len: 2}}, sorted.SuggestionSlices)

	ids := FillDocIdsToLoad(2, sorted.ScoreDocs)
	assert.Equal(t, [][]int{{0, 1, 7}, {2}}, ids)

	resp := Assemble(reduced, fetchAll(ids))
	assert.Equal(t, []string{"0-0", "0-1"}, hitIDs(resp.Hits.Hits))

	require.Len(t, resp.Suggest, 1)
	song, ok := resp.Suggest[0].(*suggest.Completion)
	require.True(t, ok)
	require.Len(t, song.Options, 2)
	assert.Equal(t, "beta", song.Options[0].Text)
	require.NotNil(t, song.Options[0].Hit)
	assert.Equal(t, "1-2", song.Options[0].Hit.ID)
	require.NotNil(t, song.Options[1].Hit)
	assert.Equal(t, "0-7", song.Options[1].Hit.ID)

	original := reduced.Suggest[0].(*suggest.Completion)
	assert.Nil(t, original.Options[0].Hit)
}

func TestAssembleRejectsBrokenSuggestionSlices(t *testing.T) {
	reduced := newReducedQueryPhase(ReducedQueryPhase{
		TotalHits: &model.TotalHits{Value: 2},
		FetchHits: 2,
		Size:      10,
		Suggest: []suggest.Suggestion{
			completion("song",
				suggest.CompletionOption{Text: "a", Doc: 1},
				suggest.CompletionOption{Text: "b", Doc: 2}),
		},
		SortedTopDocs: SortedTopDocs{
			ScoreDocs:        []model.ScoredDoc{{Doc: 0}, {Doc: 1}, {Doc: 2}},
			NumHits:          1,
			SuggestionSlices: []SuggestionSlice{{Name: "song", Offset: 2, Len: 2}},
		},
		NumReducePhases: 1,
	})
	lookup := fetchAll([][]int{{0, 1, 2}})

	assert.Panics(t, func() { Assemble(reduced, lookup) })
}
