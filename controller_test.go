package shardreduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
	"github.com/hupe1980/shardreduce/topdocs"
)

func completion(name string, options ...suggest.CompletionOption) *suggest.Completion {
	return &suggest.Completion{SuggestName: name, Options: options}
}

func TestReduceQueryPhase(t *testing.T) {
	ctrl := NewController()

	t.Run("Empty", func(t *testing.T) {
		reduced, err := ctrl.ReduceQueryPhase(nil, NewRequest())
		require.NoError(t, err)
		assert.True(t, reduced.IsEmptyResult)
		assert.Equal(t, EmptySortedTopDocs, reduced.SortedTopDocs)
		assert.Equal(t, 1, reduced.NumReducePhases)
	})

	t.Run("TotalHitsDisabled", func(t *testing.T) {
		req := NewRequest()
		req.TrackTotalHitsUpTo = topdocs.TrackTotalHitsDisabled
		reduced, err := ctrl.ReduceQueryPhase([]*PartialQueryResult{scoredResult(0, 10, 3, 2)}, req)
		require.NoError(t, err)
		assert.Nil(t, reduced.TotalHits)
		assert.Equal(t, int64(2), reduced.FetchHits)
	})

	t.Run("RequestWindow", func(t *testing.T) {
		unsized := func() []*PartialQueryResult {
			return []*PartialQueryResult{
				scoredResult(0, 0, 9, 6),
				scoredResult(1, 0, 8, 5),
				scoredResult(2, 0, 7, 4),
			}
		}

		reduced, err := ctrl.ReduceQueryPhase(unsized(), NewRequest())
		require.NoError(t, err)
		assert.Equal(t, DefaultSize, reduced.Size)
		assert.Equal(t, 6, reduced.SortedTopDocs.NumHits)
		assert.Len(t, Assemble(reduced, fetchAll(FillDocIdsToLoad(3, reduced.SortedTopDocs.ScoreDocs))).Hits.Hits, 6)

		req := NewRequest()
		req.From, req.Size = 2, 2
		reduced, err = ctrl.ReduceQueryPhase(unsized(), req)
		require.NoError(t, err)
		assert.Equal(t, 2, reduced.From)
		assert.Equal(t, []docRef{{2, 0}, {0, 1}}, docRefs(reduced.SortedTopDocs.ScoreDocs))
	})

	t.Run("FlagsAreMerged", func(t *testing.T) {
		early := true
		a := scoredResult(0, 10, 3)
		a.TimedOut = true
		b := scoredResult(1, 10, 2)
		b.TerminatedEarly = &early

		reduced, err := ctrl.ReduceQueryPhase([]*PartialQueryResult{a, b}, NewRequest())
		require.NoError(t, err)
		assert.True(t, reduced.TimedOut)
		require.NotNil(t, reduced.TerminatedEarly)
		assert.True(t, *reduced.TerminatedEarly)
	})

	t.Run("PipelinesRunInFinalReduction", func(t *testing.T) {
		req := NewRequest()
		req.Pipelines = []aggs.Pipeline{{Name: "total_sum", Type: aggs.PipelineSumBucket, BucketsPath: "by_day"}}

		results := make([]*PartialQueryResult, 2)
		for i := range results {
			results[i] = scoredResult(i, 10, 1)
			results[i].SetAggs(aggs.Aggregations{&aggs.Histogram{
				AggName:     "by_day",
				Interval:    1,
				MinDocCount: 1,
				Buckets: []aggs.HistogramBucket{
					{Key: 0, DocCount: 2},
					{Key: float64(i + 1), DocCount: 3},
				},
			}})
		}

		reduced, err := ctrl.ReduceQueryPhase(results, req)
		require.NoError(t, err)
		sum, ok := reduced.Aggregations.Get("total_sum").(aggs.SingleValue)
		require.True(t, ok)
		assert.Equal(t, 10.0, sum.Value())
	})

	t.Run("SuggestionTypeMismatch", func(t *testing.T) {
		a := scoredResult(0, 10, 1)
		a.Suggestions = []suggest.Suggestion{completion("x")}
		b := scoredResult(1, 10, 1)
		b.Suggestions = []suggest.Suggestion{&suggest.Term{SuggestName: "x"}}

		_, err := ctrl.ReduceQueryPhase([]*PartialQueryResult{a, b}, NewRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, suggest.ErrTypeMismatch)
		var rf *ErrReduceFailed
		require.ErrorAs(t, err, &rf)
		assert.True(t, rf.Final)
		assert.Equal(t, 1, rf.Phase)
	})
}

func TestReduceScroll(t *testing.T) {
	ctrl := NewController()

	scrollResults := func() []*PartialQueryResult {
		a, b := scoredResult(0, 2, 3, 1), scoredResult(1, 2, 2)
		a.From, b.From = 5, 5
		return []*PartialQueryResult{a, b}
	}

	reduced, err := ctrl.ReduceScroll(scrollResults())
	require.NoError(t, err)
	assert.Equal(t, []docRef{{0, 0}, {1, 0}}, docRefs(reduced.SortedTopDocs.ScoreDocs))
	assert.Equal(t, model.TotalHits{Value: 3, Relation: model.EqualTo}, *reduced.TotalHits)
	assert.Equal(t, 5, reduced.From)

	last := LastEmittedDocPerShard(reduced, 3)
	require.Len(t, last, 3)
	require.NotNil(t, last[0])
	assert.Equal(t, 0, last[0].Doc)
	require.NotNil(t, last[1])
	assert.Equal(t, 0, last[1].Doc)
	assert.Nil(t, last[2])

	withAggs := scrollResults()
	withSum(withAggs[1], "total", 1)
	_, err = ctrl.ReduceScroll(withAggs)
	assert.ErrorIs(t, err, ErrScrollAggregations)
}

func TestSortDocs(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		sorted := SortDocs(false, nil, nil, topdocs.NewStats(10), 0, 10, nil)
		assert.Equal(t, EmptySortedTopDocs, sorted)
		assert.NotNil(t, sorted.ScoreDocs)
		assert.True(t, sorted.IsEmpty())
	})

	t.Run("NoHits", func(t *testing.T) {
		stats := topdocs.NewStats(10)
		sorted := SortDocs(false, []*PartialQueryResult{scoredResult(0, 10), scoredResult(1, 10)}, nil, stats, 0, 10, nil)
		assert.Equal(t, EmptySortedTopDocs, sorted)
		assert.Equal(t, model.TotalHits{Relation: model.EqualTo}, *stats.TotalHits())
	})

	t.Run("ConsumesAndStampsShardIndex", func(t *testing.T) {
		r := NewPartialQueryResult(4, target(4))
		r.SetTopDocs(model.TopDocs{
			TotalHits: model.TotalHits{Value: 7, Relation: model.GreaterThanOrEqualTo},
			ScoreDocs: []model.ScoredDoc{{Doc: 3, Score: 2}, {Doc: 1, Score: 1}},
		}, 2)
		stats := topdocs.NewStats(100)

		sorted := SortDocs(false, []*PartialQueryResult{r}, nil, stats, 0, 10, nil)
		assert.True(t, r.HasConsumedTopDocs())
		assert.Equal(t, []docRef{{4, 3}, {4, 1}}, docRefs(sorted.ScoreDocs))
		assert.Equal(t, 2, sorted.NumHits)
		assert.Equal(t, model.TotalHits{Value: 7, Relation: model.GreaterThanOrEqualTo}, *stats.TotalHits())
		assert.False(t, sorted.IsSortedByField)
	})

	t.Run("Pagination", func(t *testing.T) {
		results := []*PartialQueryResult{
			scoredResult(0, 4, 10, 7, 4, 1),
			scoredResult(1, 4, 9, 6, 3, 0.5),
			scoredResult(2, 4, 8, 5, 2, 0.25),
		}
		sorted := SortDocs(false, results, nil, topdocs.NewStats(100), 2, 2, nil)
		assert.Equal(t, []docRef{{2, 0}, {0, 1}}, docRefs(sorted.ScoreDocs))

		results = []*PartialQueryResult{scoredResult(0, 4, 10, 7), scoredResult(1, 4, 9, 6)}
		sorted = SortDocs(true, results, nil, topdocs.NewStats(100), 2, 2, nil)
		assert.Equal(t, []docRef{{0, 0}, {1, 0}}, docRefs(sorted.ScoreDocs))
	})

	t.Run("SuggestionSlices", func(t *testing.T) {
		results := []*PartialQueryResult{scoredResult(0, 1, 10, 9), scoredResult(1, 1, 8)}
		completions := []*suggest.Completion{
			completion("song", suggest.CompletionOption{Text: "b", Score: 5, ShardIndex: 1, Doc: 2}),
			completion("empty"),
			completion("artist",
				suggest.CompletionOption{Text: "x", Score: 4, ShardIndex: 0, Doc: 8},
				suggest.CompletionOption{Text: "y", Score: 1, ShardIndex: 1, Doc: 9}),
		}

		sorted := SortDocs(false, results, nil, topdocs.NewStats(100), 0, 1, completions)
		assert.Equal(t, 1, sorted.NumHits)
		assert.Equal(t, []docRef{{0, 0}, {1, 2}, {0, 8}, {1, 9}}, docRefs(sorted.ScoreDocs))
		assert.Equal(t, []SuggestionSlice{
			{Name: "song", Offset: 1, Len: 1},
			{Name: "empty", Offset: 2, Len: 0},
			{Name: "artist", Offset: 2, Len: 2},
		}, sorted.SuggestionSlices)
	})

	t.Run("SuggestionsWithoutHits", func(t *testing.T) {
		completions := []*suggest.Completion{
			completion("song", suggest.CompletionOption{Text: "b", Score: 5, ShardIndex: 1, Doc: 2}),
		}
		sorted := SortDocs(false, []*PartialQueryResult{scoredResult(0, 10)}, nil, topdocs.NewStats(100), 0, 10, completions)
		assert.Equal(t, 0, sorted.NumHits)
		assert.Equal(t, []docRef{{1, 2}}, docRefs(sorted.ScoreDocs))
		assert.Equal(t, []SuggestionSlice{{Name: "song", Offset: 0, Len: 1}}, sorted.SuggestionSlices)
	})

	t.Run("FieldSorted", func(t *testing.T) {
		fields := []model.SortField{{Field: "price", Type: model.SortInt}}
		mk := func(shard int, prices ...int64) *PartialQueryResult {
			r := NewPartialQueryResult(shard, target(shard))
			docs := make([]model.ScoredDoc, len(prices))
			for i, p := range prices {
				docs[i] = model.ScoredDoc{Doc: i, Score: model.NaNScore, SortValues: []any{p}}
			}
			r.SetTopDocs(model.TopDocs{TotalHits: model.TotalHits{Value: int64(len(prices))}, ScoreDocs: docs, Fields: fields}, model.NaNScore)
			return r
		}
		sorted := SortDocs(false, []*PartialQueryResult{mk(0, 1, 3), mk(1, 2)}, nil, topdocs.NewStats(100), 0, 10, nil)
		assert.True(t, sorted.IsSortedByField)
		assert.Equal(t, fields, sorted.SortFields)
		assert.Equal(t, []docRef{{0, 0}, {1, 0}, {0, 1}}, docRefs(sorted.ScoreDocs))
	})

	t.Run("CollapsedByScore", func(t *testing.T) {
		mk := func(shard int, scores []float32, keys ...any) *PartialQueryResult {
			r := NewPartialQueryResult(shard, target(shard))
			docs := make([]model.ScoredDoc, len(scores))
			for i, s := range scores {
				docs[i] = model.ScoredDoc{Doc: i, Score: s}
			}
			r.SetTopDocs(model.TopDocs{
				TotalHits:      model.TotalHits{Value: int64(len(scores))},
				ScoreDocs:      docs,
				Fields:         []model.SortField{model.ScoreSort},
				CollapseField:  "user",
				CollapseValues: keys,
			}, scores[0])
			return r
		}
		results := []*PartialQueryResult{
			mk(0, []float32{9, 7}, "a", "b"),
			mk(1, []float32{8, 6}, "a", "c"),
		}
		sorted := SortDocs(false, results, nil, topdocs.NewStats(100), 0, 10, nil)
		assert.False(t, sorted.IsSortedByField)
		assert.Equal(t, "user", sorted.CollapseField)
		assert.Equal(t, []any{"a", "b", "c"}, sorted.CollapseValues)
		assert.Equal(t, []docRef{{0, 0}, {0, 1}, {1, 1}}, docRefs(sorted.ScoreDocs))
	})
}

func TestFillDocIdsToLoad(t *testing.T) {
	docs := []model.ScoredDoc{{ShardIndex: 0, Doc: 4}, {ShardIndex: 2, Doc: 1}, {ShardIndex: 0, Doc: 2}}
	assert.Equal(t, [][]int{{4, 2}, nil, {1}}, FillDocIdsToLoad(3, docs))
}
