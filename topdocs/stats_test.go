package topdocs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardreduce/model"
)

func boolPtr(b bool) *bool { return &b }

func TestStats_CappedTotal(t *testing.T) {
	s := NewStats(100)
	s.AddTotalHits(model.TotalHits{Value: 100, Relation: model.GreaterThanOrEqualTo})
	s.AddTotalHits(model.TotalHits{Value: 100, Relation: model.GreaterThanOrEqualTo})
	s.AddTotalHits(model.TotalHits{Value: 50})

	th := s.TotalHits()
	require.NotNil(t, th)
	assert.Equal(t, model.TotalHits{Value: 100, Relation: model.GreaterThanOrEqualTo}, *th)
}

func TestStats_UnderCap(t *testing.T) {
	s := NewStats(100)
	s.AddTotalHits(model.TotalHits{Value: 30})
	s.AddTotalHits(model.TotalHits{Value: 40})

	assert.Equal(t, model.TotalHits{Value: 70, Relation: model.EqualTo}, *s.TotalHits())

	s.AddTotalHits(model.TotalHits{Value: 10, Relation: model.GreaterThanOrEqualTo})
	assert.Equal(t, model.TotalHits{Value: 80, Relation: model.GreaterThanOrEqualTo}, *s.TotalHits())
}

func TestStats_Disabled(t *testing.T) {
	s := NewStats(TrackTotalHitsDisabled)
	s.AddTotalHits(model.TotalHits{Value: 250})
	assert.Nil(t, s.TotalHits())
}

func TestStats_Accurate(t *testing.T) {
	s := NewStats(TrackTotalHitsAccurate)
	s.AddTotalHits(model.TotalHits{Value: 1 << 40})
	s.AddTotalHits(model.TotalHits{Value: 5})
	assert.Equal(t, model.TotalHits{Value: 1<<40 + 5}, *s.TotalHits())

	s.AddTotalHits(model.TotalHits{Value: 1, Relation: model.GreaterThanOrEqualTo})
	assert.Panics(t, func() { s.TotalHits() })
}

func TestStats_Add(t *testing.T) {
	s := NewStats(DefaultTrackTotalHitsUpTo)
	assert.True(t, math.IsNaN(float64(s.MaxScore())))
	assert.Nil(t, s.TerminatedEarly())

	s.Add(model.TopDocsAndMaxScore{
		TopDocs:  model.TopDocs{TotalHits: model.TotalHits{Value: 10}, ScoreDocs: make([]model.ScoredDoc, 3)},
		MaxScore: 2.5,
	}, false, nil)
	s.Add(model.TopDocsAndMaxScore{
		TopDocs:  model.TopDocs{TotalHits: model.TotalHits{Value: 4}, ScoreDocs: make([]model.ScoredDoc, 2)},
		MaxScore: model.NaNScore,
	}, true, boolPtr(false))

	assert.Equal(t, int64(5), s.FetchHits())
	assert.Equal(t, float32(2.5), s.MaxScore())
	assert.True(t, s.TimedOut())
	require.NotNil(t, s.TerminatedEarly())
	assert.False(t, *s.TerminatedEarly())
	assert.Equal(t, int64(14), s.TotalHits().Value)

	s.Add(model.TopDocsAndMaxScore{MaxScore: 7}, false, boolPtr(true))
	assert.True(t, *s.TerminatedEarly())
	assert.Equal(t, float32(7), s.MaxScore())

	// A later false must not clear an earlier true.
	s.Add(model.TopDocsAndMaxScore{}, false, boolPtr(false))
	assert.True(t, *s.TerminatedEarly())
}
