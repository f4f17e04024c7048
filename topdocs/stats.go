package topdocs

import (
	"math"

	"github.com/hupe1980/shardreduce/model"
)

const (
	// TrackTotalHitsDisabled turns total hit tracking off.
	TrackTotalHitsDisabled = -1
	// TrackTotalHitsAccurate tracks total hits exactly, without a cap.
	TrackTotalHitsAccurate = math.MaxInt32
	// DefaultTrackTotalHitsUpTo is the cap applied when a request sets none.
	DefaultTrackTotalHitsUpTo = 10_000
)

// Stats accumulates hit statistics across consumed shard results.
//
// Stats is NOT thread-safe; the consumer serializes calls to Add.
type Stats struct {
	trackTotalHitsUpTo int

	totalHits         int64
	totalHitsRelation model.Relation
	fetchHits         int64
	maxScore          float32
	timedOut          bool
	terminatedEarly   *bool
}

// NewStats creates a Stats that caps total hits at trackTotalHitsUpTo.
func NewStats(trackTotalHitsUpTo int) *Stats {
	return &Stats{
		trackTotalHitsUpTo: trackTotalHitsUpTo,
		totalHitsRelation:  model.EqualTo,
		maxScore:           float32(math.Inf(-1)),
	}
}

// TrackTotalHitsUpTo returns the configured cap.
func (s *Stats) TrackTotalHitsUpTo() int { return s.trackTotalHitsUpTo }

// AddTotalHits folds one shard's total hit count into the running total.
// Once a lower-bound relation is seen the total stays a lower bound.
func (s *Stats) AddTotalHits(th model.TotalHits) {
	if s.trackTotalHitsUpTo == TrackTotalHitsDisabled {
		return
	}
	s.totalHits += th.Value
	if th.Relation == model.GreaterThanOrEqualTo {
		s.totalHitsRelation = model.GreaterThanOrEqualTo
	}
}

// Add folds one shard's consumed top docs and flags into the statistics.
func (s *Stats) Add(td model.TopDocsAndMaxScore, timedOut bool, terminatedEarly *bool) {
	s.AddTotalHits(td.TopDocs.TotalHits)
	s.fetchHits += int64(len(td.TopDocs.ScoreDocs))
	if !math.IsNaN(float64(td.MaxScore)) && td.MaxScore > s.maxScore {
		s.maxScore = td.MaxScore
	}
	if timedOut {
		s.timedOut = true
	}
	if terminatedEarly != nil {
		if s.terminatedEarly == nil {
			v := *terminatedEarly
			s.terminatedEarly = &v
		} else if *terminatedEarly {
			*s.terminatedEarly = true
		}
	}
}

// TotalHits returns the capped total, or nil when tracking is disabled.
//
// When the accumulated count exceeds the cap the result is (cap, >=). This
// happens when several shards each count up to the cap. With accurate
// tracking no shard may report a lower bound; that is an invariant violation.
func (s *Stats) TotalHits() *model.TotalHits {
	switch {
	case s.trackTotalHitsUpTo == TrackTotalHitsDisabled:
		return nil
	case s.trackTotalHitsUpTo == TrackTotalHitsAccurate:
		if s.totalHitsRelation != model.EqualTo {
			panic("topdocs: accurate total hit tracking received a lower-bound count")
		}
		return &model.TotalHits{Value: s.totalHits, Relation: model.EqualTo}
	case s.totalHits <= int64(s.trackTotalHitsUpTo):
		return &model.TotalHits{Value: s.totalHits, Relation: s.totalHitsRelation}
	default:
		return &model.TotalHits{Value: int64(s.trackTotalHitsUpTo), Relation: model.GreaterThanOrEqualTo}
	}
}

// FetchHits returns the number of doc references returned by all shards.
func (s *Stats) FetchHits() int64 { return s.fetchHits }

// MaxScore returns the highest score seen, or NaN if none.
func (s *Stats) MaxScore() float32 {
	if math.IsInf(float64(s.maxScore), -1) {
		return model.NaNScore
	}
	return s.maxScore
}

// TimedOut reports whether any shard timed out.
func (s *Stats) TimedOut() bool { return s.timedOut }

// TerminatedEarly returns nil if no shard reported the flag, otherwise
// whether any shard terminated early.
func (s *Stats) TerminatedEarly() *bool {
	if s.terminatedEarly == nil {
		return nil
	}
	v := *s.terminatedEarly
	return &v
}
