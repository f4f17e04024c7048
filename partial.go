package shardreduce

import (
	"fmt"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
)

// PartialQueryResult is the query phase result of one shard.
//
// It is owned by the producing shard until handed to a consumer. Top docs and
// aggregations can be consumed exactly once; consuming transfers ownership
// and a second call panics.
//
// A PartialQueryResult is NOT thread-safe.
type PartialQueryResult struct {
	// ShardIndex is the position of the shard in the request.
	ShardIndex int
	// Target is the shard copy that answered.
	Target model.ShardTarget
	// From and Size are the window the shard collected for.
	From int
	Size int
	// TimedOut reports that the shard hit its time budget.
	TimedOut bool
	// TerminatedEarly is nil when the shard does not report the flag.
	TerminatedEarly *bool
	// Suggestions are the shard's named suggestions in order.
	Suggestions []suggest.Suggestion

	null bool

	topDocs         *model.TopDocsAndMaxScore
	topDocsConsumed bool

	aggs         aggs.Delayable
	hasAggs      bool
	aggsConsumed bool
}

// NewPartialQueryResult creates an empty result for a shard.
func NewPartialQueryResult(shardIndex int, target model.ShardTarget) *PartialQueryResult {
	return &PartialQueryResult{ShardIndex: shardIndex, Target: target}
}

// NewNullQueryResult creates the result of a shard that produced no query
// result, e.g. because it could be skipped. Null results count as processed
// but contribute nothing to the reduction.
func NewNullQueryResult(shardIndex int, target model.ShardTarget) *PartialQueryResult {
	return &PartialQueryResult{ShardIndex: shardIndex, Target: target, null: true}
}

// IsNull reports whether the shard produced no query result.
func (r *PartialQueryResult) IsNull() bool { return r.null }

// SetTopDocs sets the shard's top docs and max score.
func (r *PartialQueryResult) SetTopDocs(td model.TopDocs, maxScore float32) {
	if r.topDocsConsumed {
		panic("shardreduce: top docs already consumed")
	}
	r.topDocs = &model.TopDocsAndMaxScore{TopDocs: td, MaxScore: maxScore}
}

// SetAggs sets the shard's in-memory aggregation forest.
func (r *PartialQueryResult) SetAggs(forest aggs.Aggregations) {
	r.SetDelayableAggs(aggs.Referencing(forest))
}

// SetDelayableAggs sets the shard's aggregation forest in possibly
// serialized form.
func (r *PartialQueryResult) SetDelayableAggs(d aggs.Delayable) {
	if r.aggsConsumed {
		panic("shardreduce: aggregations already consumed")
	}
	r.aggs = d
	r.hasAggs = d != nil
}

// HasAggs reports whether aggregations were set. It stays true after the
// aggregations were consumed.
func (r *PartialQueryResult) HasAggs() bool { return r.hasAggs }

// HasConsumedTopDocs reports whether ConsumeTopDocs was called.
func (r *PartialQueryResult) HasConsumedTopDocs() bool { return r.topDocsConsumed }

// ConsumeTopDocs transfers ownership of the top docs to the caller.
// A shard that set none yields no hits and a NaN max score.
// Panics if called twice.
func (r *PartialQueryResult) ConsumeTopDocs() model.TopDocsAndMaxScore {
	if r.topDocsConsumed {
		panic(fmt.Sprintf("shardreduce: top docs of shard %d already consumed", r.ShardIndex))
	}
	r.topDocsConsumed = true
	td := r.topDocs
	r.topDocs = nil
	if td == nil {
		return model.TopDocsAndMaxScore{
			TopDocs:  model.TopDocs{ScoreDocs: []model.ScoredDoc{}},
			MaxScore: model.NaNScore,
		}
	}
	return *td
}

// ConsumeAggs transfers ownership of the aggregations to the caller.
// Returns nil when none were set. Panics if called twice.
func (r *PartialQueryResult) ConsumeAggs() aggs.Delayable {
	if r.aggsConsumed {
		panic(fmt.Sprintf("shardreduce: aggregations of shard %d already consumed", r.ShardIndex))
	}
	r.aggsConsumed = true
	d := r.aggs
	r.aggs = nil
	return d
}
