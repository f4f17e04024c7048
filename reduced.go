package shardreduce

import (
	"fmt"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
)

// ReducedQueryPhase is the result of reducing all shard query results.
// It must not be modified after construction.
type ReducedQueryPhase struct {
	// TotalHits is nil when total hit tracking is disabled.
	TotalHits *model.TotalHits
	// FetchHits is the number of doc references returned by all shards.
	FetchHits int64
	// MaxScore is NaN when no scores were tracked.
	MaxScore        float32
	TimedOut        bool
	TerminatedEarly *bool
	Suggest         []suggest.Suggestion
	Aggregations    aggs.Aggregations
	SortedTopDocs   SortedTopDocs
	// NumReducePhases counts the partial reductions plus the final one.
	NumReducePhases int
	Size            int
	From            int
	// IsEmptyResult is set when no shard contributed a query result.
	IsEmptyResult bool
}

func newReducedQueryPhase(p ReducedQueryPhase) *ReducedQueryPhase {
	if p.NumReducePhases <= 0 {
		panic(fmt.Sprintf("shardreduce: at least one reduce phase must have been applied but was %d", p.NumReducePhases))
	}
	return &p
}
