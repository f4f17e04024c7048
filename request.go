package shardreduce

import (
	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/topdocs"
)

const (
	// DefaultSize is the number of hits returned when a request sets none.
	DefaultSize = 10
	// DefaultBatchedReduceSize is the number of shard results buffered
	// before a partial reduction.
	DefaultBatchedReduceSize = 512
)

// Request holds the per-query settings the reduction depends on.
//
// Use NewRequest for the defaults; the zero Request asks for no hits and
// caps total hits at 0.
type Request struct {
	// From is the offset of the first hit. Negative means 0.
	From int
	// Size is the number of hits. Negative means DefaultSize. 0 disables
	// top docs tracking.
	Size int
	// TrackTotalHitsUpTo caps the total hit count. Use
	// topdocs.TrackTotalHitsDisabled or topdocs.TrackTotalHitsAccurate for
	// the sentinels. Scroll requests always track accurately.
	TrackTotalHitsUpTo int
	// BatchedReduceSize is the number of results buffered before a partial
	// reduction. Non-positive means DefaultBatchedReduceSize.
	BatchedReduceSize int
	// Scroll marks a scroll request: from is ignored and results are never
	// reduced incrementally.
	Scroll bool
	// HasAggs reports whether shards return aggregation trees.
	HasAggs bool
	// Pipelines are sibling pipeline aggregations run by the final
	// reduction.
	Pipelines []aggs.Pipeline
	// SkipFinalReduce performs a partial reduction in place of the final
	// one, for a coordinator that reduces further upstream.
	SkipFinalReduce bool
}

// NewRequest returns a Request with the default size, total hits cap and
// batched reduce size.
func NewRequest() Request {
	return Request{
		Size:               DefaultSize,
		TrackTotalHitsUpTo: topdocs.DefaultTrackTotalHitsUpTo,
		BatchedReduceSize:  DefaultBatchedReduceSize,
	}
}

func (r Request) hasTopDocs() bool { return r.Size != 0 }

func (r Request) normalized() Request {
	if r.From < 0 {
		r.From = 0
	}
	if r.Size < 0 {
		r.Size = DefaultSize
	}
	if r.BatchedReduceSize <= 0 {
		r.BatchedReduceSize = DefaultBatchedReduceSize
	}
	if r.Scroll {
		r.TrackTotalHitsUpTo = topdocs.TrackTotalHitsAccurate
	}
	return r
}

// TopDocsSize returns the number of docs a shard collects for the request,
// which is also the window a partial top docs merge keeps.
func TopDocsSize(req Request) int {
	req = req.normalized()
	return req.From + req.Size
}
