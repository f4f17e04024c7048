package shardreduce

import (
	"context"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
)

// ProgressListener observes the reduction of a query phase.
//
// Callbacks run on the goroutine that consumes or reduces; OnPartialReduce
// and OnFinalReduce run while the consumer holds its lock and must not call
// back into the consumer. A panicking listener is recovered and logged.
type ProgressListener interface {
	// OnQueryResult is called after a shard result was consumed.
	OnQueryResult(shardIndex int)
	// OnPartialReduce is called after a partial reduction with the targets
	// of all shards processed so far, in shard order.
	OnPartialReduce(shards []model.ShardTarget, totalHits *model.TotalHits, partial aggs.Aggregations, phase int)
	// OnFinalReduce is called after the final reduction.
	OnFinalReduce(shards []model.ShardTarget, totalHits *model.TotalHits, aggregations aggs.Aggregations, phase int)
}

// NoopProgressListener ignores all progress.
type NoopProgressListener struct{}

func (NoopProgressListener) OnQueryResult(int) {}
func (NoopProgressListener) OnPartialReduce([]model.ShardTarget, *model.TotalHits, aggs.Aggregations, int) {
}
func (NoopProgressListener) OnFinalReduce([]model.ShardTarget, *model.TotalHits, aggs.Aggregations, int) {
}

// safeListener shields the reduction from listener panics.
type safeListener struct {
	l      ProgressListener
	logger *Logger
}

func newSafeListener(l ProgressListener, logger *Logger) safeListener {
	if l == nil {
		l = NoopProgressListener{}
	}
	return safeListener{l: l, logger: logger}
}

func (s safeListener) guard(callback string) {
	if r := recover(); r != nil {
		s.logger.LogListenerPanic(context.Background(), callback, r)
	}
}

func (s safeListener) OnQueryResult(shardIndex int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithShard(shardIndex).LogListenerPanic(context.Background(), "OnQueryResult", r)
		}
	}()
	s.l.OnQueryResult(shardIndex)
}

func (s safeListener) OnPartialReduce(shards []model.ShardTarget, totalHits *model.TotalHits, partial aggs.Aggregations, phase int) {
	defer s.guard("OnPartialReduce")
	s.l.OnPartialReduce(shards, totalHits, partial, phase)
}

func (s safeListener) OnFinalReduce(shards []model.ShardTarget, totalHits *model.TotalHits, aggregations aggs.Aggregations, phase int) {
	defer s.guard("OnFinalReduce")
	s.l.OnFinalReduce(shards, totalHits, aggregations, phase)
}

func shardTargets(results []*PartialQueryResult) []model.ShardTarget {
	targets := make([]model.ShardTarget, 0, len(results))
	for _, r := range results {
		targets = append(targets, r.Target)
	}
	return targets
}
