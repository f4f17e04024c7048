package shardreduce

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ShardSource runs the query phase of one shard.
type ShardSource func(ctx context.Context) (*PartialQueryResult, error)

// ShardFailure records a shard whose source failed.
type ShardFailure struct {
	ShardIndex int
	Err        error
}

func (f ShardFailure) Error() string {
	return fmt.Sprintf("shard %d failed: %v", f.ShardIndex, f.Err)
}

func (f ShardFailure) Unwrap() error { return f.Err }

// Collect calls sources[i] for shard i with at most limit calls in flight
// and feeds every result to the consumer, stamped with shard index i.
// limit <= 0 means no limit. A source returning a nil result is skipped.
//
// A failing source does not fail the collection; it is reported as a
// ShardFailure and the shard contributes nothing. Collect returns an error
// when the consumer rejects a result or ctx is done before every source was
// started. Failures are ordered by shard index.
func Collect(ctx context.Context, consumer Consumer, sources []ShardSource, limit int) ([]ShardFailure, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var (
		mu       sync.Mutex
		failures []ShardFailure
	)
	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := source(gctx)
			if err != nil {
				mu.Lock()
				failures = append(failures, ShardFailure{ShardIndex: i, Err: err})
				mu.Unlock()
				return nil
			}
			if result == nil {
				return nil
			}
			result.ShardIndex = i
			return consumer.ConsumeResult(result)
		})
	}
	err := g.Wait()

	slices.SortFunc(failures, func(a, b ShardFailure) int { return a.ShardIndex - b.ShardIndex })
	return failures, err
}
