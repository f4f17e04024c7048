package shardreduce

import (
	"errors"
	"fmt"

	"github.com/hupe1980/shardreduce/resource"
)

var (
	// ErrInvalidBufferSize is returned when more than one result is expected
	// but the batched reduce size is smaller than 2.
	ErrInvalidBufferSize = errors.New("batched reduce size must be >= 2")

	// ErrBufferNotSmaller is returned when buffering would never trigger a
	// partial reduction.
	ErrBufferNotSmaller = errors.New("batched reduce size must be smaller than the expected result count")

	// ErrNothingToReduce is returned when a request tracks neither top docs
	// nor aggregations.
	ErrNothingToReduce = errors.New("at least top docs or aggregations must be tracked")

	// ErrInvalidShardCount is returned for a negative shard count, or a
	// buffered consumer expecting no results.
	ErrInvalidShardCount = errors.New("invalid shard count")

	// ErrConsumerClosed is returned when a result arrives after the final
	// reduction has started.
	ErrConsumerClosed = errors.New("consumer is closed")

	// ErrDuplicateShardResult is returned when a shard reports twice.
	ErrDuplicateShardResult = errors.New("duplicate shard result")

	// ErrNilResult is returned when a nil result is consumed.
	ErrNilResult = errors.New("nil shard result")

	// ErrScrollAggregations is returned when a scroll reduction receives
	// aggregations.
	ErrScrollAggregations = errors.New("aggregations are not supported in scroll reductions")

	// ErrMemoryLimitExceeded is returned when buffered aggregation bytes
	// exceed the controller's memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ErrInvalidBuffer reports a rejected buffering configuration.
//
// The violated rule can be matched with errors.Is against
// ErrInvalidBufferSize, ErrBufferNotSmaller, ErrNothingToReduce or
// ErrInvalidShardCount.
type ErrInvalidBuffer struct {
	Expected   int
	BufferSize int
	cause      error
}

func (e *ErrInvalidBuffer) Error() string {
	return fmt.Sprintf("invalid buffered consumer (expected %d, batched reduce size %d): %v",
		e.Expected, e.BufferSize, e.cause)
}

func (e *ErrInvalidBuffer) Unwrap() error { return e.cause }

// ErrShardIndexOutOfRange indicates a result whose shard index does not
// address a shard of the request.
type ErrShardIndexOutOfRange struct {
	ShardIndex int
	NumShards  int
}

func (e *ErrShardIndexOutOfRange) Error() string {
	return fmt.Sprintf("shard index %d out of range [0, %d)", e.ShardIndex, e.NumShards)
}

// ErrReduceFailed wraps a failure of a partial or final reduction.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrReduceFailed struct {
	Phase int
	Final bool
	cause error
}

func (e *ErrReduceFailed) Error() string {
	kind := "partial"
	if e.Final {
		kind = "final"
	}
	return fmt.Sprintf("%s reduce phase %d failed: %v", kind, e.Phase, e.cause)
}

func (e *ErrReduceFailed) Unwrap() error { return e.cause }
