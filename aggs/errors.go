package aggs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregisteredAggregation is matched by UnregisteredAggregationError.
	ErrUnregisteredAggregation = errors.New("aggs: unregistered aggregation type")

	// ErrAggregationTypeMismatch is returned when shards disagree on the type
	// of a same-named aggregation.
	ErrAggregationTypeMismatch = errors.New("aggs: aggregation type mismatch")

	// ErrTooManyBuckets is returned when a final reduction produces more
	// buckets than the context allows.
	ErrTooManyBuckets = errors.New("aggs: too many buckets")

	// ErrNotReducible is returned when reducing an aggregation that only
	// exists as the output of a final reduction.
	ErrNotReducible = errors.New("aggs: aggregation cannot be reduced")

	// ErrInvalidBucketsPath is returned when a pipeline cannot resolve its path.
	ErrInvalidBucketsPath = errors.New("aggs: invalid buckets path")
)

// UnregisteredAggregationError reports a type tag with no merge strategy.
type UnregisteredAggregationError struct {
	Name string
	Type string
}

func (e *UnregisteredAggregationError) Error() string {
	return fmt.Sprintf("aggs: no merge strategy registered for type %q (aggregation %q)", e.Type, e.Name)
}

// Unwrap returns the underlying error.
func (e *UnregisteredAggregationError) Unwrap() error {
	return ErrUnregisteredAggregation
}

// TooManyBucketsError carries the limit that was crossed.
type TooManyBucketsError struct {
	Limit int
	Count int
}

func (e *TooManyBucketsError) Error() string {
	return fmt.Sprintf("aggs: reduction produced %d buckets, limit is %d", e.Count, e.Limit)
}

// Unwrap returns the underlying error.
func (e *TooManyBucketsError) Unwrap() error {
	return ErrTooManyBuckets
}
