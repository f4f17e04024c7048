package aggs

import (
	"fmt"
	"math"
	"strings"
)

// Sibling pipeline types.
const (
	PipelineMaxBucket = "max_bucket"
	PipelineMinBucket = "min_bucket"
	PipelineSumBucket = "sum_bucket"
	PipelineAvgBucket = "avg_bucket"
)

// Pipeline computes a value over the buckets of a sibling aggregation.
// It needs the complete tree and therefore only runs in a final reduction.
type Pipeline struct {
	Name string
	Type string
	// BucketsPath names a multi-bucket aggregation, optionally followed by
	// ">" and a single-value metric inside each bucket ("sales>total").
	// Without a metric the bucket doc count is used.
	BucketsPath string
}

type bucketValue struct {
	key   string
	value float64
}

func (p Pipeline) values(forest Aggregations) ([]bucketValue, error) {
	aggName, metric, _ := strings.Cut(p.BucketsPath, ">")
	agg := forest.Get(aggName)
	if agg == nil {
		return nil, fmt.Errorf("%w: no aggregation %q", ErrInvalidBucketsPath, aggName)
	}
	mb, ok := agg.(MultiBucket)
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s) has no buckets", ErrInvalidBucketsPath, aggName, agg.Type())
	}

	buckets := mb.ListBuckets()
	out := make([]bucketValue, 0, len(buckets))
	for _, b := range buckets {
		v := float64(b.DocCount)
		if metric != "" {
			sv, ok := b.Aggs.Get(metric).(SingleValue)
			if !ok {
				// Buckets without the metric are skipped.
				continue
			}
			v = sv.Value()
		}
		if math.IsNaN(v) {
			continue
		}
		out = append(out, bucketValue{key: b.Key, value: v})
	}
	return out, nil
}

func (p Pipeline) apply(forest Aggregations) (Aggregation, error) {
	values, err := p.values(forest)
	if err != nil {
		return nil, err
	}

	result := &SimpleValue{AggName: p.Name, Number: math.NaN()}
	switch p.Type {
	case PipelineMaxBucket, PipelineMinBucket:
		better := func(a, b float64) bool { return a > b }
		if p.Type == PipelineMinBucket {
			better = func(a, b float64) bool { return a < b }
		}
		for _, bv := range values {
			switch {
			case len(result.Keys) == 0 || better(bv.value, result.Number):
				result.Number = bv.value
				result.Keys = []string{bv.key}
			case bv.value == result.Number:
				result.Keys = append(result.Keys, bv.key)
			}
		}
	case PipelineSumBucket, PipelineAvgBucket:
		var k kahan
		for _, bv := range values {
			k.add(bv.value)
		}
		switch {
		case p.Type == PipelineSumBucket:
			result.Number = k.sum
		case len(values) > 0:
			result.Number = k.sum / float64(len(values))
		}
	default:
		return nil, fmt.Errorf("aggs: unknown pipeline type %q", p.Type)
	}
	return result, nil
}
