package shardreduce

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/codec"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/resource"
	"github.com/hupe1980/shardreduce/suggest"
	"github.com/hupe1980/shardreduce/topdocs"
)

// Controller reduces query phase results. It holds the settings shared by
// all requests and is safe for concurrent use.
type Controller struct {
	logger      *Logger
	metrics     MetricsCollector
	registry    *aggs.Registry
	builder     aggs.ReduceContextBuilder
	maxBuckets  int
	codec       codec.Codec
	compression aggs.Compression
	resources   *resource.Controller
}

// NewController creates a Controller.
func NewController(optFns ...Option) *Controller {
	o := applyOptions(optFns)
	return &Controller{
		logger:      o.logger,
		metrics:     o.metricsCollector,
		registry:    o.registry,
		builder:     o.contextBuilder,
		maxBuckets:  o.maxBuckets,
		codec:       o.codec,
		compression: o.compression,
		resources:   resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit}),
	}
}

// MemoryUsage returns the bytes of aggregation trees currently buffered by
// the controller's consumers.
func (c *Controller) MemoryUsage() int64 { return c.resources.MemoryUsage() }

// PeakMemoryUsage returns the highest buffered byte count observed.
func (c *Controller) PeakMemoryUsage() int64 { return c.resources.PeakMemoryUsage() }

// MemoryLimit returns the bound on buffered aggregation bytes, 0 if unlimited.
func (c *Controller) MemoryLimit() int64 { return c.resources.MemoryLimit() }

func (c *Controller) contextBuilder(req Request) aggs.ReduceContextBuilder {
	if c.builder != nil {
		return c.builder
	}
	return aggs.ContextBuilder{
		Registry:   c.registry,
		Pipelines:  req.Pipelines,
		MaxBuckets: c.maxBuckets,
	}
}

// ReduceQueryPhase reduces a complete set of shard results in one pass.
func (c *Controller) ReduceQueryPhase(results []*PartialQueryResult, req Request) (*ReducedQueryPhase, error) {
	req = req.normalized()
	start := time.Now()
	reduced, err := c.reduceQueryPhase(results, nil, nil, topdocs.NewStats(req.TrackTotalHitsUpTo), 0,
		req, c.contextBuilder(req))
	c.recordFinalReduce(reduced, len(results), time.Since(start), err)
	return reduced, err
}

// ReduceScroll reduces the results of a scroll request. Total hits are
// tracked accurately, from is ignored and aggregations are rejected.
func (c *Controller) ReduceScroll(results []*PartialQueryResult) (*ReducedQueryPhase, error) {
	for _, r := range results {
		if r != nil && !r.IsNull() && r.HasAggs() {
			return nil, ErrScrollAggregations
		}
	}
	req := NewRequest()
	req.Scroll = true
	return c.ReduceQueryPhase(results, req)
}

func (c *Controller) recordFinalReduce(reduced *ReducedQueryPhase, shards int, d time.Duration, err error) {
	phases := 0
	var totalHits *model.TotalHits
	if reduced != nil {
		phases = reduced.NumReducePhases
		totalHits = reduced.TotalHits
	}
	c.metrics.RecordFinalReduce(phases, d, err)
	c.logger.LogFinalReduce(context.Background(), phases, shards, totalHits, err)
}

// reduceQueryPhase performs the final reduction.
//
// bufferedAggs and bufferedTopDocs hold the state of a buffered consumer;
// both are nil when the results were not consumed incrementally. Results
// whose top docs or aggregations were already consumed only contribute
// their suggestions and flags.
//
// The hit window is the normalized request window unless the shards echo
// their own: a non-zero From or Size of a result overrides it.
func (c *Controller) reduceQueryPhase(results []*PartialQueryResult, bufferedAggs []aggs.Delayable,
	bufferedTopDocs []model.TopDocs, stats *topdocs.Stats, numReducePhases int, req Request,
	builder aggs.ReduceContextBuilder) (*ReducedQueryPhase, error) {
	numReducePhases++
	performFinal := !req.SkipFinalReduce

	queryResults := make([]*PartialQueryResult, 0, len(results))
	for _, r := range results {
		if r != nil && !r.IsNull() {
			queryResults = append(queryResults, r)
		}
	}
	if len(queryResults) == 0 {
		return newReducedQueryPhase(ReducedQueryPhase{
			TotalHits:       stats.TotalHits(),
			FetchHits:       stats.FetchHits(),
			MaxScore:        stats.MaxScore(),
			SortedTopDocs:   EmptySortedTopDocs,
			NumReducePhases: numReducePhases,
			IsEmptyResult:   true,
		}), nil
	}
	slices.SortStableFunc(queryResults, func(a, b *PartialQueryResult) int {
		return a.ShardIndex - b.ShardIndex
	})

	var aggregationsList []aggs.Delayable
	consumeAggs := false
	switch {
	case bufferedAggs != nil:
		aggregationsList = bufferedAggs
	case queryResults[0].HasAggs():
		aggregationsList = make([]aggs.Delayable, 0, len(queryResults))
		consumeAggs = true
	}

	from, size := req.From, 0
	var perShard [][]suggest.Suggestion
	for _, r := range queryResults {
		if r.From > 0 {
			from = r.From
		}
		size = max(r.Size, size)
		if len(r.Suggestions) > 0 {
			for _, s := range r.Suggestions {
				if cs, ok := s.(*suggest.Completion); ok {
					cs.SetShardIndex(r.ShardIndex)
				}
			}
			perShard = append(perShard, r.Suggestions)
		}
		if consumeAggs && r.HasAggs() {
			aggregationsList = append(aggregationsList, r.ConsumeAggs())
		}
	}

	if size == 0 {
		size = req.Size
	}

	reducedSuggest, err := suggest.Reduce(perShard)
	if err != nil {
		return nil, &ErrReduceFailed{Phase: numReducePhases, Final: performFinal, cause: err}
	}
	aggregations, err := c.reduceAggs(builder, performFinal, aggregationsList)
	if err != nil {
		return nil, &ErrReduceFailed{Phase: numReducePhases, Final: performFinal, cause: err}
	}

	sorted := SortDocs(req.Scroll, queryResults, bufferedTopDocs, stats, from, size,
		suggest.Completions(reducedSuggest))

	return newReducedQueryPhase(ReducedQueryPhase{
		TotalHits:       stats.TotalHits(),
		FetchHits:       stats.FetchHits(),
		MaxScore:        stats.MaxScore(),
		TimedOut:        stats.TimedOut(),
		TerminatedEarly: stats.TerminatedEarly(),
		Suggest:         reducedSuggest,
		Aggregations:    aggregations,
		SortedTopDocs:   sorted,
		NumReducePhases: numReducePhases,
		Size:            size,
		From:            from,
	}), nil
}

// reduceAggs expands and reduces the given forests. Entries of the list are
// cleared as they are expanded.
func (c *Controller) reduceAggs(builder aggs.ReduceContextBuilder, final bool, list []aggs.Delayable) (aggs.Aggregations, error) {
	if len(list) == 0 {
		return nil, nil
	}
	forests := make([]aggs.Aggregations, 0, len(list))
	for i, d := range list {
		if d == nil {
			continue
		}
		forest, err := d.Expand(c.registry)
		if err != nil {
			return nil, err
		}
		forests = append(forests, forest)
		list[i] = nil
	}
	rc := builder.ForPartialReduction()
	if final {
		rc = builder.ForFinalReduction()
	}
	return aggs.Reduce(forests, rc)
}

// serialize returns d in serialized form, encoding in-memory forests with
// the controller's codec and compression.
func (c *Controller) serialize(d aggs.Delayable) (*aggs.Serialized, error) {
	if s, ok := d.(*aggs.Serialized); ok {
		return s, nil
	}
	var forest aggs.Aggregations
	if d != nil {
		var err error
		if forest, err = d.Expand(c.registry); err != nil {
			return nil, err
		}
	}
	return aggs.Serialize(forest, c.codec, c.compression)
}
