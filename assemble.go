package shardreduce

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
)

// FetchResult holds the hits a shard loaded in the fetch phase, in the
// order the query phase emitted their doc ids.
type FetchResult struct {
	Target model.ShardTarget
	Hits   []model.Hit
}

// FetchLookup resolves the fetch result of a shard. It returns false when
// the shard has none, e.g. because it failed after the query phase.
type FetchLookup func(shardIndex int) (*FetchResult, bool)

// SearchHit is one hit of the response.
type SearchHit struct {
	model.Hit
	Score float32
	// SortValues is set for field-sorted responses.
	SortValues []any
	Target     model.ShardTarget
	ShardIndex int
}

// SearchHits is the ranked hit window of a response.
type SearchHits struct {
	Hits []SearchHit
	// TotalHits is nil when total hit tracking is disabled.
	TotalHits      *model.TotalHits
	MaxScore       float32
	SortFields     []model.SortField
	CollapseField  string
	CollapseValues []any
}

// SearchResponse is the assembled result of a search.
type SearchResponse struct {
	Hits            SearchHits
	Aggregations    aggs.Aggregations
	Suggest         []suggest.Suggestion
	TimedOut        bool
	TerminatedEarly *bool
	NumReducePhases int
}

type assembleOptions struct {
	ignoreFrom bool
	logger     *Logger
	metrics    MetricsCollector
}

// AssembleOption configures Assemble.
type AssembleOption func(*assembleOptions)

// WithIgnoreFrom starts the hit window at 0. Scroll responses use it.
func WithIgnoreFrom() AssembleOption {
	return func(o *assembleOptions) {
		o.ignoreFrom = true
	}
}

// WithFetchLogger logs skipped hits.
func WithFetchLogger(logger *Logger) AssembleOption {
	return func(o *assembleOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFetchMetrics records skipped hits.
func WithFetchMetrics(mc MetricsCollector) AssembleOption {
	return func(o *assembleOptions) {
		if mc != nil {
			o.metrics = mc
		}
	}
}

// Assemble joins a reduced query phase with the fetch phase hits.
//
// Every merged doc takes the next unconsumed hit of its shard's fetch
// result. Docs of shards without a fetch result are skipped. Completion
// suggestion options get their hits the same way, through the suggestion
// slices of the sorted top docs.
//
// Assemble panics if a fetch result holds fewer hits than the merged docs
// reference, or if the suggestion slices do not cover the sorted docs
// exactly.
func Assemble(reduced *ReducedQueryPhase, lookup FetchLookup, optFns ...AssembleOption) *SearchResponse {
	o := assembleOptions{logger: NoopLogger(), metrics: NoopMetricsCollector{}}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if reduced.IsEmptyResult {
		return emptyResponse(reduced)
	}
	if lookup == nil {
		lookup = func(int) (*FetchResult, bool) { return nil, false }
	}

	a := &assembler{lookup: lookup, opts: o, cursors: make(map[int]int)}
	resp := &SearchResponse{
		Hits:            a.hits(reduced),
		Aggregations:    reduced.Aggregations,
		Suggest:         reduced.Suggest,
		TimedOut:        reduced.TimedOut,
		TerminatedEarly: reduced.TerminatedEarly,
		NumReducePhases: reduced.NumReducePhases,
	}
	if table := reduced.SortedTopDocs.SuggestionSlices; len(table) > 0 {
		resp.Suggest = a.joinSuggestions(reduced, table)
	}
	return resp
}

// emptyResponse keeps the total hits of the reduction, which are nil when
// tracking is disabled.
func emptyResponse(reduced *ReducedQueryPhase) *SearchResponse {
	return &SearchResponse{
		Hits: SearchHits{
			Hits:      []SearchHit{},
			TotalHits: reduced.TotalHits,
			MaxScore:  model.NaNScore,
		},
		TimedOut:        reduced.TimedOut,
		TerminatedEarly: reduced.TerminatedEarly,
		NumReducePhases: reduced.NumReducePhases,
	}
}

type assembler struct {
	lookup  FetchLookup
	opts    assembleOptions
	cursors map[int]int
}

// next returns the next hit of a shard's fetch result.
func (a *assembler) next(doc model.ScoredDoc) (model.Hit, model.ShardTarget, bool) {
	fr, ok := a.lookup(doc.ShardIndex)
	if !ok || fr == nil {
		a.opts.logger.LogFetchMiss(context.Background(), doc.ShardIndex, doc.Doc)
		a.opts.metrics.RecordFetchMiss(doc.ShardIndex)
		return model.Hit{}, model.ShardTarget{}, false
	}
	i := a.cursors[doc.ShardIndex]
	if i >= len(fr.Hits) {
		panic(fmt.Sprintf("shardreduce: fetch result of shard %d has %d hits, hit %d requested",
			doc.ShardIndex, len(fr.Hits), i))
	}
	a.cursors[doc.ShardIndex] = i + 1
	return fr.Hits[i], fr.Target, true
}

func (a *assembler) hits(reduced *ReducedQueryPhase) SearchHits {
	sorted := reduced.SortedTopDocs

	sortScoreIndex := -1
	if sorted.IsSortedByField {
		for i, f := range sorted.SortFields {
			if f.Type == model.SortScore {
				sortScoreIndex = i
			}
		}
	}

	from := reduced.From
	if a.opts.ignoreFrom {
		from = 0
	}
	// Collapsing can leave fewer merged docs than fetched hits.
	n := max(0, min(reduced.FetchHits-int64(from), int64(reduced.Size), int64(sorted.NumHits)))

	hits := make([]SearchHit, 0, n)
	for _, doc := range sorted.ScoreDocs[:n] {
		hit, target, ok := a.next(doc)
		if !ok {
			continue
		}
		sh := SearchHit{Hit: hit, Score: doc.Score, Target: target, ShardIndex: doc.ShardIndex}
		if sortScoreIndex >= 0 {
			sh.Score = scoreValue(doc, sortScoreIndex)
		}
		if sorted.IsSortedByField {
			sh.SortValues = doc.SortValues
		}
		hits = append(hits, sh)
	}

	return SearchHits{
		Hits:           hits,
		TotalHits:      reduced.TotalHits,
		MaxScore:       reduced.MaxScore,
		SortFields:     sorted.SortFields,
		CollapseField:  sorted.CollapseField,
		CollapseValues: sorted.CollapseValues,
	}
}

func scoreValue(doc model.ScoredDoc, i int) float32 {
	if i >= len(doc.SortValues) {
		return doc.Score
	}
	switch v := doc.SortValues[i].(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	default:
		return float32(math.NaN())
	}
}

// joinSuggestions returns a copy of the reduced suggestions whose completion
// options carry their fetched hits.
func (a *assembler) joinSuggestions(reduced *ReducedQueryPhase, table []SuggestionSlice) []suggest.Suggestion {
	docs := reduced.SortedTopDocs.ScoreDocs
	bySlice := make(map[string]SuggestionSlice, len(table))
	offset := reduced.SortedTopDocs.NumHits
	for _, s := range table {
		if s.Offset != offset {
			panic(fmt.Sprintf("shardreduce: suggestion %q starts at %d, expected %d", s.Name, s.Offset, offset))
		}
		offset += s.Len
		bySlice[s.Name] = s
	}
	if offset != len(docs) {
		panic(fmt.Sprintf("shardreduce: suggestion slices end at %d, sorted docs hold %d", offset, len(docs)))
	}

	out := make([]suggest.Suggestion, len(reduced.Suggest))
	copy(out, reduced.Suggest)
	for i, s := range out {
		c, ok := s.(*suggest.Completion)
		if !ok {
			continue
		}
		slice, ok := bySlice[c.SuggestName]
		if !ok || slice.Len != len(c.Options) {
			panic(fmt.Sprintf("shardreduce: no suggestion slice matches completion %q", c.SuggestName))
		}
		clone := *c
		clone.Options = make([]suggest.CompletionOption, len(c.Options))
		copy(clone.Options, c.Options)
		for j := range clone.Options {
			doc := docs[slice.Offset+j]
			hit, _, found := a.next(doc)
			if !found {
				continue
			}
			clone.Options[j].Score = doc.Score
			clone.Options[j].Hit = &hit
		}
		out[i] = &clone
	}
	return out
}
