package shardreduce

import (
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/suggest"
	"github.com/hupe1980/shardreduce/topdocs"
)

// SuggestionSlice locates the docs of one completion suggestion inside
// SortedTopDocs.ScoreDocs.
type SuggestionSlice struct {
	Name   string
	Offset int
	Len    int
}

// SortedTopDocs is the merged doc list of a query phase.
//
// ScoreDocs holds the NumHits merged hits followed by the option docs of
// every completion suggestion, laid out as described by SuggestionSlices.
type SortedTopDocs struct {
	ScoreDocs        []model.ScoredDoc
	NumHits          int
	SuggestionSlices []SuggestionSlice
	IsSortedByField  bool
	SortFields       []model.SortField
	CollapseField    string
	CollapseValues   []any
}

// EmptySortedTopDocs is returned when there is nothing to merge.
var EmptySortedTopDocs = SortedTopDocs{ScoreDocs: []model.ScoredDoc{}}

// IsEmpty reports whether no doc was merged.
func (s SortedTopDocs) IsEmpty() bool { return len(s.ScoreDocs) == 0 }

// SortDocs merges the top docs of the given results with previously buffered
// top docs and returns the window [from, from+size).
//
// Results whose top docs were not consumed yet are consumed here: their
// statistics are added to stats and their docs are stamped with the shard
// index. With ignoreFrom every window starts at 0, as scroll requests only
// collect size hits per shard.
//
// The option docs of the reduced completion suggestions are appended after
// the merged hits, in suggestion order.
func SortDocs(ignoreFrom bool, results []*PartialQueryResult, bufferedTopDocs []model.TopDocs,
	stats *topdocs.Stats, from, size int, completions []*suggest.Completion) SortedTopDocs {
	if len(results) == 0 {
		return EmptySortedTopDocs
	}

	lists := make([]model.TopDocs, 0, len(bufferedTopDocs)+len(results))
	for _, td := range bufferedTopDocs {
		if len(td.ScoreDocs) > 0 {
			lists = append(lists, td)
		}
	}
	for _, r := range results {
		if r.HasConsumedTopDocs() {
			continue
		}
		td := r.ConsumeTopDocs()
		stats.Add(td, r.TimedOut, r.TerminatedEarly)
		if len(td.TopDocs.ScoreDocs) > 0 {
			td.TopDocs.SetShardIndex(r.ShardIndex)
			lists = append(lists, td.TopDocs)
		}
	}

	if len(completions) == 0 && len(lists) == 0 {
		return EmptySortedTopDocs
	}

	if ignoreFrom {
		from = 0
	}
	merged := topdocs.Merge(lists, size, from)

	var hits []model.ScoredDoc
	if merged != nil {
		hits = merged.ScoreDocs
	}
	sorted := SortedTopDocs{ScoreDocs: hits, NumHits: len(hits)}

	if len(completions) > 0 {
		n := len(hits)
		for _, c := range completions {
			n += len(c.Options)
		}
		docs := make([]model.ScoredDoc, len(hits), n)
		copy(docs, hits)
		sorted.SuggestionSlices = make([]SuggestionSlice, 0, len(completions))
		for _, c := range completions {
			sorted.SuggestionSlices = append(sorted.SuggestionSlices, SuggestionSlice{
				Name:   c.SuggestName,
				Offset: len(docs),
				Len:    len(c.Options),
			})
			for _, o := range c.Options {
				docs = append(docs, o.ScoredDoc())
			}
		}
		sorted.ScoreDocs = docs
	}

	if sorted.ScoreDocs == nil {
		sorted.ScoreDocs = []model.ScoredDoc{}
	}

	switch {
	case merged == nil:
	case merged.IsCollapsed():
		// A collapse sorted by score alone carries no sort values worth
		// returning.
		sorted.SortFields = merged.Fields
		sorted.IsSortedByField = merged.IsSortedByField() &&
			!(len(merged.Fields) == 1 && merged.Fields[0].Type == model.SortScore)
		sorted.CollapseField = merged.CollapseField
		sorted.CollapseValues = merged.CollapseValues
	case merged.IsSortedByField():
		sorted.SortFields = merged.Fields
		sorted.IsSortedByField = true
	}
	return sorted
}
