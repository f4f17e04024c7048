package topdocs

import (
	"math"

	"github.com/hupe1980/shardreduce/internal/queue"
	"github.com/hupe1980/shardreduce/model"
)

// cursor points at the next unconsumed doc of one input list.
type cursor struct {
	list int
	pos  int
}

// Merge merges per-shard top docs into the global window [from, from+topN).
//
// Every input must already be ordered by the shared sort criteria and carry
// stamped shard indices. The first input holding docs decides the shape of
// the result (score-sorted, field-sorted or collapsed); empty inputs, such as
// those of shards that collected nothing, never do.
//
// Returns nil for empty input. A single input with from == 0 is returned
// as-is without copying.
func Merge(results []model.TopDocs, topN, from int) *model.TopDocs {
	if len(results) == 0 {
		return nil
	}
	if len(results) == 1 && from == 0 {
		return &results[0]
	}
	first := shapeOf(results)

	merged := &model.TopDocs{
		TotalHits:     sumTotalHits(results),
		Fields:        first.Fields,
		CollapseField: first.CollapseField,
	}

	if topN <= 0 || from < 0 {
		merged.ScoreDocs = []model.ScoredDoc{}
		if first.IsCollapsed() {
			merged.CollapseValues = []any{}
		}
		return merged
	}

	want := from + topN
	if want < 0 { // overflow
		want = math.MaxInt
	}

	if first.IsCollapsed() {
		mergeCollapsed(merged, results, want, from)
	} else {
		mergeSorted(merged, results, want, from)
	}
	return merged
}

// shapeOf returns the first input with docs, or the first input if all are
// empty.
func shapeOf(results []model.TopDocs) *model.TopDocs {
	for i := range results {
		if len(results[i].ScoreDocs) > 0 {
			return &results[i]
		}
	}
	return &results[0]
}

func newCursorHeap(results []model.TopDocs, cmp Comparator) *queue.Heap[cursor] {
	h := queue.New(len(results), func(a, b cursor) bool {
		return cmp.Less(results[a.list].ScoreDocs[a.pos], results[b.list].ScoreDocs[b.pos])
	})
	for i := range results {
		if len(results[i].ScoreDocs) > 0 {
			h.Push(cursor{list: i})
		}
	}
	return h
}

// advance moves the top cursor forward or drops it when its list is exhausted.
func advance(h *queue.Heap[cursor], results []model.TopDocs, c cursor) {
	c.pos++
	if c.pos < len(results[c.list].ScoreDocs) {
		h.ReplaceTop(c)
		return
	}
	h.Pop()
}

func mergeSorted(merged *model.TopDocs, results []model.TopDocs, want, from int) {
	h := newCursorHeap(results, NewComparator(merged.Fields))

	docs := make([]model.ScoredDoc, 0, min(want-from, available(results)))
	for n := 0; n < want && h.Len() > 0; n++ {
		c, _ := h.Top()
		if n >= from {
			docs = append(docs, results[c.list].ScoreDocs[c.pos])
		}
		advance(h, results, c)
	}
	merged.ScoreDocs = docs
}

// mergeCollapsed keeps the first (best ranked) doc of every group key. Since
// each list is ordered, the first occurrence of a key across the heap is the
// global best for that group.
func mergeCollapsed(merged *model.TopDocs, results []model.TopDocs, want, from int) {
	h := newCursorHeap(results, NewComparator(merged.Fields))
	seen := make(map[any]struct{})

	docs := make([]model.ScoredDoc, 0, min(want-from, available(results)))
	values := make([]any, 0, cap(docs))
	for n := 0; n < want && h.Len() > 0; {
		c, _ := h.Top()
		key := groupKey(results[c.list], c.pos)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			if n >= from {
				docs = append(docs, results[c.list].ScoreDocs[c.pos])
				values = append(values, key)
			}
			n++
		}
		advance(h, results, c)
	}
	merged.ScoreDocs = docs
	merged.CollapseValues = values
}

func groupKey(td model.TopDocs, pos int) any {
	if pos >= len(td.CollapseValues) {
		return nil
	}
	switch v := td.CollapseValues[pos].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

func available(results []model.TopDocs) int {
	n := 0
	for i := range results {
		n += len(results[i].ScoreDocs)
	}
	return n
}

func sumTotalHits(results []model.TopDocs) model.TotalHits {
	var th model.TotalHits
	for i := range results {
		th.Value += results[i].TotalHits.Value
		if results[i].TotalHits.Relation == model.GreaterThanOrEqualTo {
			th.Relation = model.GreaterThanOrEqualTo
		}
	}
	return th
}
