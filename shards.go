package shardreduce

import "github.com/hupe1980/shardreduce/model"

// LastEmittedDocPerShard returns, per shard, the last doc of the returned
// hit window, or nil if the shard contributed none. Scroll requests resume
// every shard after this doc; from is always 0 for them.
func LastEmittedDocPerShard(reduced *ReducedQueryPhase, numShards int) []*model.ScoredDoc {
	last := make([]*model.ScoredDoc, numShards)
	if reduced.IsEmptyResult {
		return last
	}
	sorted := reduced.SortedTopDocs
	n := max(0, min(reduced.FetchHits, int64(reduced.Size), int64(sorted.NumHits)))
	for _, doc := range sorted.ScoreDocs[:n] {
		d := doc
		last[doc.ShardIndex] = &d
	}
	return last
}

// FillDocIdsToLoad groups docs by shard for the fetch phase. The doc ids of
// each shard keep the order of docs; shards without docs get nil.
func FillDocIdsToLoad(numShards int, docs []model.ScoredDoc) [][]int {
	ids := make([][]int, numShards)
	for _, doc := range docs {
		ids[doc.ShardIndex] = append(ids[doc.ShardIndex], doc.Doc)
	}
	return ids
}
