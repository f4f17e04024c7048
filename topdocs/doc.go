// Package topdocs merges per-shard top-N lists and accumulates hit statistics.
//
// # Ordering
//
// Every merge uses one total order over ScoredDocs:
//
//  1. the sort criteria: score descending when no sort fields are declared,
//     otherwise each SortField in turn;
//  2. ShardIndex ascending;
//  3. Doc ascending.
//
// The tie-break makes the merged output independent of the order in which
// shard results arrive.
//
// # Merging
//
// Merge performs a k-way heap merge over per-shard cursors and returns the
// requested [from, from+topN) window. Collapsed inputs keep only the best
// document per group key across all shards.
//
// # Statistics
//
// Stats accumulates total hits (with the trackTotalHitsUpTo cap), fetch hits,
// max score, and the timed-out/terminated-early flags of consumed shards.
package topdocs
