// Package model defines the core types shared by the reduction packages.
//
// # Identity Types
//
//   - ShardTarget: the node/index/shard triple a partial result came from
//   - ScoredDoc: a shard-local document reference with its score and sort values
//
// # Result Types
//
//   - TotalHits: hit count plus its exactness relation
//   - TopDocs: one shard's ordered top-N list, optionally field-sorted or collapsed
//   - TopDocsAndMaxScore: TopDocs plus the shard's max score
//
// ScoredDoc ordering is defined by the sort criteria of the enclosing TopDocs,
// with ShardIndex then Doc as tie-break (see package topdocs).
package model
