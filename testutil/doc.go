// Package testutil provides testing utilities for shardreduce.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe RNG and generators for
// shard-local top docs and skewed term distributions.
//
// # Shard Results
//
//	rng := testutil.NewRNG(seed)
//	td := rng.ScoreTopDocs(shardIndex, 5, 4) // 5 docs, scores drawn from 4 levels
//
// Quantized scores deliberately produce ties so tests exercise the
// (shard index, doc) tie-break.
package testutil
