// Package aggs reduces per-shard aggregation trees into one tree.
//
// An aggregation tree is an ordered forest of named nodes. Every node type
// registers a merge strategy in a Registry; Reduce groups same-named nodes
// across forests and dispatches to that strategy once per name. Bucketed
// types recurse into the sub-aggregations of equal buckets.
//
// Reductions come in two flavours, selected by the ReduceContext:
//
//   - partial: used while shard results are still arriving. Buckets are
//     never trimmed and pipelines never run, so the output can be reduced
//     again with more raw or partially reduced trees.
//   - final: trims buckets to their requested size, applies min doc counts,
//     enforces the bucket limit and runs sibling pipelines.
//
// Floating point sums use compensated summation but are not bit-exact across
// different arrival orders. Cardinality and percentile sketches merge their
// internal state (registers, centroids) and never combine estimates.
package aggs
