// Package shardreduce merges per-shard query results into one search response.
//
// A distributed search fans a query out to N shards. Every shard answers with
// a partial result: its own top documents, hit statistics, suggestions and
// aggregation trees. This package reduces those partial results into a
// single ranked, size-bounded response and later joins it with the hits
// loaded by the fetch phase.
//
// # Reducing the query phase
//
// A Consumer receives shard results as they arrive, possibly from many
// goroutines at once:
//
//	ctrl := shardreduce.NewController(
//	    shardreduce.WithLogger(shardreduce.NewJSONLogger(slog.LevelInfo)),
//	    shardreduce.WithMemoryLimit(64<<20),
//	)
//
//	req := shardreduce.NewRequest()
//	req.Size = 20
//	req.HasAggs = true
//
//	consumer, err := shardreduce.NewConsumer(ctrl, req, numShards, nil)
//	if err != nil {
//	    return err
//	}
//	for result := range shardResults {
//	    if err := consumer.ConsumeResult(result); err != nil {
//	        return err
//	    }
//	}
//	reduced, err := consumer.Reduce()
//
// When the number of shards exceeds the request's BatchedReduceSize the
// consumer buffers results and folds them into a partial reduction every time
// the buffer fills. Partial reductions keep aggregation trees mergeable, so
// the final reduction can combine raw and partially reduced state in any mix.
// The number of partial phases depends on arrival order; the merged hit order
// does not.
//
// # Assembling the response
//
// After the fetch phase has loaded the documents referenced by the reduced
// top docs, Assemble joins them back in rank order:
//
//	resp := shardreduce.Assemble(reduced, func(shardIndex int) (*shardreduce.FetchResult, bool) {
//	    r, ok := fetched[shardIndex]
//	    return r, ok
//	})
//
// Shards whose fetch result is missing are skipped; the response carries the
// hits of the remaining shards.
//
// # Observability
//
// Controllers accept a *Logger (log/slog) and a MetricsCollector. The
// promcollector package exports the metrics to Prometheus.
package shardreduce
