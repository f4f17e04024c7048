package shardreduce

import "fmt"

// Term is a field and term text pair.
type Term struct {
	Field string
	Text  string
}

// TermStatistics are the document frequencies of one term.
type TermStatistics struct {
	DocFreq       int64
	TotalTermFreq int64
}

// CollectionStatistics are the statistics of one field.
type CollectionStatistics struct {
	MaxDoc           int64
	DocCount         int64
	SumTotalTermFreq int64
	SumDocFreq       int64
}

// DfsResult is the distributed frequency phase result of one shard.
// TermStats[i] holds the statistics of Terms[i]; nil entries are skipped.
type DfsResult struct {
	Terms      []Term
	TermStats  []*TermStatistics
	FieldStats map[string]*CollectionStatistics
	MaxDoc     int64
}

// AggregatedDfs are term and field statistics summed over all shards.
type AggregatedDfs struct {
	TermStats  map[Term]TermStatistics
	FieldStats map[string]CollectionStatistics
	MaxDoc     int64
}

// AggregateDfs sums the statistics of all shards so every shard can score
// with global frequencies.
//
// Panics if a result carries a different number of terms and statistics.
func AggregateDfs(results []DfsResult) AggregatedDfs {
	agg := AggregatedDfs{
		TermStats:  make(map[Term]TermStatistics),
		FieldStats: make(map[string]CollectionStatistics),
	}
	for _, r := range results {
		if len(r.Terms) != len(r.TermStats) {
			panic(fmt.Sprintf("shardreduce: dfs result has %d terms but %d statistics", len(r.Terms), len(r.TermStats)))
		}
		for i, term := range r.Terms {
			st := r.TermStats[i]
			if st == nil {
				continue
			}
			cur := agg.TermStats[term]
			cur.DocFreq += st.DocFreq
			cur.TotalTermFreq += st.TotalTermFreq
			agg.TermStats[term] = cur
		}
		for field, st := range r.FieldStats {
			if st == nil {
				continue
			}
			cur := agg.FieldStats[field]
			cur.MaxDoc += st.MaxDoc
			cur.DocCount += st.DocCount
			cur.SumTotalTermFreq += st.SumTotalTermFreq
			cur.SumDocFreq += st.SumDocFreq
			agg.FieldStats[field] = cur
		}
		agg.MaxDoc += r.MaxDoc
	}
	return agg
}
