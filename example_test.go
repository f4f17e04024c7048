package shardreduce_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/shardreduce"
	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
)

// Example_collect demonstrates reducing four shards with a batched consumer
// and joining the fetched hits.
func Example_collect() {
	ctrl := shardreduce.NewController()

	req := shardreduce.NewRequest()
	req.Size = 3
	req.HasAggs = true
	req.BatchedReduceSize = 2

	consumer, err := shardreduce.NewConsumer(ctrl, req, 4, nil)
	if err != nil {
		log.Fatal(err)
	}

	scores := [][]float32{{0.9, 0.3}, {0.8, 0.7}, {0.95}, {0.5}}
	sources := make([]shardreduce.ShardSource, len(scores))
	for i, s := range scores {
		sources[i] = func(context.Context) (*shardreduce.PartialQueryResult, error) {
			r := shardreduce.NewPartialQueryResult(i, model.ShardTarget{Index: "songs", ShardID: i})
			r.Size = req.Size
			docs := make([]model.ScoredDoc, len(s))
			for d, score := range s {
				docs[d] = model.ScoredDoc{Doc: d, Score: score}
			}
			r.SetTopDocs(model.TopDocs{TotalHits: model.TotalHits{Value: int64(len(s))}, ScoreDocs: docs}, s[0])
			r.SetAggs(aggs.Aggregations{&aggs.Sum{AggName: "plays", Sum: float64(10 * i)}})
			return r, nil
		}
	}

	if _, err := shardreduce.Collect(context.Background(), consumer, sources, 2); err != nil {
		log.Fatal(err)
	}
	reduced, err := consumer.Reduce()
	if err != nil {
		log.Fatal(err)
	}

	// Simulate the fetch phase.
	toLoad := shardreduce.FillDocIdsToLoad(4, reduced.SortedTopDocs.ScoreDocs)
	resp := shardreduce.Assemble(reduced, func(shardIndex int) (*shardreduce.FetchResult, bool) {
		fr := &shardreduce.FetchResult{}
		for _, doc := range toLoad[shardIndex] {
			fr.Hits = append(fr.Hits, model.Hit{ID: fmt.Sprintf("shard%d-doc%d", shardIndex, doc)})
		}
		return fr, len(fr.Hits) > 0
	})

	fmt.Printf("total hits: %d\n", resp.Hits.TotalHits.Value)
	fmt.Printf("reduce phases: %d\n", resp.NumReducePhases)
	for _, hit := range resp.Hits.Hits {
		fmt.Printf("%s %.2f\n", hit.ID, hit.Score)
	}
	fmt.Printf("plays: %.0f\n", resp.Aggregations.Get("plays").(aggs.SingleValue).Value())
	// Output:
	// total hits: 6
	// reduce phases: 3
	// shard2-doc0 0.95
	// shard0-doc0 0.90
	// shard1-doc0 0.80
	// plays: 60
}

// ExampleAggregateDfs demonstrates summing term statistics across shards.
func ExampleAggregateDfs() {
	term := shardreduce.Term{Field: "title", Text: "go"}
	agg := shardreduce.AggregateDfs([]shardreduce.DfsResult{
		{Terms: []shardreduce.Term{term}, TermStats: []*shardreduce.TermStatistics{{DocFreq: 3, TotalTermFreq: 4}}, MaxDoc: 100},
		{Terms: []shardreduce.Term{term}, TermStats: []*shardreduce.TermStatistics{{DocFreq: 5, TotalTermFreq: 9}}, MaxDoc: 50},
	})

	fmt.Println(agg.TermStats[term].DocFreq, agg.MaxDoc)
	// Output: 8 150
}
