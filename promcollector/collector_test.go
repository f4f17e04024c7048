package promcollector

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardreduce"
	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counter(t *testing.T, f *dto.MetricFamily, status string) float64 {
	t.Helper()
	require.NotNil(t, f)
	for _, m := range f.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" && l.GetValue() == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "test")
	require.NoError(t, err)

	c.RecordConsume(0, nil)
	c.RecordConsume(1, nil)
	c.RecordConsume(2, errors.New("duplicate"))
	c.RecordPartialReduce(128, 5*time.Millisecond, nil)
	c.RecordPartialReduce(0, time.Millisecond, errors.New("breaker"))
	c.RecordFinalReduce(3, 10*time.Millisecond, nil)
	c.RecordFetchMiss(4)

	families := gather(t, reg)
	assert.Equal(t, 2.0, counter(t, families["test_shard_results_total"], "success"))
	assert.Equal(t, 1.0, counter(t, families["test_shard_results_total"], "error"))
	assert.Equal(t, 1.0, counter(t, families["test_partial_reduces_total"], "error"))
	assert.Equal(t, 128.0, families["test_buffered_aggregation_bytes"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, uint64(2), families["test_partial_reduce_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, 3.0, families["test_reduce_phases"].GetMetric()[0].GetHistogram().GetSampleSum())
	assert.Equal(t, 1.0, families["test_fetch_misses_total"].GetMetric()[0].GetCounter().GetValue())

	_, err = New(reg, "test")
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestCollectorWithConsumer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "")
	require.NoError(t, err)

	ctrl := shardreduce.NewController(shardreduce.WithMetricsCollector(c))
	req := shardreduce.NewRequest()
	req.HasAggs = true
	req.BatchedReduceSize = 2

	consumer, err := shardreduce.NewConsumer(ctrl, req, 4, nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		r := shardreduce.NewPartialQueryResult(i, model.ShardTarget{Index: "logs", ShardID: i})
		r.SetTopDocs(model.TopDocs{
			TotalHits: model.TotalHits{Value: 1},
			ScoreDocs: []model.ScoredDoc{{Doc: 0, Score: float32(i)}},
		}, float32(i))
		r.SetAggs(aggs.Aggregations{&aggs.Sum{AggName: "total", Sum: 1}})
		require.NoError(t, consumer.ConsumeResult(r))
	}
	_, err = consumer.Reduce()
	require.NoError(t, err)

	families := gather(t, reg)
	assert.Equal(t, 4.0, counter(t, families["shardreduce_shard_results_total"], "success"))
	// Results three and four each arrive at a full buffer of two.
	assert.Equal(t, 2.0, counter(t, families["shardreduce_partial_reduces_total"], "success"))
	assert.Equal(t, 1.0, counter(t, families["shardreduce_final_reduces_total"], "success"))
	assert.Equal(t, 3.0, families["shardreduce_reduce_phases"].GetMetric()[0].GetHistogram().GetSampleSum())
}
