// Package promcollector exports reduction metrics to Prometheus.
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/shardreduce"
)

// DefaultNamespace prefixes every metric name unless New is given another.
const DefaultNamespace = "shardreduce"

var _ shardreduce.MetricsCollector = (*Collector)(nil)

// Collector implements shardreduce.MetricsCollector on Prometheus metrics.
type Collector struct {
	consumed       *prometheus.CounterVec
	partialReduces *prometheus.CounterVec
	partialLatency prometheus.Histogram
	bufferedBytes  prometheus.Gauge
	finalReduces   *prometheus.CounterVec
	finalLatency   prometheus.Histogram
	reducePhases   prometheus.Histogram
	fetchMisses    prometheus.Counter
}

// New creates a collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer; an empty namespace uses
// DefaultNamespace.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_results_total",
			Help:      "Shard results offered to consumers",
		}, []string{"status"}),
		partialReduces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_reduces_total",
			Help:      "Partial reductions of buffered shard results",
		}, []string{"status"}),
		partialLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partial_reduce_duration_seconds",
			Help:      "Latency of partial reductions",
			Buckets:   prometheus.DefBuckets,
		}),
		bufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_aggregation_bytes",
			Help:      "Serialized size of the aggregations buffered by the last partial reduction",
		}),
		finalReduces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_reduces_total",
			Help:      "Final reductions of the query phase",
		}, []string{"status"}),
		finalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_reduce_duration_seconds",
			Help:      "Latency of final reductions",
			Buckets:   prometheus.DefBuckets,
		}),
		reducePhases: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduce_phases",
			Help:      "Reduce phases per search, including the final one",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		fetchMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_misses_total",
			Help:      "Merged docs skipped because their shard had no fetch result",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.consumed, c.partialReduces, c.partialLatency, c.bufferedBytes,
		c.finalReduces, c.finalLatency, c.reducePhases, c.fetchMisses,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordConsume counts a consumed shard result. Shard indexes are not used
// as labels.
func (c *Collector) RecordConsume(_ int, err error) {
	c.consumed.WithLabelValues(status(err)).Inc()
}

func (c *Collector) RecordPartialReduce(bufferedBytes int64, d time.Duration, err error) {
	c.partialReduces.WithLabelValues(status(err)).Inc()
	c.partialLatency.Observe(d.Seconds())
	if err == nil {
		c.bufferedBytes.Set(float64(bufferedBytes))
	}
}

func (c *Collector) RecordFinalReduce(phases int, d time.Duration, err error) {
	c.finalReduces.WithLabelValues(status(err)).Inc()
	c.finalLatency.Observe(d.Seconds())
	if err == nil {
		c.reducePhases.Observe(float64(phases))
	}
}

func (c *Collector) RecordFetchMiss(_ int) {
	c.fetchMisses.Inc()
}
