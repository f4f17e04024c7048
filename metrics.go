package shardreduce

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting reduction metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordConsume is called after each consumed shard result.
	// err is nil if the result was accepted.
	RecordConsume(shardIndex int, err error)

	// RecordPartialReduce is called after each partial reduction.
	// bufferedBytes is the size of the buffered aggregations afterwards.
	RecordPartialReduce(bufferedBytes int64, duration time.Duration, err error)

	// RecordFinalReduce is called after each final reduction.
	// phases is the number of reduce phases, the final one included.
	RecordFinalReduce(phases int, duration time.Duration, err error)

	// RecordFetchMiss is called for every hit skipped because its shard
	// has no fetch result.
	RecordFetchMiss(shardIndex int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordConsume(int, error)                        {}
func (NoopMetricsCollector) RecordPartialReduce(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordFinalReduce(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordFetchMiss(int)                             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ConsumeCount            atomic.Int64
	ConsumeErrors           atomic.Int64
	PartialReduceCount      atomic.Int64
	PartialReduceErrors     atomic.Int64
	PartialReduceTotalNanos atomic.Int64
	BufferedBytes           atomic.Int64
	FinalReduceCount        atomic.Int64
	FinalReduceErrors       atomic.Int64
	FinalReduceTotalNanos   atomic.Int64
	ReducePhases            atomic.Int64
	FetchMisses             atomic.Int64
}

// RecordConsume implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConsume(shardIndex int, err error) {
	b.ConsumeCount.Add(1)
	if err != nil {
		b.ConsumeErrors.Add(1)
	}
}

// RecordPartialReduce implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartialReduce(bufferedBytes int64, duration time.Duration, err error) {
	b.PartialReduceCount.Add(1)
	b.PartialReduceTotalNanos.Add(duration.Nanoseconds())
	b.BufferedBytes.Store(bufferedBytes)
	if err != nil {
		b.PartialReduceErrors.Add(1)
	}
}

// RecordFinalReduce implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalReduce(phases int, duration time.Duration, err error) {
	b.FinalReduceCount.Add(1)
	b.FinalReduceTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FinalReduceErrors.Add(1)
		return
	}
	b.ReducePhases.Add(int64(phases))
}

// RecordFetchMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetchMiss(shardIndex int) {
	b.FetchMisses.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ConsumeCount:          b.ConsumeCount.Load(),
		ConsumeErrors:         b.ConsumeErrors.Load(),
		PartialReduceCount:    b.PartialReduceCount.Load(),
		PartialReduceErrors:   b.PartialReduceErrors.Load(),
		PartialReduceAvgNanos: avgNanos(b.PartialReduceTotalNanos.Load(), b.PartialReduceCount.Load()),
		BufferedBytes:         b.BufferedBytes.Load(),
		FinalReduceCount:      b.FinalReduceCount.Load(),
		FinalReduceErrors:     b.FinalReduceErrors.Load(),
		FinalReduceAvgNanos:   avgNanos(b.FinalReduceTotalNanos.Load(), b.FinalReduceCount.Load()),
		ReducePhases:          b.ReducePhases.Load(),
		FetchMisses:           b.FetchMisses.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ConsumeCount          int64
	ConsumeErrors         int64
	PartialReduceCount    int64
	PartialReduceErrors   int64
	PartialReduceAvgNanos int64
	BufferedBytes         int64
	FinalReduceCount      int64
	FinalReduceErrors     int64
	FinalReduceAvgNanos   int64
	ReducePhases          int64
	FetchMisses           int64
}
