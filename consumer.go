package shardreduce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/shardreduce/aggs"
	"github.com/hupe1980/shardreduce/model"
	"github.com/hupe1980/shardreduce/topdocs"
)

// Consumer collects shard query results and reduces them.
//
// ConsumeResult is safe for concurrent use. Reduce is called once, after the
// last result was consumed.
type Consumer interface {
	// ConsumeResult hands a shard result to the consumer, which takes
	// ownership of it.
	ConsumeResult(result *PartialQueryResult) error
	// Reduce performs the final reduction.
	Reduce() (*ReducedQueryPhase, error)
	// NumShards returns the number of shards of the request.
	NumShards() int
	// State returns the current state.
	State() State
}

// State is the lifecycle state of a Consumer.
type State uint8

const (
	// StateCollecting accepts results.
	StateCollecting State = iota
	// StatePartialReducing folds the buffer into a partial reduction.
	StatePartialReducing
	// StateFinalReducing performs the final reduction.
	StateFinalReducing
	// StateDone has returned the reduced query phase.
	StateDone
	// StateFailed has failed; every later call returns the same error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StatePartialReducing:
		return "partial_reducing"
	case StateFinalReducing:
		return "final_reducing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// NewConsumer returns a Consumer for a request over numShards shards.
//
// Results are reduced incrementally when the request is not a scroll, tracks
// top docs or aggregations, and has more shards than its batched reduce
// size. Otherwise results are kept as they arrive and reduced once.
// A nil listener is replaced by NoopProgressListener.
func NewConsumer(c *Controller, req Request, numShards int, listener ProgressListener) (Consumer, error) {
	if numShards < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidShardCount, numShards)
	}
	req = req.normalized()
	if !req.Scroll && (req.HasAggs || req.hasTopDocs()) && req.BatchedReduceSize < numShards {
		b, err := newBufferedConsumer(c, req, numShards, listener)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return newArrayConsumer(c, req, numShards, listener), nil
}

// shardSlots stores results by shard index.
type shardSlots struct {
	results   []*PartialQueryResult
	processed *roaring.Bitmap
}

func newShardSlots(numShards int) shardSlots {
	return shardSlots{
		results:   make([]*PartialQueryResult, numShards),
		processed: roaring.New(),
	}
}

func (s *shardSlots) check(r *PartialQueryResult) error {
	if r == nil {
		return ErrNilResult
	}
	if r.ShardIndex < 0 || r.ShardIndex >= len(s.results) {
		return &ErrShardIndexOutOfRange{ShardIndex: r.ShardIndex, NumShards: len(s.results)}
	}
	if s.processed.Contains(uint32(r.ShardIndex)) {
		return fmt.Errorf("%w: shard %d", ErrDuplicateShardResult, r.ShardIndex)
	}
	return nil
}

func (s *shardSlots) store(r *PartialQueryResult) {
	s.results[r.ShardIndex] = r
	s.processed.Add(uint32(r.ShardIndex))
}

// list returns the stored results in shard order.
func (s *shardSlots) list() []*PartialQueryResult {
	out := make([]*PartialQueryResult, 0, s.processed.GetCardinality())
	it := s.processed.Iterator()
	for it.HasNext() {
		out = append(out, s.results[it.Next()])
	}
	return out
}

// arrayConsumer keeps raw results and reduces them once.
type arrayConsumer struct {
	c        *Controller
	req      Request
	builder  aggs.ReduceContextBuilder
	listener safeListener

	mu    sync.Mutex
	state State
	err   error
	slots shardSlots
}

func newArrayConsumer(c *Controller, req Request, numShards int, listener ProgressListener) *arrayConsumer {
	return &arrayConsumer{
		c:        c,
		req:      req,
		builder:  c.contextBuilder(req),
		listener: newSafeListener(listener, c.logger.WithShards(numShards)),
		slots:    newShardSlots(numShards),
	}
}

func (a *arrayConsumer) NumShards() int { return len(a.slots.results) }

func (a *arrayConsumer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *arrayConsumer) ConsumeResult(r *PartialQueryResult) error {
	a.mu.Lock()
	err := a.consumeLocked(r)
	a.mu.Unlock()
	if r != nil {
		a.c.metrics.RecordConsume(r.ShardIndex, err)
	}
	if err != nil {
		return err
	}
	a.listener.OnQueryResult(r.ShardIndex)
	return nil
}

func (a *arrayConsumer) consumeLocked(r *PartialQueryResult) error {
	switch a.state {
	case StateFailed:
		return a.err
	case StateFinalReducing, StateDone:
		return ErrConsumerClosed
	}
	if err := a.slots.check(r); err != nil {
		return err
	}
	a.slots.store(r)
	return nil
}

func (a *arrayConsumer) Reduce() (*ReducedQueryPhase, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case StateFailed:
		return nil, a.err
	case StateFinalReducing, StateDone:
		return nil, ErrConsumerClosed
	}
	a.state = StateFinalReducing

	start := time.Now()
	results := a.slots.list()
	reduced, err := a.c.reduceQueryPhase(results, nil, nil, topdocs.NewStats(a.req.TrackTotalHitsUpTo), 0,
		a.req, a.builder)
	a.c.recordFinalReduce(reduced, len(results), time.Since(start), err)
	if err != nil {
		a.state, a.err = StateFailed, err
		return nil, err
	}
	a.state = StateDone
	a.listener.OnFinalReduce(shardTargets(results), reduced.TotalHits, reduced.Aggregations, reduced.NumReducePhases)
	return reduced, nil
}

// bufferedConsumer reduces results incrementally. It buffers up to
// bufferSize results; the result arriving at a full buffer first folds the
// buffer into a partial reduction kept in slot 0.
type bufferedConsumer struct {
	c          *Controller
	builder    aggs.ReduceContextBuilder
	logger     *Logger
	listener   safeListener
	req        Request
	bufferSize int
	topNSize   int
	hasTopDocs bool
	hasAggs    bool

	mu              sync.Mutex
	state           State
	err             error
	slots           shardSlots
	aggsBuffer      []aggs.Delayable
	aggsBytes       int64
	topDocsBuffer   []model.TopDocs
	index           int
	numReducePhases int
	stats           *topdocs.Stats
	traceLog        rate.Sometimes
}

func newBufferedConsumer(c *Controller, req Request, expected int, listener ProgressListener) (*bufferedConsumer, error) {
	bufferSize := req.BatchedReduceSize
	invalid := func(cause error) error {
		return &ErrInvalidBuffer{Expected: expected, BufferSize: bufferSize, cause: cause}
	}
	switch {
	case expected < 1:
		return nil, invalid(ErrInvalidShardCount)
	case expected != 1 && bufferSize < 2:
		return nil, invalid(ErrInvalidBufferSize)
	case expected <= bufferSize:
		return nil, invalid(ErrBufferNotSmaller)
	case !req.HasAggs && !req.hasTopDocs():
		return nil, invalid(ErrNothingToReduce)
	}

	logger := c.logger.WithShards(expected)
	b := &bufferedConsumer{
		c:          c,
		req:        req,
		builder:    c.contextBuilder(req),
		logger:     logger,
		listener:   newSafeListener(listener, logger),
		bufferSize: bufferSize,
		topNSize:   TopDocsSize(req),
		hasTopDocs: req.hasTopDocs(),
		hasAggs:    req.HasAggs,
		slots:      newShardSlots(expected),
		stats:      topdocs.NewStats(req.TrackTotalHitsUpTo),
		traceLog:   rate.Sometimes{First: 1, Interval: time.Second},
	}
	if b.hasAggs {
		b.aggsBuffer = make([]aggs.Delayable, bufferSize)
	}
	if b.hasTopDocs {
		b.topDocsBuffer = make([]model.TopDocs, bufferSize)
	}
	return b, nil
}

func (b *bufferedConsumer) NumShards() int { return len(b.slots.results) }

func (b *bufferedConsumer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// NumReducePhases returns the number of partial reductions so far.
func (b *bufferedConsumer) NumReducePhases() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numReducePhases
}

func (b *bufferedConsumer) ConsumeResult(r *PartialQueryResult) error {
	b.mu.Lock()
	err := b.consumeLocked(r)
	b.mu.Unlock()
	if r != nil {
		b.c.metrics.RecordConsume(r.ShardIndex, err)
	}
	if err != nil {
		return err
	}
	b.listener.OnQueryResult(r.ShardIndex)
	return nil
}

func (b *bufferedConsumer) consumeLocked(r *PartialQueryResult) error {
	switch b.state {
	case StateFailed:
		return b.err
	case StateFinalReducing, StateDone:
		return ErrConsumerClosed
	}
	if err := b.slots.check(r); err != nil {
		return err
	}

	if !r.IsNull() {
		if b.index == b.bufferSize {
			if err := b.partialReduceLocked(); err != nil {
				return b.fail(err)
			}
		}
		i := b.index
		if b.hasAggs {
			s, err := b.c.serialize(r.ConsumeAggs())
			if err != nil {
				return b.fail(fmt.Errorf("serialize aggregations of shard %d: %w", r.ShardIndex, err))
			}
			if err := b.c.resources.AcquireMemory(s.RAMBytesUsed()); err != nil {
				return b.fail(err)
			}
			b.aggsBytes += s.RAMBytesUsed()
			b.aggsBuffer[i] = s
		}
		if b.hasTopDocs {
			td := r.ConsumeTopDocs()
			b.stats.Add(td, r.TimedOut, r.TerminatedEarly)
			td.TopDocs.SetShardIndex(r.ShardIndex)
			b.topDocsBuffer[i] = td.TopDocs
		}
		b.index++
	}
	b.slots.store(r)
	return nil
}

func (b *bufferedConsumer) partialReduceLocked() error {
	b.state = StatePartialReducing
	start := time.Now()
	phase := b.numReducePhases + 1

	var reduced aggs.Aggregations
	previousBytes := b.aggsBytes
	if b.hasAggs {
		var err error
		reduced, err = b.c.reduceAggs(b.builder, false, b.aggsBuffer)
		if err == nil {
			err = b.storeReducedAggs(reduced)
		}
		if err != nil {
			err = &ErrReduceFailed{Phase: phase, cause: err}
			b.c.metrics.RecordPartialReduce(b.aggsBytes, time.Since(start), err)
			b.logger.LogPartialReduce(context.Background(), phase, previousBytes, b.aggsBytes, err)
			return err
		}
	}
	if b.hasTopDocs {
		merged := *topdocs.Merge(b.topDocsBuffer, b.topNSize, 0)
		clear(b.topDocsBuffer)
		b.topDocsBuffer[0] = merged
	}
	b.numReducePhases = phase
	b.index = 1
	b.state = StateCollecting

	b.c.metrics.RecordPartialReduce(b.aggsBytes, time.Since(start), nil)
	b.traceLog.Do(func() {
		b.logger.LogPartialReduce(context.Background(), phase, previousBytes, b.aggsBytes, nil)
	})
	b.listener.OnPartialReduce(shardTargets(b.slots.list()), b.stats.TotalHits(), reduced, phase)
	return nil
}

// storeReducedAggs serializes a partial reduction into slot 0 and moves the
// memory reservation from the buffered trees to it.
func (b *bufferedConsumer) storeReducedAggs(reduced aggs.Aggregations) error {
	s, err := aggs.Serialize(reduced, b.c.codec, b.c.compression)
	if err != nil {
		return err
	}
	b.c.resources.ReleaseMemory(b.aggsBytes)
	b.aggsBytes = 0
	if err := b.c.resources.AcquireMemory(s.RAMBytesUsed()); err != nil {
		return err
	}
	b.aggsBytes = s.RAMBytesUsed()
	b.aggsBuffer[0] = s
	return nil
}

func (b *bufferedConsumer) fail(err error) error {
	b.state, b.err = StateFailed, err
	b.releaseLocked()
	return err
}

func (b *bufferedConsumer) releaseLocked() {
	b.c.resources.ReleaseMemory(b.aggsBytes)
	b.aggsBytes = 0
	clear(b.aggsBuffer)
	clear(b.topDocsBuffer)
}

func (b *bufferedConsumer) Reduce() (*ReducedQueryPhase, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateFailed:
		return nil, b.err
	case StateFinalReducing, StateDone:
		return nil, ErrConsumerClosed
	}
	b.state = StateFinalReducing

	var (
		bufferedAggs    []aggs.Delayable
		bufferedTopDocs []model.TopDocs
	)
	if b.hasAggs {
		bufferedAggs = b.aggsBuffer[:b.index]
	}
	if b.hasTopDocs {
		bufferedTopDocs = b.topDocsBuffer[:b.index]
	}

	start := time.Now()
	results := b.slots.list()
	reduced, err := b.c.reduceQueryPhase(results, bufferedAggs, bufferedTopDocs, b.stats, b.numReducePhases,
		b.req, b.builder)
	b.c.recordFinalReduce(reduced, len(results), time.Since(start), err)
	b.releaseLocked()
	if err != nil {
		b.state, b.err = StateFailed, err
		return nil, err
	}
	b.state = StateDone
	b.listener.OnFinalReduce(shardTargets(results), reduced.TotalHits, reduced.Aggregations, reduced.NumReducePhases)
	return reduced, nil
}
