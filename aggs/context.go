package aggs

import "sync"

// DefaultMaxBuckets bounds the buckets a final reduction may produce.
const DefaultMaxBuckets = 65_536

// ReduceContext carries the settings of one reduction.
// A context counts buckets while reducing and must not be reused.
type ReduceContext struct {
	// Final selects the final reduction. Partial reductions keep every
	// bucket and skip pipelines.
	Final bool
	// Pipelines are sibling pipelines run after a final reduction.
	Pipelines []Pipeline
	// MaxBuckets limits the buckets of a final reduction. 0 disables the check.
	MaxBuckets int
	// Registry resolves type tags. nil uses a registry with the built-in types.
	Registry *Registry

	buckets int
}

var (
	builtinOnce sync.Once
	builtinReg  *Registry
)

// builtinRegistry returns the shared registry of the built-in types. It is
// built on first use; the reducers it holds refer back to it.
func builtinRegistry() *Registry {
	builtinOnce.Do(func() { builtinReg = NewRegistry() })
	return builtinReg
}

func (rc *ReduceContext) registry() *Registry {
	if rc.Registry != nil {
		return rc.Registry
	}
	return builtinRegistry()
}

// ConsumeBuckets accounts n buckets of a final reduction.
// It is a no-op for partial reductions.
func (rc *ReduceContext) ConsumeBuckets(n int) error {
	if !rc.Final || rc.MaxBuckets <= 0 {
		return nil
	}
	rc.buckets += n
	if rc.buckets > rc.MaxBuckets {
		return &TooManyBucketsError{Limit: rc.MaxBuckets, Count: rc.buckets}
	}
	return nil
}

// ReduceContextBuilder creates contexts for the two reduction flavours.
type ReduceContextBuilder interface {
	ForPartialReduction() *ReduceContext
	ForFinalReduction() *ReduceContext
}

// ContextBuilder is the default ReduceContextBuilder.
type ContextBuilder struct {
	Registry   *Registry
	Pipelines  []Pipeline
	MaxBuckets int
}

// ForPartialReduction returns a fresh partial context.
func (b ContextBuilder) ForPartialReduction() *ReduceContext {
	return &ReduceContext{Registry: b.Registry}
}

// ForFinalReduction returns a fresh final context.
func (b ContextBuilder) ForFinalReduction() *ReduceContext {
	maxBuckets := b.MaxBuckets
	if maxBuckets == 0 {
		maxBuckets = DefaultMaxBuckets
	}
	return &ReduceContext{
		Final:      true,
		Pipelines:  b.Pipelines,
		MaxBuckets: maxBuckets,
		Registry:   b.Registry,
	}
}
