package aggs

import (
	"fmt"
	"sync"
)

// ReduceFunc merges same-named aggregations of one type into one.
// The slice always holds at least one element.
type ReduceFunc func(aggs []Aggregation, rc *ReduceContext) (Aggregation, error)

// DecodeFunc decodes the body of a serialized aggregation.
type DecodeFunc func(body []byte, d *Decoder) (Aggregation, error)

// Type is the merge and decode strategy of one aggregation type.
type Type struct {
	Reduce ReduceFunc
	Decode DecodeFunc
}

// Registry maps type tags to strategies.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]Type)}
	r.MustRegister(TypeSum, Type{Reduce: reduceSum, Decode: decodeSum})
	r.MustRegister(TypeMin, Type{Reduce: reduceMin, Decode: decodeMin})
	r.MustRegister(TypeMax, Type{Reduce: reduceMax, Decode: decodeMax})
	r.MustRegister(TypeAvg, Type{Reduce: reduceAvg, Decode: decodeAvg})
	r.MustRegister(TypeValueCount, Type{Reduce: reduceValueCount, Decode: decodeAs[*ValueCount]})
	r.MustRegister(TypeCardinality, Type{Reduce: reduceCardinality, Decode: decodeCardinality})
	r.MustRegister(TypePercentiles, Type{Reduce: reducePercentiles, Decode: decodePercentiles})
	r.MustRegister(TypeTerms, Type{Reduce: reduceTerms, Decode: decodeTerms})
	r.MustRegister(TypeHistogram, Type{Reduce: reduceHistogram, Decode: decodeHistogram})
	r.MustRegister(TypeSimpleValue, Type{Reduce: reduceSimpleValue, Decode: decodeSimpleValue})
	return r
}

// Register adds a strategy for a type tag.
func (r *Registry) Register(tag string, t Type) error {
	if tag == "" || t.Reduce == nil || t.Decode == nil {
		return fmt.Errorf("aggs: incomplete registration for type %q", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[tag]; ok {
		return fmt.Errorf("aggs: type %q already registered", tag)
	}
	r.types[tag] = t
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tag string, t Type) {
	if err := r.Register(tag, t); err != nil {
		panic(err)
	}
}

// Lookup returns the strategy for a type tag.
func (r *Registry) Lookup(tag string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[tag]
	return t, ok
}

func (r *Registry) resolve(name, tag string) (Type, error) {
	t, ok := r.Lookup(tag)
	if !ok {
		return Type{}, &UnregisteredAggregationError{Name: name, Type: tag}
	}
	return t, nil
}
