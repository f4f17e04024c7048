package aggs

import (
	"fmt"
)

// Reduce merges same-named aggregations across forests.
//
// Names keep the order of their first occurrence. Each name resolves its
// strategy once; a type tag without strategy fails with an
// UnregisteredAggregationError. A final context also runs the sibling
// pipelines and appends their outputs after the reduced aggregations.
func Reduce(forests []Aggregations, rc *ReduceContext) (Aggregations, error) {
	if rc == nil {
		rc = &ReduceContext{}
	}
	out, err := reduceForests(forests, rc)
	if err != nil || len(out) == 0 || !rc.Final {
		return out, err
	}
	for _, p := range rc.Pipelines {
		agg, err := p.apply(out)
		if err != nil {
			return nil, fmt.Errorf("aggs: pipeline %q: %w", p.Name, err)
		}
		out = append(out, agg)
	}
	return out, nil
}

// reduceForests is Reduce without pipelines; bucket types use it for
// sub-aggregations.
func reduceForests(forests []Aggregations, rc *ReduceContext) (Aggregations, error) {
	var order []string
	groups := make(map[string][]Aggregation)
	for _, forest := range forests {
		for _, agg := range forest {
			if agg == nil {
				continue
			}
			name := agg.Name()
			if _, ok := groups[name]; !ok {
				order = append(order, name)
			}
			groups[name] = append(groups[name], agg)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	reg := rc.registry()
	out := make(Aggregations, 0, len(order))
	for _, name := range order {
		group := groups[name]
		tag := group[0].Type()
		for _, agg := range group[1:] {
			if agg.Type() != tag {
				return nil, fmt.Errorf("%w: %q is both %s and %s", ErrAggregationTypeMismatch, name, tag, agg.Type())
			}
		}
		t, err := reg.resolve(name, tag)
		if err != nil {
			return nil, err
		}
		reduced, err := t.Reduce(group, rc)
		if err != nil {
			return nil, fmt.Errorf("aggs: reduce %q: %w", name, err)
		}
		out = append(out, reduced)
	}
	return out, nil
}

// cast converts a same-tag group to its concrete type.
func cast[T Aggregation](group []Aggregation) ([]T, error) {
	out := make([]T, len(group))
	for i, agg := range group {
		v, ok := agg.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %q has unexpected implementation %T", ErrAggregationTypeMismatch, agg.Name(), agg)
		}
		out[i] = v
	}
	return out, nil
}
