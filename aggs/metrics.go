package aggs

import (
	"math"
)

// Built-in type tags.
const (
	TypeSum         = "sum"
	TypeMin         = "min"
	TypeMax         = "max"
	TypeAvg         = "avg"
	TypeValueCount  = "value_count"
	TypeCardinality = "cardinality"
	TypePercentiles = "percentiles"
	TypeTerms       = "terms"
	TypeHistogram   = "histogram"
	TypeSimpleValue = "simple_value"
)

// kahan is a compensated float64 accumulator.
type kahan struct {
	sum, c float64
}

func (k *kahan) add(v float64) {
	if math.IsInf(v, 0) || math.IsNaN(v) || math.IsInf(k.sum, 0) || math.IsNaN(k.sum) {
		k.sum += v
		return
	}
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// Sum is the sum of a numeric field.
type Sum struct {
	AggName string
	Sum     float64
}

func (s *Sum) Name() string   { return s.AggName }
func (s *Sum) Type() string   { return TypeSum }
func (s *Sum) Value() float64 { return s.Sum }

type sumWire struct {
	Name string `json:"name"`
	Sum  number `json:"sum"`
}

// Encode writes the sum, keeping an overflowed +Inf or -Inf.
func (s *Sum) Encode(e *Encoder) ([]byte, error) {
	return e.Marshal(sumWire{Name: s.AggName, Sum: number(s.Sum)})
}

func decodeSum(body []byte, d *Decoder) (Aggregation, error) {
	var w sumWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	return &Sum{AggName: w.Name, Sum: float64(w.Sum)}, nil
}

func reduceSum(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Sum](group)
	if err != nil {
		return nil, err
	}
	var k kahan
	for _, s := range in {
		k.add(s.Sum)
	}
	return &Sum{AggName: in[0].AggName, Sum: k.sum}, nil
}

// Min is the minimum of a numeric field. +Inf when no value was seen.
type Min struct {
	AggName string
	Min     float64
}

func (m *Min) Name() string   { return m.AggName }
func (m *Min) Type() string   { return TypeMin }
func (m *Min) Value() float64 { return m.Min }

type minMaxWire struct {
	Name  string `json:"name"`
	Value number `json:"value"`
}

// Encode writes the minimum, keeping +Inf for empty shards.
func (m *Min) Encode(e *Encoder) ([]byte, error) {
	return e.Marshal(minMaxWire{Name: m.AggName, Value: number(m.Min)})
}

func decodeMin(body []byte, d *Decoder) (Aggregation, error) {
	var w minMaxWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	return &Min{AggName: w.Name, Min: float64(w.Value)}, nil
}

func reduceMin(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Min](group)
	if err != nil {
		return nil, err
	}
	v := math.Inf(1)
	for _, m := range in {
		v = math.Min(v, m.Min)
	}
	return &Min{AggName: in[0].AggName, Min: v}, nil
}

// Max is the maximum of a numeric field. -Inf when no value was seen.
type Max struct {
	AggName string
	Max     float64
}

func (m *Max) Name() string   { return m.AggName }
func (m *Max) Type() string   { return TypeMax }
func (m *Max) Value() float64 { return m.Max }

// Encode writes the maximum, keeping -Inf for empty shards.
func (m *Max) Encode(e *Encoder) ([]byte, error) {
	return e.Marshal(minMaxWire{Name: m.AggName, Value: number(m.Max)})
}

func decodeMax(body []byte, d *Decoder) (Aggregation, error) {
	var w minMaxWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	return &Max{AggName: w.Name, Max: float64(w.Value)}, nil
}

func reduceMax(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Max](group)
	if err != nil {
		return nil, err
	}
	v := math.Inf(-1)
	for _, m := range in {
		v = math.Max(v, m.Max)
	}
	return &Max{AggName: in[0].AggName, Max: v}, nil
}

// Avg keeps sum and count so that it merges exactly like its parts.
type Avg struct {
	AggName string
	Sum     float64
	Count   int64
}

func (a *Avg) Name() string { return a.AggName }
func (a *Avg) Type() string { return TypeAvg }

// Value returns the mean, or NaN when no value was seen.
func (a *Avg) Value() float64 {
	if a.Count == 0 {
		return math.NaN()
	}
	return a.Sum / float64(a.Count)
}

type avgWire struct {
	Name  string `json:"name"`
	Sum   number `json:"sum"`
	Count int64  `json:"count"`
}

func (a *Avg) Encode(e *Encoder) ([]byte, error) {
	return e.Marshal(avgWire{Name: a.AggName, Sum: number(a.Sum), Count: a.Count})
}

func decodeAvg(body []byte, d *Decoder) (Aggregation, error) {
	var w avgWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	return &Avg{AggName: w.Name, Sum: float64(w.Sum), Count: w.Count}, nil
}

func reduceAvg(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Avg](group)
	if err != nil {
		return nil, err
	}
	var (
		k     kahan
		count int64
	)
	for _, a := range in {
		k.add(a.Sum)
		count += a.Count
	}
	return &Avg{AggName: in[0].AggName, Sum: k.sum, Count: count}, nil
}

// ValueCount counts field values.
type ValueCount struct {
	AggName string `json:"name"`
	Count   int64  `json:"count"`
}

func (v *ValueCount) Name() string   { return v.AggName }
func (v *ValueCount) Type() string   { return TypeValueCount }
func (v *ValueCount) Value() float64 { return float64(v.Count) }

func reduceValueCount(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*ValueCount](group)
	if err != nil {
		return nil, err
	}
	var n int64
	for _, v := range in {
		n += v.Count
	}
	return &ValueCount{AggName: in[0].AggName, Count: n}, nil
}

// SimpleValue is the output of a sibling pipeline. It only exists after a
// final reduction and cannot be reduced again.
type SimpleValue struct {
	AggName string
	Number  float64
	// Keys lists the bucket keys that produced the value, if any.
	Keys []string
}

func (s *SimpleValue) Name() string   { return s.AggName }
func (s *SimpleValue) Type() string   { return TypeSimpleValue }
func (s *SimpleValue) Value() float64 { return s.Number }

type simpleValueWire struct {
	Name  string   `json:"name"`
	Value number   `json:"value"`
	Keys  []string `json:"keys,omitempty"`
}

// Encode writes the value, keeping NaN for pipelines over no buckets.
func (s *SimpleValue) Encode(e *Encoder) ([]byte, error) {
	return e.Marshal(simpleValueWire{Name: s.AggName, Value: number(s.Number), Keys: s.Keys})
}

func decodeSimpleValue(body []byte, d *Decoder) (Aggregation, error) {
	var w simpleValueWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	return &SimpleValue{AggName: w.Name, Number: float64(w.Value), Keys: w.Keys}, nil
}

func reduceSimpleValue(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	return nil, ErrNotReducible
}
