package aggs

import (
	"cmp"
	"slices"
	"strconv"
)

// DefaultTermsSize is the bucket count kept by a final terms reduction
// when the aggregation sets none.
const DefaultTermsSize = 10

// TermsBucket is one term and its document count.
type TermsBucket struct {
	Key      string
	DocCount int64
	Aggs     Aggregations
}

// Terms buckets documents by distinct keyword values.
type Terms struct {
	AggName string
	// Size is the number of buckets kept by a final reduction.
	Size int
	// SumOtherDocCount counts documents of buckets that were trimmed away.
	SumOtherDocCount int64
	Buckets          []TermsBucket
}

func (t *Terms) Name() string { return t.AggName }
func (t *Terms) Type() string { return TypeTerms }

// ListBuckets returns a read-only view of the buckets.
func (t *Terms) ListBuckets() []Bucket {
	out := make([]Bucket, len(t.Buckets))
	for i, b := range t.Buckets {
		out[i] = Bucket{Key: b.Key, DocCount: b.DocCount, Aggs: b.Aggs}
	}
	return out
}

type bucketWire struct {
	Key      string     `json:"key"`
	DocCount int64      `json:"doc_count"`
	Aggs     []Envelope `json:"aggs,omitempty"`
}

type termsWire struct {
	Name             string       `json:"name"`
	Size             int          `json:"size"`
	SumOtherDocCount int64        `json:"sum_other_doc_count"`
	Buckets          []bucketWire `json:"buckets"`
}

// Encode writes the buckets and their nested forests.
func (t *Terms) Encode(e *Encoder) ([]byte, error) {
	w := termsWire{
		Name:             t.AggName,
		Size:             t.Size,
		SumOtherDocCount: t.SumOtherDocCount,
		Buckets:          make([]bucketWire, len(t.Buckets)),
	}
	for i, b := range t.Buckets {
		envs, err := e.Forest(b.Aggs)
		if err != nil {
			return nil, err
		}
		w.Buckets[i] = bucketWire{Key: b.Key, DocCount: b.DocCount, Aggs: envs}
	}
	return e.Marshal(w)
}

func decodeTerms(body []byte, d *Decoder) (Aggregation, error) {
	var w termsWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	t := &Terms{
		AggName:          w.Name,
		Size:             w.Size,
		SumOtherDocCount: w.SumOtherDocCount,
		Buckets:          make([]TermsBucket, len(w.Buckets)),
	}
	for i, b := range w.Buckets {
		sub, err := d.Forest(b.Aggs)
		if err != nil {
			return nil, err
		}
		t.Buckets[i] = TermsBucket{Key: b.Key, DocCount: b.DocCount, Aggs: sub}
	}
	return t, nil
}

// mergedBucket collects one key's contributions before sub-aggregations
// are reduced.
type mergedBucket[K any] struct {
	key      K
	docCount int64
	subs     []Aggregations
}

func reduceTerms(group []Aggregation, rc *ReduceContext) (Aggregation, error) {
	in, err := cast[*Terms](group)
	if err != nil {
		return nil, err
	}

	out := &Terms{AggName: in[0].AggName, Size: in[0].Size}
	index := make(map[string]int)
	var merged []mergedBucket[string]
	for _, t := range in {
		out.SumOtherDocCount += t.SumOtherDocCount
		for _, b := range t.Buckets {
			i, ok := index[b.Key]
			if !ok {
				i = len(merged)
				index[b.Key] = i
				merged = append(merged, mergedBucket[string]{key: b.Key})
			}
			merged[i].docCount += b.DocCount
			merged[i].subs = append(merged[i].subs, b.Aggs)
		}
	}

	slices.SortFunc(merged, func(a, b mergedBucket[string]) int {
		if c := cmp.Compare(b.docCount, a.docCount); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	if rc.Final {
		size := out.Size
		if size <= 0 {
			size = DefaultTermsSize
		}
		if len(merged) > size {
			for _, b := range merged[size:] {
				out.SumOtherDocCount += b.docCount
			}
			merged = merged[:size]
		}
		if err := rc.ConsumeBuckets(len(merged)); err != nil {
			return nil, err
		}
	}

	out.Buckets = make([]TermsBucket, len(merged))
	for i, b := range merged {
		sub, err := reduceForests(b.subs, rc)
		if err != nil {
			return nil, err
		}
		out.Buckets[i] = TermsBucket{Key: b.key, DocCount: b.docCount, Aggs: sub}
	}
	return out, nil
}

// HistogramBucket is one fixed-width interval starting at Key.
type HistogramBucket struct {
	Key      float64
	DocCount int64
	Aggs     Aggregations
}

// Histogram buckets numeric values into fixed-width intervals.
type Histogram struct {
	AggName  string
	Interval float64
	// MinDocCount drops buckets with fewer documents in a final reduction.
	// 0 fills the gaps between the first and last bucket with empty buckets.
	MinDocCount int64
	Buckets     []HistogramBucket
}

func (h *Histogram) Name() string { return h.AggName }
func (h *Histogram) Type() string { return TypeHistogram }

// ListBuckets returns a read-only view of the buckets.
func (h *Histogram) ListBuckets() []Bucket {
	out := make([]Bucket, len(h.Buckets))
	for i, b := range h.Buckets {
		out[i] = Bucket{Key: strconv.FormatFloat(b.Key, 'f', -1, 64), DocCount: b.DocCount, Aggs: b.Aggs}
	}
	return out
}

type histogramBucketWire struct {
	Key      float64    `json:"key"`
	DocCount int64      `json:"doc_count"`
	Aggs     []Envelope `json:"aggs,omitempty"`
}

type histogramWire struct {
	Name        string                `json:"name"`
	Interval    float64               `json:"interval"`
	MinDocCount int64                 `json:"min_doc_count"`
	Buckets     []histogramBucketWire `json:"buckets"`
}

// Encode writes the buckets and their nested forests.
func (h *Histogram) Encode(e *Encoder) ([]byte, error) {
	w := histogramWire{
		Name:        h.AggName,
		Interval:    h.Interval,
		MinDocCount: h.MinDocCount,
		Buckets:     make([]histogramBucketWire, len(h.Buckets)),
	}
	for i, b := range h.Buckets {
		envs, err := e.Forest(b.Aggs)
		if err != nil {
			return nil, err
		}
		w.Buckets[i] = histogramBucketWire{Key: b.Key, DocCount: b.DocCount, Aggs: envs}
	}
	return e.Marshal(w)
}

func decodeHistogram(body []byte, d *Decoder) (Aggregation, error) {
	var w histogramWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	h := &Histogram{
		AggName:     w.Name,
		Interval:    w.Interval,
		MinDocCount: w.MinDocCount,
		Buckets:     make([]HistogramBucket, len(w.Buckets)),
	}
	for i, b := range w.Buckets {
		sub, err := d.Forest(b.Aggs)
		if err != nil {
			return nil, err
		}
		h.Buckets[i] = HistogramBucket{Key: b.Key, DocCount: b.DocCount, Aggs: sub}
	}
	return h, nil
}

func reduceHistogram(group []Aggregation, rc *ReduceContext) (Aggregation, error) {
	in, err := cast[*Histogram](group)
	if err != nil {
		return nil, err
	}

	out := &Histogram{AggName: in[0].AggName, Interval: in[0].Interval, MinDocCount: in[0].MinDocCount}
	index := make(map[float64]int)
	var merged []mergedBucket[float64]
	for _, h := range in {
		for _, b := range h.Buckets {
			i, ok := index[b.Key]
			if !ok {
				i = len(merged)
				index[b.Key] = i
				merged = append(merged, mergedBucket[float64]{key: b.Key})
			}
			merged[i].docCount += b.DocCount
			merged[i].subs = append(merged[i].subs, b.Aggs)
		}
	}
	slices.SortFunc(merged, func(a, b mergedBucket[float64]) int {
		return cmp.Compare(a.key, b.key)
	})

	if rc.Final {
		if out.MinDocCount > 0 {
			merged = slices.DeleteFunc(merged, func(b mergedBucket[float64]) bool {
				return b.docCount < out.MinDocCount
			})
		} else if out.Interval > 0 {
			merged = fillGaps(merged, out.Interval)
		}
		if err := rc.ConsumeBuckets(len(merged)); err != nil {
			return nil, err
		}
	}

	out.Buckets = make([]HistogramBucket, len(merged))
	for i, b := range merged {
		sub, err := reduceForests(b.subs, rc)
		if err != nil {
			return nil, err
		}
		out.Buckets[i] = HistogramBucket{Key: b.key, DocCount: b.docCount, Aggs: sub}
	}
	return out, nil
}

// fillGaps inserts empty buckets between sorted keys spaced by interval.
func fillGaps(sorted []mergedBucket[float64], interval float64) []mergedBucket[float64] {
	if len(sorted) < 2 {
		return sorted
	}
	out := make([]mergedBucket[float64], 0, len(sorted))
	out = append(out, sorted[0])
	for _, b := range sorted[1:] {
		next := out[len(out)-1].key + interval
		for b.key-next > interval/2 {
			out = append(out, mergedBucket[float64]{key: next})
			next += interval
		}
		out = append(out, b)
	}
	return out
}
