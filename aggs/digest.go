package aggs

import (
	"cmp"
	"math"
	"slices"
)

// DefaultCompression bounds a digest to roughly this many centroids.
const DefaultCompression = 100

// Centroid is a weighted mean of nearby samples.
type Centroid struct {
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

// Digest is a mergeable quantile sketch made of centroids.
//
// Centroids near the median may absorb many samples while those near the
// tails stay small, so extreme quantiles keep their accuracy. A digest holds
// unit centroids until it exceeds its compression, so small inputs answer
// exactly.
type Digest struct {
	compression float64
	centroids   []Centroid
	count       int64
	min, max    float64
}

// NewDigest returns an empty digest. A non-positive compression uses
// DefaultCompression.
func NewDigest(compression float64) *Digest {
	if compression <= 0 {
		compression = DefaultCompression
	}
	return &Digest{compression: compression, min: math.Inf(1), max: math.Inf(-1)}
}

// Compression returns the size bound.
func (d *Digest) Compression() float64 { return d.compression }

// Count returns the number of samples.
func (d *Digest) Count() int64 { return d.count }

// Centroids returns the sorted centroids.
func (d *Digest) Centroids() []Centroid {
	d.normalize()
	return d.centroids
}

// Add records one sample.
func (d *Digest) Add(x float64) {
	d.centroids = append(d.centroids, Centroid{Mean: x, Count: 1})
	d.count++
	d.min = math.Min(d.min, x)
	d.max = math.Max(d.max, x)
	if float64(len(d.centroids)) > 4*d.compression {
		d.compress()
	}
}

// Merge folds o into d. o is not modified.
func (d *Digest) Merge(o *Digest) {
	if o == nil || o.count == 0 {
		return
	}
	d.centroids = append(d.centroids, o.centroids...)
	d.count += o.count
	d.min = math.Min(d.min, o.min)
	d.max = math.Max(d.max, o.max)
	d.normalize()
}

func (d *Digest) normalize() {
	if float64(len(d.centroids)) > d.compression {
		d.compress()
		return
	}
	sortCentroids(d.centroids)
}

func sortCentroids(cs []Centroid) {
	slices.SortFunc(cs, func(a, b Centroid) int {
		if c := cmp.Compare(a.Mean, b.Mean); c != 0 {
			return c
		}
		return cmp.Compare(a.Count, b.Count)
	})
}

// compress merges neighbouring centroids while each stays under the size
// bound 4*n*q*(1-q)/compression at its quantile q.
func (d *Digest) compress() {
	sortCentroids(d.centroids)
	if len(d.centroids) < 2 {
		return
	}
	total := float64(d.count)
	out := d.centroids[:0:0]
	cur := d.centroids[0]
	var before float64
	for _, c := range d.centroids[1:] {
		size := float64(cur.Count + c.Count)
		q := (before + size/2) / total
		if size <= 4*total*q*(1-q)/d.compression {
			cur.Mean += (c.Mean - cur.Mean) * float64(c.Count) / size
			cur.Count += c.Count
			continue
		}
		out = append(out, cur)
		before += float64(cur.Count)
		cur = c
	}
	d.centroids = append(out, cur)
}

// Quantile returns the estimated value at q in [0, 1], or NaN if empty.
func (d *Digest) Quantile(q float64) float64 {
	if d.count == 0 {
		return math.NaN()
	}
	d.normalize()
	cs := d.centroids
	if len(cs) == 1 {
		return cs[0].Mean
	}
	q = min(max(q, 0), 1)
	index := q * float64(d.count)

	first := float64(cs[0].Count) / 2
	if index < first {
		return d.min + (cs[0].Mean-d.min)*index/first
	}

	var cum float64
	for i := 0; i < len(cs)-1; i++ {
		left := cum + float64(cs[i].Count)/2
		right := cum + float64(cs[i].Count) + float64(cs[i+1].Count)/2
		if index <= right {
			return cs[i].Mean + (cs[i+1].Mean-cs[i].Mean)*(index-left)/(right-left)
		}
		cum += float64(cs[i].Count)
	}

	last := cs[len(cs)-1]
	lastCenter := float64(d.count) - float64(last.Count)/2
	tail := float64(d.count) - lastCenter
	return last.Mean + (d.max-last.Mean)*(index-lastCenter)/tail
}

// Clone returns a deep copy.
func (d *Digest) Clone() *Digest {
	c := *d
	c.centroids = append([]Centroid(nil), d.centroids...)
	return &c
}

// Percentiles estimates the requested percentiles with a Digest.
type Percentiles struct {
	AggName  string
	Percents []float64
	Digest   *Digest
}

func (p *Percentiles) Name() string { return p.AggName }
func (p *Percentiles) Type() string { return TypePercentiles }

// Percentile returns the value at percent in [0, 100].
func (p *Percentiles) Percentile(percent float64) float64 {
	if p.Digest == nil {
		return math.NaN()
	}
	return p.Digest.Quantile(percent / 100)
}

// Values returns one estimate per requested percent.
func (p *Percentiles) Values() []float64 {
	out := make([]float64, len(p.Percents))
	for i, pct := range p.Percents {
		out[i] = p.Percentile(pct)
	}
	return out
}

type percentilesWire struct {
	Name        string     `json:"name"`
	Percents    []float64  `json:"percents"`
	Compression float64    `json:"compression"`
	Centroids   []Centroid `json:"centroids"`
	Min         number     `json:"min"`
	Max         number     `json:"max"`
}

// Encode writes the digest state.
func (p *Percentiles) Encode(e *Encoder) ([]byte, error) {
	d := p.Digest
	if d == nil {
		d = NewDigest(DefaultCompression)
	}
	return e.Marshal(percentilesWire{
		Name:        p.AggName,
		Percents:    p.Percents,
		Compression: d.compression,
		Centroids:   d.Centroids(),
		Min:         number(d.min),
		Max:         number(d.max),
	})
}

func decodePercentiles(body []byte, dec *Decoder) (Aggregation, error) {
	var w percentilesWire
	if err := dec.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	d := NewDigest(w.Compression)
	d.centroids = w.Centroids
	for _, c := range w.Centroids {
		d.count += c.Count
	}
	d.min, d.max = float64(w.Min), float64(w.Max)
	return &Percentiles{AggName: w.Name, Percents: w.Percents, Digest: d}, nil
}

func reducePercentiles(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Percentiles](group)
	if err != nil {
		return nil, err
	}
	compression := float64(DefaultCompression)
	if in[0].Digest != nil {
		compression = in[0].Digest.compression
	}
	merged := NewDigest(compression)
	for _, p := range in {
		merged.Merge(p.Digest)
	}
	return &Percentiles{AggName: in[0].AggName, Percents: in[0].Percents, Digest: merged}, nil
}
