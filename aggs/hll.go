package aggs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultPrecision gives a standard error of about 0.8%.
	DefaultPrecision = 14
	// MinPrecision is the smallest supported register count exponent.
	MinPrecision = 4
	// MaxPrecision is the largest supported register count exponent.
	MaxPrecision = 18
)

// ErrPrecisionMismatch is returned when merging sketches of different precision.
var ErrPrecisionMismatch = errors.New("aggs: sketch precision mismatch")

// HyperLogLog is a cardinality sketch with an exact small-set mode.
//
// Values are hashed to 32 bits. While the number of distinct hashes stays
// below a quarter of the register count the hashes themselves are kept in a
// roaring bitmap and the count is exact. Past that threshold the sketch
// switches to 2^p registers. Merging is a bitmap union or a register-wise
// max, so merge order never changes the result.
type HyperLogLog struct {
	precision uint8
	exact     *roaring.Bitmap
	registers []uint8
}

// NewHyperLogLog returns an empty sketch. The precision is clamped to
// [MinPrecision, MaxPrecision].
func NewHyperLogLog(precision int) *HyperLogLog {
	precision = min(max(precision, MinPrecision), MaxPrecision)
	return &HyperLogLog{
		precision: uint8(precision),
		exact:     roaring.New(),
	}
}

// Precision returns the register count exponent.
func (h *HyperLogLog) Precision() int { return int(h.precision) }

// IsExact reports whether the sketch still counts exactly.
func (h *HyperLogLog) IsExact() bool { return h.exact != nil }

// AddString adds a string value.
func (h *HyperLogLog) AddString(s string) {
	h.addHash(fold(xxhash.Sum64String(s)))
}

// AddInt64 adds an integer value.
func (h *HyperLogLog) AddInt64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.addHash(fold(xxhash.Sum64(buf[:])))
}

func fold(x uint64) uint32 {
	return uint32(x) ^ uint32(x>>32)
}

func (h *HyperLogLog) threshold() uint64 {
	return 1 << (h.precision - 2)
}

func (h *HyperLogLog) addHash(x uint32) {
	if h.exact != nil {
		h.exact.Add(x)
		if h.exact.GetCardinality() > h.threshold() {
			h.upgrade()
		}
		return
	}
	h.setRegister(x)
}

func (h *HyperLogLog) setRegister(x uint32) {
	p := h.precision
	idx := x >> (32 - p)
	rank := uint8(bits.LeadingZeros32(x<<p)) + 1
	if limit := 32 - p + 1; rank > limit {
		rank = limit
	}
	if rank > h.registers[idx] {
		h.registers[idx] = rank
	}
}

// upgrade moves the exact hashes into registers.
func (h *HyperLogLog) upgrade() {
	h.registers = make([]uint8, 1<<h.precision)
	it := h.exact.Iterator()
	for it.HasNext() {
		h.setRegister(it.Next())
	}
	h.exact = nil
}

// Merge folds o into h. o is not modified.
func (h *HyperLogLog) Merge(o *HyperLogLog) error {
	if o == nil {
		return nil
	}
	if h.precision != o.precision {
		return fmt.Errorf("%w: %d != %d", ErrPrecisionMismatch, h.precision, o.precision)
	}
	switch {
	case h.exact != nil && o.exact != nil:
		h.exact.Or(o.exact)
		if h.exact.GetCardinality() > h.threshold() {
			h.upgrade()
		}
	case o.exact != nil:
		it := o.exact.Iterator()
		for it.HasNext() {
			h.setRegister(it.Next())
		}
	default:
		if h.exact != nil {
			h.upgrade()
		}
		for i, r := range o.registers {
			if r > h.registers[i] {
				h.registers[i] = r
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (h *HyperLogLog) Clone() *HyperLogLog {
	c := &HyperLogLog{precision: h.precision}
	if h.exact != nil {
		c.exact = h.exact.Clone()
	} else {
		c.registers = append([]uint8(nil), h.registers...)
	}
	return c
}

// Cardinality returns the distinct count, exact in small mode.
func (h *HyperLogLog) Cardinality() int64 {
	if h.exact != nil {
		return int64(h.exact.GetCardinality())
	}

	m := float64(len(h.registers))
	var (
		sum   float64
		zeros int
	)
	for _, r := range h.registers {
		sum += 1 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}

	est := alpha(len(h.registers)) * m * m / sum
	const two32 = float64(1 << 32)
	switch {
	case est <= 2.5*m && zeros > 0:
		est = m * math.Log(m/float64(zeros))
	case est > two32/30:
		est = -two32 * math.Log(1-est/two32)
	}
	return int64(math.Round(est))
}

func alpha(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

type hllWire struct {
	Precision uint8  `json:"precision"`
	Exact     []byte `json:"exact,omitempty"`
	Registers []byte `json:"registers,omitempty"`
}

func (h *HyperLogLog) toWire() (hllWire, error) {
	w := hllWire{Precision: h.precision}
	if h.exact != nil {
		b, err := h.exact.MarshalBinary()
		if err != nil {
			return hllWire{}, err
		}
		w.Exact = b
	} else {
		w.Registers = h.registers
	}
	return w, nil
}

func (w hllWire) sketch() (*HyperLogLog, error) {
	if w.Precision < MinPrecision || w.Precision > MaxPrecision {
		return nil, fmt.Errorf("aggs: bad sketch precision %d", w.Precision)
	}
	h := &HyperLogLog{precision: w.Precision}
	if w.Registers != nil {
		if len(w.Registers) != 1<<w.Precision {
			return nil, fmt.Errorf("aggs: sketch has %d registers, want %d", len(w.Registers), 1<<w.Precision)
		}
		h.registers = append([]uint8(nil), w.Registers...)
		return h, nil
	}
	h.exact = roaring.New()
	if len(w.Exact) > 0 {
		if err := h.exact.UnmarshalBinary(w.Exact); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Cardinality counts distinct values with a HyperLogLog sketch.
type Cardinality struct {
	AggName string
	Sketch  *HyperLogLog
}

func (c *Cardinality) Name() string { return c.AggName }
func (c *Cardinality) Type() string { return TypeCardinality }

// Value returns the (estimated) distinct count.
func (c *Cardinality) Value() float64 {
	if c.Sketch == nil {
		return 0
	}
	return float64(c.Sketch.Cardinality())
}

type cardinalityWire struct {
	Name   string  `json:"name"`
	Sketch hllWire `json:"sketch"`
}

// Encode writes the sketch state.
func (c *Cardinality) Encode(e *Encoder) ([]byte, error) {
	sketch := c.Sketch
	if sketch == nil {
		sketch = NewHyperLogLog(DefaultPrecision)
	}
	w, err := sketch.toWire()
	if err != nil {
		return nil, err
	}
	return e.Marshal(cardinalityWire{Name: c.AggName, Sketch: w})
}

func decodeCardinality(body []byte, d *Decoder) (Aggregation, error) {
	var w cardinalityWire
	if err := d.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	sketch, err := w.Sketch.sketch()
	if err != nil {
		return nil, err
	}
	return &Cardinality{AggName: w.Name, Sketch: sketch}, nil
}

func reduceCardinality(group []Aggregation, _ *ReduceContext) (Aggregation, error) {
	in, err := cast[*Cardinality](group)
	if err != nil {
		return nil, err
	}
	var merged *HyperLogLog
	for _, c := range in {
		if c.Sketch == nil {
			continue
		}
		if merged == nil {
			merged = c.Sketch.Clone()
			continue
		}
		if err := merged.Merge(c.Sketch); err != nil {
			return nil, err
		}
	}
	if merged == nil {
		merged = NewHyperLogLog(DefaultPrecision)
	}
	return &Cardinality{AggName: in[0].AggName, Sketch: merged}, nil
}
