package aggs

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hupe1980/shardreduce/codec"
)

// Envelope is the serialized form of one aggregation: its type tag and the
// codec-encoded body.
type Envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Encodable is implemented by aggregations whose wire form differs from
// their in-memory struct, e.g. because they hold nested forests.
type Encodable interface {
	Encode(e *Encoder) ([]byte, error)
}

// Encoder serializes aggregation forests with one codec.
type Encoder struct {
	codec codec.Codec
}

// NewEncoder returns an encoder using c (codec.Default if nil).
func NewEncoder(c codec.Codec) *Encoder {
	if c == nil {
		c = codec.Default
	}
	return &Encoder{codec: c}
}

// Marshal encodes v with the encoder's codec.
func (e *Encoder) Marshal(v any) ([]byte, error) {
	return e.codec.Marshal(v)
}

// Forest encodes every aggregation of a forest into an envelope.
func (e *Encoder) Forest(forest Aggregations) ([]Envelope, error) {
	if len(forest) == 0 {
		return nil, nil
	}
	out := make([]Envelope, len(forest))
	for i, agg := range forest {
		var (
			body []byte
			err  error
		)
		if enc, ok := agg.(Encodable); ok {
			body, err = enc.Encode(e)
		} else {
			body, err = e.codec.Marshal(agg)
		}
		if err != nil {
			return nil, fmt.Errorf("aggs: encode %q (%s): %w", agg.Name(), agg.Type(), err)
		}
		out[i] = Envelope{Type: agg.Type(), Body: body}
	}
	return out, nil
}

// Decoder restores aggregation forests using a registry.
type Decoder struct {
	codec    codec.Codec
	registry *Registry
}

// NewDecoder returns a decoder using c (codec.Default if nil) and r.
func NewDecoder(c codec.Codec, r *Registry) *Decoder {
	if c == nil {
		c = codec.Default
	}
	return &Decoder{codec: c, registry: r}
}

// Unmarshal decodes body into v with the decoder's codec.
func (d *Decoder) Unmarshal(body []byte, v any) error {
	return d.codec.Unmarshal(body, v)
}

// Forest decodes envelopes back into aggregations.
func (d *Decoder) Forest(envs []Envelope) (Aggregations, error) {
	if len(envs) == 0 {
		return nil, nil
	}
	out := make(Aggregations, len(envs))
	for i, env := range envs {
		t, ok := d.registry.Lookup(env.Type)
		if !ok {
			return nil, &UnregisteredAggregationError{Type: env.Type}
		}
		agg, err := t.Decode(env.Body, d)
		if err != nil {
			return nil, fmt.Errorf("aggs: decode %s: %w", env.Type, err)
		}
		out[i] = agg
	}
	return out, nil
}

// decodeAs decodes a body straight into the aggregation struct.
func decodeAs[T Aggregation](body []byte, d *Decoder) (Aggregation, error) {
	var v T
	if err := d.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// number is a float64 that keeps NaN and infinities through JSON.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"NaN"`:
		*n = number(math.NaN())
		return nil
	case `"Infinity"`:
		*n = number(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*n = number(math.Inf(-1))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("aggs: bad number %s: %w", b, err)
	}
	*n = number(f)
	return nil
}
