package aggs

import (
	"fmt"

	"github.com/hupe1980/shardreduce/codec"
	"github.com/hupe1980/shardreduce/internal/compress"
)

// Compression selects the block codec of Serialized forests.
type Compression = compress.Type

// Compression types.
const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

// Delayable is an aggregation forest that may still be in serialized form.
// Buffered shard results hold Serialized forests so that their memory is
// compact and measurable until the next reduction expands them.
type Delayable interface {
	// Expand returns the forest, decoding it with r if needed.
	Expand(r *Registry) (Aggregations, error)
	// RAMBytesUsed returns the bytes held by the serialized form, or 0 for
	// in-memory forests.
	RAMBytesUsed() int64
}

type referencing struct {
	forest Aggregations
}

// Referencing wraps an in-memory forest.
func Referencing(forest Aggregations) Delayable {
	return referencing{forest: forest}
}

func (r referencing) Expand(*Registry) (Aggregations, error) { return r.forest, nil }
func (r referencing) RAMBytesUsed() int64                      { return 0 }

// Serialized is a forest encoded with a codec and framed by the compress
// package. It is immutable.
type Serialized struct {
	codec codec.Codec
	frame []byte
}

// Serialize encodes a forest. A nil codec uses codec.Default.
func Serialize(forest Aggregations, c codec.Codec, comp Compression) (*Serialized, error) {
	if c == nil {
		c = codec.Default
	}
	envs, err := NewEncoder(c).Forest(forest)
	if err != nil {
		return nil, err
	}
	data, err := c.Marshal(envs)
	if err != nil {
		return nil, fmt.Errorf("aggs: encode forest: %w", err)
	}
	frame, err := compress.Encode(data, comp)
	if err != nil {
		return nil, err
	}
	return &Serialized{codec: c, frame: frame}, nil
}

// Expand decodes the forest. Every call returns a fresh copy.
func (s *Serialized) Expand(r *Registry) (Aggregations, error) {
	if r == nil {
		r = builtinRegistry()
	}
	data, err := compress.Decode(s.frame)
	if err != nil {
		return nil, err
	}
	var envs []Envelope
	if err := s.codec.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("aggs: decode forest: %w", err)
	}
	return NewDecoder(s.codec, r).Forest(envs)
}

// RAMBytesUsed returns the framed size.
func (s *Serialized) RAMBytesUsed() int64 { return int64(len(s.frame)) }

// Codec returns the codec the forest was encoded with.
func (s *Serialized) Codec() codec.Codec { return s.codec }
