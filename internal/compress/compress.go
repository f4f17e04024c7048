// Package compress frames and compresses serialized aggregation buffers.
//
// Frame format (little endian):
//
//	[Type uint8][UncompressedSize uint32][PayloadSize uint32][CRC32C uint32][Payload...]
//
// The checksum covers the uncompressed bytes. If compression does not help,
// the payload is stored as-is with Type None.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/shardreduce/internal/hash"
)

// Type defines the compression algorithm used for a frame.
type Type uint8

const (
	// None stores the payload uncompressed.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast, the default for hot buffers).
	LZ4 Type = 1
	// ZSTD uses ZSTD block compression (better ratio for large trees).
	ZSTD Type = 2
)

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

const headerSize = 13

var (
	// ErrShortFrame is returned when a frame is smaller than its header claims.
	ErrShortFrame = errors.New("compress: frame too small")
	// ErrSizeMismatch is returned when decompression yields an unexpected size.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data into a self-describing frame.
func Encode(data []byte, t Type) ([]byte, error) {
	payload := data
	used := None

	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if n > 0 {
			payload, used = buf[:n], LZ4
		}
	case ZSTD:
		enc := getZstdEncoder()
		payload, used = enc.EncodeAll(data, nil), ZSTD
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}

	// Store uncompressed if compression doesn't help (ratio > 0.9).
	if used != None && float64(len(payload)) > float64(len(data))*0.9 {
		payload, used = data, None
	}

	frame := make([]byte, headerSize+len(payload))
	frame[0] = byte(used)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[5:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[9:], hash.CRC32C(data))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// Decode restores the original bytes from a frame and verifies the checksum.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, ErrShortFrame
	}
	t := Type(frame[0])
	size := binary.LittleEndian.Uint32(frame[1:])
	payloadSize := binary.LittleEndian.Uint32(frame[5:])
	sum := binary.LittleEndian.Uint32(frame[9:])

	if uint64(len(frame)) < uint64(headerSize)+uint64(payloadSize) {
		return nil, ErrShortFrame
	}
	payload := frame[headerSize : headerSize+int(payloadSize)]

	var out []byte
	switch t {
	case None:
		out = payload
	case LZ4:
		out = make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		out = out[:n]
	case ZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		out = decoded
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}

	if uint32(len(out)) != size {
		return nil, ErrSizeMismatch
	}
	if err := hash.Verify(out, sum); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return out, nil
}
