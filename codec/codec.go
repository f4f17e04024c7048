// Package codec centralizes encoding of buffered aggregation trees.
//
// The codec is only used for in-process buffering between partial reductions,
// so bytes never outlive the consumer that produced them. Codec selection is
// still recorded by name so a Serialized buffer can be decoded with the same
// codec that encoded it.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
