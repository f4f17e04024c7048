// Package hash provides the CRC32-Castagnoli checksums that guard buffered
// aggregation frames.
//
// Frames are checksummed when a partial aggregation tree is serialized into
// the consumer buffer and verified when it is expanded for the next reduce:
//
//	sum := hash.CRC32C(payload)
//	...
//	if err := hash.Verify(payload, sum); err != nil { ... }
package hash
