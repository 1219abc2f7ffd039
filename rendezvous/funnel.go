package rendezvous

import "encoding/binary"

// Funnel appends a deterministic encoding of v to dst and returns the
// extended slice.
//
// Values that compare equal must encode to the same bytes, and distinct
// nodes must encode differently. Clients can only agree on placements when
// they use the same funnels.
type Funnel[T any] func(dst []byte, v T) []byte

// StringFunnel encodes a string as its raw bytes.
func StringFunnel(dst []byte, s string) []byte {
	return append(dst, s...)
}

// BytesFunnel encodes a byte slice as itself.
func BytesFunnel(dst []byte, b []byte) []byte {
	return append(dst, b...)
}

// Uint64Funnel encodes v as 8 little endian bytes.
func Uint64Funnel(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// Int64Funnel encodes v as 8 little endian bytes.
func Int64Funnel(dst []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(v))
}
