// Package svarint decodes and encodes SQLite's variable-length integers
// and fixed-width big-endian integers, the byte primitives every other
// package in this module is built on.
package svarint

import "encoding/binary"

// MaxLen is the longest a SQLite varint can be.
const MaxLen = 9

const (
	continuationBit = 0x80
	lowSevenBits    = 0x7f
)

// Uint16 reads a big-endian 16-bit unsigned integer at the start of b.
// b must have length >= 2; callers are expected to have already bounds
// checked against the page (this package never sees the page, only a
// slice already known to be long enough).
func Uint16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// Uint32 reads a big-endian 32-bit unsigned integer at the start of b.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// PutUint16 writes v as big-endian into b[0:2].
func PutUint16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

// PutUint32 writes v as big-endian into b[0:4].
func PutUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

// Varint decodes a SQLite variable-length integer from the front of b.
// It consumes at most MaxLen bytes and never reads past len(b). Bytes
// 0..7 contribute their low 7 bits, most significant byte first; the
// high bit of a byte marks "more bytes follow". If the high bit of the
// 8th byte (index 7) is still set, all 8 bits of the 9th byte (index 8)
// are appended verbatim with no continuation bit of its own.
//
// Returns the decoded value and the number of bytes consumed. If b is
// empty, or the varint would need more bytes than are available before
// running into MaxLen, ok is false and the caller should treat the
// input as truncated (a FormatError at the call site).
func Varint(b []byte) (value uint64, n int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}

	limit := MaxLen
	if len(b) < limit {
		limit = len(b)
	}

	var v uint64
	for i := 0; i < limit; i++ {
		c := b[i]
		if i == 8 {
			// 9th byte: all 8 bits, no continuation semantics.
			v = (v << 8) | uint64(c)
			return v, 9, true
		}
		v = (v << 7) | uint64(c&lowSevenBits)
		if c&continuationBit == 0 {
			return v, i + 1, true
		}
	}
	// Ran out of buffer before seeing a terminator, and we never hit
	// the 9-byte special case above.
	return 0, 0, false
}

// PutVarint encodes v into b (which must have length >= MaxLen) using
// SQLite's varint format and returns the number of bytes written.
func PutVarint(b []byte, v uint64) int {
	if v&(uint64(0xff000000)<<32) != 0 {
		// Top 8 bits in use: the 9-byte form, last byte takes the low 8 bits.
		b[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			b[i] = byte(v&lowSevenBits) | continuationBit
			v >>= 7
		}
		return 9
	}

	n := Len(v)
	for i := n - 1; i >= 0; i-- {
		c := byte(v & lowSevenBits)
		if i != n-1 {
			c |= continuationBit
		}
		b[i] = c
		v >>= 7
	}
	return n
}

// Len returns the number of bytes PutVarint would need to encode v.
func Len(v uint64) int {
	switch {
	case v <= 0x7f:
		return 1
	case v <= 0x3fff:
		return 2
	case v <= 0x1fffff:
		return 3
	case v <= 0xfffffff:
		return 4
	case v <= 0x7ffffffff:
		return 5
	case v <= 0x3ffffffffff:
		return 6
	case v <= 0x1ffffffffffff:
		return 7
	case v <= 0xffffffffffffff:
		return 8
	default:
		return 9
	}
}
