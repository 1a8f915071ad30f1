// Package record decodes SQLite's record format: a varint header size,
// a run of per-column serial-type varints, then the column data bytes.
package record

import (
	"fmt"
	"math"

	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// maxHeaderSize bounds how large a record header we'll trust, per
// spec §4.8 ("header_size <= 10_000").
const maxHeaderSize = 10_000

// ColumnKind classifies a decoded column's SQLite storage class.
type ColumnKind int

const (
	KindNull ColumnKind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Column is one decoded column: its serial type, storage class, and
// value. Int holds the integer value for KindInt, Float for KindFloat;
// Bytes holds the (possibly truncated) text/blob payload; FullLen is
// the untruncated byte length so oversize values can be reported
// truncated-with-full-length per spec §4.8.
type Column struct {
	SerialType uint64
	Kind       ColumnKind
	Int        int64
	Float      float64
	Bytes      []byte
	FullLen    int
	Truncated  bool
}

// MaxInlineBytes bounds how much of a TEXT/BLOB column's value this
// decoder keeps inline; beyond this the value is reported truncated.
const MaxInlineBytes = 4096

// Decode parses buf as a record and returns its columns in order. buf
// must already be cell payload bytes (no leading payload-size/rowid
// varints — those belong to the cell, not the record). Returns a
// FormatError if the header is inconsistent.
func Decode(buf []byte) ([]Column, error) {
	headerSize, n, ok := svarint.Varint(buf)
	if !ok {
		return nil, ferr.New(ferr.KindFormat, 0, "truncated record header-size varint")
	}
	if headerSize > maxHeaderSize {
		return nil, ferr.New(ferr.KindFormat, 0, fmt.Sprintf("record header size %d exceeds sanity limit", headerSize))
	}
	if headerSize > uint64(len(buf)) {
		return nil, ferr.New(ferr.KindFormat, 0, fmt.Sprintf("record header size %d exceeds record size %d", headerSize, len(buf)))
	}

	var serialTypes []uint64
	pos := n
	for pos < int(headerSize) {
		st, sn, ok := svarint.Varint(buf[pos:])
		if !ok {
			return nil, ferr.New(ferr.KindFormat, 0, "truncated serial-type varint")
		}
		serialTypes = append(serialTypes, st)
		pos += sn
	}

	dataPos := int(headerSize)
	cols := make([]Column, 0, len(serialTypes))
	for _, st := range serialTypes {
		col, size, err := decodeColumn(buf, dataPos, st)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		dataPos += size
	}
	return cols, nil
}

func decodeColumn(buf []byte, pos int, st uint64) (Column, int, error) {
	switch {
	case st == 0:
		return Column{SerialType: st, Kind: KindNull}, 0, nil
	case st >= 1 && st <= 6:
		sizes := map[uint64]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 6, 6: 8}
		size := sizes[st]
		if pos+size > len(buf) {
			return Column{}, 0, ferr.New(ferr.KindFormat, 0, "integer column runs past record end")
		}
		return Column{SerialType: st, Kind: KindInt, Int: decodeSignedBE(buf[pos : pos+size])}, size, nil
	case st == 7:
		if pos+8 > len(buf) {
			return Column{}, 0, ferr.New(ferr.KindFormat, 0, "float column runs past record end")
		}
		bits := uint64(svarint.Uint32(buf[pos:pos+4]))<<32 | uint64BE(buf[pos+4:pos+8])
		return Column{SerialType: st, Kind: KindFloat, Float: math.Float64frombits(bits)}, 8, nil
	case st == 8:
		return Column{SerialType: st, Kind: KindInt, Int: 0}, 0, nil
	case st == 9:
		return Column{SerialType: st, Kind: KindInt, Int: 1}, 0, nil
	case st >= 12 && st%2 == 0:
		n := int((st - 12) / 2)
		return sliceColumn(buf, pos, st, n, KindBlob)
	case st >= 13 && st%2 == 1:
		n := int((st - 13) / 2)
		return sliceColumn(buf, pos, st, n, KindText)
	default:
		return Column{}, 0, ferr.New(ferr.KindFormat, 0, fmt.Sprintf("reserved/invalid serial type %d", st))
	}
}

func sliceColumn(buf []byte, pos int, st uint64, n int, kind ColumnKind) (Column, int, error) {
	if pos+n > len(buf) {
		return Column{}, 0, ferr.New(ferr.KindFormat, 0, "text/blob column runs past record end")
	}
	keep := n
	truncated := false
	if keep > MaxInlineBytes {
		keep = MaxInlineBytes
		truncated = true
	}
	out := make([]byte, keep)
	copy(out, buf[pos:pos+keep])
	return Column{SerialType: st, Kind: kind, Bytes: out, FullLen: n, Truncated: truncated}, n, nil
}

func uint64BE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// decodeSignedBE sign-extends a big-endian two's-complement integer of
// 1, 2, 3, 4, 6, or 8 bytes into an int64.
func decodeSignedBE(b []byte) int64 {
	var v int64
	if b[0]&0x80 != 0 {
		v = -1 // sign-extend with all 1s
	}
	for _, c := range b {
		v = (v << 8) | int64(c)
	}
	return v
}
