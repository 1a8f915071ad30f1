// Package cell parses the four SQLite b-tree cell shapes and applies
// SQLite's exact local/overflow payload split formulas. Table and
// index formulas are kept as distinct functions per this module's
// Open Question decision: never guess one from the other.
package cell

import (
	"fmt"

	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// Split describes how a cell's payload is divided between the page
// and an overflow chain.
type Split struct {
	Local         int    // bytes of payload stored on this page
	HasOverflow   bool
	OverflowFirst uint32 // never set by SplitTable/SplitIndex; see Cell.OverflowFirst
}

// MaxLocalTable returns U - 35, the inline payload ceiling for
// table b-tree cells.
func MaxLocalTable(u uint32) int {
	return int(u) - 35
}

// MaxLocalIndex returns ((U-12)*64/255) - 23, the inline payload
// ceiling for index b-tree cells. Distinct from MaxLocalTable: do not
// substitute one for the other (see package doc).
func MaxLocalIndex(u uint32) int {
	return int((u-12)*64/255) - 23
}

// MinLocal returns ((U-12)*32/255) - 23, shared by both table and
// index cells as the floor once a payload overflows.
func MinLocal(u uint32) int {
	return int((u-12)*32/255) - 23
}

// splitGeneric applies spec §3's local/overflow formula given the
// already-resolved maxLocal for the cell's b-tree kind.
func splitGeneric(u uint32, payload, maxLocal int) Split {
	if payload <= maxLocal {
		return Split{Local: payload}
	}
	minLocal := MinLocal(u)
	k := minLocal + (payload-minLocal)%(int(u)-4)
	if k > maxLocal {
		k = minLocal
	}
	return Split{Local: k, HasOverflow: true}
}

// SplitTable applies the table-cell local/overflow formula.
func SplitTable(u uint32, payload int) Split {
	return splitGeneric(u, payload, MaxLocalTable(u))
}

// SplitIndex applies the index-cell local/overflow formula.
func SplitIndex(u uint32, payload int) Split {
	return splitGeneric(u, payload, MaxLocalIndex(u))
}

// Kind identifies which of the four cell shapes was parsed.
type Kind int

const (
	KindTableLeaf Kind = iota
	KindTableInterior
	KindIndexLeaf
	KindIndexInterior
)

// Cell is the union of everything any of the four shapes can carry.
// Fields not meaningful for a given Kind are left zero.
type Cell struct {
	Kind          Kind
	Rowid         int64  // table-leaf, table-interior
	LeftChild     uint32 // table-interior, index-interior
	PayloadSize   int    // declared total payload size (table-leaf, index-*)
	LocalPayload  []byte // the bytes actually stored on this page
	HasOverflow   bool
	OverflowFirst uint32
	Size          int // total bytes this cell occupies starting at its offset
}

// ParseTableLeaf parses a table-leaf cell at buf[off:]: varint
// payload-size, varint rowid, payload bytes, optional 4-byte
// overflow-head.
func ParseTableLeaf(buf []byte, off int, u uint32) (Cell, error) {
	p := off
	payloadSize, n, ok := svarint.Varint(buf[p:])
	if !ok {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "truncated payload-size varint in table-leaf cell")
	}
	p += n

	rowid, n, ok := svarint.Varint(buf[p:])
	if !ok {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "truncated rowid varint in table-leaf cell")
	}
	p += n

	split := SplitTable(u, int(payloadSize))
	if p+split.Local > len(buf) {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "table-leaf local payload runs past page end")
	}
	local := append([]byte(nil), buf[p:p+split.Local]...)
	p += split.Local

	c := Cell{
		Kind:         KindTableLeaf,
		Rowid:        int64(rowid),
		PayloadSize:  int(payloadSize),
		LocalPayload: local,
	}
	if split.HasOverflow {
		if p+4 > len(buf) {
			return Cell{}, ferr.New(ferr.KindFormat, 0, "table-leaf overflow pointer runs past page end")
		}
		c.HasOverflow = true
		c.OverflowFirst = svarint.Uint32(buf[p : p+4])
		p += 4
	}
	c.Size = p - off
	return c, nil
}

// ParseTableInterior parses a table-interior cell: 4-byte left-child,
// varint rowid. No payload, no overflow.
func ParseTableInterior(buf []byte, off int) (Cell, error) {
	if off+4 > len(buf) {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "table-interior left-child runs past page end")
	}
	left := svarint.Uint32(buf[off : off+4])
	rowid, n, ok := svarint.Varint(buf[off+4:])
	if !ok {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "truncated rowid varint in table-interior cell")
	}
	return Cell{
		Kind:      KindTableInterior,
		LeftChild: left,
		Rowid:     int64(rowid),
		Size:      4 + n,
	}, nil
}

// ParseIndexLeaf parses an index-leaf cell: varint payload-size,
// payload bytes, optional overflow-head.
func ParseIndexLeaf(buf []byte, off int, u uint32) (Cell, error) {
	p := off
	payloadSize, n, ok := svarint.Varint(buf[p:])
	if !ok {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "truncated payload-size varint in index-leaf cell")
	}
	p += n

	split := SplitIndex(u, int(payloadSize))
	if p+split.Local > len(buf) {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "index-leaf local payload runs past page end")
	}
	local := append([]byte(nil), buf[p:p+split.Local]...)
	p += split.Local

	c := Cell{
		Kind:         KindIndexLeaf,
		PayloadSize:  int(payloadSize),
		LocalPayload: local,
	}
	if split.HasOverflow {
		if p+4 > len(buf) {
			return Cell{}, ferr.New(ferr.KindFormat, 0, "index-leaf overflow pointer runs past page end")
		}
		c.HasOverflow = true
		c.OverflowFirst = svarint.Uint32(buf[p : p+4])
		p += 4
	}
	c.Size = p - off
	return c, nil
}

// ParseIndexInterior parses an index-interior cell: 4-byte left-child,
// varint payload-size, payload bytes, optional overflow-head.
func ParseIndexInterior(buf []byte, off int, u uint32) (Cell, error) {
	if off+4 > len(buf) {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "index-interior left-child runs past page end")
	}
	left := svarint.Uint32(buf[off : off+4])
	p := off + 4

	payloadSize, n, ok := svarint.Varint(buf[p:])
	if !ok {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "truncated payload-size varint in index-interior cell")
	}
	p += n

	split := SplitIndex(u, int(payloadSize))
	if p+split.Local > len(buf) {
		return Cell{}, ferr.New(ferr.KindFormat, 0, "index-interior local payload runs past page end")
	}
	local := append([]byte(nil), buf[p:p+split.Local]...)
	p += split.Local

	c := Cell{
		Kind:         KindIndexInterior,
		LeftChild:    left,
		PayloadSize:  int(payloadSize),
		LocalPayload: local,
	}
	if split.HasOverflow {
		if p+4 > len(buf) {
			return Cell{}, ferr.New(ferr.KindFormat, 0, "index-interior overflow pointer runs past page end")
		}
		c.HasOverflow = true
		c.OverflowFirst = svarint.Uint32(buf[p : p+4])
		p += 4
	}
	c.Size = p - off
	return c, nil
}

// PageType identifies the four b-tree page type byte values; anything
// else means "not a b-tree page".
type PageType byte

const (
	TypeInteriorIndex PageType = 0x02
	TypeInteriorTable PageType = 0x05
	TypeLeafIndex     PageType = 0x0a
	TypeLeafTable     PageType = 0x0d
)

// Valid reports whether t is one of the four b-tree page types.
func (t PageType) Valid() bool {
	switch t {
	case TypeInteriorIndex, TypeInteriorTable, TypeLeafIndex, TypeLeafTable:
		return true
	default:
		return false
	}
}

func (t PageType) String() string {
	switch t {
	case TypeInteriorIndex:
		return "interior-index"
	case TypeInteriorTable:
		return "interior-table"
	case TypeLeafIndex:
		return "leaf-index"
	case TypeLeafTable:
		return "leaf-table"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}
