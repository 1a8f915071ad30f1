package accountant

import (
	"encoding/hex"
	"fmt"

	"github.com/dkrause/sqlitefsck/internal/cell"
	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/record"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// maxDumpDepth bounds the table-b-tree descent in DumpRowid the same
// way btree.MaxDepth bounds the general walker.
const maxDumpDepth = 50

// DumpResult is the stable shape of the dump_rowid query: record size,
// header size, per-column serial-type/decoded-value pairs, a hex dump
// of the local payload, and the overflow head page if the cell has
// one (spec §6).
type DumpResult struct {
	Found         bool
	Rowid         int64
	LeafPage      uint32
	RecordSize    int
	HeaderSize    uint64
	Columns       []record.Column
	HexDump       string
	HasOverflow   bool
	OverflowFirst uint32
}

// DumpRowid descends a table b-tree rooted at root using interior
// keys — a cell's rowid is an upper bound on its left subtree, the
// rightmost child holds keys greater than every cell key — then scans
// the landing leaf for rowid and decodes its record.
func DumpRowid(p *pager.Pager, root uint32, rowid int64) (DumpResult, error) {
	pgno := root
	for depth := 0; ; depth++ {
		if depth > maxDumpDepth {
			return DumpResult{}, ferr.New(ferr.KindDepthExceeded, pgno, "dump_rowid descent exceeded maximum depth")
		}
		if pgno < 1 || pgno > p.MaxPage {
			return DumpResult{}, ferr.New(ferr.KindRange, pgno, "dump_rowid descended to a page number out of range")
		}

		buf, err := p.ReadPage(pgno)
		if err != nil {
			return DumpResult{}, err
		}
		hdr := p.BtreeHeaderOffset(pgno)
		if hdr+8 > len(buf) {
			return DumpResult{}, ferr.New(ferr.KindFormat, pgno, "page too short for b-tree header")
		}
		pageType := cell.PageType(buf[hdr])
		nCell := int(svarint.Uint16(buf[hdr+3 : hdr+5]))
		maxCells := int(p.Header.PageSize) / 2
		if nCell > maxCells {
			nCell = maxCells
		}

		switch pageType {
		case cell.TypeInteriorTable:
			next, ok := descendInterior(buf, hdr, nCell, rowid)
			if !ok {
				return DumpResult{}, ferr.New(ferr.KindFormat, pgno, "interior table page has no usable child pointer")
			}
			pgno = next
			continue

		case cell.TypeLeafTable:
			return scanLeafForRowid(buf, hdr, nCell, p.Usable(), pgno, rowid)

		default:
			return DumpResult{}, ferr.New(ferr.KindFormat, pgno, fmt.Sprintf("root %d is not a table b-tree page", root))
		}
	}
}

func descendInterior(buf []byte, hdr, nCell int, rowid int64) (uint32, bool) {
	cellStart := hdr + 12
	for i := 0; i < nCell; i++ {
		pos := cellStart + i*2
		if pos+2 > len(buf) {
			break
		}
		off := int(svarint.Uint16(buf[pos : pos+2]))
		c, err := cell.ParseTableInterior(buf, off)
		if err != nil {
			continue
		}
		if rowid <= c.Rowid {
			return c.LeftChild, true
		}
	}
	if hdr+12 > len(buf) {
		return 0, false
	}
	return svarint.Uint32(buf[hdr+8 : hdr+12]), true
}

func scanLeafForRowid(buf []byte, hdr, nCell int, u uint32, pgno uint32, rowid int64) (DumpResult, error) {
	cellStart := hdr + 8
	for i := 0; i < nCell; i++ {
		pos := cellStart + i*2
		if pos+2 > len(buf) {
			break
		}
		off := int(svarint.Uint16(buf[pos : pos+2]))
		c, err := cell.ParseTableLeaf(buf, off, u)
		if err != nil {
			continue
		}
		if c.Rowid != rowid {
			continue
		}

		cols, err := record.Decode(c.LocalPayload)
		if err != nil {
			return DumpResult{}, err
		}
		headerSize, _, _ := svarint.Varint(c.LocalPayload)

		return DumpResult{
			Found:         true,
			Rowid:         rowid,
			LeafPage:      pgno,
			RecordSize:    c.PayloadSize,
			HeaderSize:    headerSize,
			Columns:       cols,
			HexDump:       hex.EncodeToString(c.LocalPayload),
			HasOverflow:   c.HasOverflow,
			OverflowFirst: c.OverflowFirst,
		}, nil
	}
	return DumpResult{Found: false, Rowid: rowid, LeafPage: pgno}, nil
}
