// Package btree recursively walks a b-tree rooted at a given page,
// classifying every page it reaches into a pageset.Set.
package btree

import (
	"github.com/dkrause/sqlitefsck/internal/cell"
	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/pageset"
	"github.com/dkrause/sqlitefsck/internal/ptrmap"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// MaxDepth bounds recursion; a walk that would need to go deeper stops
// and reports KindDepthExceeded rather than risk unbounded stack growth
// on a corrupt, deeply-nested tree.
const MaxDepth = 50

// Result accumulates diagnostics across a walk. The classifications
// themselves land directly in the Set passed to Walk.
type Result struct {
	GhostPtrmapCount int
	Diagnostics      []*ferr.Error
}

// Walk classifies pgno and, if it is an interior page, recurses into
// its children. parent is recorded in set as the classifying page and
// is reported with any conflict on pgno. autoVacuum selects whether pgno falls on a
// ptrmap candidate position that should be skipped (or, when
// auto-vacuum is off, merely counted as a ghost and walked through).
func Walk(p *pager.Pager, set *pageset.Set, res *Result, pgno, parent uint32, autoVacuum uint32, depth int) {
	if pgno == 0 || pgno > p.MaxPage {
		return
	}
	if set.Classified(pgno) {
		return
	}
	if depth > MaxDepth {
		res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindDepthExceeded, pgno,
			"b-tree recursion exceeded maximum depth"))
		return
	}

	u := p.Usable()
	if autoVacuum != 0 && isPtrmapPosition(pgno, u) {
		return
	}
	if autoVacuum == 0 && isPtrmapPosition(pgno, u) {
		if buf, err := p.ReadPage(pgno); err == nil && looksLikePtrmap(buf, p.MaxPage) {
			res.GhostPtrmapCount++
		}
	}

	buf, err := p.ReadPage(pgno)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, ferr.Wrap(ferr.KindIO, pgno, "read b-tree page", err))
		return
	}

	hdr := p.BtreeHeaderOffset(pgno)
	if hdr+8 > len(buf) {
		res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindFormat, pgno, "page too short for b-tree header"))
		return
	}
	pageType := cell.PageType(buf[hdr])
	if !pageType.Valid() {
		return // not a b-tree page; leave unclassified for the orphan scan
	}

	role, ok := roleForPageType(pageType)
	if !ok {
		return
	}
	if cerr := set.Classify(pgno, role, parent); cerr != nil {
		res.Diagnostics = append(res.Diagnostics, cerr)
		return
	}

	nCell := int(svarint.Uint16(buf[hdr+3 : hdr+5]))
	maxCells := int(p.Header.PageSize) / 2

	switch pageType {
	case cell.TypeInteriorTable, cell.TypeInteriorIndex:
		walkInterior(p, set, res, buf, hdr, nCell, maxCells, pageType, pgno, autoVacuum, depth)
	case cell.TypeLeafTable, cell.TypeLeafIndex:
		walkLeaf(p, set, res, buf, hdr, nCell, maxCells, pageType, pgno, u)
	}
}

func roleForPageType(t cell.PageType) (pageset.Role, bool) {
	switch t {
	case cell.TypeInteriorTable:
		return pageset.RoleBtreeInteriorTable, true
	case cell.TypeLeafTable:
		return pageset.RoleBtreeLeafTable, true
	case cell.TypeInteriorIndex:
		return pageset.RoleBtreeInteriorIndex, true
	case cell.TypeLeafIndex:
		return pageset.RoleBtreeLeafIndex, true
	default:
		return pageset.RoleUnknown, false
	}
}

func cellOffset(buf []byte, cellStart, i int) (int, bool) {
	pos := cellStart + i*2
	if pos+2 > len(buf) {
		return 0, false
	}
	return int(svarint.Uint16(buf[pos : pos+2])), true
}

func walkInterior(p *pager.Pager, set *pageset.Set, res *Result, buf []byte, hdr, nCell, maxCells int, pageType cell.PageType, pgno uint32, autoVacuum uint32, depth int) {
	cellStart := hdr + 12
	for i := 0; i < nCell && i < maxCells; i++ {
		off, ok := cellOffset(buf, cellStart, i)
		if !ok || off < 4 || off+4 > len(buf) {
			continue
		}
		child := svarint.Uint32(buf[off : off+4])
		Walk(p, set, res, child, pgno, autoVacuum, depth+1)

		if pageType == cell.TypeInteriorIndex {
			walkOverflowFromIndexInteriorCell(p, set, res, buf, off, pgno)
		}
	}
	if hdr+12 <= len(buf) {
		rightmost := svarint.Uint32(buf[hdr+8 : hdr+12])
		Walk(p, set, res, rightmost, pgno, autoVacuum, depth+1)
	}
}

func walkLeaf(p *pager.Pager, set *pageset.Set, res *Result, buf []byte, hdr, nCell, maxCells int, pageType cell.PageType, pgno uint32, u uint32) {
	cellStart := hdr + 8
	for i := 0; i < nCell && i < maxCells; i++ {
		off, ok := cellOffset(buf, cellStart, i)
		if !ok || off >= len(buf)-4 {
			continue
		}
		pos := off
		payloadSize, n, valid := svarint.Varint(buf[pos:])
		if !valid {
			continue
		}
		pos += n
		if pageType == cell.TypeLeafTable {
			_, n, valid := svarint.Varint(buf[pos:])
			if !valid {
				continue
			}
			pos += n
		}
		if payloadSize == 0 || payloadSize >= 1<<30 {
			continue
		}

		var split cell.Split
		if pageType == cell.TypeLeafTable {
			split = cell.SplitTable(u, int(payloadSize))
		} else {
			split = cell.SplitIndex(u, int(payloadSize))
		}
		if !split.HasOverflow {
			continue
		}
		overflowOff := pos + split.Local
		if overflowOff+4 > len(buf) {
			continue
		}
		first := svarint.Uint32(buf[overflowOff : overflowOff+4])
		walkOverflowChain(p, set, res, first, pgno)
	}
}

func walkOverflowFromIndexInteriorCell(p *pager.Pager, set *pageset.Set, res *Result, buf []byte, off int, pgno uint32) {
	pos := off + 4
	if pos >= len(buf) {
		return
	}
	payloadSize, n, valid := svarint.Varint(buf[pos:])
	if !valid || payloadSize == 0 || payloadSize >= 1<<30 {
		return
	}
	pos += n
	u := p.Usable()
	split := cell.SplitIndex(u, int(payloadSize))
	if !split.HasOverflow {
		return
	}
	overflowOff := pos + split.Local
	if overflowOff+4 > len(buf) {
		return
	}
	first := svarint.Uint32(buf[overflowOff : overflowOff+4])
	walkOverflowChain(p, set, res, first, pgno)
}

// walkOverflowChain classifies each page in an overflow chain,
// stopping at an out-of-range pointer, a zero terminator, or a page
// already classified (which halts the chain rather than reporting a
// conflict, matching the source tool's behavior of treating a
// previously-visited overflow page as the end of this chain).
func walkOverflowChain(p *pager.Pager, set *pageset.Set, res *Result, pgno uint32, parent uint32) {
	for pgno > 0 && pgno <= p.MaxPage {
		if set.Classified(pgno) {
			return
		}
		if cerr := set.Classify(pgno, pageset.RoleOverflow, parent); cerr != nil {
			res.Diagnostics = append(res.Diagnostics, cerr)
			return
		}
		buf, err := p.ReadPage(pgno)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, ferr.Wrap(ferr.KindIO, pgno, "read overflow page", err))
			return
		}
		if len(buf) < 4 {
			return
		}
		pgno = svarint.Uint32(buf[0:4])
	}
}

func isPtrmapPosition(pgno uint32, u uint32) bool {
	first := ptrmap.FirstPage(u)
	stride := ptrmap.Stride(u)
	if stride == 0 || pgno < first {
		return false
	}
	return (pgno-first)%stride == 0
}

func looksLikePtrmap(buf []byte, maxPage uint32) bool {
	sawNonzero := false
	for off := 0; off+5 <= len(buf); off += 5 {
		typ := buf[off]
		par := svarint.Uint32(buf[off+1 : off+5])
		if typ == 0 && par == 0 {
			continue
		}
		if typ < 1 || typ > 5 || par == 0 || par > maxPage {
			return false
		}
		sawNonzero = true
	}
	return sawNonzero
}
