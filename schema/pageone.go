package schema

import (
	"context"

	"github.com/dkrause/sqlitefsck/internal/cell"
	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/record"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// maxWalkDepth bounds the page-1 schema walk the same way every other
// recursive descent in this module is bounded.
const maxWalkDepth = 50

// PageOneSource implements Source by walking page 1's own table-leaf
// cells with internal/record — since page 1 is always the
// sqlite_master table's root, this requires no external database
// driver at all.
type PageOneSource struct {
	p *pager.Pager
}

// NewPageOneSource wraps an already-open Pager.
func NewPageOneSource(p *pager.Pager) *PageOneSource {
	return &PageOneSource{p: p}
}

// sqlite_master's fixed column order: type, name, tbl_name, rootpage, sql.
const (
	colType = iota
	colName
	colTblName
	colRootPage
	colSQL
)

// Roots walks the sqlite_master table b-tree rooted at page 1 and
// returns every row whose root page is nonzero, regardless of whether
// its declared type is "table" or "index" — both consume a root page
// a caller may need to cross-check.
func (s *PageOneSource) Roots(ctx context.Context) ([]Root, error) {
	var out []Root
	if err := walkMasterPage(s.p, 1, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkMasterPage(p *pager.Pager, pgno uint32, depth int, out *[]Root) error {
	if depth > maxWalkDepth {
		return ferr.New(ferr.KindDepthExceeded, pgno, "sqlite_master walk exceeded maximum depth")
	}
	if pgno < 1 || pgno > p.MaxPage {
		return ferr.New(ferr.KindRange, pgno, "sqlite_master walk reached page out of range")
	}

	buf, err := p.ReadPage(pgno)
	if err != nil {
		return err
	}
	hdr := p.BtreeHeaderOffset(pgno)
	if hdr+8 > len(buf) {
		return ferr.New(ferr.KindFormat, pgno, "page too short for b-tree header")
	}
	pageType := cell.PageType(buf[hdr])
	nCell := int(svarint.Uint16(buf[hdr+3 : hdr+5]))
	maxCells := int(p.Header.PageSize) / 2
	if nCell > maxCells {
		nCell = maxCells
	}

	switch pageType {
	case cell.TypeInteriorTable:
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
			if err := walkMasterPage(p, c.LeftChild, depth+1, out); err != nil {
				return err
			}
		}
		if hdr+12 > len(buf) {
			return nil
		}
		rightmost := svarint.Uint32(buf[hdr+8 : hdr+12])
		return walkMasterPage(p, rightmost, depth+1, out)

	case cell.TypeLeafTable:
		u := p.Usable()
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
			cols, err := record.Decode(c.LocalPayload)
			if err != nil || len(cols) <= colRootPage {
				continue
			}
			if cols[colRootPage].Kind != record.KindInt {
				continue
			}
			root := cols[colRootPage].Int
			if root <= 0 {
				continue
			}
			name := string(cols[colName].Bytes)
			*out = append(*out, Root{Name: name, Page: uint32(root)})
		}
		return nil

	default:
		return ferr.New(ferr.KindFormat, pgno, "page 1 root is not a table b-tree")
	}
}
