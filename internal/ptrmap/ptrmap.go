// Package ptrmap computes and validates SQLite pointer-map page
// positions, present only when the database is in auto-vacuum or
// incremental-vacuum mode.
package ptrmap

import (
	"fmt"

	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/pageset"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// EntryType is the 1-byte type field of a pointer-map entry.
type EntryType byte

const (
	TypeRootPage  EntryType = 1
	TypeFreePage  EntryType = 2
	TypeOverflow1 EntryType = 3
	TypeOverflow2 EntryType = 4
	TypeBtree     EntryType = 5
)

func validEntryType(t byte) bool {
	return t >= 1 && t <= 5
}

// Stride returns the spacing between ptrmap pages: floor(U/5) + 1. The
// first ptrmap page number equals the stride (see FirstPage).
func Stride(u uint32) uint32 {
	return u/5 + 1
}

// FirstPage returns the page number of the first ptrmap page:
// floor(U/5) + 1.
func FirstPage(u uint32) uint32 {
	return Stride(u)
}

// Candidates returns every ptrmap page position up to maxPage: the
// first ptrmap page, then every further multiple of the stride, per
// spec §3 ("the first ptrmap page is floor(U/5)+1; ptrmap pages recur
// every floor(U/5)+1 pages").
func Candidates(u uint32, maxPage uint32) []uint32 {
	var out []uint32
	stride := Stride(u)
	if stride == 0 {
		return out
	}
	for pgno := FirstPage(u); pgno <= maxPage; pgno += stride {
		if pgno == 1 {
			continue
		}
		out = append(out, pgno)
	}
	return out
}

// Result summarizes the ptrmap classification pass.
type Result struct {
	Valid        []uint32
	GhostCount   int // candidate looked like valid ptrmap content while auto-vacuum is off
	MissingCount int // auto-vacuum on but candidate unclassified/invalid
	Diagnostics  []*ferr.Error
}

// validate reads a candidate ptrmap page and reports whether its
// content shape is plausible: every 5-byte entry's type in 1..5, any
// non-zero entry references a parent in 1..maxPage, and at least one
// entry is non-zero.
func validate(buf []byte, maxPage uint32) bool {
	sawNonzero := false
	for off := 0; off+5 <= len(buf); off += 5 {
		typ := buf[off]
		parent := svarint.Uint32(buf[off+1 : off+5])
		if typ == 0 && parent == 0 {
			continue
		}
		if !validEntryType(typ) {
			return false
		}
		if parent == 0 || parent > maxPage {
			return false
		}
		sawNonzero = true
	}
	return sawNonzero
}

// Classify walks every ptrmap candidate position, reading and
// validating content, and classifies valid pages in set. autoVacuum
// reports the database's auto_vacuum mode (0 = off).
func Classify(p *pager.Pager, set *pageset.Set, autoVacuum uint32) (Result, error) {
	var res Result
	u := p.Usable()
	for _, pgno := range Candidates(u, p.MaxPage) {
		if set.Classified(pgno) {
			if autoVacuum != 0 {
				res.MissingCount++
				res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindFormat, pgno,
					"expected pointer-map page is occupied by another role"))
			}
			continue
		}

		buf, err := p.ReadPage(pgno)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, ferr.Wrap(ferr.KindIO, pgno, "read ptrmap candidate", err))
			continue
		}

		if !validate(buf, p.MaxPage) {
			if autoVacuum != 0 {
				res.MissingCount++
				res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindFormat, pgno,
					fmt.Sprintf("pointer-map page %d failed content validation", pgno)))
			}
			continue
		}

		if autoVacuum == 0 {
			res.GhostCount++
			res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindFormat, pgno,
				"ghost pointer-map page: valid ptrmap content while auto-vacuum is off"))
			continue
		}

		if err := set.Classify(pgno, pageset.RolePointerMap, 0); err != nil {
			res.Diagnostics = append(res.Diagnostics, err)
			continue
		}
		res.Valid = append(res.Valid, pgno)
	}
	return res, nil
}
