package accountant

import (
	"github.com/dkrause/sqlitefsck/internal/cell"
	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/pageset"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// orphanResult is the per-page classification produced by the final
// scan over whatever the freelist, ptrmap, and b-tree passes left
// unclassified.
type orphanResult struct {
	Orphans     []uint32
	Unknown     []uint32
	Diagnostics []*ferr.Error
}

// orphanRoleForType maps a raw b-tree page-type byte to its orphan
// counterpart, per spec §4.6.
func orphanRoleForType(t byte) (pageset.Role, bool) {
	switch cell.PageType(t) {
	case cell.TypeInteriorTable:
		return pageset.RoleOrphanInteriorTable, true
	case cell.TypeLeafTable:
		return pageset.RoleOrphanLeafTable, true
	case cell.TypeInteriorIndex:
		return pageset.RoleOrphanInteriorIndex, true
	case cell.TypeLeafIndex:
		return pageset.RoleOrphanLeafIndex, true
	default:
		return pageset.RoleUnknown, false
	}
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// classifyOrphans scans every page set left unclassified after
// freelist + ptrmap + all reachable roots have been walked (spec
// §4.6), classifying each by content shape: all-zero is orphan-empty,
// a recognizable b-tree type byte is the matching orphan-* variant, a
// zero type byte with a plausible next-pointer is orphan-overflow,
// otherwise the page is left unknown.
func classifyOrphans(p *pager.Pager, set *pageset.Set) (orphanResult, error) {
	var out orphanResult
	for _, pgno := range set.Unclassified() {
		buf, err := p.ReadPage(pgno)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics, ferr.Wrap(ferr.KindIO, pgno, "read orphan candidate", err))
			out.Unknown = append(out.Unknown, pgno)
			continue
		}

		hdr := p.BtreeHeaderOffset(pgno)
		if allZero(buf) {
			_ = set.Classify(pgno, pageset.RoleOrphanEmpty, 0)
			out.Orphans = append(out.Orphans, pgno)
			continue
		}

		if hdr < len(buf) {
			if role, ok := orphanRoleForType(buf[hdr]); ok {
				_ = set.Classify(pgno, role, 0)
				out.Orphans = append(out.Orphans, pgno)
				continue
			}
		}

		if len(buf) >= 4 && buf[0] == 0x00 {
			next := svarint.Uint32(buf[0:4])
			if next == 0 || next <= p.MaxPage {
				_ = set.Classify(pgno, pageset.RoleOrphanOverflow, 0)
				out.Orphans = append(out.Orphans, pgno)
				continue
			}
		}

		out.Unknown = append(out.Unknown, pgno)
	}
	return out, nil
}
