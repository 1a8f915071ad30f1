// Package report renders the accountant package's query results into
// the stable textual shapes spec §6 names. It is a thin presenter: the
// core walker packages never import it and never format text
// themselves, matching spec §1's framing of per-tool reporting as
// "thin presenters over this engine."
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dkrause/sqlitefsck/internal/accountant"
	"github.com/dkrause/sqlitefsck/internal/pageset"
	"github.com/dkrause/sqlitefsck/internal/record"
)

// FreelistCheck writes the freelist_check report: pagesize, total
// pages, first trunk, observed trunk/leaf counts, header count,
// verdict, and a per-trunk listing with next-pointer and leaf list.
func FreelistCheck(w io.Writer, res accountant.FreelistCheckResult) error {
	fmt.Fprintf(w, "page size: %d\n", res.PageSize)
	fmt.Fprintf(w, "total pages: %d\n", res.TotalPages)
	fmt.Fprintf(w, "first trunk: %d\n", res.FirstTrunk)
	fmt.Fprintf(w, "observed trunks: %d\n", res.ObservedTrunks)
	fmt.Fprintf(w, "observed leaves: %d\n", res.ObservedLeaves)
	fmt.Fprintf(w, "header freelist count: %d\n", res.HeaderCount)
	switch res.Verdict {
	case accountant.VerdictMatch:
		fmt.Fprintln(w, "verdict: match")
	default:
		fmt.Fprintf(w, "verdict: %s(%d)\n", res.Verdict, res.Delta)
	}
	for _, t := range res.Trunks {
		fmt.Fprintf(w, "  trunk %d -> next %d, leaves %v", t.Pgno, t.Next, t.Leaves)
		if t.Clamped {
			fmt.Fprintf(w, " (declared count %d clamped)", t.LeafCount)
		}
		fmt.Fprintln(w)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "diagnostic: %s\n", d.Error())
	}
	return nil
}

var allRoles = []pageset.Role{
	pageset.RoleFreelistTrunk,
	pageset.RoleFreelistLeaf,
	pageset.RoleBtreeInteriorTable,
	pageset.RoleBtreeLeafTable,
	pageset.RoleBtreeInteriorIndex,
	pageset.RoleBtreeLeafIndex,
	pageset.RoleOverflow,
	pageset.RolePointerMap,
	pageset.RoleLockByte,
	pageset.RoleOrphanInteriorTable,
	pageset.RoleOrphanLeafTable,
	pageset.RoleOrphanInteriorIndex,
	pageset.RoleOrphanLeafIndex,
	pageset.RoleOrphanOverflow,
	pageset.RoleOrphanEmpty,
	pageset.RoleUnknown,
}

// Account writes the account report: per-role counts (all 15
// classified roles plus unknown), totals vs. header, ghost/missing
// ptrmap counts, and conflicts. Orphan/unknown page lists are written
// separately by WriteList per spec §6 ("written to a file of one pgno
// per line").
func Account(w io.Writer, res accountant.AccountResult) error {
	fmt.Fprintf(w, "total pages: %d (header database size: %d)\n", res.TotalPages, res.HeaderDBSize)
	for _, role := range allRoles {
		fmt.Fprintf(w, "  %-24s %d\n", role.String()+":", res.RoleCounts[role])
	}
	fmt.Fprintf(w, "ghost pointer-map pages: %d\n", res.GhostPtrmapCount)
	fmt.Fprintf(w, "missing pointer-map pages: %d\n", res.MissingPtrmap)
	fmt.Fprintf(w, "conflicts: %d\n", len(res.Conflicts))
	for _, c := range res.Conflicts {
		fmt.Fprintf(w, "  page %d: %s (parent %d) vs %s (parent %d)\n",
			c.Pgno, c.First, c.FirstParent, c.Second, c.SecondParent)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "diagnostic: %s\n", d.Error())
	}
	return nil
}

// Conflicts writes the find_conflicts report: count and list of page
// numbers present in both the freelist and the reachable b-tree set.
func Conflicts(w io.Writer, res accountant.ConflictsResult) error {
	fmt.Fprintf(w, "conflicts: %d\n", len(res.Pages))
	for _, pgno := range res.Pages {
		fmt.Fprintf(w, "  page %d\n", pgno)
	}
	return nil
}

// Owner writes the page_owner report: the list of (kind, name, root)
// tuples whose walks reach the queried page, or the "not in any
// btree/freelist" verdict.
func Owner(w io.Writer, res accountant.OwnerResult) error {
	fmt.Fprintf(w, "page %d:\n", res.Page)
	if res.InFree {
		fmt.Fprintln(w, "  reachable from the freelist")
	}
	if res.NotFound() {
		fmt.Fprintln(w, "  not in any btree/freelist")
		return nil
	}
	for _, o := range res.Owners {
		fmt.Fprintf(w, "  %s: %s (root %d)\n", o.Kind, o.Name, o.Root)
	}
	return nil
}

// Dump writes the dump_rowid report: record size, header size, per-
// column serial-type/decoded value, hex dump, and overflow head page
// if any.
func Dump(w io.Writer, res accountant.DumpResult) error {
	if !res.Found {
		fmt.Fprintf(w, "rowid %d not found (leaf page %d)\n", res.Rowid, res.LeafPage)
		return nil
	}
	fmt.Fprintf(w, "rowid: %d (leaf page %d)\n", res.Rowid, res.LeafPage)
	fmt.Fprintf(w, "record size: %d\n", res.RecordSize)
	fmt.Fprintf(w, "header size: 0x%x\n", res.HeaderSize)
	for i, col := range res.Columns {
		fmt.Fprintf(w, "  col[%d] serial=%d kind=%s", i, col.SerialType, columnKindName(col.Kind))
		switch col.Kind {
		case record.KindInt:
			fmt.Fprintf(w, " value=%d\n", col.Int)
		case record.KindFloat:
			fmt.Fprintf(w, " value=%g\n", col.Float)
		case record.KindText, record.KindBlob:
			if col.Truncated {
				fmt.Fprintf(w, " value=%q (truncated, full length %d)\n", col.Bytes, col.FullLen)
			} else {
				fmt.Fprintf(w, " value=%q\n", col.Bytes)
			}
		default:
			fmt.Fprintln(w, " value=NULL")
		}
	}
	fmt.Fprintf(w, "hex: %s\n", res.HexDump)
	if res.HasOverflow {
		fmt.Fprintf(w, "overflow head page: %d\n", res.OverflowFirst)
	}
	return nil
}

func columnKindName(k record.ColumnKind) string {
	switch k {
	case record.KindNull:
		return "null"
	case record.KindInt:
		return "int"
	case record.KindFloat:
		return "float"
	case record.KindText:
		return "text"
	case record.KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// WriteList writes one page number per line, the shape spec §6 names
// for the account query's orphan and unknown page lists.
func WriteList(w io.Writer, pages []uint32) error {
	sorted := append([]uint32(nil), pages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, pgno := range sorted {
		if _, err := fmt.Fprintf(w, "%d\n", pgno); err != nil {
			return err
		}
	}
	return nil
}
