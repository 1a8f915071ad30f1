// Package pageset owns the per-page classification array: the single
// source of truth the accountant cross-checks against header metadata.
// Exactly one role is assigned per page; a second, conflicting write
// is observed and recorded rather than silently overwriting the first
// (spec §3's "two roles must not claim the same page" invariant).
package pageset

import "github.com/dkrause/sqlitefsck/internal/ferr"

// Role is one of the roles a page can be classified into. The zero
// value, RoleUnknown, means "not yet classified".
type Role int

const (
	RoleUnknown Role = iota
	RoleFreelistTrunk
	RoleFreelistLeaf
	RoleBtreeInteriorTable
	RoleBtreeLeafTable
	RoleBtreeInteriorIndex
	RoleBtreeLeafIndex
	RoleOverflow
	RolePointerMap
	RoleLockByte
	RoleOrphanInteriorTable
	RoleOrphanLeafTable
	RoleOrphanInteriorIndex
	RoleOrphanLeafIndex
	RoleOrphanOverflow
	RoleOrphanEmpty
)

func (r Role) String() string {
	switch r {
	case RoleUnknown:
		return "unknown"
	case RoleFreelistTrunk:
		return "freelist-trunk"
	case RoleFreelistLeaf:
		return "freelist-leaf"
	case RoleBtreeInteriorTable:
		return "btree-interior-table"
	case RoleBtreeLeafTable:
		return "btree-leaf-table"
	case RoleBtreeInteriorIndex:
		return "btree-interior-index"
	case RoleBtreeLeafIndex:
		return "btree-leaf-index"
	case RoleOverflow:
		return "overflow"
	case RolePointerMap:
		return "pointer-map"
	case RoleLockByte:
		return "lock-byte"
	case RoleOrphanInteriorTable:
		return "orphan-interior-table"
	case RoleOrphanLeafTable:
		return "orphan-leaf-table"
	case RoleOrphanInteriorIndex:
		return "orphan-interior-index"
	case RoleOrphanLeafIndex:
		return "orphan-leaf-index"
	case RoleOrphanOverflow:
		return "orphan-overflow"
	case RoleOrphanEmpty:
		return "orphan-empty"
	default:
		return "invalid"
	}
}

// IsOrphan reports whether r is one of the orphan-* roles.
func (r Role) IsOrphan() bool {
	return r >= RoleOrphanInteriorTable && r <= RoleOrphanEmpty
}

// entry tracks a page's role plus the parent that classified it, for
// conflict diagnostics.
type entry struct {
	role   Role
	parent uint32
}

// Conflict records that page Pgno was claimed first by First and then
// again by Second.
type Conflict struct {
	Pgno          uint32
	First, Second Role
	FirstParent   uint32
	SecondParent  uint32
}

// Set is the classification array for one query run, sized to
// maxPage+1 (pages are 1-indexed; index 0 is unused).
type Set struct {
	entries   []entry
	Conflicts []Conflict
	MaxPage   uint32
}

// New allocates a zero-initialized classification array for a file
// with maxPage pages.
func New(maxPage uint32) *Set {
	return &Set{entries: make([]entry, maxPage+1), MaxPage: maxPage}
}

// Role returns the current role of pgno (RoleUnknown if unclassified
// or out of range).
func (s *Set) Role(pgno uint32) Role {
	if pgno == 0 || pgno > s.MaxPage {
		return RoleUnknown
	}
	return s.entries[pgno].role
}

// Parent returns the parent page that classified pgno, or 0.
func (s *Set) Parent(pgno uint32) uint32 {
	if pgno == 0 || pgno > s.MaxPage {
		return 0
	}
	return s.entries[pgno].parent
}

// Classified reports whether pgno has already been assigned a
// non-unknown role.
func (s *Set) Classified(pgno uint32) bool {
	return s.Role(pgno) != RoleUnknown
}

// Classify assigns role to pgno with the given parent. If pgno is
// already classified with a different role, the first classification
// wins (writes are totally ordered by walk order per spec §5) and the
// collision is recorded as a Conflict rather than applied; the caller
// still gets a non-nil *ferr.Error describing it so walkers can log it
// without aborting.
func (s *Set) Classify(pgno uint32, role Role, parent uint32) *ferr.Error {
	if pgno == 0 || pgno > s.MaxPage {
		return ferr.New(ferr.KindRange, pgno, "classify called with out-of-range page number")
	}
	cur := s.entries[pgno]
	if cur.role != RoleUnknown && cur.role != role {
		s.Conflicts = append(s.Conflicts, Conflict{
			Pgno: pgno, First: cur.role, Second: role,
			FirstParent: cur.parent, SecondParent: parent,
		})
		return ferr.New(ferr.KindConflict, pgno, "page claimed by both "+cur.role.String()+" and "+role.String())
	}
	s.entries[pgno] = entry{role: role, parent: parent}
	return nil
}

// Unclassified returns every page number still at RoleUnknown.
func (s *Set) Unclassified() []uint32 {
	var out []uint32
	for pgno := uint32(1); pgno <= s.MaxPage; pgno++ {
		if s.entries[pgno].role == RoleUnknown {
			out = append(out, pgno)
		}
	}
	return out
}

// Counts returns the number of pages assigned to each role, keyed by
// Role (including RoleUnknown for whatever remains unclassified).
func (s *Set) Counts() map[Role]int {
	out := make(map[Role]int)
	for pgno := uint32(1); pgno <= s.MaxPage; pgno++ {
		out[s.entries[pgno].role]++
	}
	return out
}

// PagesWithRole returns every page number currently holding role, in
// ascending order.
func (s *Set) PagesWithRole(role Role) []uint32 {
	var out []uint32
	for pgno := uint32(1); pgno <= s.MaxPage; pgno++ {
		if s.entries[pgno].role == role {
			out = append(out, pgno)
		}
	}
	return out
}
