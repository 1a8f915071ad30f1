// Package accountant composes the lower-level walkers (freelist, ptrmap,
// btree) into the five externally useful queries named in spec §4.7/§6:
// freelist integrity, full page accounting, conflict detection,
// page-ownership lookup, and rowid-keyed cell dump. It owns the
// per-query classification array; no package-level mutable state is
// kept so two queries can run back to back in one process.
package accountant

import (
	"log/slog"

	"github.com/dkrause/sqlitefsck/internal/btree"
	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/flog"
	"github.com/dkrause/sqlitefsck/internal/freelist"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/pageset"
	"github.com/dkrause/sqlitefsck/internal/ptrmap"
)

// Root is the narrow (name, root_page) shape the accountant consumes
// from its schema collaborator, per spec §6 ("the core consumes a list
// of (name, root_page) pairs through a narrow interface and does not
// care how they were obtained"). This package never imports the
// schema package; callers convert their own schema.Root values into
// this type.
type Root struct {
	Name     string
	RootPage uint32
}

// FreelistVerdict classifies the comparison between observed and
// header freelist counts.
type FreelistVerdict int

const (
	VerdictMatch FreelistVerdict = iota
	VerdictOverage
	VerdictShortage
)

func (v FreelistVerdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictOverage:
		return "overage"
	default:
		return "shortage"
	}
}

// FreelistCheckResult is the stable shape of the freelist_check query.
type FreelistCheckResult struct {
	PageSize       uint32
	TotalPages     uint32
	FirstTrunk     uint32
	ObservedTrunks int
	ObservedLeaves int
	HeaderCount    uint32
	Verdict        FreelistVerdict
	Delta          uint32 // |observed - header|, meaningful when Verdict != match
	Trunks         []freelist.Trunk
	Diagnostics    []*ferr.Error
}

// FreelistCheck runs the freelist walker and compares its observed
// leaf count against the header's (possibly stale) freelist count.
func FreelistCheck(p *pager.Pager) (FreelistCheckResult, error) {
	res, err := freelist.Walk(p)
	if err != nil {
		return FreelistCheckResult{}, err
	}

	observed := uint32(len(res.LeafPages))
	out := FreelistCheckResult{
		PageSize:       p.Header.PageSize,
		TotalPages:     p.MaxPage,
		FirstTrunk:     p.Header.FirstFreelist,
		ObservedTrunks: len(res.Trunks),
		ObservedLeaves: len(res.LeafPages),
		HeaderCount:    p.Header.FreelistCount,
		Trunks:         res.Trunks,
		Diagnostics:    res.Diagnostics,
	}
	switch {
	case observed == p.Header.FreelistCount:
		out.Verdict = VerdictMatch
	case observed > p.Header.FreelistCount:
		out.Verdict = VerdictOverage
		out.Delta = observed - p.Header.FreelistCount
	default:
		out.Verdict = VerdictShortage
		out.Delta = p.Header.FreelistCount - observed
	}
	return out, nil
}

// AccountResult is the stable shape of the account query: per-role
// counts, totals against the header, ptrmap ghost/missing counts, and
// the orphan/unknown page lists.
type AccountResult struct {
	RoleCounts       map[pageset.Role]int
	TotalPages       uint32
	HeaderDBSize     uint32
	GhostPtrmapCount int
	MissingPtrmap    int
	Conflicts        []pageset.Conflict
	OrphanPages      []uint32
	UnknownPages     []uint32
	Diagnostics      []*ferr.Error
}

// Account runs freelist -> ptrmap -> b-trees (seeded with page 1 plus
// every caller-supplied root) -> orphan scan, in that order (spec §3
// lifecycle), and totals the result against header metadata.
func Account(p *pager.Pager, roots []Root, logger *slog.Logger) (AccountResult, error) {
	if logger == nil {
		logger = flog.Discard()
	}
	set := pageset.New(p.MaxPage)
	var out AccountResult

	flRes, err := freelist.Walk(p)
	if err != nil {
		return out, err
	}
	for _, t := range flRes.Trunks {
		if cerr := set.Classify(t.Pgno, pageset.RoleFreelistTrunk, 0); cerr != nil {
			out.Diagnostics = append(out.Diagnostics, cerr)
		}
	}
	for _, leaf := range flRes.LeafPages {
		if cerr := set.Classify(leaf, pageset.RoleFreelistLeaf, 0); cerr != nil {
			out.Diagnostics = append(out.Diagnostics, cerr)
		}
	}
	out.Diagnostics = append(out.Diagnostics, flRes.Diagnostics...)

	ptrRes, err := ptrmap.Classify(p, set, p.Header.AutoVacuumMode)
	if err != nil {
		return out, err
	}
	out.GhostPtrmapCount += ptrRes.GhostCount
	out.MissingPtrmap = ptrRes.MissingCount
	out.Diagnostics = append(out.Diagnostics, ptrRes.Diagnostics...)

	btRes := &btree.Result{}
	btree.Walk(p, set, btRes, 1, 0, p.Header.AutoVacuumMode, 0)
	for _, root := range roots {
		if root.RootPage == 0 {
			continue
		}
		btree.Walk(p, set, btRes, root.RootPage, 0, p.Header.AutoVacuumMode, 0)
	}
	out.GhostPtrmapCount += btRes.GhostPtrmapCount
	out.Diagnostics = append(out.Diagnostics, btRes.Diagnostics...)

	orphanRes, err := classifyOrphans(p, set)
	if err != nil {
		return out, err
	}
	out.OrphanPages = orphanRes.Orphans
	out.UnknownPages = orphanRes.Unknown
	out.Diagnostics = append(out.Diagnostics, orphanRes.Diagnostics...)

	out.RoleCounts = set.Counts()
	out.TotalPages = p.MaxPage
	out.HeaderDBSize = p.Header.DatabaseSize
	out.Conflicts = set.Conflicts

	for _, d := range out.Diagnostics {
		logger.Warn(d.Error(), flog.PageAttr(d.Pgno), "kind", d.Kind.String())
	}
	return out, nil
}

// ConflictsResult is the stable shape of the find_conflicts query.
type ConflictsResult struct {
	Pages []uint32
}

// FindConflicts builds two disjoint bitsets — one from the freelist
// walk, one from the b-tree walk seeded at page 1 plus every caller
// root — and reports the pages present in both, per spec §4.7: this
// intersection is the corruption find_conflicts exists to surface.
func FindConflicts(p *pager.Pager, roots []Root) (ConflictsResult, error) {
	flRes, err := freelist.Walk(p)
	if err != nil {
		return ConflictsResult{}, err
	}
	freeSet := make(map[uint32]bool, len(flRes.LeafPages)+len(flRes.Trunks))
	for _, t := range flRes.Trunks {
		freeSet[t.Pgno] = true
	}
	for _, leaf := range flRes.LeafPages {
		freeSet[leaf] = true
	}

	btSet := pageset.New(p.MaxPage)
	btRes := &btree.Result{}
	btree.Walk(p, btSet, btRes, 1, 0, p.Header.AutoVacuumMode, 0)
	for _, root := range roots {
		if root.RootPage == 0 {
			continue
		}
		btree.Walk(p, btSet, btRes, root.RootPage, 0, p.Header.AutoVacuumMode, 0)
	}

	var conflicts []uint32
	for pgno := uint32(1); pgno <= p.MaxPage; pgno++ {
		if freeSet[pgno] && btSet.Classified(pgno) {
			conflicts = append(conflicts, pgno)
		}
	}
	return ConflictsResult{Pages: conflicts}, nil
}

// Owner names one (kind, name, root) whose walk reached the queried
// page.
type Owner struct {
	Kind string
	Name string
	Root uint32
}

// OwnerResult is the stable shape of the page_owner query.
type OwnerResult struct {
	Page   uint32
	Owners []Owner
	InFree bool
}

// NotFound reports the page_owner "not in any btree/freelist" verdict
// spec §6 names.
func (r OwnerResult) NotFound() bool {
	return !r.InFree && len(r.Owners) == 0
}

// PageOwner walks, independently, the freelist plus every (name, root)
// pair — "sqlite_master" at page 1 is always included — and reports
// every walk whose reachable set includes page. Each walk gets a fresh
// classification array so one owner's traversal cannot be short
// circuited by another's.
func PageOwner(p *pager.Pager, roots []Root, page uint32) (OwnerResult, error) {
	out := OwnerResult{Page: page}

	flRes, err := freelist.Walk(p)
	if err != nil {
		return out, err
	}
	for _, t := range flRes.Trunks {
		if t.Pgno == page {
			out.InFree = true
		}
	}
	for _, leaf := range flRes.LeafPages {
		if leaf == page {
			out.InFree = true
		}
	}

	all := append([]Root{{Name: "sqlite_master", RootPage: 1}}, roots...)
	for _, root := range all {
		if root.RootPage == 0 {
			continue
		}
		set := pageset.New(p.MaxPage)
		res := &btree.Result{}
		btree.Walk(p, set, res, root.RootPage, 0, p.Header.AutoVacuumMode, 0)
		if set.Classified(page) {
			out.Owners = append(out.Owners, Owner{
				Kind: set.Role(page).String(),
				Name: root.Name,
				Root: root.RootPage,
			})
		}
	}
	return out, nil
}
