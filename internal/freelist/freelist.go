// Package freelist walks a SQLite database's freelist trunk chain,
// emitting trunk and leaf page numbers with cycle detection.
package freelist

import (
	"fmt"

	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/svarint"
)

// maxVisited bounds the cycle-detection set per spec §5/§9 ("A linear
// scan of the visited list is adequate for freelists (bounded 10,000)").
const maxVisited = 10_000

// Trunk describes one trunk page's observed contents.
type Trunk struct {
	Pgno      uint32
	Next      uint32
	LeafCount uint32 // as read from the page, before clamping
	Leaves    []uint32
	Clamped   bool // true if LeafCount exceeded the per-page maximum and was clamped
}

// Result is the full freelist walk.
type Result struct {
	Trunks      []Trunk
	LeafPages   []uint32 // flattened across all trunks, in walk order
	CycleAt     uint32   // nonzero if a cycle was detected
	Diagnostics []*ferr.Error
}

// MaxLeavesPerTrunk returns (pagesize-8)/4, the structural cap on how
// many leaf pointers a single trunk page can hold.
func MaxLeavesPerTrunk(pageSize uint32) uint32 {
	return (pageSize - 8) / 4
}

// Walk follows p's header FirstFreelist pointer through next_trunk
// pointers until it reaches 0, a cycle, or an out-of-range page.
func Walk(p *pager.Pager) (Result, error) {
	var res Result
	visited := make(map[uint32]bool)

	pgno := p.Header.FirstFreelist
	for pgno != 0 {
		if pgno < 1 || pgno > p.MaxPage {
			return res, ferr.New(ferr.KindRange, pgno, "freelist trunk pointer out of range")
		}
		if visited[pgno] {
			res.CycleAt = pgno
			res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindCycle, pgno, "freelist trunk revisited"))
			break
		}
		if len(visited) < maxVisited {
			visited[pgno] = true
		}

		buf, err := p.ReadPage(pgno)
		if err != nil {
			return res, err
		}
		if len(buf) < 8 {
			return res, ferr.New(ferr.KindFormat, pgno, "freelist trunk page too short for header")
		}

		next := svarint.Uint32(buf[0:4])
		nleaves := svarint.Uint32(buf[4:8])

		trunk := Trunk{Pgno: pgno, Next: next, LeafCount: nleaves}
		maxLeaves := MaxLeavesPerTrunk(p.Header.PageSize)
		effective := nleaves
		if effective > maxLeaves {
			trunk.Clamped = true
			effective = maxLeaves
			res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindFormat, pgno,
				fmt.Sprintf("trunk leaf count %d exceeds maximum %d, clamped", nleaves, maxLeaves)))
		}

		for i := uint32(0); i < effective; i++ {
			off := 8 + i*4
			if int(off+4) > len(buf) {
				break
			}
			leaf := svarint.Uint32(buf[off : off+4])
			if leaf < 1 || leaf > p.MaxPage {
				res.Diagnostics = append(res.Diagnostics, ferr.New(ferr.KindRange, leaf, "freelist leaf pointer out of range"))
				continue
			}
			trunk.Leaves = append(trunk.Leaves, leaf)
			res.LeafPages = append(res.LeafPages, leaf)
		}

		res.Trunks = append(res.Trunks, trunk)
		pgno = next
	}

	return res, nil
}
