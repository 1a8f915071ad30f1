// Package pagertest builds small synthetic SQLite-shaped files in
// memory for the rest of this module's tests, the way JuniperBible's
// btree tests hand-build byte slices instead of shipping binary
// fixtures. It is a normal (non-_test.go) package so every package in
// this module can import it from its own tests.
package pagertest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Builder assembles a file page by page. Page numbers are 1-indexed
// and must be added in order starting at 1.
type Builder struct {
	PageSize uint32
	Reserved uint8
	pages    [][]byte
}

// NewBuilder creates a Builder for the given page size (caller's
// responsibility to pick a valid power of two).
func NewBuilder(pageSize uint32) *Builder {
	return &Builder{PageSize: pageSize}
}

// AddPage appends a page, zero-padded/truncated to PageSize. Page 1
// must reserve its first 100 bytes for the database header; callers
// building page 1 should start their b-tree header at offset 100.
func (b *Builder) AddPage(content []byte) uint32 {
	page := make([]byte, b.PageSize)
	copy(page, content)
	b.pages = append(b.pages, page)
	return uint32(len(b.pages))
}

// SetPage overwrites an already-added page (1-indexed) in place,
// useful for patching page 1's header after other pages were sized.
func (b *Builder) SetPage(pgno uint32, content []byte) {
	page := make([]byte, b.PageSize)
	copy(page, content)
	b.pages[pgno-1] = page
}

// PageCount returns how many pages have been added so far.
func (b *Builder) PageCount() uint32 {
	return uint32(len(b.pages))
}

// Header writes the 100-byte database header into page 1's buffer.
// Must be called after all pages (so PageCount reflects the final
// file size) but operates on whatever is already in page 1.
func (b *Builder) Header(firstFreelist, freelistCount, autoVacuum uint32) {
	h := make([]byte, 100)
	copy(h[0:16], []byte("SQLite format 3\x00"))
	sz := uint16(b.PageSize)
	if b.PageSize == 65536 {
		sz = 1
	}
	binary.BigEndian.PutUint16(h[16:18], sz)
	h[20] = b.Reserved
	binary.BigEndian.PutUint32(h[28:32], b.PageCount())
	binary.BigEndian.PutUint32(h[32:36], firstFreelist)
	binary.BigEndian.PutUint32(h[36:40], freelistCount)
	binary.BigEndian.PutUint32(h[52:56], autoVacuum)

	if len(b.pages) == 0 {
		b.pages = append(b.pages, make([]byte, b.PageSize))
	}
	copy(b.pages[0][0:100], h)
}

// Bytes concatenates all pages into the final file image.
func (b *Builder) Bytes() []byte {
	out := make([]byte, 0, len(b.pages)*int(b.PageSize))
	for _, p := range b.pages {
		out = append(out, p...)
	}
	return out
}

// WriteTemp writes the built image to a temp file under t's test
// directory and returns its path.
func (b *Builder) WriteTemp(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		t.Fatalf("write temp db: %v", err)
	}
	return path
}

// BtreeLeafHeader builds an 8-byte table/index-leaf b-tree page
// header: type, first-freeblock=0, cellCount, cellContentStart,
// fragmented-free=0.
func BtreeLeafHeader(pageType byte, cellCount uint16, cellContentStart uint16) []byte {
	h := make([]byte, 8)
	h[0] = pageType
	binary.BigEndian.PutUint16(h[1:3], 0)
	binary.BigEndian.PutUint16(h[3:5], cellCount)
	binary.BigEndian.PutUint16(h[5:7], cellContentStart)
	h[7] = 0
	return h
}

// BtreeInteriorHeader builds a 12-byte interior b-tree page header.
func BtreeInteriorHeader(pageType byte, cellCount uint16, cellContentStart uint16, rightmost uint32) []byte {
	h := make([]byte, 12)
	h[0] = pageType
	binary.BigEndian.PutUint16(h[1:3], 0)
	binary.BigEndian.PutUint16(h[3:5], cellCount)
	binary.BigEndian.PutUint16(h[5:7], cellContentStart)
	h[7] = 0
	binary.BigEndian.PutUint32(h[8:12], rightmost)
	return h
}

// PutVarint appends v to buf in SQLite varint form and returns the
// extended slice (a tiny local helper so test files don't need to
// import internal/svarint just to build fixtures).
func PutVarint(buf []byte, v uint64) []byte {
	tmp := make([]byte, 9)
	n := 0
	switch {
	case v <= 0x7f:
		tmp[0] = byte(v)
		n = 1
	default:
		// General case good enough for test payload sizes/rowids.
		var stack []byte
		x := v
		for {
			stack = append(stack, byte(x&0x7f))
			x >>= 7
			if x == 0 {
				break
			}
		}
		for i := len(stack) - 1; i >= 0; i-- {
			b := stack[i]
			if i != 0 {
				b |= 0x80
			}
			tmp[n] = b
			n++
		}
	}
	return append(buf, tmp[:n]...)
}
