// Package pager opens a SQLite database file read-only, parses its
// 100-byte header, and serves fixed-size pages by number. It is the
// leaf-most I/O component every walker in this module builds on.
package pager

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dkrause/sqlitefsck/internal/ferr"
)

// HeaderSize is the fixed size of the database header at the start of
// page 1.
const HeaderSize = 100

var magic = [16]byte{'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0}

// Header holds the subset of the 100-byte database header this module
// consumes (spec data model table, offsets fixed by the file format).
type Header struct {
	PageSize       uint32 // resolved: 1 -> 65536, 0 -> 1024, else verbatim
	ReservedSpace  uint8
	DatabaseSize   uint32 // in-header page count, may be stale
	FirstFreelist  uint32 // 0 if none
	FreelistCount  uint32
	AutoVacuumMode uint32
}

// Pager is a read-only handle on a database file plus its parsed
// header and the derived maximum page number.
type Pager struct {
	path    string
	Header  Header
	MaxPage uint32 // ceil(file size / page size), derived independent of Header.DatabaseSize
	size    int64
}

// Open parses the header of path and returns a Pager. It fails with a
// fatal ferr.Kind (IoError, NotSqlite, or InvalidHeader) if the file
// cannot be read, the magic doesn't match, or the header is absurd.
func Open(path string) (*Pager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindIO, 0, "open database file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ferr.Wrap(ferr.KindIO, 0, "stat database file", err)
	}
	if info.Size() < HeaderSize {
		return nil, ferr.New(ferr.KindNotSqlite, 0, "file shorter than the 100-byte header")
	}

	raw := make([]byte, HeaderSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		return nil, ferr.Wrap(ferr.KindIO, 0, "read database header", err)
	}

	var gotMagic [16]byte
	copy(gotMagic[:], raw[0:16])
	if gotMagic != magic {
		return nil, ferr.New(ferr.KindNotSqlite, 0, "magic string mismatch")
	}

	rawPageSize := binary.BigEndian.Uint16(raw[16:18])
	pageSize := uint32(rawPageSize)
	switch rawPageSize {
	case 1:
		pageSize = 65536
	case 0:
		pageSize = 1024
	}
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return nil, ferr.New(ferr.KindInvalidHeader, 0, fmt.Sprintf("page size %d is not a power of two in [512, 65536]", pageSize))
	}

	reserved := raw[20]
	if uint32(reserved) >= pageSize {
		return nil, ferr.New(ferr.KindInvalidHeader, 0, fmt.Sprintf("reserved space %d >= page size %d", reserved, pageSize))
	}

	h := Header{
		PageSize:       pageSize,
		ReservedSpace:  reserved,
		DatabaseSize:   binary.BigEndian.Uint32(raw[28:32]),
		FirstFreelist:  binary.BigEndian.Uint32(raw[32:36]),
		FreelistCount:  binary.BigEndian.Uint32(raw[36:40]),
		AutoVacuumMode: binary.BigEndian.Uint32(raw[52:56]),
	}

	maxPage := uint32((info.Size() + int64(pageSize) - 1) / int64(pageSize))

	return &Pager{path: path, Header: h, MaxPage: maxPage, size: info.Size()}, nil
}

// Usable returns U = pagesize - reserved, the usable payload area per
// page used throughout the local/overflow split formulas.
func (p *Pager) Usable() uint32 {
	return p.Header.PageSize - uint32(p.Header.ReservedSpace)
}

// ReadPage returns a freshly allocated pagesize-byte buffer holding
// page pgno (1-indexed). It fails with a RangeError for pgno outside
// 1..MaxPage, and an IoError on a short read.
func (p *Pager) ReadPage(pgno uint32) ([]byte, error) {
	if pgno < 1 || pgno > p.MaxPage {
		return nil, ferr.New(ferr.KindRange, pgno, fmt.Sprintf("page number out of range 1..%d", p.MaxPage))
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindIO, pgno, "open database file", err)
	}
	defer f.Close()

	buf := make([]byte, p.Header.PageSize)
	off := int64(pgno-1) * int64(p.Header.PageSize)
	n, err := f.ReadAt(buf, off)
	if err != nil && n != len(buf) {
		return nil, ferr.Wrap(ferr.KindIO, pgno, "read page", err)
	}
	return buf, nil
}

// BtreeHeaderOffset returns the byte offset within a page's buffer at
// which the b-tree page header begins: 100 for page 1 (which also
// carries the 100-byte database header), 0 otherwise.
func (p *Pager) BtreeHeaderOffset(pgno uint32) int {
	if pgno == 1 {
		return HeaderSize
	}
	return 0
}
