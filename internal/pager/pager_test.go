package pager_test

import (
	"os"
	"testing"

	"github.com/dkrause/sqlitefsck/internal/ferr"
	"github.com/dkrause/sqlitefsck/internal/pager"
	"github.com/dkrause/sqlitefsck/internal/pagertest"
)

func buildEmptyDB(t *testing.T, pageSize uint32) string {
	t.Helper()
	b := pagertest.NewBuilder(pageSize)
	leaf := pagertest.BtreeLeafHeader(0x0d, 0, uint16(pageSize))
	page1 := make([]byte, 100)
	page1 = append(page1, leaf...)
	b.AddPage(page1)
	b.Header(0, 0, 0)
	return b.WriteTemp(t, "empty.db")
}

func TestOpenParsesHeader(t *testing.T) {
	path := buildEmptyDB(t, 4096)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Header.PageSize != 4096 {
		t.Errorf("PageSize = %d, want 4096", p.Header.PageSize)
	}
	if p.MaxPage != 1 {
		t.Errorf("MaxPage = %d, want 1", p.MaxPage)
	}
}

func TestPageSizeEncodingOne(t *testing.T) {
	path := buildEmptyDB(t, 65536)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Header.PageSize != 65536 {
		t.Errorf("PageSize = %d, want 65536 (encoding 1)", p.Header.PageSize)
	}
}

func TestPageSizeEncodingZero(t *testing.T) {
	path := buildEmptyDB(t, 1024)
	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img[16], img[17] = 0, 0 // page-size field: 0 encodes 1024
	if err := os.WriteFile(path, img, 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Header.PageSize != 1024 {
		t.Errorf("PageSize = %d, want 1024 (encoding 0)", p.Header.PageSize)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	b := pagertest.NewBuilder(512)
	b.AddPage(make([]byte, 512))
	path := b.WriteTemp(t, "bad.db")
	_, err := pager.Open(path)
	if !ferr.Is(err, ferr.KindNotSqlite) {
		t.Fatalf("expected NotSqlite, got %v", err)
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/short.db"
	if err := os.WriteFile(path, []byte("too short"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := pager.Open(path)
	if !ferr.Is(err, ferr.KindNotSqlite) {
		t.Fatalf("expected NotSqlite for short file, got %v", err)
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	path := buildEmptyDB(t, 4096)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.ReadPage(0); !ferr.Is(err, ferr.KindRange) {
		t.Errorf("ReadPage(0): expected RangeError, got %v", err)
	}
	if _, err := p.ReadPage(2); !ferr.Is(err, ferr.KindRange) {
		t.Errorf("ReadPage(2): expected RangeError, got %v", err)
	}
}

func TestReadPageReturnsFullBuffer(t *testing.T) {
	path := buildEmptyDB(t, 4096)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf, err := p.ReadPage(1)
	if err != nil {
		t.Fatalf("ReadPage(1): %v", err)
	}
	if len(buf) != 4096 {
		t.Errorf("len(buf) = %d, want 4096", len(buf))
	}
}

func TestBtreeHeaderOffset(t *testing.T) {
	path := buildEmptyDB(t, 4096)
	p, err := pager.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := p.BtreeHeaderOffset(1); got != 100 {
		t.Errorf("BtreeHeaderOffset(1) = %d, want 100", got)
	}
	if got := p.BtreeHeaderOffset(2); got != 0 {
		t.Errorf("BtreeHeaderOffset(2) = %d, want 0", got)
	}
}
