package record_test

import (
	"math"
	"testing"

	"github.com/dkrause/sqlitefsck/internal/record"
)

func putVarint(buf []byte, v uint64) []byte {
	if v < 0x80 {
		return append(buf, byte(v))
	}
	return append(buf, byte(v>>7)|0x80, byte(v&0x7f))
}

func TestDecodeNullAndSmallInts(t *testing.T) {
	// header: size-varint, serial type 0 (NULL), serial type 8 (int 0), serial type 9 (int 1)
	header := []byte{0, 0, 8, 9}
	header[0] = byte(len(header))
	buf := append([]byte{}, header...)

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	if cols[0].Kind != record.KindNull {
		t.Fatalf("col0 should be NULL, got %v", cols[0].Kind)
	}
	if cols[1].Kind != record.KindInt || cols[1].Int != 0 {
		t.Fatalf("col1 should be int 0, got %+v", cols[1])
	}
	if cols[2].Kind != record.KindInt || cols[2].Int != 1 {
		t.Fatalf("col2 should be int 1, got %+v", cols[2])
	}
}

func TestDecodeOneByteInt(t *testing.T) {
	header := []byte{0, 1} // header size, serial type 1 (1-byte int)
	header[0] = byte(len(header))
	buf := append([]byte{}, header...)
	buf = append(buf, 0xFF) // -1

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cols[0].Int != -1 {
		t.Fatalf("expected -1, got %d", cols[0].Int)
	}
}

func TestDecodeTwoByteInt(t *testing.T) {
	header := []byte{0, 2} // serial type 2 (2-byte int)
	header[0] = byte(len(header))
	buf := append([]byte{}, header...)
	buf = append(buf, 0xFF, 0x00) // -256

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cols[0].Int != -256 {
		t.Fatalf("expected -256, got %d", cols[0].Int)
	}
}

func TestDecodeFloat(t *testing.T) {
	header := []byte{0, 7}
	header[0] = byte(len(header))
	buf := append([]byte{}, header...)
	bits := math.Float64bits(3.5)
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(bits>>(uint(i)*8)))
	}

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cols[0].Kind != record.KindFloat || cols[0].Float != 3.5 {
		t.Fatalf("expected float 3.5, got %+v", cols[0])
	}
}

func TestDecodeTextColumn(t *testing.T) {
	text := []byte("hello")
	st := uint64(13 + 2*len(text)) // odd serial type >= 13 encodes text length
	hdrBody := putVarint([]byte{}, st)
	header := putVarint([]byte{}, uint64(1+len(hdrBody)))
	header = append(header, hdrBody...)
	buf := append([]byte{}, header...)
	buf = append(buf, text...)

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cols[0].Kind != record.KindText {
		t.Fatalf("expected text column, got %v", cols[0].Kind)
	}
	if string(cols[0].Bytes) != "hello" {
		t.Fatalf("expected 'hello', got %q", cols[0].Bytes)
	}
	if cols[0].FullLen != len(text) || cols[0].Truncated {
		t.Fatalf("unexpected FullLen/Truncated: %+v", cols[0])
	}
}

func TestDecodeBlobColumnTruncated(t *testing.T) {
	n := record.MaxInlineBytes + 100
	st := uint64(12 + 2*n) // even serial type >= 12 encodes blob length
	hdrBody := putVarint([]byte{}, st)
	header := putVarint([]byte{}, uint64(1+len(hdrBody)))
	header = append(header, hdrBody...)
	buf := append([]byte{}, header...)
	buf = append(buf, make([]byte, n)...)

	cols, err := record.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cols[0].Kind != record.KindBlob {
		t.Fatalf("expected blob column, got %v", cols[0].Kind)
	}
	if !cols[0].Truncated {
		t.Fatalf("expected truncation flag set")
	}
	if cols[0].FullLen != n {
		t.Fatalf("FullLen = %d, want %d", cols[0].FullLen, n)
	}
	if len(cols[0].Bytes) != record.MaxInlineBytes {
		t.Fatalf("kept bytes = %d, want %d", len(cols[0].Bytes), record.MaxInlineBytes)
	}
}

func TestDecodeTruncatedHeaderVarint(t *testing.T) {
	_, err := record.Decode(nil)
	if err == nil {
		t.Fatalf("expected error decoding empty buffer")
	}
}

func TestDecodeHeaderSizeExceedsBuffer(t *testing.T) {
	buf := []byte{100} // claims a 100-byte header in a 1-byte buffer
	_, err := record.Decode(buf)
	if err == nil {
		t.Fatalf("expected error when header size exceeds buffer length")
	}
}

func TestDecodeInvalidSerialType(t *testing.T) {
	header := []byte{0, 10} // serial type 10 is reserved/invalid
	header[0] = byte(len(header))
	buf := append([]byte{}, header...)

	_, err := record.Decode(buf)
	if err == nil {
		t.Fatalf("expected error for reserved serial type 10")
	}
}
