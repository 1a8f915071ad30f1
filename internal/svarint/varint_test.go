package svarint

import "testing"

func TestVarintSingleByte(t *testing.T) {
	v, n, ok := Varint([]byte{0x42})
	if !ok || v != 0x42 || n != 1 {
		t.Fatalf("got (%d, %d, %v), want (0x42, 1, true)", v, n, ok)
	}
}

func TestVarintTwoByte(t *testing.T) {
	// 0x81 0x00 -> (1<<7)|0 = 128
	v, n, ok := Varint([]byte{0x81, 0x00})
	if !ok || v != 128 || n != 2 {
		t.Fatalf("got (%d, %d, %v), want (128, 2, true)", v, n, ok)
	}
}

func TestVarintNineByteUsesFullEighthByte(t *testing.T) {
	// Bytes 0..7 all with continuation bit set and zero payload bits,
	// byte 8 is 0xFF: per spec, byte 8's full 8 bits are appended.
	b := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0xff}
	v, n, ok := Varint(b)
	if !ok || n != 9 || v != 0xff {
		t.Fatalf("got (%d, %d, %v), want (0xff, 9, true)", v, n, ok)
	}
}

func TestVarintTruncated(t *testing.T) {
	// Continuation bit set on every byte, but buffer runs out early.
	b := []byte{0x80, 0x80}
	_, _, ok := Varint(b)
	if ok {
		t.Fatalf("expected truncated varint to report ok=false")
	}
}

func TestVarintEmpty(t *testing.T) {
	_, _, ok := Varint(nil)
	if ok {
		t.Fatalf("expected empty input to report ok=false")
	}
}

func TestVarintRoundTrip(t *testing.T) {
	vals := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 20, 1 << 35, ^uint64(0)}
	for _, v := range vals {
		buf := make([]byte, MaxLen)
		n := PutVarint(buf, v)
		got, n2, ok := Varint(buf[:n])
		if !ok {
			t.Fatalf("Varint(%x) not ok", buf[:n])
		}
		if got != v || n2 != n {
			t.Fatalf("round trip v=%d: got (%d,%d), want (%d,%d)", v, got, n2, v, n)
		}
		if Len(v) != n {
			t.Fatalf("Len(%d)=%d, PutVarint wrote %d", v, Len(v), n)
		}
	}
}

func TestUint16Uint32(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04}
	if got := Uint16(b); got != 0x0102 {
		t.Fatalf("Uint16 = %x, want 0x0102", got)
	}
	if got := Uint32(b); got != 0x01020304 {
		t.Fatalf("Uint32 = %x, want 0x01020304", got)
	}
}
