package ferr

import (
	"errors"
	"testing"
)

func TestFatalKinds(t *testing.T) {
	fatal := []Kind{KindIO, KindNotSqlite, KindInvalidHeader}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	nonFatal := []Kind{KindRange, KindFormat, KindCycle, KindDepthExceeded, KindConflict}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
}

func TestErrorIs(t *testing.T) {
	e := New(KindRange, 42, "page out of bounds")
	if !errors.Is(e, ErrRange) {
		t.Fatalf("expected errors.Is to match ErrRange")
	}
	if errors.Is(e, ErrCycle) {
		t.Fatalf("did not expect errors.Is to match ErrCycle")
	}
	if !Is(e, KindRange) {
		t.Fatalf("expected Is(e, KindRange) to be true")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("seek failed")
	e := Wrap(KindIO, 7, "read page", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
}
