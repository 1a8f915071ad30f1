package pageset_test

import (
	"testing"

	"github.com/dkrause/sqlitefsck/internal/pageset"
)

func TestClassifyAndQuery(t *testing.T) {
	s := pageset.New(10)
	if s.Classified(3) {
		t.Fatalf("page 3 should start unclassified")
	}
	if err := s.Classify(3, pageset.RoleFreelistLeaf, 2); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !s.Classified(3) {
		t.Fatalf("page 3 should be classified now")
	}
	if s.Role(3) != pageset.RoleFreelistLeaf {
		t.Fatalf("Role(3) = %v, want freelist-leaf", s.Role(3))
	}
	if s.Parent(3) != 2 {
		t.Fatalf("Parent(3) = %d, want 2", s.Parent(3))
	}
}

func TestClassifySameRoleTwiceIsNotAConflict(t *testing.T) {
	s := pageset.New(10)
	_ = s.Classify(5, pageset.RoleBtreeLeafTable, 1)
	err := s.Classify(5, pageset.RoleBtreeLeafTable, 1)
	if err != nil {
		t.Fatalf("re-classifying with the same role should be a no-op, got %v", err)
	}
	if len(s.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", s.Conflicts)
	}
}

func TestClassifyConflict(t *testing.T) {
	s := pageset.New(10)
	_ = s.Classify(5, pageset.RoleFreelistLeaf, 1)
	err := s.Classify(5, pageset.RoleBtreeLeafTable, 9)
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	if len(s.Conflicts) != 1 {
		t.Fatalf("expected 1 recorded conflict, got %d", len(s.Conflicts))
	}
	// First classification wins.
	if s.Role(5) != pageset.RoleFreelistLeaf {
		t.Fatalf("Role(5) = %v, want the first-assigned role to stick", s.Role(5))
	}
}

func TestUnclassifiedAndCounts(t *testing.T) {
	s := pageset.New(3)
	_ = s.Classify(1, pageset.RoleBtreeLeafTable, 0)
	unclassified := s.Unclassified()
	if len(unclassified) != 2 {
		t.Fatalf("expected 2 unclassified pages, got %v", unclassified)
	}
	counts := s.Counts()
	if counts[pageset.RoleBtreeLeafTable] != 1 {
		t.Fatalf("expected 1 btree-leaf-table page, got %d", counts[pageset.RoleBtreeLeafTable])
	}
	if counts[pageset.RoleUnknown] != 2 {
		t.Fatalf("expected 2 unknown pages, got %d", counts[pageset.RoleUnknown])
	}
}

func TestClassifyOutOfRange(t *testing.T) {
	s := pageset.New(3)
	if err := s.Classify(4, pageset.RoleBtreeLeafTable, 0); err == nil {
		t.Fatalf("expected range error classifying page beyond maxPage")
	}
}
