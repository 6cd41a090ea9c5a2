package condfmt

import (
	"testing"
)

func TestRangeNormalize(t *testing.T) {
	r := Range{Start: Address{10, 5}, End: Address{2, 8}}
	n := r.Normalize()
	if n.Start.Row != 2 || n.End.Row != 10 {
		t.Errorf("expected rows 2..10, got %d..%d", n.Start.Row, n.End.Row)
	}
	if n.Start.Col != 5 || n.End.Col != 8 {
		t.Errorf("expected cols 5..8, got %d..%d", n.Start.Col, n.End.Col)
	}
}

func TestRangeContains(t *testing.T) {
	r := NewRange(Address{2, 2}, Address{5, 5})
	for _, a := range []Address{{2, 2}, {5, 5}, {3, 4}} {
		if !r.Contains(a) {
			t.Errorf("expected %v inside %s", a, r.Ref())
		}
	}
	for _, a := range []Address{{1, 2}, {6, 5}, {3, 6}, {3, 1}} {
		if r.Contains(a) {
			t.Errorf("expected %v outside %s", a, r.Ref())
		}
	}

	// Containment is corner-order independent.
	swapped := Range{Start: Address{5, 5}, End: Address{2, 2}}
	if !swapped.Contains(Address{3, 3}) {
		t.Error("expected containment on denormalized range")
	}
}

func TestRangeSignatureStable(t *testing.T) {
	a := NewRange(Address{1, 1}, Address{10, 3})
	b := Range{Start: Address{10, 3}, End: Address{1, 1}}
	if a.Signature() != b.Signature() {
		t.Errorf("signatures differ: %s vs %s", a.Signature(), b.Signature())
	}
	if a.Signature() == NewRange(Address{1, 1}, Address{10, 4}).Signature() {
		t.Error("distinct ranges must not share a signature")
	}
}

func TestRangeCellCount(t *testing.T) {
	if n := NewRange(Address{1, 1}, Address{10, 3}).CellCount(); n != 30 {
		t.Errorf("expected 30 cells, got %d", n)
	}
	if n := NewRange(Address{4, 4}, Address{4, 4}).CellCount(); n != 1 {
		t.Errorf("expected 1 cell, got %d", n)
	}
}

func TestColumnNameConversions(t *testing.T) {
	cases := []struct {
		name string
		num  int
	}{
		{"A", 1}, {"Z", 26}, {"AA", 27}, {"AZ", 52}, {"BA", 53}, {"ZZ", 702}, {"AAA", 703},
	}
	for _, tc := range cases {
		got, err := ColumnNameToNumber(tc.name)
		if err != nil || got != tc.num {
			t.Errorf("ColumnNameToNumber(%s) = %d, %v; want %d", tc.name, got, err, tc.num)
		}
		name, err := ColumnNumberToName(tc.num)
		if err != nil || name != tc.name {
			t.Errorf("ColumnNumberToName(%d) = %s, %v; want %s", tc.num, name, err, tc.name)
		}
	}
	if _, err := ColumnNameToNumber(""); err == nil {
		t.Error("expected error for empty column name")
	}
	if _, err := ColumnNumberToName(0); err == nil {
		t.Error("expected error for column 0")
	}
}

func TestParseCellName(t *testing.T) {
	a, err := ParseCellName("B7")
	if err != nil || a != (Address{Row: 7, Col: 2}) {
		t.Errorf("ParseCellName(B7) = %v, %v", a, err)
	}
	a, err = ParseCellName("$AA$10")
	if err != nil || a != (Address{Row: 10, Col: 27}) {
		t.Errorf("ParseCellName($AA$10) = %v, %v", a, err)
	}
	for _, bad := range []string{"", "7", "A", "A0", "1A"} {
		if _, err := ParseCellName(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseRangeRef(t *testing.T) {
	r, err := ParseRangeRef("A1:C10")
	if err != nil {
		t.Fatalf("ParseRangeRef(A1:C10): %v", err)
	}
	want := NewRange(Address{1, 1}, Address{10, 3})
	if r != want {
		t.Errorf("got %v, want %v", r, want)
	}

	// Reversed corners normalize.
	r, err = ParseRangeRef("C10:A1")
	if err != nil || r != want {
		t.Errorf("got %v, %v; want %v", r, err, want)
	}

	// Single cell yields a one-cell range.
	r, err = ParseRangeRef("B2")
	if err != nil || r != NewRange(Address{2, 2}, Address{2, 2}) {
		t.Errorf("got %v, %v", r, err)
	}

	if _, err := ParseRangeRef("A1:"); err == nil {
		t.Error("expected error for dangling colon")
	}

	if got := want.Ref(); got != "A1:C10" {
		t.Errorf("Ref() = %s, want A1:C10", got)
	}
}
