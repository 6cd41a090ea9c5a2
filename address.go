package condfmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Address identifies a single cell by 1-based row and column.
type Address struct {
	Row int
	Col int
}

// Range is a rectangular block of cells. Use NewRange or Normalize to
// guarantee Start <= End on both axes; every exported entry point
// normalizes before use, so callers may build ranges corner-first.
type Range struct {
	Start Address
	End   Address
}

// NewRange returns the normalized range spanning the two addresses.
func NewRange(a, b Address) Range {
	return Range{Start: a, End: b}.Normalize()
}

// Normalize returns an equivalent range with Start <= End on both axes.
func (r Range) Normalize() Range {
	if r.Start.Row > r.End.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
	}
	if r.Start.Col > r.End.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
	}
	return r
}

// Contains reports whether the address falls inside the range.
func (r Range) Contains(a Address) bool {
	r = r.Normalize()
	return a.Row >= r.Start.Row && a.Row <= r.End.Row &&
		a.Col >= r.Start.Col && a.Col <= r.End.Col
}

// CellCount returns the number of cells covered by the range.
func (r Range) CellCount() int {
	r = r.Normalize()
	return (r.End.Row - r.Start.Row + 1) * (r.End.Col - r.Start.Col + 1)
}

// Signature returns a stable string identifying the normalized bounds.
// It is embedded in statistics cache keys, so equal ranges written in
// different corner orders share cache entries.
func (r Range) Signature() string {
	r = r.Normalize()
	return fmt.Sprintf("r%dc%d:r%dc%d", r.Start.Row, r.Start.Col, r.End.Row, r.End.Col)
}

// Ref formats the range as an A1-style reference like "A1:C10".
func (r Range) Ref() string {
	r = r.Normalize()
	return FormatCellName(r.Start) + ":" + FormatCellName(r.End)
}

// ColumnNameToNumber converts an Excel column name ("A", "Z", "AA") to its
// 1-based column number.
func ColumnNameToNumber(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("invalid column name %q", name)
	}
	col := 0
	for _, c := range name {
		switch {
		case c >= 'A' && c <= 'Z':
			col = col*26 + int(c-'A') + 1
		case c >= 'a' && c <= 'z':
			col = col*26 + int(c-'a') + 1
		default:
			return 0, fmt.Errorf("invalid column name %q", name)
		}
	}
	return col, nil
}

// ColumnNumberToName converts a 1-based column number to its Excel name.
func ColumnNumberToName(col int) (string, error) {
	if col < 1 {
		return "", fmt.Errorf("invalid column number %d", col)
	}
	var name string
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name, nil
}

// ParseCellName parses an A1-style cell reference, ignoring absolute
// reference markers ("$A$1" parses the same as "A1").
func ParseCellName(cell string) (Address, error) {
	cell = strings.ReplaceAll(cell, "$", "")
	split := -1
	for i, c := range cell {
		if c >= '0' && c <= '9' {
			split = i
			break
		}
	}
	if split <= 0 {
		return Address{}, fmt.Errorf("invalid cell reference %q", cell)
	}
	col, err := ColumnNameToNumber(cell[:split])
	if err != nil {
		return Address{}, fmt.Errorf("invalid cell reference %q", cell)
	}
	row, err := strconv.Atoi(cell[split:])
	if err != nil || row < 1 {
		return Address{}, fmt.Errorf("invalid cell reference %q", cell)
	}
	return Address{Row: row, Col: col}, nil
}

// FormatCellName formats an address as an A1-style reference.
func FormatCellName(a Address) string {
	name, err := ColumnNumberToName(a.Col)
	if err != nil {
		return ""
	}
	return name + strconv.Itoa(a.Row)
}

// ParseRangeRef parses an A1-style range reference like "A1:C10". A single
// cell reference is accepted and yields a one-cell range.
func ParseRangeRef(ref string) (Range, error) {
	start, end := ref, ref
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		start, end = ref[:i], ref[i+1:]
	}
	from, err := ParseCellName(start)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	to, err := ParseCellName(end)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	return NewRange(from, to), nil
}
