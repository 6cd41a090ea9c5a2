package condfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFormulaRanges(t *testing.T) {
	refs := extractFormulaRanges("=SUM(A1:B10)+C3")
	require.Len(t, refs, 2)
	assert.Equal(t, NewRange(Address{1, 1}, Address{10, 2}), refs[0])
	assert.Equal(t, NewRange(Address{3, 3}, Address{3, 3}), refs[1])
}

func TestExtractFormulaRangesAbsoluteAndSheet(t *testing.T) {
	refs := extractFormulaRanges("=$A$1>Sheet2!B2")
	require.Len(t, refs, 2)
	assert.Equal(t, NewRange(Address{1, 1}, Address{1, 1}), refs[0])
	// Sheet qualifiers are stripped; the reference still registers.
	assert.Equal(t, NewRange(Address{2, 2}, Address{2, 2}), refs[1])
}

func TestExtractFormulaRangesWholeColumn(t *testing.T) {
	refs := extractFormulaRanges("=SUM(A:C)")
	require.Len(t, refs, 1)
	assert.Equal(t, 1, refs[0].Start.Col)
	assert.Equal(t, 3, refs[0].End.Col)
	assert.Equal(t, 1, refs[0].Start.Row)
	assert.Equal(t, maxSheetRows, refs[0].End.Row)
}

func TestExtractFormulaRangesUnparseable(t *testing.T) {
	assert.Empty(t, extractFormulaRanges(""))
	// Function names and literals are not references.
	assert.Empty(t, extractFormulaRanges(`=IF(TRUE, 1, 2)`))
}

func TestDependencyIndexAffectedRules(t *testing.T) {
	target := NewRange(Address{1, 1}, Address{10, 10})
	elsewhere := NewRange(Address{100, 1}, Address{110, 10})
	rules := []*Rule{
		{ID: "in-range", Type: RuleTypeValue, Operator: OperatorEqual, Value: 1.0, Ranges: []Range{target}},
		{ID: "far", Type: RuleTypeValue, Operator: OperatorEqual, Value: 1.0, Ranges: []Range{elsewhere}},
		// Targets a far range but references a cell inside target.
		{ID: "formula", Type: RuleTypeFormula, Formula: "=B2>0", Ranges: []Range{elsewhere}},
	}
	ix := NewDependencyIndex(rules)
	assert.Equal(t, 3, ix.Len())

	affected := ix.AffectedRules(Address{Row: 2, Col: 2})
	assert.ElementsMatch(t, []string{"in-range", "formula"}, affected)

	affected = ix.AffectedRules(Address{Row: 105, Col: 5})
	assert.ElementsMatch(t, []string{"far", "formula"}, affected)

	assert.Empty(t, ix.AffectedRules(Address{Row: 50, Col: 50}))
}

func TestDependencyIndexInvalidateDropsStats(t *testing.T) {
	rng := NewRange(Address{1, 1}, Address{10, 1})
	rule := &Rule{ID: "top", Type: RuleTypeTopBottom, Rank: 3, Ranges: []Range{rng}}
	ix := NewDependencyIndex([]*Rule{rule})

	cache := NewStatisticsCache(16)
	cache.Set("top", rng, ComputeRangeStatistics(rng, func(Address) interface{} { return 1.0 }))

	affected := ix.Invalidate(Address{Row: 5, Col: 1}, cache)
	assert.Equal(t, []string{"top"}, affected)
	_, ok := cache.Get("top", rng)
	assert.False(t, ok)

	// Nil cache: walk still reports affected rules.
	affected = ix.Invalidate(Address{Row: 5, Col: 1}, nil)
	assert.Equal(t, []string{"top"}, affected)
}
