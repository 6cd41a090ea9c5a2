package condfmt

import (
	"strings"

	"github.com/xuri/efp"
)

// DependencyIndex maps cell mutations back to the rules they can affect.
// Target ranges are indexed directly; formula rules additionally index the
// cell and range references extracted from their expression text, so an
// edit to a referenced cell marks the rule stale even when the edited cell
// sits outside the rule's target ranges.
//
// The index is rebuilt whenever the registered rule set changes; it never
// observes edits itself. Hosts drive it: mutate a cell, call Invalidate,
// repaint the returned rules.
type DependencyIndex struct {
	rules map[string]*Rule
	// watched holds, per rule, every range whose cells influence the
	// rule's outcome: its target ranges plus formula references.
	watched map[string][]Range
}

// NewDependencyIndex builds an index over the given rules.
func NewDependencyIndex(rules []*Rule) *DependencyIndex {
	ix := &DependencyIndex{
		rules:   make(map[string]*Rule),
		watched: make(map[string][]Range),
	}
	for _, rule := range rules {
		ix.add(rule)
	}
	return ix
}

func (ix *DependencyIndex) add(rule *Rule) {
	if rule == nil || rule.ID == "" {
		return
	}
	ix.rules[rule.ID] = rule

	watched := make([]Range, 0, len(rule.Ranges))
	watched = append(watched, rule.Ranges...)
	if rule.Type == RuleTypeFormula {
		watched = append(watched, extractFormulaRanges(rule.Formula)...)
	}
	ix.watched[rule.ID] = watched
}

// AffectedRules returns the IDs of every rule whose outcome may change
// when the cell at addr mutates.
func (ix *DependencyIndex) AffectedRules(addr Address) []string {
	var affected []string
	for id, ranges := range ix.watched {
		for _, rng := range ranges {
			if rng.Contains(addr) {
				affected = append(affected, id)
				break
			}
		}
	}
	return affected
}

// Invalidate performs the dirty walk for one cell mutation: stale cached
// statistics are dropped from the cache, and the IDs of all affected rules
// are returned for the host to re-evaluate. The cache may be nil when the
// host only wants the affected set.
func (ix *DependencyIndex) Invalidate(addr Address, cache *StatisticsCache) []string {
	if cache != nil {
		cache.InvalidateAddress(addr)
	}
	return ix.AffectedRules(addr)
}

// Len returns the number of indexed rules.
func (ix *DependencyIndex) Len() int {
	return len(ix.rules)
}

// extractFormulaRanges parses a formula expression and collects the cell
// and range references it mentions. Sheet qualifiers and absolute markers
// are stripped: the engine is scoped to one sheet, and a qualified
// reference to another sheet is outside its invalidation contract.
// Unparseable references are skipped rather than failing the walk.
func extractFormulaRanges(formula string) []Range {
	ps := efp.ExcelParser()
	tokens := ps.Parse(strings.TrimPrefix(formula, "="))
	if tokens == nil {
		return nil
	}

	var refs []Range
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}

		ref := token.TValue
		if i := strings.LastIndexByte(ref, '!'); i >= 0 {
			ref = ref[i+1:]
		}
		ref = strings.ReplaceAll(ref, "$", "")

		// Whole-column references like A:C carry no row digits; bound
		// them to the addressable row space so containment still works.
		if !strings.ContainsAny(ref, "0123456789") {
			parts := strings.SplitN(ref, ":", 2)
			startCol, err1 := ColumnNameToNumber(parts[0])
			endCol, err2 := startCol, error(nil)
			if len(parts) == 2 {
				endCol, err2 = ColumnNameToNumber(parts[1])
			}
			if err1 != nil || err2 != nil {
				continue
			}
			refs = append(refs, NewRange(
				Address{Row: 1, Col: startCol},
				Address{Row: maxSheetRows, Col: endCol},
			))
			continue
		}

		rng, err := ParseRangeRef(ref)
		if err != nil {
			continue
		}
		refs = append(refs, rng)
	}
	return refs
}

// maxSheetRows bounds whole-column formula references. Matches the xlsx
// worksheet row limit.
const maxSheetRows = 1048576
