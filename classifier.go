package condfmt

import (
	"sort"
)

// DependencyClass describes what a rule's match decision depends on. The
// classifier tags every rule once per batch so the evaluator can route it
// without re-inspecting its type.
type DependencyClass string

// Dependency classes.
const (
	// ClassCellLocal rules depend only on the tested cell's own value.
	ClassCellLocal DependencyClass = "cell-local"
	// ClassRangeGlobal rules depend on aggregate statistics over their
	// whole range.
	ClassRangeGlobal DependencyClass = "range-global"
	// ClassFormulaDynamic rules delegate to the host's formula evaluator.
	ClassFormulaDynamic DependencyClass = "formula-dynamic"
	// ClassVisualOnly rules always apply to numeric cells and produce
	// render hints (color scales, data bars, icon sets); they still need
	// range statistics for normalization.
	ClassVisualOnly DependencyClass = "visual-only"
)

// PreprocessedRule is a rule plus its batch-scoped classification. The
// underlying rule is shared, never copied or mutated.
type PreprocessedRule struct {
	Rule       *Rule
	Class      DependencyClass
	Priority   int
	StopIfTrue bool
}

// needsStatistics reports whether evaluating the rule consults cached
// range statistics.
func (p *PreprocessedRule) needsStatistics() bool {
	return p.Class == ClassRangeGlobal || p.Class == ClassVisualOnly
}

// PreprocessResult is the output of one classifier pass, scoped to one
// evaluation batch.
type PreprocessResult struct {
	// Rules is stable-sorted by descending priority; ties keep their
	// original registration order.
	Rules []PreprocessedRule

	// StatsGroups maps a normalized range signature to the rules that
	// need statistics over that range, so a shared range is scanned once
	// per batch even when several rules cover it.
	StatsGroups map[string][]*PreprocessedRule
}

// classify maps a rule type to its dependency class.
func classify(t RuleType) DependencyClass {
	switch t {
	case RuleTypeTopBottom, RuleTypeAboveAverage, RuleTypeDuplicateUnique:
		return ClassRangeGlobal
	case RuleTypeFormula:
		return ClassFormulaDynamic
	case RuleTypeColorScale, RuleTypeDataBar, RuleTypeIconSet:
		return ClassVisualOnly
	default:
		return ClassCellLocal
	}
}

// Preprocess runs the once-per-batch classification pass: tag dependency
// classes, stable-sort by priority, and group range-dependent rules by
// range signature. When targetRange is non-nil, rules whose ranges do not
// intersect it are dropped from the batch (viewport evaluation). Inputs
// are never mutated.
func Preprocess(rules []*Rule, targetRange *Range) *PreprocessResult {
	result := &PreprocessResult{
		StatsGroups: make(map[string][]*PreprocessedRule),
	}

	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if targetRange != nil && !anyRangeIntersects(rule.Ranges, *targetRange) {
			continue
		}
		result.Rules = append(result.Rules, PreprocessedRule{
			Rule:       rule,
			Class:      classify(rule.Type),
			Priority:   rule.Priority,
			StopIfTrue: rule.StopIfTrue,
		})
	}

	// Descending priority; SliceStable keeps registration order for ties.
	sort.SliceStable(result.Rules, func(i, j int) bool {
		return result.Rules[i].Priority > result.Rules[j].Priority
	})

	for i := range result.Rules {
		pre := &result.Rules[i]
		if !pre.needsStatistics() {
			continue
		}
		for _, rng := range pre.Rule.Ranges {
			sig := rng.Signature()
			result.StatsGroups[sig] = append(result.StatsGroups[sig], pre)
		}
	}

	return result
}

func anyRangeIntersects(ranges []Range, target Range) bool {
	target = target.Normalize()
	for _, rng := range ranges {
		rng = rng.Normalize()
		if rng.Start.Row <= target.End.Row && rng.End.Row >= target.Start.Row &&
			rng.Start.Col <= target.End.Col && rng.End.Col >= target.Start.Col {
			return true
		}
	}
	return false
}
