package condfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// FormulaEvaluator is the host-supplied expression engine used by formula
// rules. The engine treats it as opaque: expression text plus cell context
// in, a value or boolean out. A returned error resolves to a non-match,
// never a failed evaluation.
type FormulaEvaluator interface {
	Evaluate(expression string, ctx CellContext) (interface{}, error)
}

// FormulaEvaluatorFunc adapts a function to the FormulaEvaluator interface.
type FormulaEvaluatorFunc func(expression string, ctx CellContext) (interface{}, error)

// Evaluate implements FormulaEvaluator.
func (f FormulaEvaluatorFunc) Evaluate(expression string, ctx CellContext) (interface{}, error) {
	return f(expression, ctx)
}

// CellContext identifies the cell being evaluated, for formula rules that
// reference the current cell.
type CellContext struct {
	Address Address
	Value   interface{}
}

// Services supplies the external collaborators evaluation needs. Every
// field is optional: a missing formula evaluator makes formula rules
// non-matching, a missing cache recomputes statistics per call, a missing
// clock falls back to time.Now.
type Services struct {
	Formula  FormulaEvaluator
	GetValue ValueAccessor
	Stats    *StatisticsCache

	// Now is the clock date-occurring rules compare against. Injectable
	// for tests.
	Now func() time.Time
}

// IconResult is the icon a matched icon-set rule resolved for the cell.
type IconResult struct {
	Set          string
	Index        int
	ShowIconOnly bool
}

// DataBarResult is the render hint a data-bar rule produced: the bar
// length as a [0, 1] position plus the rule's display options.
type DataBarResult struct {
	Position  float64
	Color     string
	ShowValue bool
}

// Result is the outcome of evaluating one cell against a rule list. A cell
// with no matching rule yields the zero Result. Results are fresh per
// call and never alias rule-owned payloads; restoring non-conditional
// styling when nothing matches is the caller's job.
type Result struct {
	Style          *Style
	Icon           *IconResult
	DataBar        *DataBarResult
	AppliedRuleIDs []string
}

// IsEmpty reports whether no rule contributed anything.
func (r Result) IsEmpty() bool {
	return r.Style == nil && r.Icon == nil && r.DataBar == nil && len(r.AppliedRuleIDs) == 0
}

// ApplyRules evaluates a cell value against a preprocessed rule list in
// priority order and accumulates the matched visual attributes. A rule is
// scoped to its target ranges: cells outside every range of a rule never
// match it, whatever the rule's condition would say.
//
// Matched style payloads merge property-by-property: a later-evaluated
// (lower-priority) rule's set properties overwrite same-named properties
// accumulated from earlier rules. That ordering is counter-intuitive but
// it is the shipped behavior renderers depend on; keep it until product
// says otherwise. A StopIfTrue match halts iteration immediately.
func ApplyRules(value interface{}, addr Address, pre *PreprocessResult, svc *Services) Result {
	var result Result
	if pre == nil {
		return result
	}
	if svc == nil {
		svc = &Services{}
	}

	for i := range pre.Rules {
		p := &pre.Rules[i]
		if !ruleCoversAddress(p.Rule, addr) {
			continue
		}
		matched := evaluateRule(value, addr, p, svc)
		if !matched {
			continue
		}

		applyPayload(&result, value, addr, p, svc)
		result.AppliedRuleIDs = append(result.AppliedRuleIDs, p.Rule.ID)

		if p.StopIfTrue {
			break
		}
	}
	return result
}

// ApplyRuleList is the convenience form over raw rules: it runs the
// classifier for a single-cell batch first. Hosts evaluating many cells
// should call Preprocess once and use ApplyRules.
func ApplyRuleList(value interface{}, addr Address, rules []*Rule, svc *Services) Result {
	return ApplyRules(value, addr, Preprocess(rules, nil), svc)
}

// ruleCoversAddress reports whether the cell falls inside any of the
// rule's target ranges.
func ruleCoversAddress(rule *Rule, addr Address) bool {
	for _, rng := range rule.Ranges {
		if rng.Contains(addr) {
			return true
		}
	}
	return false
}

// evaluateRule resolves one rule to a boolean match decision.
func evaluateRule(value interface{}, addr Address, p *PreprocessedRule, svc *Services) bool {
	rule := p.Rule
	switch rule.Type {
	case RuleTypeValue:
		return compareValues(value, rule.Operator, rule.Value, rule.Value2)
	case RuleTypeFormula:
		if svc.Formula == nil {
			return false
		}
		out, err := svc.Formula.Evaluate(rule.Formula, CellContext{Address: addr, Value: value})
		if err != nil {
			return false
		}
		return isTruthyValue(out)
	case RuleTypeTopBottom:
		return evalTopBottom(value, rule, statsFor(p, addr, svc))
	case RuleTypeAboveAverage:
		return evalAboveAverage(value, rule, statsFor(p, addr, svc))
	case RuleTypeDuplicateUnique:
		return evalDuplicateUnique(value, rule, statsFor(p, addr, svc))
	case RuleTypeErrorBlank:
		return evalErrorBlank(value, rule.Mode)
	case RuleTypeDateOccurring:
		t, ok := valueAsTime(value)
		if !ok {
			return false
		}
		now := time.Now()
		if svc.Now != nil {
			now = svc.Now()
		}
		return matchesTimePeriod(t, rule.TimePeriod, now)
	case RuleTypeColorScale, RuleTypeDataBar:
		_, ok := evalPosition(value, statsFor(p, addr, svc))
		return ok
	case RuleTypeIconSet:
		_, ok := evalIconIndex(value, rule.IconSet, statsFor(p, addr, svc))
		return ok
	}
	return false
}

// applyPayload merges a matched rule's visual contribution into the
// accumulated result.
func applyPayload(result *Result, value interface{}, addr Address, p *PreprocessedRule, svc *Services) {
	rule := p.Rule
	switch rule.Type {
	case RuleTypeColorScale:
		pos, ok := evalPosition(value, statsFor(p, addr, svc))
		if ok {
			mergeStyle(result, &Style{Fill: interpolateColor(rule.ColorScale.Colors, pos)})
		}
	case RuleTypeDataBar:
		pos, ok := evalPosition(value, statsFor(p, addr, svc))
		if ok {
			result.DataBar = &DataBarResult{
				Position:  pos,
				Color:     rule.DataBar.Color,
				ShowValue: rule.DataBar.ShowValue,
			}
		}
	case RuleTypeIconSet:
		index, ok := evalIconIndex(value, rule.IconSet, statsFor(p, addr, svc))
		if ok {
			result.Icon = &IconResult{
				Set:          rule.IconSet.Set,
				Index:        index,
				ShowIconOnly: rule.IconSet.ShowIconOnly,
			}
		}
	}
	if rule.Style != nil {
		mergeStyle(result, rule.Style)
	}
}

// mergeStyle overwrites the accumulated style's properties with the set
// properties of src. The source payload is deep-copied first so results
// never share pointers with rule configuration.
func mergeStyle(result *Result, src *Style) {
	var clone Style
	if err := deepcopy.Copy(&clone, *src); err != nil {
		return
	}
	if result.Style == nil {
		result.Style = &clone
		return
	}
	dst := result.Style
	if clone.Fill != "" {
		dst.Fill = clone.Fill
	}
	if clone.FontColor != "" {
		dst.FontColor = clone.FontColor
	}
	if clone.Bold != nil {
		dst.Bold = clone.Bold
	}
	if clone.Italic != nil {
		dst.Italic = clone.Italic
	}
	if clone.Underline != nil {
		dst.Underline = clone.Underline
	}
	if clone.Strikethrough != nil {
		dst.Strikethrough = clone.Strikethrough
	}
	if clone.BorderColor != "" {
		dst.BorderColor = clone.BorderColor
	}
	if clone.NumFmt != "" {
		dst.NumFmt = clone.NumFmt
	}
}

// statsFor fetches the range statistics backing a range-dependent rule for
// the range covering addr (first range as fallback). With a cache the
// lookup is memoized under the rule's identity; without one the range is
// scanned directly. Returns nil when no accessor is available and nothing
// is cached, which every strategy resolves to a non-match.
func statsFor(p *PreprocessedRule, addr Address, svc *Services) *BatchRangeStatistics {
	rule := p.Rule
	if len(rule.Ranges) == 0 {
		return nil
	}
	rng := rule.Ranges[0]
	for _, candidate := range rule.Ranges {
		if candidate.Contains(addr) {
			rng = candidate
			break
		}
	}

	if svc.Stats != nil {
		if svc.GetValue != nil {
			return svc.Stats.GetOrCompute(rule.ID, rng, svc.GetValue)
		}
		if stats, ok := svc.Stats.Get(rule.ID, rng); ok {
			return stats
		}
		return nil
	}
	if svc.GetValue == nil {
		return nil
	}
	return ComputeRangeStatistics(rng, svc.GetValue)
}

// compareValues resolves a value-rule comparison. Numeric operands compare
// numerically; the text operators compare case-insensitively on the string
// forms.
func compareValues(v interface{}, op Operator, ref, ref2 interface{}) bool {
	switch op {
	case OperatorContainsText, OperatorNotContains, OperatorBeginsWith, OperatorEndsWith:
		s := strings.ToLower(valueText(v))
		sub := strings.ToLower(valueText(ref))
		switch op {
		case OperatorContainsText:
			return sub != "" && strings.Contains(s, sub)
		case OperatorNotContains:
			return sub == "" || !strings.Contains(s, sub)
		case OperatorBeginsWith:
			return sub != "" && strings.HasPrefix(s, sub)
		case OperatorEndsWith:
			return sub != "" && strings.HasSuffix(s, sub)
		}
	}

	n, numOK := toNumber(v)
	refN, refOK := toNumber(ref)
	if numOK && refOK {
		switch op {
		case OperatorEqual:
			return n == refN
		case OperatorNotEqual:
			return n != refN
		case OperatorGreaterThan:
			return n > refN
		case OperatorGreaterOrEqual:
			return n >= refN
		case OperatorLessThan:
			return n < refN
		case OperatorLessOrEqual:
			return n <= refN
		case OperatorBetween, OperatorNotBetween:
			ref2N, ok := toNumber(ref2)
			if !ok {
				return false
			}
			lo, hi := refN, ref2N
			if lo > hi {
				lo, hi = hi, lo
			}
			in := n >= lo && n <= hi
			if op == OperatorBetween {
				return in
			}
			return !in
		}
		return false
	}

	// Mixed or textual operands: equality on string forms only. Ordered
	// comparisons across types never match.
	switch op {
	case OperatorEqual:
		return valueText(v) == valueText(ref)
	case OperatorNotEqual:
		return valueText(v) != valueText(ref)
	}
	return false
}

// valueText renders a value the way cell text comparison sees it.
func valueText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case CellError:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	if n, ok := toNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// matchesTimePeriod tests a date against a rolling time period relative to
// now. Weeks start on Sunday, matching spreadsheet convention.
func matchesTimePeriod(t time.Time, period TimePeriod, now time.Time) bool {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	d, today := day(t), day(now)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))

	switch period {
	case PeriodToday:
		return d.Equal(today)
	case PeriodYesterday:
		return d.Equal(today.AddDate(0, 0, -1))
	case PeriodTomorrow:
		return d.Equal(today.AddDate(0, 0, 1))
	case PeriodLast7Days:
		return !d.After(today) && !d.Before(today.AddDate(0, 0, -6))
	case PeriodThisWeek:
		return !d.Before(weekStart) && d.Before(weekStart.AddDate(0, 0, 7))
	case PeriodLastWeek:
		return !d.Before(weekStart.AddDate(0, 0, -7)) && d.Before(weekStart)
	case PeriodNextWeek:
		return !d.Before(weekStart.AddDate(0, 0, 7)) && d.Before(weekStart.AddDate(0, 0, 14))
	case PeriodThisMonth:
		return d.Year() == today.Year() && d.Month() == today.Month()
	case PeriodLastMonth:
		last := today.AddDate(0, -1, 0)
		return d.Year() == last.Year() && d.Month() == last.Month()
	case PeriodNextMonth:
		next := today.AddDate(0, 1, 0)
		return d.Year() == next.Year() && d.Month() == next.Month()
	}
	return false
}

// interpolateColor linearly interpolates hex colors across 2 or 3 stops at
// a [0, 1] position.
func interpolateColor(colors []string, pos float64) string {
	if len(colors) == 0 {
		return ""
	}
	if len(colors) == 1 {
		return colors[0]
	}

	segments := len(colors) - 1
	scaled := pos * float64(segments)
	idx := int(scaled)
	if idx >= segments {
		idx = segments - 1
	}
	frac := scaled - float64(idx)

	r1, g1, b1, ok1 := parseHexColor(colors[idx])
	r2, g2, b2, ok2 := parseHexColor(colors[idx+1])
	if !ok1 || !ok2 {
		return colors[idx]
	}
	lerp := func(a, b int) int { return a + int(frac*float64(b-a)+0.5) }
	return fmt.Sprintf("#%02X%02X%02X", lerp(r1, r2), lerp(g1, g2), lerp(b1, b2))
}

func parseHexColor(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16), int(v >> 8 & 0xFF), int(v & 0xFF), true
}
