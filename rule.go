package condfmt

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// RuleType tags the conditional-formatting rule family.
type RuleType string

// Rule families.
const (
	RuleTypeValue           RuleType = "value"
	RuleTypeFormula         RuleType = "formula"
	RuleTypeTopBottom       RuleType = "top-bottom"
	RuleTypeAboveAverage    RuleType = "above-average"
	RuleTypeDuplicateUnique RuleType = "duplicate-unique"
	RuleTypeColorScale      RuleType = "color-scale"
	RuleTypeDataBar         RuleType = "data-bar"
	RuleTypeIconSet         RuleType = "icon-set"
	RuleTypeDateOccurring   RuleType = "date-occurring"
	RuleTypeErrorBlank      RuleType = "error-blank"
)

// Operator is the comparison used by value rules.
type Operator string

// Value rule operators.
const (
	OperatorEqual          Operator = "equal"
	OperatorNotEqual       Operator = "notEqual"
	OperatorGreaterThan    Operator = "greaterThan"
	OperatorGreaterOrEqual Operator = "greaterThanOrEqual"
	OperatorLessThan       Operator = "lessThan"
	OperatorLessOrEqual    Operator = "lessThanOrEqual"
	OperatorBetween        Operator = "between"
	OperatorNotBetween     Operator = "notBetween"
	OperatorContainsText   Operator = "containsText"
	OperatorNotContains    Operator = "notContainsText"
	OperatorBeginsWith     Operator = "beginsWith"
	OperatorEndsWith       Operator = "endsWith"
)

// ErrorBlankMode selects what an error-blank rule matches.
type ErrorBlankMode string

// Error-blank rule modes.
const (
	MatchErrors         ErrorBlankMode = "errors"
	MatchBlanks         ErrorBlankMode = "blanks"
	MatchErrorsOrBlanks ErrorBlankMode = "errors-or-blanks"
)

// TimePeriod selects the window a date-occurring rule matches.
type TimePeriod string

// Date-occurring time periods.
const (
	PeriodToday     TimePeriod = "today"
	PeriodYesterday TimePeriod = "yesterday"
	PeriodTomorrow  TimePeriod = "tomorrow"
	PeriodLast7Days TimePeriod = "last7Days"
	PeriodThisWeek  TimePeriod = "thisWeek"
	PeriodLastWeek  TimePeriod = "lastWeek"
	PeriodNextWeek  TimePeriod = "nextWeek"
	PeriodThisMonth TimePeriod = "thisMonth"
	PeriodLastMonth TimePeriod = "lastMonth"
	PeriodNextMonth TimePeriod = "nextMonth"
)

// Style is the visual payload a matched rule contributes. Zero-valued
// fields are "not set" and never overwrite fields already accumulated
// from other rules.
type Style struct {
	Fill          string `json:"fill,omitempty" yaml:"fill,omitempty"`
	FontColor     string `json:"fontColor,omitempty" yaml:"fontColor,omitempty"`
	Bold          *bool  `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic        *bool  `json:"italic,omitempty" yaml:"italic,omitempty"`
	Underline     *bool  `json:"underline,omitempty" yaml:"underline,omitempty"`
	Strikethrough *bool  `json:"strikethrough,omitempty" yaml:"strikethrough,omitempty"`
	BorderColor   string `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	NumFmt        string `json:"numFmt,omitempty" yaml:"numFmt,omitempty"`
}

// ColorScaleOptions configures a color-scale rule. Colors are hex strings
// ordered from the low end of the range to the high end; two or three
// stops are supported.
type ColorScaleOptions struct {
	Colors []string `json:"colors" yaml:"colors"`
}

// DataBarOptions configures a data-bar rule.
type DataBarOptions struct {
	Color     string `json:"color" yaml:"color"`
	ShowValue bool   `json:"showValue" yaml:"showValue"`
}

// IconSetOptions configures an icon-set rule. Thresholds are percentile
// cut points in ascending order; a value whose percentile rank reaches
// Thresholds[i] but not Thresholds[i+1] gets icon index i.
type IconSetOptions struct {
	Set          string    `json:"set" yaml:"set"`
	Thresholds   []float64 `json:"thresholds" yaml:"thresholds"`
	ReverseOrder bool      `json:"reverseOrder" yaml:"reverseOrder"`
	ShowIconOnly bool      `json:"showIconOnly" yaml:"showIconOnly"`
}

// Rule is one conditional-formatting rule. A single flat struct covers
// every family; Type selects which parameter fields are meaningful. Rules
// are immutable once registered: the engine never mutates them, and
// evaluation results never alias a rule's payload objects.
type Rule struct {
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Type       RuleType `json:"type" yaml:"type"`
	Priority   int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	StopIfTrue bool     `json:"stopIfTrue,omitempty" yaml:"stopIfTrue,omitempty"`
	Ranges     []Range  `json:"-" yaml:"-"`

	// Value rules.
	Operator Operator    `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	Value2   interface{} `json:"value2,omitempty" yaml:"value2,omitempty"`

	// Formula rules: an expression handed verbatim to the host's formula
	// evaluator.
	Formula string `json:"formula,omitempty" yaml:"formula,omitempty"`

	// Top/bottom-N rules.
	Bottom  bool `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Percent bool `json:"percent,omitempty" yaml:"percent,omitempty"`
	Rank    int  `json:"rank,omitempty" yaml:"rank,omitempty"`

	// Above/below-average rules. DevMultiplier shifts the threshold by
	// that many standard deviations; zero compares against the plain mean.
	Below         bool    `json:"below,omitempty" yaml:"below,omitempty"`
	DevMultiplier float64 `json:"devMultiplier,omitempty" yaml:"devMultiplier,omitempty"`

	// Duplicate/unique rules.
	Unique bool `json:"unique,omitempty" yaml:"unique,omitempty"`

	// Error-blank rules.
	Mode ErrorBlankMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Date-occurring rules.
	TimePeriod TimePeriod `json:"timePeriod,omitempty" yaml:"timePeriod,omitempty"`

	// Visual rules.
	ColorScale *ColorScaleOptions `json:"colorScale,omitempty" yaml:"colorScale,omitempty"`
	DataBar    *DataBarOptions    `json:"dataBar,omitempty" yaml:"dataBar,omitempty"`
	IconSet    *IconSetOptions    `json:"iconSet,omitempty" yaml:"iconSet,omitempty"`

	Style *Style `json:"style,omitempty" yaml:"style,omitempty"`
}

// ensureID assigns a fresh UUID when the rule carries no identity yet.
// Rule identity keys the statistics cache, so it must be stable for the
// rule's lifetime.
func (r *Rule) ensureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// Validate rejects malformed rule configuration. It runs at registration
// time; the evaluation path assumes rules passed through here and only
// needs to avoid crashing on anything that slipped past.
func (r *Rule) Validate() error {
	if len(r.Ranges) == 0 {
		return fmt.Errorf("rule %s: at least one target range is required", r.ID)
	}
	for _, rng := range r.Ranges {
		n := rng.Normalize()
		if n.Start.Row < 1 || n.Start.Col < 1 {
			return fmt.Errorf("rule %s: range %s is out of bounds", r.ID, rng.Ref())
		}
	}
	switch r.Type {
	case RuleTypeValue:
		if !validOperators[r.Operator] {
			return fmt.Errorf("rule %s: unknown operator %q", r.ID, r.Operator)
		}
		if (r.Operator == OperatorBetween || r.Operator == OperatorNotBetween) && r.Value2 == nil {
			return fmt.Errorf("rule %s: operator %q requires two values", r.ID, r.Operator)
		}
	case RuleTypeFormula:
		if r.Formula == "" {
			return fmt.Errorf("rule %s: formula rule requires an expression", r.ID)
		}
	case RuleTypeTopBottom:
		if r.Rank < 0 {
			return fmt.Errorf("rule %s: negative rank %d", r.ID, r.Rank)
		}
		if r.Percent && r.Rank > 100 {
			return fmt.Errorf("rule %s: percent rank %d exceeds 100", r.ID, r.Rank)
		}
	case RuleTypeAboveAverage:
		if r.DevMultiplier < 0 {
			return fmt.Errorf("rule %s: negative deviation multiplier", r.ID)
		}
	case RuleTypeDuplicateUnique:
		// No family-specific parameters.
	case RuleTypeErrorBlank:
		switch r.Mode {
		case MatchErrors, MatchBlanks, MatchErrorsOrBlanks:
		default:
			return fmt.Errorf("rule %s: unknown error-blank mode %q", r.ID, r.Mode)
		}
	case RuleTypeDateOccurring:
		if !validPeriods[r.TimePeriod] {
			return fmt.Errorf("rule %s: unknown time period %q", r.ID, r.TimePeriod)
		}
	case RuleTypeColorScale:
		if r.ColorScale == nil || len(r.ColorScale.Colors) < 2 || len(r.ColorScale.Colors) > 3 {
			return fmt.Errorf("rule %s: color scale requires 2 or 3 colors", r.ID)
		}
	case RuleTypeDataBar:
		if r.DataBar == nil || r.DataBar.Color == "" {
			return fmt.Errorf("rule %s: data bar requires a color", r.ID)
		}
	case RuleTypeIconSet:
		if r.IconSet == nil || len(r.IconSet.Thresholds) < 2 {
			return fmt.Errorf("rule %s: icon set requires at least 2 thresholds", r.ID)
		}
		if !sort.Float64sAreSorted(r.IconSet.Thresholds) {
			return fmt.Errorf("rule %s: icon set thresholds must be ascending", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown rule type %q", r.ID, r.Type)
	}
	return nil
}

var validOperators = map[Operator]bool{
	OperatorEqual: true, OperatorNotEqual: true,
	OperatorGreaterThan: true, OperatorGreaterOrEqual: true,
	OperatorLessThan: true, OperatorLessOrEqual: true,
	OperatorBetween: true, OperatorNotBetween: true,
	OperatorContainsText: true, OperatorNotContains: true,
	OperatorBeginsWith: true, OperatorEndsWith: true,
}

var validPeriods = map[TimePeriod]bool{
	PeriodToday: true, PeriodYesterday: true, PeriodTomorrow: true,
	PeriodLast7Days: true, PeriodThisWeek: true, PeriodLastWeek: true,
	PeriodNextWeek: true, PeriodThisMonth: true, PeriodLastMonth: true,
	PeriodNextMonth: true,
}
