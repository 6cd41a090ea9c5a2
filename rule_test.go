package condfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleEnsureID(t *testing.T) {
	r := &Rule{Type: RuleTypeValue}
	r.ensureID()
	first := r.ID
	assert.NotEmpty(t, first)

	// Stable once assigned.
	r.ensureID()
	assert.Equal(t, first, r.ID)

	explicit := &Rule{ID: "mine", Type: RuleTypeValue}
	explicit.ensureID()
	assert.Equal(t, "mine", explicit.ID)
}

func TestRuleValidate(t *testing.T) {
	rng := NewRange(Address{1, 1}, Address{10, 1})
	ranges := []Range{rng}

	valid := []*Rule{
		{Type: RuleTypeValue, Operator: OperatorEqual, Value: 1.0, Ranges: ranges},
		{Type: RuleTypeValue, Operator: OperatorBetween, Value: 1.0, Value2: 5.0, Ranges: ranges},
		{Type: RuleTypeFormula, Formula: "=A1>0", Ranges: ranges},
		{Type: RuleTypeTopBottom, Rank: 10, Ranges: ranges},
		{Type: RuleTypeTopBottom, Rank: 10, Percent: true, Bottom: true, Ranges: ranges},
		{Type: RuleTypeAboveAverage, DevMultiplier: 1.5, Ranges: ranges},
		{Type: RuleTypeDuplicateUnique, Unique: true, Ranges: ranges},
		{Type: RuleTypeErrorBlank, Mode: MatchErrorsOrBlanks, Ranges: ranges},
		{Type: RuleTypeDateOccurring, TimePeriod: PeriodLastWeek, Ranges: ranges},
		{Type: RuleTypeColorScale, ColorScale: &ColorScaleOptions{Colors: []string{"#FF0000", "#FFFF00", "#00FF00"}}, Ranges: ranges},
		{Type: RuleTypeDataBar, DataBar: &DataBarOptions{Color: "#638EC6"}, Ranges: ranges},
		{Type: RuleTypeIconSet, IconSet: &IconSetOptions{Set: "3Arrows", Thresholds: []float64{0, 0.33, 0.67}}, Ranges: ranges},
	}
	for i, r := range valid {
		assert.NoError(t, r.Validate(), "valid rule %d", i)
	}

	invalid := []struct {
		name string
		rule *Rule
	}{
		{"no ranges", &Rule{Type: RuleTypeValue, Operator: OperatorEqual, Value: 1.0}},
		{"out of bounds range", &Rule{Type: RuleTypeValue, Operator: OperatorEqual, Value: 1.0, Ranges: []Range{{Start: Address{0, 1}, End: Address{5, 1}}}}},
		{"unknown operator", &Rule{Type: RuleTypeValue, Operator: "approximately", Ranges: ranges}},
		{"between without second value", &Rule{Type: RuleTypeValue, Operator: OperatorBetween, Value: 1.0, Ranges: ranges}},
		{"empty formula", &Rule{Type: RuleTypeFormula, Ranges: ranges}},
		{"negative rank", &Rule{Type: RuleTypeTopBottom, Rank: -1, Ranges: ranges}},
		{"percent over 100", &Rule{Type: RuleTypeTopBottom, Rank: 120, Percent: true, Ranges: ranges}},
		{"negative deviation", &Rule{Type: RuleTypeAboveAverage, DevMultiplier: -1, Ranges: ranges}},
		{"unknown mode", &Rule{Type: RuleTypeErrorBlank, Mode: "whitespace", Ranges: ranges}},
		{"unknown period", &Rule{Type: RuleTypeDateOccurring, TimePeriod: "fortnight", Ranges: ranges}},
		{"one color", &Rule{Type: RuleTypeColorScale, ColorScale: &ColorScaleOptions{Colors: []string{"#FF0000"}}, Ranges: ranges}},
		{"four colors", &Rule{Type: RuleTypeColorScale, ColorScale: &ColorScaleOptions{Colors: []string{"#1", "#2", "#3", "#4"}}, Ranges: ranges}},
		{"data bar without color", &Rule{Type: RuleTypeDataBar, DataBar: &DataBarOptions{}, Ranges: ranges}},
		{"single threshold", &Rule{Type: RuleTypeIconSet, IconSet: &IconSetOptions{Thresholds: []float64{0}}, Ranges: ranges}},
		{"unsorted thresholds", &Rule{Type: RuleTypeIconSet, IconSet: &IconSetOptions{Thresholds: []float64{0.6, 0.3, 0}}, Ranges: ranges}},
		{"unknown type", &Rule{Type: "gradient", Ranges: ranges}},
	}
	for _, tc := range invalid {
		assert.Error(t, tc.rule.Validate(), tc.name)
	}
}
