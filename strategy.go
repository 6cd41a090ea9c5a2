package condfmt

import (
	"math"
)

// The strategy evaluators are pure functions of (value, stats). They carry
// no state of their own: every range-wide fact they need comes from a
// BatchRangeStatistics computed elsewhere, so evaluating a cell never
// rescans its range.

// evalTopBottom reports whether a numeric value falls in the top or bottom
// N (count or percent) of the range population. The threshold comparison
// is inclusive: ties at the threshold all match, so the matched set can
// exceed the nominal N.
func evalTopBottom(v interface{}, rule *Rule, stats *BatchRangeStatistics) bool {
	n, ok := toNumber(v)
	if !ok || stats == nil || stats.Count == 0 {
		return false
	}

	take := rule.Rank
	if rule.Percent {
		take = int(math.Ceil(float64(stats.Count) * float64(rule.Rank) / 100))
	}
	if take < 1 {
		take = 1
	}
	if take > stats.Count {
		take = stats.Count
	}

	sorted := stats.SortedValues()
	if rule.Bottom {
		// take-th smallest.
		return n <= sorted[take-1]
	}
	// take-th largest.
	return n >= sorted[stats.Count-take]
}

// evalAboveAverage reports whether a numeric value sits strictly above (or
// below) the range mean, optionally shifted by DevMultiplier standard
// deviations. Equal-to-threshold never matches.
func evalAboveAverage(v interface{}, rule *Rule, stats *BatchRangeStatistics) bool {
	n, ok := toNumber(v)
	if !ok || stats == nil || stats.Count == 0 {
		return false
	}
	threshold := stats.Mean
	if rule.DevMultiplier > 0 {
		if rule.Below {
			threshold -= rule.DevMultiplier * stats.StdDev
		} else {
			threshold += rule.DevMultiplier * stats.StdDev
		}
	}
	if rule.Below {
		return n < threshold
	}
	return n > threshold
}

// evalDuplicateUnique reports whether a value occurs more than once
// (duplicate mode) or exactly once (unique mode) across the range. Keys
// are raw type-tagged equality: numeric 10 and text "10" never collide.
func evalDuplicateUnique(v interface{}, rule *Rule, stats *BatchRangeStatistics) bool {
	if stats == nil {
		return false
	}
	key, ok := frequencyKey(v)
	if !ok {
		return false
	}
	freq := stats.Frequency[key]
	if rule.Unique {
		return freq == 1
	}
	return freq > 1
}

// evalPosition normalizes a numeric value to [0, 1] within the range's
// numeric span, for color-scale and data-bar rendering. A degenerate span
// (max == min) fixes the position at 0.5.
func evalPosition(v interface{}, stats *BatchRangeStatistics) (float64, bool) {
	n, ok := toNumber(v)
	if !ok || stats == nil || stats.Count == 0 {
		return 0, false
	}
	if stats.Max == stats.Min {
		return 0.5, true
	}
	pos := (n - stats.Min) / (stats.Max - stats.Min)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, true
}

// evalErrorBlank tests a cell against an error-blank rule. It reuses the
// exact predicates the statistics scan classifies with, so per-cell
// testing can never disagree with the range aggregates.
func evalErrorBlank(v interface{}, mode ErrorBlankMode) bool {
	switch mode {
	case MatchErrors:
		return isErrorValue(v)
	case MatchBlanks:
		return !isErrorValue(v) && isBlankValue(v)
	case MatchErrorsOrBlanks:
		return isErrorValue(v) || isBlankValue(v)
	}
	return false
}

// percentileRank returns the fraction of the numeric population strictly
// below the value, used to resolve icon-set indexes. The smallest value
// ranks 0; ties share a rank.
func percentileRank(n float64, stats *BatchRangeStatistics) float64 {
	sorted := stats.SortedValues()
	if len(sorted) == 0 {
		return 0
	}
	below := 0
	for _, s := range sorted {
		if s < n {
			below++
		} else {
			break
		}
	}
	return float64(below) / float64(len(sorted))
}

// evalIconIndex resolves the icon index for a numeric value from its
// percentile rank against the rule's ascending thresholds. ReverseOrder
// flips the index within the set.
func evalIconIndex(v interface{}, opts *IconSetOptions, stats *BatchRangeStatistics) (int, bool) {
	n, ok := toNumber(v)
	if !ok || stats == nil || stats.Count == 0 || opts == nil || len(opts.Thresholds) == 0 {
		return 0, false
	}
	rank := percentileRank(n, stats)
	bucket := 0
	for i, threshold := range opts.Thresholds {
		if rank >= threshold {
			bucket = i
		}
	}
	// Icon index 0 is the top bucket: the icon list is ordered best-first.
	index := len(opts.Thresholds) - 1 - bucket
	if opts.ReverseOrder {
		index = len(opts.Thresholds) - 1 - index
	}
	return index, true
}
