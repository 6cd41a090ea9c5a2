package condfmt

import (
	"fmt"
	"math"
	"time"
)

// CellError is an explicitly error-typed cell value, such as a propagated
// formula failure. Text values whose first byte is '#' (the conventional
// spreadsheet error tokens like "#DIV/0!" or "#N/A") classify identically;
// both representations flow through the same predicates.
type CellError string

// Error implements the error interface so hosts can surface cell errors
// directly.
func (e CellError) Error() string { return string(e) }

// ValueAccessor resolves the current value of a cell. The engine is
// storage-agnostic: hosts supply an accessor backed by whatever cell store
// they use. Returned values are one of float64/int/int64 (numeric), string
// (text), bool, time.Time, CellError, or nil for an absent cell.
type ValueAccessor func(Address) interface{}

// isBlankValue reports whether a value counts as blank: an absent cell or
// empty text.
func isBlankValue(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// isErrorValue reports whether a value is error-shaped: an explicit
// CellError or a text token starting with '#'.
func isErrorValue(v interface{}) bool {
	switch t := v.(type) {
	case CellError:
		return true
	case error:
		return true
	case string:
		return len(t) > 0 && t[0] == '#'
	}
	return false
}

// toNumber extracts a numeric value. Text and booleans are not coerced:
// aggregation and the numeric strategies operate on genuinely numeric
// cells only.
func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case time.Time:
		return timeToSerial(t), true
	}
	return 0, false
}

// frequencyKey maps a raw value to the key used in the occurrence-count
// mapping. Keys are type-tagged: numeric 10 and text "10" stay distinct,
// which duplicate/unique detection relies on.
func frequencyKey(v interface{}) (string, bool) {
	if isBlankValue(v) || isErrorValue(v) {
		return "", false
	}
	if n, ok := toNumber(v); ok {
		return "n:" + fmt.Sprintf("%v", n), true
	}
	switch t := v.(type) {
	case string:
		return "s:" + t, true
	case bool:
		if t {
			return "b:1", true
		}
		return "b:0", true
	}
	return "", false
}

// isTruthyValue resolves formula results to a match decision. Blank,
// numeric zero, false, empty text and error-shaped values are falsy;
// everything else matches. Note the asymmetry with isErrorValue in
// text form: the literal text "FALSE" is truthy here while boolean false
// is not. This mirrors the shipped behavior and is intentionally left
// untouched.
func isTruthyValue(v interface{}) bool {
	if isBlankValue(v) || isErrorValue(v) {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	}
	if n, ok := toNumber(v); ok {
		return n != 0
	}
	return true
}

// ClassifyCellValue resolves a cell value the way the statistics scan
// classifies it: the numeric form (nil when non-numeric), the type-tagged
// frequency key (nil when the value is blank, error-shaped, or otherwise
// keyless), and the blank/error flags. External statistics backends use it
// so their snapshots can never drift from the in-process scan.
func ClassifyCellValue(v interface{}) (num, freqKey interface{}, isBlank, isError bool) {
	if isErrorValue(v) {
		return nil, nil, false, true
	}
	if isBlankValue(v) {
		return nil, nil, true, false
	}
	if n, ok := toNumber(v); ok {
		num = n
	}
	if key, ok := frequencyKey(v); ok {
		freqKey = key
	}
	return num, freqKey, false, false
}

// Spreadsheet serial dates count days since 1899-12-30.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// timeToSerial converts a time to its spreadsheet serial number.
func timeToSerial(t time.Time) float64 {
	return t.Sub(serialEpoch).Hours() / 24
}

// serialToTime converts a spreadsheet serial number back to a time.
func serialToTime(serial float64) time.Time {
	return serialEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
}

// valueAsTime extracts a date from a cell value: either a time.Time
// directly or a positive numeric serial.
func valueAsTime(v interface{}) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	if isErrorValue(v) || isBlankValue(v) {
		return time.Time{}, false
	}
	if n, ok := toNumber(v); ok && n > 0 {
		return serialToTime(n), true
	}
	return time.Time{}, false
}
