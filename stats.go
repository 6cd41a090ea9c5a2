package condfmt

import (
	"math"
	"sort"
	"sync"
	"time"
)

// BatchRangeStatistics holds every aggregate a range-dependent rule can
// ask for, produced by exactly one scan of the range. The sorted numeric
// copy is the single lazily-computed exception: it is materialized on
// first use and cached on the same object.
type BatchRangeStatistics struct {
	Min    float64
	Max    float64
	Sum    float64
	Count  int
	Mean   float64
	StdDev float64

	// Frequency maps each non-blank, non-error value to its occurrence
	// count across the whole range, with type-tagged keys so numeric 10
	// and text "10" stay distinct.
	Frequency map[string]int

	BlankCount int
	ErrorCount int
	HasBlanks  bool
	HasErrors  bool

	// Values is the raw value list in scan order (row-major).
	Values []interface{}

	// Signature identifies the scanned range; ComputedAt records when the
	// scan ran.
	Signature  string
	ComputedAt time.Time

	numeric    []float64
	sortedOnce sync.Once
	sorted     []float64
}

// SortedValues returns the numeric values in ascending order. The slice is
// materialized once per statistics object and must not be mutated by
// callers.
func (s *BatchRangeStatistics) SortedValues() []float64 {
	s.sortedOnce.Do(func() {
		s.sorted = make([]float64, len(s.numeric))
		copy(s.sorted, s.numeric)
		sort.Float64s(s.sorted)
	})
	return s.sorted
}

// RestoreNumericValues installs an externally computed, ascending numeric
// value list on statistics assembled outside ComputeRangeStatistics, such
// as a bulk SQL backend. Call only on freshly built objects.
func (s *BatchRangeStatistics) RestoreNumericValues(sorted []float64) {
	s.numeric = sorted
	s.sortedOnce.Do(func() { s.sorted = sorted })
}

// ComputeRangeStatistics scans a range once and returns its aggregates.
// The accessor is invoked exactly once per cell regardless of how many
// rules later consume the result. An empty numeric population yields
// zeroed min/max/mean/stddev, never infinities.
func ComputeRangeStatistics(rng Range, accessor ValueAccessor) *BatchRangeStatistics {
	rng = rng.Normalize()
	stats := &BatchRangeStatistics{
		Frequency:  make(map[string]int),
		Signature:  rng.Signature(),
		ComputedAt: time.Now(),
	}

	for row := rng.Start.Row; row <= rng.End.Row; row++ {
		for col := rng.Start.Col; col <= rng.End.Col; col++ {
			v := accessor(Address{Row: row, Col: col})
			stats.Values = append(stats.Values, v)

			if key, ok := frequencyKey(v); ok {
				stats.Frequency[key]++
			}

			switch {
			case isErrorValue(v):
				stats.ErrorCount++
				stats.HasErrors = true
			case isBlankValue(v):
				stats.BlankCount++
				stats.HasBlanks = true
			default:
				n, ok := toNumber(v)
				if !ok {
					continue
				}
				if stats.Count == 0 || n < stats.Min {
					stats.Min = n
				}
				if stats.Count == 0 || n > stats.Max {
					stats.Max = n
				}
				stats.Sum += n
				stats.Count++
				stats.numeric = append(stats.numeric, n)
			}
		}
	}

	// Two-pass moments over the already-collected numeric values; the
	// range itself is never rescanned.
	if stats.Count > 0 {
		stats.Mean = stats.Sum / float64(stats.Count)
		var sqSum float64
		for _, n := range stats.numeric {
			d := n - stats.Mean
			sqSum += d * d
		}
		stats.StdDev = math.Sqrt(sqSum / float64(stats.Count))
	}

	return stats
}
