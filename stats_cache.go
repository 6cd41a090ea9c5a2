package condfmt

import (
	"context"
	"log/slog"
)

// DefaultStatisticsCacheSize bounds the number of cached (rule, range)
// statistics entries unless the host asks for a different capacity.
const DefaultStatisticsCacheSize = 1024

// StatisticsCache memoizes computed range statistics keyed by rule
// identity and normalized range bounds. It is an explicit object owned by
// the host: construct one per workbook (or per worksheet), share it across
// batches, clear or drop it when the sheet goes away. A miss is a normal
// outcome, never an error.
//
// The cache is pull-through with push invalidation: it never observes cell
// mutations itself. Hosts must call InvalidateAddress after any mutation
// and before the next evaluation that could observe it.
type StatisticsCache struct {
	store   *statsLRU
	logger  *slog.Logger
	metrics MetricsRecorder
}

// StatisticsCacheOption configures a StatisticsCache.
type StatisticsCacheOption func(*StatisticsCache)

// WithCacheLogger attaches a logger for debug-level cache diagnostics.
func WithCacheLogger(logger *slog.Logger) StatisticsCacheOption {
	return func(c *StatisticsCache) { c.logger = logger }
}

// WithCacheMetrics attaches a metrics recorder for hit/miss/eviction
// counters.
func WithCacheMetrics(m MetricsRecorder) StatisticsCacheOption {
	return func(c *StatisticsCache) { c.metrics = m }
}

// NewStatisticsCache creates a statistics cache bounded to capacity
// entries; capacity <= 0 selects DefaultStatisticsCacheSize.
func NewStatisticsCache(capacity int, opts ...StatisticsCacheOption) *StatisticsCache {
	if capacity <= 0 {
		capacity = DefaultStatisticsCacheSize
	}
	c := &StatisticsCache{
		store:   newStatsLRU(capacity),
		metrics: NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(ruleID string, rng Range) string {
	return ruleID + "|" + rng.Signature()
}

// Get returns the cached statistics for (ruleID, rng), or (nil, false) on
// a miss.
func (c *StatisticsCache) Get(ruleID string, rng Range) (*BatchRangeStatistics, bool) {
	entry, ok := c.store.Load(cacheKey(ruleID, rng))
	if !ok {
		c.metrics.RecordCacheLookup(context.Background(), false)
		return nil, false
	}
	c.metrics.RecordCacheLookup(context.Background(), true)
	return entry.stats, true
}

// Set stores statistics for (ruleID, rng), replacing any previous entry.
func (c *StatisticsCache) Set(ruleID string, rng Range, stats *BatchRangeStatistics) {
	rng = rng.Normalize()
	evicted := c.store.Store(&statsEntry{
		key:    cacheKey(ruleID, rng),
		ruleID: ruleID,
		rng:    rng,
		stats:  stats,
	})
	if evicted {
		c.metrics.RecordCacheEviction(context.Background())
	}
}

// GetOrCompute returns cached statistics for (ruleID, rng), scanning the
// range through accessor and caching the result on a miss.
func (c *StatisticsCache) GetOrCompute(ruleID string, rng Range, accessor ValueAccessor) *BatchRangeStatistics {
	if stats, ok := c.Get(ruleID, rng); ok {
		return stats
	}
	done := timedOperation()
	stats := ComputeRangeStatistics(rng, accessor)
	logRangeScan(c.logger, ruleID, rng, done())
	c.metrics.RecordRangeScan(context.Background(), rng.CellCount())
	c.Set(ruleID, rng, stats)
	return stats
}

// Invalidate drops the entry for exactly (ruleID, rng).
func (c *StatisticsCache) Invalidate(ruleID string, rng Range) {
	if c.store.Delete(cacheKey(ruleID, rng)) {
		c.metrics.RecordInvalidation(context.Background(), 1)
	}
}

// InvalidateRule drops every entry cached under the rule, across all of
// its ranges.
func (c *StatisticsCache) InvalidateRule(ruleID string) {
	c.invalidateMatching(func(e *statsEntry) bool { return e.ruleID == ruleID })
}

// InvalidateAddress drops every entry whose range contains the address.
// Conservative: an entry is dropped whenever the mutated cell could have
// contributed to its aggregates, so no stale entry stays reachable. Linear
// in cached-entry count; with many rule/range combinations this is the
// hot path a spatial index would replace.
func (c *StatisticsCache) InvalidateAddress(addr Address) int {
	return c.invalidateMatching(func(e *statsEntry) bool { return e.rng.Contains(addr) })
}

// InvalidateRange drops every entry whose range intersects rng, for bulk
// edits like row fills or paste operations.
func (c *StatisticsCache) InvalidateRange(rng Range) int {
	rng = rng.Normalize()
	return c.invalidateMatching(func(e *statsEntry) bool {
		return e.rng.Start.Row <= rng.End.Row && e.rng.End.Row >= rng.Start.Row &&
			e.rng.Start.Col <= rng.End.Col && e.rng.End.Col >= rng.Start.Col
	})
}

func (c *StatisticsCache) invalidateMatching(match func(*statsEntry) bool) int {
	var stale []string
	c.store.Range(func(e *statsEntry) bool {
		if match(e) {
			stale = append(stale, e.key)
		}
		return true
	})
	for _, key := range stale {
		c.store.Delete(key)
	}
	if len(stale) > 0 {
		c.metrics.RecordInvalidation(context.Background(), len(stale))
		logInvalidation(c.logger, len(stale), c.store.Len())
	}
	return len(stale)
}

// Clear drops every cached entry.
func (c *StatisticsCache) Clear() {
	c.store.Clear()
}

// Len returns the number of cached entries. Diagnostics only.
func (c *StatisticsCache) Len() int {
	return c.store.Len()
}

// Keys lists the cache keys from most to least recently used. Diagnostics
// only, never correctness-affecting.
func (c *StatisticsCache) Keys() []string {
	keys := make([]string, 0, c.store.Len())
	c.store.Range(func(e *statsEntry) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}
