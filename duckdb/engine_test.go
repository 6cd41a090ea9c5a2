package duckdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	condfmt "github.com/realone09/condfmt"
)

func testGrid() condfmt.ValueAccessor {
	grid := map[condfmt.Address]interface{}{
		{Row: 1, Col: 1}: 10.0,
		{Row: 2, Col: 1}: 20.0,
		{Row: 3, Col: 1}: 10.0,
		{Row: 4, Col: 1}: "label",
		{Row: 5, Col: 1}: "",
		{Row: 6, Col: 1}: condfmt.CellError("#DIV/0!"),
		{Row: 7, Col: 1}: 40.0,
		{Row: 8, Col: 1}: true,
	}
	return func(addr condfmt.Address) interface{} { return grid[addr] }
}

func TestLoadRangeAndStatistics(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 8, Col: 1})
	table, err := e.LoadRange(rng, testGrid())
	require.NoError(t, err)
	assert.Equal(t, 1, e.Loaded())

	stats, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 40.0, stats.Max)
	assert.Equal(t, 80.0, stats.Sum)
	assert.Equal(t, 20.0, stats.Mean)
	assert.InDelta(t, 12.2474, stats.StdDev, 1e-4)

	assert.Equal(t, 1, stats.BlankCount)
	assert.True(t, stats.HasBlanks)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.True(t, stats.HasErrors)

	assert.Equal(t, 2, stats.Frequency["n:10"])
	assert.Equal(t, 1, stats.Frequency["n:20"])
	assert.Equal(t, 1, stats.Frequency["s:label"])
	assert.Equal(t, 1, stats.Frequency["b:1"])

	assert.Equal(t, []float64{10, 10, 20, 40}, stats.SortedValues())
	assert.Equal(t, rng.Signature(), stats.Signature)
}

func TestStatisticsMatchInProcessScan(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 8, Col: 1})
	accessor := testGrid()

	table, err := e.LoadRange(rng, accessor)
	require.NoError(t, err)
	fromSQL, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)

	local := condfmt.ComputeRangeStatistics(rng, accessor)

	assert.Equal(t, local.Count, fromSQL.Count)
	assert.Equal(t, local.Min, fromSQL.Min)
	assert.Equal(t, local.Max, fromSQL.Max)
	assert.Equal(t, local.Sum, fromSQL.Sum)
	assert.InDelta(t, local.Mean, fromSQL.Mean, 1e-9)
	assert.InDelta(t, local.StdDev, fromSQL.StdDev, 1e-9)
	assert.Equal(t, local.BlankCount, fromSQL.BlankCount)
	assert.Equal(t, local.ErrorCount, fromSQL.ErrorCount)
	assert.Equal(t, local.Frequency, fromSQL.Frequency)
	assert.Equal(t, local.SortedValues(), fromSQL.SortedValues())
}

func TestSnapshotCoversAllNumericTypes(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	day := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	grid := map[condfmt.Address]interface{}{
		{Row: 1, Col: 1}: float32(1.5),
		{Row: 2, Col: 1}: int32(7),
		{Row: 3, Col: 1}: uint(3),
		{Row: 4, Col: 1}: uint64(9),
		{Row: 5, Col: 1}: int64(4),
		{Row: 6, Col: 1}: day,
	}
	accessor := func(addr condfmt.Address) interface{} { return grid[addr] }
	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 6, Col: 1})

	table, err := e.LoadRange(rng, accessor)
	require.NoError(t, err)
	fromSQL, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)

	// Every numeric representation the accessor can hand back, dates
	// included, lands in the snapshot exactly as the in-process scan sees
	// it.
	local := condfmt.ComputeRangeStatistics(rng, accessor)
	assert.Equal(t, 6, fromSQL.Count)
	assert.Equal(t, local.Count, fromSQL.Count)
	assert.Equal(t, local.Min, fromSQL.Min)
	assert.Equal(t, local.Max, fromSQL.Max)
	assert.InDelta(t, local.Sum, fromSQL.Sum, 1e-9)
	assert.Equal(t, local.Frequency, fromSQL.Frequency)
	assert.Equal(t, local.SortedValues(), fromSQL.SortedValues())
	assert.Zero(t, fromSQL.BlankCount)
	assert.Zero(t, fromSQL.ErrorCount)
}

func TestSeedStatisticsCache(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 8, Col: 1})
	table, err := e.LoadRange(rng, testGrid())
	require.NoError(t, err)
	stats, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)

	cache := condfmt.NewStatisticsCache(16)
	cache.Set("bulk-rule", rng, stats)

	got, ok := cache.Get("bulk-rule", rng)
	require.True(t, ok)
	assert.Same(t, stats, got)
}

func TestEmptySnapshot(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 3, Col: 1})
	table, err := e.LoadRange(rng, func(condfmt.Address) interface{} { return nil })
	require.NoError(t, err)

	stats, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 3, stats.BlankCount)
	assert.Empty(t, stats.SortedValues())
}

func TestDrop(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 2, Col: 1})
	table, err := e.LoadRange(rng, func(condfmt.Address) interface{} { return 1.0 })
	require.NoError(t, err)
	require.Equal(t, 1, e.Loaded())

	require.NoError(t, e.Drop(table))
	assert.Equal(t, 0, e.Loaded())

	_, err = e.RangeStatistics(table, rng)
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	e, err := NewEngineWithConfig(Config{MemoryLimit: "256MB", Threads: 2})
	require.NoError(t, err)
	defer e.Close()

	rng := condfmt.NewRange(condfmt.Address{Row: 1, Col: 1}, condfmt.Address{Row: 100, Col: 2})
	table, err := e.LoadRange(rng, func(addr condfmt.Address) interface{} {
		return float64(addr.Row * addr.Col)
	})
	require.NoError(t, err)

	stats, err := e.RangeStatistics(table, rng)
	require.NoError(t, err)
	assert.Equal(t, 200, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 200.0, stats.Max)
}
