// Package duckdb provides a DuckDB-backed bulk statistics backend for the
// conditional-formatting engine. Hosts that precompute aggregates over
// very large ranges (whole-column rules on million-row sheets) can load a
// range snapshot into an in-memory DuckDB table and derive the same
// aggregates the in-process scan produces, with DuckDB parallelizing the
// work. The root package never depends on this; hosts seed the statistics
// cache with the results.
package duckdb

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	condfmt "github.com/realone09/condfmt"
)

// Engine wraps an in-memory DuckDB database holding range snapshots.
type Engine struct {
	db     *sql.DB
	mu     sync.Mutex
	loaded map[string]int // table name -> snapshot row count
	seq    int
}

// Config holds engine options.
type Config struct {
	// MemoryLimit caps DuckDB memory use, e.g. "1GB". Empty keeps the
	// DuckDB default.
	MemoryLimit string
	// Threads sets the DuckDB thread count; 0 auto-detects.
	Threads int
}

// NewEngine opens an in-memory DuckDB database with default configuration.
func NewEngine() (*Engine, error) {
	return NewEngineWithConfig(Config{})
}

// NewEngineWithConfig opens an in-memory DuckDB database.
func NewEngineWithConfig(cfg Config) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if cfg.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit = '%s'", cfg.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory_limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	return &Engine{db: db, loaded: make(map[string]int)}, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// LoadRange snapshots a range through the accessor into a DuckDB table and
// returns the table name. Each cell becomes one row carrying its numeric
// value (NULL for non-numeric cells), its type-tagged frequency key, and
// blank/error flags, so every aggregate the in-process scan produces is
// derivable in SQL.
func (e *Engine) LoadRange(rng condfmt.Range, accessor condfmt.ValueAccessor) (string, error) {
	rng = rng.Normalize()

	e.mu.Lock()
	e.seq++
	table := fmt.Sprintf("range_snapshot_%d", e.seq)
	e.mu.Unlock()

	create := fmt.Sprintf(
		"CREATE TABLE %s (row_num INTEGER, col_num INTEGER, num DOUBLE, freq_key VARCHAR, is_blank BOOLEAN, is_error BOOLEAN)",
		table,
	)
	if _, err := e.db.Exec(create); err != nil {
		return "", fmt.Errorf("create snapshot table: %w", err)
	}

	// Chunked multi-row inserts keep statement size bounded without a
	// round trip per cell.
	const chunk = 512
	var (
		values []string
		args   []interface{}
		rows   int
	)
	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		stmt := fmt.Sprintf("INSERT INTO %s VALUES %s", table, strings.Join(values, ","))
		if _, err := e.db.Exec(stmt, args...); err != nil {
			return fmt.Errorf("insert snapshot rows: %w", err)
		}
		values = values[:0]
		args = args[:0]
		return nil
	}

	for row := rng.Start.Row; row <= rng.End.Row; row++ {
		for col := rng.Start.Col; col <= rng.End.Col; col++ {
			v := accessor(condfmt.Address{Row: row, Col: col})
			num, freqKey, isBlank, isErr := condfmt.ClassifyCellValue(v)
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, row, col, num, freqKey, isBlank, isErr)
			rows++

			if len(values) >= chunk {
				if err := flush(); err != nil {
					return "", err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.loaded[table] = rows
	e.mu.Unlock()
	return table, nil
}

// RangeStatistics derives the full aggregate set for a loaded snapshot in
// one SQL pass, shaped exactly like the in-process scan's output so it can
// seed the statistics cache directly.
func (e *Engine) RangeStatistics(table string, rng condfmt.Range) (*condfmt.BatchRangeStatistics, error) {
	rng = rng.Normalize()

	query := fmt.Sprintf(`SELECT
		COALESCE(MIN(num), 0),
		COALESCE(MAX(num), 0),
		COALESCE(SUM(num), 0),
		COUNT(num),
		COALESCE(AVG(num), 0),
		COALESCE(STDDEV_POP(num), 0),
		COUNT(*) FILTER (WHERE is_blank),
		COUNT(*) FILTER (WHERE is_error)
		FROM %s`, table)

	stats := &condfmt.BatchRangeStatistics{
		Frequency:  make(map[string]int),
		Signature:  rng.Signature(),
		ComputedAt: time.Now(),
	}
	err := e.db.QueryRow(query).Scan(
		&stats.Min, &stats.Max, &stats.Sum, &stats.Count,
		&stats.Mean, &stats.StdDev,
		&stats.BlankCount, &stats.ErrorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate snapshot: %w", err)
	}
	stats.HasBlanks = stats.BlankCount > 0
	stats.HasErrors = stats.ErrorCount > 0

	freqRows, err := e.db.Query(fmt.Sprintf(
		"SELECT freq_key, COUNT(*) FROM %s WHERE freq_key IS NOT NULL GROUP BY freq_key", table))
	if err != nil {
		return nil, fmt.Errorf("aggregate frequencies: %w", err)
	}
	defer freqRows.Close()
	for freqRows.Next() {
		var key string
		var count int
		if err := freqRows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan frequency row: %w", err)
		}
		stats.Frequency[key] = count
	}
	if err := freqRows.Err(); err != nil {
		return nil, err
	}

	// Top/bottom-N strategies need the sorted numeric population; DuckDB
	// hands it back already ordered.
	numRows, err := e.db.Query(fmt.Sprintf(
		"SELECT num FROM %s WHERE num IS NOT NULL ORDER BY num", table))
	if err != nil {
		return nil, fmt.Errorf("read sorted values: %w", err)
	}
	defer numRows.Close()
	sorted := make([]float64, 0, stats.Count)
	for numRows.Next() {
		var n float64
		if err := numRows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan value row: %w", err)
		}
		sorted = append(sorted, n)
	}
	if err := numRows.Err(); err != nil {
		return nil, err
	}
	stats.RestoreNumericValues(sorted)

	return stats, nil
}

// Drop removes a snapshot table.
func (e *Engine) Drop(table string) error {
	e.mu.Lock()
	delete(e.loaded, table)
	e.mu.Unlock()
	_, err := e.db.Exec("DROP TABLE IF EXISTS " + table)
	return err
}

// Loaded returns the number of live snapshot tables.
func (e *Engine) Loaded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.loaded)
}
