package condfmt

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records cache and scan metrics for performance
// diagnostics. Use NewMetricsRecorder for OpenTelemetry metrics or
// NoopMetrics{} when disabled. Recording never affects evaluation
// correctness.
type MetricsRecorder interface {
	// RecordCacheLookup records one statistics cache lookup and whether it
	// hit.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordCacheEviction records one size-bound eviction.
	RecordCacheEviction(ctx context.Context)

	// RecordInvalidation records how many cached entries one invalidation
	// call dropped.
	RecordInvalidation(ctx context.Context, entries int)

	// RecordRangeScan records one full statistics scan and the number of
	// cells it visited.
	RecordRangeScan(ctx context.Context, cells int)
}

// NoopMetrics discards all recordings.
type NoopMetrics struct{}

func (NoopMetrics) RecordCacheLookup(context.Context, bool) {}
func (NoopMetrics) RecordCacheEviction(context.Context)     {}
func (NoopMetrics) RecordInvalidation(context.Context, int) {}
func (NoopMetrics) RecordRangeScan(context.Context, int)    {}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	cacheLookups  metric.Int64Counter
	evictions     metric.Int64Counter
	invalidations metric.Int64Counter
	rangeScans    metric.Int64Counter
	scannedCells  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("condfmt")

	cacheLookups, err := meter.Int64Counter("condfmt.cache.lookups",
		metric.WithDescription("Statistics cache lookups, partitioned by hit"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter("condfmt.cache.evictions",
		metric.WithDescription("Statistics cache size-bound evictions"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter("condfmt.cache.invalidated_entries",
		metric.WithDescription("Cache entries dropped by invalidation"),
	)
	if err != nil {
		return nil, err
	}

	rangeScans, err := meter.Int64Counter("condfmt.scan.ranges",
		metric.WithDescription("Full statistics scans over a range"),
	)
	if err != nil {
		return nil, err
	}

	scannedCells, err := meter.Int64Counter("condfmt.scan.cells",
		metric.WithDescription("Cells visited by statistics scans"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		cacheLookups:  cacheLookups,
		evictions:     evictions,
		invalidations: invalidations,
		rangeScans:    rangeScans,
		scannedCells:  scannedCells,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global
// OpenTelemetry meter provider. Configure the provider before calling; if
// instrument creation fails a no-op recorder is returned.
func NewMetricsRecorder() MetricsRecorder {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	if defaultMetricsErr != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", defaultMetricsErr.Error()))
		return NoopMetrics{}
	}
	return defaultMetrics
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *otelMetrics) RecordCacheEviction(ctx context.Context) {
	m.evictions.Add(ctx, 1)
}

func (m *otelMetrics) RecordInvalidation(ctx context.Context, entries int) {
	m.invalidations.Add(ctx, int64(entries))
}

func (m *otelMetrics) RecordRangeScan(ctx context.Context, cells int) {
	m.rangeScans.Add(ctx, 1)
	m.scannedCells.Add(ctx, int64(cells))
}

// logRangeScan logs a completed statistics scan. Nil loggers are silent;
// this sits on the keystroke path, so everything is Debug level.
func logRangeScan(logger *slog.Logger, ruleID string, rng Range, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("range statistics computed",
		slog.String("rule_id", ruleID),
		slog.String("range", rng.Ref()),
		slog.Int("cells", rng.CellCount()),
		slog.Float64("duration_ms", durationMs),
	)
}

// logInvalidation logs dropped cache entries after an invalidation pass.
func logInvalidation(logger *slog.Logger, dropped, remaining int) {
	if logger == nil {
		return
	}
	logger.Debug("statistics invalidated",
		slog.Int("dropped", dropped),
		slog.Int("remaining", remaining),
	)
}

// timedOperation measures the duration of an operation. The returned
// function reports elapsed milliseconds.
func timedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
