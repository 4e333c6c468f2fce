// Package observability предоставляет метрики и трейсинг поверх OpenTelemetry
// для ядра projection, обобщая framework/metrics и framework/observability.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics собирает метрики операций репозитория проекций: запись коммитов,
// свёртку версий, разрешение версий и создание снапшотов.
type Metrics struct {
	savesTotal       metric.Int64Counter
	saveDuration     metric.Float64Histogram
	foldDuration     metric.Float64Histogram
	resolveDuration  metric.Float64Histogram
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	snapshotsCreated metric.Int64Counter
	errorsTotal      metric.Int64Counter
	activeSaves      metric.Int64UpDownCounter
}

// NewMetrics создает сборщик метрик под именем инструмента "projector".
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("projector")

	savesTotal, err := meter.Int64Counter("projection_saves_total", metric.WithDescription("Total number of Repository.Save calls"))
	if err != nil {
		return nil, err
	}
	saveDuration, err := meter.Float64Histogram("projection_save_duration_seconds", metric.WithDescription("Save call duration in seconds"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	foldDuration, err := meter.Float64Histogram("projection_fold_duration_seconds", metric.WithDescription("Fold duration per page in seconds"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	resolveDuration, err := meter.Float64Histogram("projection_resolve_duration_seconds", metric.WithDescription("Version resolution duration in seconds"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("projection_version_cache_hits_total", metric.WithDescription("VersionCache fresh hits"))
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("projection_version_cache_misses_total", metric.WithDescription("VersionCache misses or stale reads"))
	if err != nil {
		return nil, err
	}
	snapshotsCreated, err := meter.Int64Counter("projection_snapshots_created_total", metric.WithDescription("Total number of snapshots written"))
	if err != nil {
		return nil, err
	}
	errorsTotal, err := meter.Int64Counter("projection_errors_total", metric.WithDescription("Total number of errors across repository operations"))
	if err != nil {
		return nil, err
	}
	activeSaves, err := meter.Int64UpDownCounter("projection_active_saves", metric.WithDescription("Number of Save calls currently in flight"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		savesTotal:       savesTotal,
		saveDuration:     saveDuration,
		foldDuration:     foldDuration,
		resolveDuration:  resolveDuration,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		snapshotsCreated: snapshotsCreated,
		errorsTotal:      errorsTotal,
		activeSaves:      activeSaves,
	}, nil
}

// RecordSave записывает метрику одного вызова Save.
func (m *Metrics) RecordSave(ctx context.Context, projectionName string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("projection", projectionName),
		attribute.Bool("success", success),
	}
	m.savesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.saveDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "save"), attribute.String("projection", projectionName)))
	}
}

// RecordFold записывает длительность свёртки одной страницы коммитов.
func (m *Metrics) RecordFold(ctx context.Context, projectionName string, duration time.Duration) {
	m.foldDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("projection", projectionName)))
}

// RecordResolve записывает длительность разрешения версий (VersionResolver).
func (m *Metrics) RecordResolve(ctx context.Context, projectionName string, duration time.Duration, fromCache bool) {
	m.resolveDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("projection", projectionName),
		attribute.Bool("from_cache", fromCache),
	))
	if fromCache {
		m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("projection", projectionName)))
	} else {
		m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("projection", projectionName)))
	}
}

// RecordSnapshot записывает создание снапшота.
func (m *Metrics) RecordSnapshot(ctx context.Context, projectionName string) {
	m.snapshotsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("projection", projectionName)))
}

// IncrementActiveSaves увеличивает счетчик одновременных Save.
func (m *Metrics) IncrementActiveSaves(ctx context.Context) {
	m.activeSaves.Add(ctx, 1)
}

// DecrementActiveSaves уменьшает счетчик одновременных Save.
func (m *Metrics) DecrementActiveSaves(ctx context.Context) {
	m.activeSaves.Add(ctx, -1)
}
