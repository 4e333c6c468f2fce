package projection

import (
	"context"
	"fmt"
	"time"
)

// ReplayProgress отражает ход страничного цикла восстановления одной
// проекции, обобщение ReplayProgress фреймворка
// (framework/eventsourcing/replay.go) под маркеры страниц вместо позиций
// в общем event log.
type ReplayProgress struct {
	ProcessedCommits int64
	CurrentMarker    int64
	StartTime        time.Time
	ElapsedTime      time.Duration
}

// ProgressCallback получает снимок ReplayProgress после каждой загруженной
// страницы; вызывается синхронно в цикле Reconstruct.
type ProgressCallback func(ReplayProgress)

// Loader реализует страничный цикл чтения с чекпоинтингом (SPEC_FULL §4.6),
// общий для пользовательских проекций (C8.Get) и для version-manager
// (C7's refresh) — именно это имеет в виду спецификация, говоря, что
// резолвер версий "bootstrapped by the same loader that serves user
// projections". Грузчик — единственное место, которое знает, как
// сочетаются Store, SnapshotStore и SnapshotStrategy.
type Loader struct {
	store    Store
	snapshots SnapshotStore
	strategy SnapshotStrategy
	logger   Logger
}

// NewLoader создает загрузчик из трех внешних коллабораторов плюс логгер.
func NewLoader(store Store, snapshots SnapshotStore, strategy SnapshotStrategy, logger Logger) *Loader {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Loader{store: store, snapshots: snapshots, strategy: strategy, logger: logger}
}

// Reconstruct выполняет цикл page-and-checkpoint и возвращает Stream, готовый
// к RestoreFromHistory. Цикл монотонен по marker; чекпоинтинг — побочный
// эффект чтения, безопасный под конкурентными читателями, поскольку снапшот
// ревизии r+1 — чистая функция коммитов до детерминированного маркера.
func (l *Loader) Reconstruct(ctx context.Context, version Version, projectionID string, def Definition) (Stream, error) {
	return l.ReconstructWithProgress(ctx, version, projectionID, def, nil)
}

// ReconstructWithProgress — Reconstruct с опциональным отчетом о прогрессе
// страничного цикла; onProgress == nil эквивалентно Reconstruct.
func (l *Loader) ReconstructWithProgress(ctx context.Context, version Version, projectionID string, def Definition, onProgress ProgressCallback) (Stream, error) {
	snapshot, err := l.loadSnapshot(ctx, def, projectionID, version)
	if err != nil {
		return Stream{}, ReadFailed(err)
	}

	// marker starts at snapshot.Revision itself: GetSnapshotMarker (see
	// snapshotstrategy.go) assigns the first page past a snapshot the same
	// value, so the write path and this read path must agree on where page
	// zero sits relative to the snapshot baseline.
	marker := snapshot.Revision
	var acc []Commit
	var state any
	var stateLoaded bool
	pageSize := l.strategy.EventsInSnapshot()
	progress := ReplayProgress{StartTime: time.Now()}

	for {
		select {
		case <-ctx.Done():
			return Stream{}, ReadFailed(ctx.Err())
		default:
		}

		page, err := l.store.Load(ctx, version, projectionID, marker)
		if err != nil {
			return Stream{}, ReadFailed(fmt.Errorf("loading marker %d: %w", marker, err))
		}
		acc = append(acc, page...)

		if onProgress != nil {
			progress.ProcessedCommits += int64(len(page))
			progress.CurrentMarker = marker
			progress.ElapsedTime = time.Since(progress.StartTime)
			onProgress(progress)
		}

		if def.Snapshots && l.strategy.ShouldCreateSnapshot(acc, snapshot.Revision) {
			if !stateLoaded {
				state, err = l.materialize(def, snapshot)
				if err != nil {
					return Stream{}, ReadFailed(err)
				}
				stateLoaded = true
			}
			for _, commit := range acc {
				state, err = def.Fold(state, commit.Event)
				if err != nil {
					return Stream{}, ReadFailed(fmt.Errorf("folding commit at marker %d: %w", commit.SnapshotMarker, err))
				}
			}
			data, err := def.Serialize(state)
			if err != nil {
				return Stream{}, ReadFailed(fmt.Errorf("serializing checkpoint: %w", err))
			}
			newSnapshot := Snapshot{
				ProjectionID:   projectionID,
				ProjectionName: def.Name,
				State:          data,
				Revision:       snapshot.Revision + 1,
			}
			if err := l.snapshots.Save(ctx, newSnapshot, version); err != nil {
				return Stream{}, ReadFailed(fmt.Errorf("saving snapshot rev %d: %w", newSnapshot.Revision, err))
			}
			snapshot = newSnapshot
			acc = nil
		}

		if int64(len(page)) < pageSize {
			break
		}
		if float64(len(page)) > float64(pageSize)*1.5 {
			l.logger.Warn("memory pressure: snapshot sizing too small",
				"projectionId", projectionID, "version", version.Revision, "pageLen", len(page), "eventsInSnapshot", pageSize)
		}
		marker++
	}

	finalSnapshot := snapshot
	return New(projectionID, acc, func() (Snapshot, error) { return finalSnapshot, nil }), nil
}

func (l *Loader) loadSnapshot(ctx context.Context, def Definition, projectionID string, version Version) (Snapshot, error) {
	if !def.Snapshots {
		return NoSnapshot(projectionID, def.Name), nil
	}
	return l.snapshots.Load(ctx, def.Name, projectionID, version)
}

func (l *Loader) materialize(def Definition, snapshot Snapshot) (any, error) {
	if snapshot.IsZero() {
		return def.Zero(), nil
	}
	return def.Deserialize(snapshot.State)
}
