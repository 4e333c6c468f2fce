package projection

import "context"

// Store (C3, внешняя зависимость) — append-only журнал коммитов, индексируемый
// по (version, projectionId, snapshotMarker), со страничным чтением.
type Store interface {
	// Save — устойчивое добавление коммита. Идемпотентность по
	// (projectionId, version, eventOrigin) желательна, но не обязательна.
	Save(ctx context.Context, commit Commit) error

	// Load возвращает все коммиты данного маркера в порядке вставки; не более
	// EventsInSnapshot штук. Результат короче EventsInSnapshot сигнализирует
	// конец журнала.
	Load(ctx context.Context, version Version, projectionID string, marker int64) ([]Commit, error)
}

// SnapshotStore (C4, внешняя зависимость) — key-value снапшотов и их
// метаданных, ключ (projectionName, projectionId, version).
type SnapshotStore interface {
	LoadMeta(ctx context.Context, name Name, projectionID string, version Version) (SnapshotMeta, error)
	Load(ctx context.Context, name Name, projectionID string, version Version) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot, version Version) error
}

// Logger — минимальный контракт логирования, внешняя зависимость ядра
// (Non-goal §1: логирование само по себе не часть ядра). У учителя нигде в
// корпусе нет структурированного логгера (zap/zerolog) — только log/fmt —
// поэтому контракт здесь намеренно узкий и stdlib-формы.
type Logger interface {
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}
