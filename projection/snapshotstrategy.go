package projection

import "time"

// SnapshotStrategy (C2) — чистая политика над накопленными коммитами
// реконструкции: нужно ли чекпоинтить и какой размер страницы запрашивать
// у стора. Контракт соответствует паре ShouldCreateSnapshot/GetSnapshotMarker
// из SPEC_FULL §4.1 и обобщает SnapshotStrategy фреймворка (Frequency/TimeBased/
// Hybrid в snapshot.go) под семантику страничного маркера, а не счетчика событий.
type SnapshotStrategy interface {
	// EventsInSnapshot — размер страницы, используемый при чтении из проекшн-стора.
	EventsInSnapshot() int64

	// ShouldCreateSnapshot возвращает true, когда загрузчик только что заполнил
	// полную страницу: len(commits) >= EventsInSnapshot.
	ShouldCreateSnapshot(commits []Commit, currentSnapshotRevision int64) bool

	// GetSnapshotMarker — индекс страницы, в которую должен попасть следующий
	// коммит: currentSnapshotRevision + floor(len(commits) / EventsInSnapshot).
	GetSnapshotMarker(commits []Commit, currentSnapshotRevision int64) int64
}

// PageSnapshotStrategy — страничная стратегия по умолчанию, единственная,
// под которую рассчитана арифметика маркера в цикле чтения репозитория
// (§4.6): маркер — чистая функция позиции, поэтому параллельные писатели
// в один (projectionId, version) выводят одинаковый маркер для коммитов на
// одной и той же порядковой позиции.
type PageSnapshotStrategy struct {
	pageSize int64
}

// NewPageSnapshotStrategy создает страничную стратегию с заданным размером
// страницы. pageSize <= 0 приводится к 1, чтобы избежать деления на ноль.
func NewPageSnapshotStrategy(pageSize int64) *PageSnapshotStrategy {
	if pageSize <= 0 {
		pageSize = 1
	}
	return &PageSnapshotStrategy{pageSize: pageSize}
}

func (s *PageSnapshotStrategy) EventsInSnapshot() int64 {
	return s.pageSize
}

func (s *PageSnapshotStrategy) ShouldCreateSnapshot(commits []Commit, _ int64) bool {
	return int64(len(commits)) >= s.pageSize
}

func (s *PageSnapshotStrategy) GetSnapshotMarker(commits []Commit, currentSnapshotRevision int64) int64 {
	return currentSnapshotRevision + int64(len(commits))/s.pageSize
}

// HybridSnapshotStrategy комбинирует страничный триггер с триггером по
// времени, выбирая более раннее срабатывание — та же идея, что и у
// HybridSnapshotStrategy фреймворка (FrequencyStrategy || TimeStrategy), но
// выраженная через страницы коммитов. Маркер всё равно считается страничной
// формулой: гибрид меняет только частоту снапшотирования, не адресацию
// страниц в сторе, поэтому цикл чтения может опираться на него как на
// PageSnapshotStrategy.
type HybridSnapshotStrategy struct {
	*PageSnapshotStrategy
	interval     time.Duration
	lastSnapshot time.Time
}

// NewHybridSnapshotStrategy создает гибридную стратегию.
func NewHybridSnapshotStrategy(pageSize int64, interval time.Duration) *HybridSnapshotStrategy {
	return &HybridSnapshotStrategy{
		PageSnapshotStrategy: NewPageSnapshotStrategy(pageSize),
		interval:             interval,
		lastSnapshot:         time.Now(),
	}
}

func (s *HybridSnapshotStrategy) ShouldCreateSnapshot(commits []Commit, currentSnapshotRevision int64) bool {
	if s.PageSnapshotStrategy.ShouldCreateSnapshot(commits, currentSnapshotRevision) {
		s.lastSnapshot = time.Now()
		return true
	}
	if s.interval > 0 && time.Since(s.lastSnapshot) >= s.interval && len(commits) > 0 {
		s.lastSnapshot = time.Now()
		return true
	}
	return false
}
