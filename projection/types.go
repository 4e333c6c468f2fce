// Package projection реализует ядро репозитория проекций для event-sourced
// CQRS системы: персистентность коммитов по версиям, восстановление состояния
// через снапшоты и управление жизненным циклом версий проекции.
package projection

import (
	"strings"
	"time"
)

// Name — имя проекции, регистронезависимое, выводится один раз на тип
// контрактным резолвером (см. ContractIDResolver).
type Name string

// Equal сравнивает имена без учета регистра.
func (n Name) Equal(other Name) bool {
	return strings.EqualFold(string(n), string(other))
}

// Status описывает этап жизненного цикла версии проекции.
type Status string

const (
	StatusNew      Status = "new"
	StatusBuilding Status = "building"
	StatusLive     Status = "live"
	StatusCanceled Status = "canceled"
	StatusTimedOut Status = "timedout"
)

// Writable — версия принимает записи только в статусах Building и Live.
func (s Status) Writable() bool {
	return s == StatusBuilding || s == StatusLive
}

// Readable — читать можно только Live-версию.
func (s Status) Readable() bool {
	return s == StatusLive
}

// Version — одна генерация проекции: имя, статус, ревизия и контент-хеш формы.
// Две версии с одинаковыми (Name, Revision) обязаны иметь одинаковый Hash;
// отличие хеша означает изменение схемы и требует новой ревизии.
type Version struct {
	Name     Name
	Status   Status
	Revision int64
	Hash     string
}

// Versions — множество неретированных версий одного имени. Инвариант:
// максимум одна Live; Building.Revision > Live.Revision, если обе существуют.
type Versions struct {
	Name     Name
	Live     *Version
	Building []Version
}

// Writable возвращает все версии, в которые допустима запись (Live + Building).
func (v Versions) Writable() []Version {
	out := make([]Version, 0, len(v.Building)+1)
	if v.Live != nil {
		out = append(out, *v.Live)
	}
	out = append(out, v.Building...)
	return out
}

// IsEmpty — нет ни одной зарегистрированной версии (ни Live, ни Building).
func (v Versions) IsEmpty() bool {
	return v.Live == nil && len(v.Building) == 0
}

// Origin — глобально адресуемый указатель на исходное событие в event store,
// используется как ключ идемпотентности для коммита.
type Origin struct {
	AggregateRootID   string
	AggregateRevision int64
	EventPosition     int64
	Timestamp         time.Time
}

// Commit — персистентная запись о применении одного события к одной
// проекции на одной версии. SnapshotMarker — детерминированный индекс
// страницы, вычисляемый относительно последней ревизии снапшота.
type Commit struct {
	ProjectionID   string
	Version        Version
	Event          Event
	SnapshotMarker int64
	Origin         Origin
	PersistedAt    time.Time
}

// Event — минимальный контракт на доменное событие, которое попадает в
// коммит. Определение событий само по себе остается внешним по отношению
// к ядру (Non-goal §1); ядро работает только со свёрткой.
type Event interface {
	EventType() string
}

// SnapshotMeta — метаданные снапшота без состояния, дешевы для выборки.
type SnapshotMeta struct {
	ProjectionID   string
	ProjectionName Name
	Revision       int64
}

// NoSnapshotRevision — ревизия, которую несёт отсутствующий снапшот.
const NoSnapshotRevision int64 = 0

// Snapshot — материализованное состояние проекции на границе ревизии.
// Состояние хранится в сериализованном виде (байты); формат определяется
// вызывающей стороной (контракт сериализации вынесен наружу, Non-goal §1).
type Snapshot struct {
	ProjectionID   string
	ProjectionName Name
	State          []byte
	Revision       int64
}

// NoSnapshot — именованный "нулевой" снапшот: проекция ещё не чекпоинтилась.
func NoSnapshot(projectionID string, name Name) Snapshot {
	return Snapshot{ProjectionID: projectionID, ProjectionName: name, Revision: NoSnapshotRevision}
}

// IsZero — снапшот является NoSnapshot-заглушкой.
func (s Snapshot) IsZero() bool {
	return s.Revision == NoSnapshotRevision && len(s.State) == 0
}

// Meta возвращает метаданные без состояния.
func (s Snapshot) Meta() SnapshotMeta {
	return SnapshotMeta{ProjectionID: s.ProjectionID, ProjectionName: s.ProjectionName, Revision: s.Revision}
}
