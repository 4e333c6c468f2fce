package projection

import "fmt"

// SnapshotLoader — отложенный загрузчик снапшота, вызывается не более
// одного раза за время жизни Stream (SPEC_FULL §9, "deferred snapshot loader").
type SnapshotLoader func() (Snapshot, error)

// Stream (C5) — значимый объект: упорядоченная пачка коммитов плюс ленивый
// загрузчик снапшота. Короткоживущий, принадлежит одной операции; свёртка
// потребляет его.
type Stream struct {
	ProjectionID string
	Commits      []Commit
	loadSnapshot SnapshotLoader

	loaded     bool
	snapshot   Snapshot
	loadErr    error
}

// Empty — распознаваемый пустой поток, сворачивающийся в нулевое значение
// типа проекции.
func Empty(projectionID string, name Name) Stream {
	zero := NoSnapshot(projectionID, name)
	return Stream{
		ProjectionID: projectionID,
		Commits:      nil,
		loadSnapshot: func() (Snapshot, error) { return zero, nil },
	}
}

// New создает поток с заданными коммитами и ленивым снапшотом.
func New(projectionID string, commits []Commit, loadSnapshot SnapshotLoader) Stream {
	return Stream{ProjectionID: projectionID, Commits: commits, loadSnapshot: loadSnapshot}
}

// IsEmpty — поток не несет ни коммитов, ни (материализованного) снапшота.
func (s *Stream) IsEmpty() bool {
	return len(s.Commits) == 0 && !s.loaded
}

// Snapshot материализует (и кеширует) лениво загруженный снапшот потока.
func (s *Stream) Snapshot() (Snapshot, error) {
	return s.snapshotOnce()
}

func (s *Stream) snapshotOnce() (Snapshot, error) {
	if s.loaded {
		return s.snapshot, s.loadErr
	}
	if s.loadSnapshot == nil {
		s.loaded = true
		return Snapshot{}, nil
	}
	s.snapshot, s.loadErr = s.loadSnapshot()
	s.loaded = true
	return s.snapshot, s.loadErr
}

// RestoreFromHistory материализует снапшот (лениво, пропускается если не
// нужен), применяет его состояние, затем сворачивает коммиты в порядке их
// персистентности через Folder, зарегистрированный для имени проекции.
// Идемпотентна: повторный вызов на том же Stream дает равный результат,
// поскольку снапшот кешируется после первой загрузки.
func (s *Stream) RestoreFromHistory(def Definition) (any, error) {
	var state any
	if len(s.Commits) == 0 && s.loadSnapshot == nil {
		state = def.Zero()
	} else {
		snap, err := s.snapshotOnce()
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap.IsZero() {
			state = def.Zero()
		} else {
			state, err = def.Deserialize(snap.State)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
			}
		}
	}

	for _, commit := range s.Commits {
		next, err := def.Fold(state, commit.Event)
		if err != nil {
			return nil, fmt.Errorf("failed to fold commit at marker %d: %w", commit.SnapshotMarker, err)
		}
		state = next
	}
	return state, nil
}
