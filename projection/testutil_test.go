package projection

import (
	"context"
	"fmt"
	"sync"
)

// Минимальные тест-дублёры C3/C4 — in-memory, без внешних зависимостей,
// достаточные для проверки свойств ядра из SPEC_FULL §8 без поднятия
// реальной инфраструктуры.

type fakeStore struct {
	mu      sync.Mutex
	commits map[string][]Commit // key: version.Name|Revision|projectionId|marker
	failNext map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{commits: make(map[string][]Commit), failNext: make(map[string]bool)}
}

func storeKey(version Version, projectionID string, marker int64) string {
	return fmt.Sprintf("%s#%d|%s|%d", version.Name, version.Revision, projectionID, marker)
}

func (s *fakeStore) FailNextWrite(version Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[fmt.Sprintf("%s#%d", version.Name, version.Revision)] = true
}

func (s *fakeStore) Save(_ context.Context, commit Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versionKey := fmt.Sprintf("%s#%d", commit.Version.Name, commit.Version.Revision)
	if s.failNext[versionKey] {
		delete(s.failNext, versionKey)
		return fmt.Errorf("injected write failure")
	}

	key := storeKey(commit.Version, commit.ProjectionID, commit.SnapshotMarker)
	s.commits[key] = append(s.commits[key], commit)
	return nil
}

func (s *fakeStore) Load(_ context.Context, version Version, projectionID string, marker int64) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits[storeKey(version, projectionID, marker)]...), nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]Snapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]Snapshot)}
}

func snapshotKey(name Name, projectionID string, version Version) string {
	return fmt.Sprintf("%s|%s|%s#%d", name, projectionID, version.Name, version.Revision)
}

func (s *fakeSnapshotStore) LoadMeta(ctx context.Context, name Name, projectionID string, version Version) (SnapshotMeta, error) {
	snap, err := s.Load(ctx, name, projectionID, version)
	return snap.Meta(), err
}

func (s *fakeSnapshotStore) Load(_ context.Context, name Name, projectionID string, version Version) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snapshots[snapshotKey(name, projectionID, version)]; ok {
		return snap, nil
	}
	return NoSnapshot(projectionID, name), nil
}

func (s *fakeSnapshotStore) Save(_ context.Context, snapshot Snapshot, version Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey(snapshot.ProjectionName, snapshot.ProjectionID, version)] = snapshot
	return nil
}

// counterEvent — событие тестовой проекции: инкремент на Delta.
type counterEvent struct {
	id    string
	delta int
}

func (counterEvent) EventType() string { return "counter.incremented" }

// counterState — состояние тестовой проекции Counter.
type counterState struct {
	Total int
}

func counterDefinition() Definition {
	return Definition{
		Name:      "counter",
		Snapshots: true,
		Zero:      func() any { return counterState{} },
		Fold: func(state any, event Event) (any, error) {
			s, _ := state.(counterState)
			e, ok := event.(counterEvent)
			if !ok {
				return state, fmt.Errorf("unexpected event type %T", event)
			}
			s.Total += e.delta
			return s, nil
		},
		Serialize: func(state any) ([]byte, error) {
			s := state.(counterState)
			return []byte(fmt.Sprintf("%d", s.Total)), nil
		},
		Deserialize: func(data []byte) (any, error) {
			var total int
			_, err := fmt.Sscanf(string(data), "%d", &total)
			return counterState{Total: total}, err
		},
		MapEvent: func(event Event) ([]string, error) {
			e, ok := event.(counterEvent)
			if !ok {
				return nil, fmt.Errorf("unexpected event type %T", event)
			}
			return []string{e.id}, nil
		},
	}
}
