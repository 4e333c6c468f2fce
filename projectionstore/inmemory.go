// Package projectionstore содержит внешние реализации C3 (Store) и C4
// (SnapshotStore) для ядра projection: in-memory для тестов и локального
// запуска, PostgreSQL и MongoDB для продакшена.
package projectionstore

import (
	"context"
	"sync"

	"github.com/akriventsev/projector/projection"
)

// InMemoryStore — журнал коммитов в памяти процесса, обобщение InMemoryEventStore
// фреймворка (framework/eventsourcing/inmemory_store.go) со страничным ключом
// вместо последовательной версии.
type InMemoryStore struct {
	mu      sync.RWMutex
	commits map[inMemoryStoreKey][]projection.Commit
}

type inMemoryStoreKey struct {
	versionName     projection.Name
	versionRevision int64
	projectionID    string
	marker          int64
}

// NewInMemoryStore создает пустой in-memory журнал коммитов.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{commits: make(map[inMemoryStoreKey][]projection.Commit)}
}

func (s *InMemoryStore) Save(_ context.Context, commit projection.Commit) error {
	key := inMemoryStoreKey{
		versionName:     commit.Version.Name,
		versionRevision: commit.Version.Revision,
		projectionID:    commit.ProjectionID,
		marker:          commit.SnapshotMarker,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[key] = append(s.commits[key], commit)
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, version projection.Version, projectionID string, marker int64) ([]projection.Commit, error) {
	key := inMemoryStoreKey{versionName: version.Name, versionRevision: version.Revision, projectionID: projectionID, marker: marker}
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := s.commits[key]
	out := make([]projection.Commit, len(page))
	copy(out, page)
	return out, nil
}

// InMemorySnapshotStore — key-value снапшотов в памяти процесса.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[inMemorySnapshotKey]projection.Snapshot
}

type inMemorySnapshotKey struct {
	name            projection.Name
	projectionID    string
	versionRevision int64
}

// NewInMemorySnapshotStore создает пустое in-memory хранилище снапшотов.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{snapshots: make(map[inMemorySnapshotKey]projection.Snapshot)}
}

func (s *InMemorySnapshotStore) key(name projection.Name, projectionID string, version projection.Version) inMemorySnapshotKey {
	return inMemorySnapshotKey{name: name, projectionID: projectionID, versionRevision: version.Revision}
}

func (s *InMemorySnapshotStore) LoadMeta(ctx context.Context, name projection.Name, projectionID string, version projection.Version) (projection.SnapshotMeta, error) {
	snap, err := s.Load(ctx, name, projectionID, version)
	return snap.Meta(), err
}

func (s *InMemorySnapshotStore) Load(_ context.Context, name projection.Name, projectionID string, version projection.Version) (projection.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[s.key(name, projectionID, version)]; ok {
		return snap, nil
	}
	return projection.NoSnapshot(projectionID, name), nil
}

func (s *InMemorySnapshotStore) Save(_ context.Context, snapshot projection.Snapshot, version projection.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[s.key(snapshot.ProjectionName, snapshot.ProjectionID, version)] = snapshot
	return nil
}
