package projectionstore

import "testing"

func TestPostgresStore_SaveAndLoad(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestPostgresStore_LoadIsolatesByMarker(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestPostgresSnapshotStore_SaveAndLoad(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestPostgresSnapshotStore_LoadMetaWithoutSnapshotReturnsZero(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}

func TestPostgresSnapshotStore_SaveUpsertsOnConflict(t *testing.T) {
	t.Skip("Requires testcontainers Postgres - integration test")
}
