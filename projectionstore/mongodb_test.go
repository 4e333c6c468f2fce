package projectionstore

import "testing"

func TestMongoDBStore_SaveAndLoad(t *testing.T) {
	t.Skip("Requires testcontainers MongoDB replica set - integration test")
}

func TestMongoDBStore_LoadIsolatesByMarker(t *testing.T) {
	t.Skip("Requires testcontainers MongoDB replica set - integration test")
}

func TestMongoDBSnapshotStore_SaveAndLoad(t *testing.T) {
	t.Skip("Requires testcontainers MongoDB replica set - integration test")
}

func TestMongoDBSnapshotStore_LoadMetaWithoutSnapshotReturnsZero(t *testing.T) {
	t.Skip("Requires testcontainers MongoDB replica set - integration test")
}

func TestMongoDBSnapshotStore_SaveUpsertsExisting(t *testing.T) {
	t.Skip("Requires testcontainers MongoDB replica set - integration test")
}
