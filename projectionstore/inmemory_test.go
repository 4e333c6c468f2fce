package projectionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/projector/projection"
)

func TestInMemoryStore_SaveLoadRoundtrips(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	version := projection.Version{Name: "widgets", Status: projection.StatusLive, Revision: 1}

	commit := projection.Commit{ProjectionID: "p-1", Version: version, SnapshotMarker: 0}
	require.NoError(t, store.Save(ctx, commit))

	page, err := store.Load(ctx, version, "p-1", 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestInMemoryStore_LoadIsIsolatedByMarkerAndProjectionID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	version := projection.Version{Name: "widgets", Status: projection.StatusLive, Revision: 1}

	require.NoError(t, store.Save(ctx, projection.Commit{ProjectionID: "p-1", Version: version, SnapshotMarker: 0}))
	require.NoError(t, store.Save(ctx, projection.Commit{ProjectionID: "p-1", Version: version, SnapshotMarker: 1}))
	require.NoError(t, store.Save(ctx, projection.Commit{ProjectionID: "p-2", Version: version, SnapshotMarker: 0}))

	page0, err := store.Load(ctx, version, "p-1", 0)
	require.NoError(t, err)
	assert.Len(t, page0, 1)

	page1, err := store.Load(ctx, version, "p-1", 1)
	require.NoError(t, err)
	assert.Len(t, page1, 1)

	other, err := store.Load(ctx, version, "p-2", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestInMemoryStore_LoadReturnsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	version := projection.Version{Name: "widgets", Revision: 1}
	require.NoError(t, store.Save(ctx, projection.Commit{ProjectionID: "p-1", Version: version, SnapshotMarker: 0}))

	page, err := store.Load(ctx, version, "p-1", 0)
	require.NoError(t, err)
	page[0].ProjectionID = "mutated"

	page2, err := store.Load(ctx, version, "p-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "p-1", page2[0].ProjectionID)
}

func TestInMemorySnapshotStore_LoadMissingReturnsNoSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySnapshotStore()
	version := projection.Version{Name: "widgets", Revision: 1}

	snap, err := store.Load(ctx, "widgets", "p-1", version)
	require.NoError(t, err)
	assert.True(t, snap.IsZero())
}

func TestInMemorySnapshotStore_SaveThenLoadReturnsLatest(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySnapshotStore()
	version := projection.Version{Name: "widgets", Revision: 1}

	require.NoError(t, store.Save(ctx, projection.Snapshot{ProjectionID: "p-1", ProjectionName: "widgets", State: []byte("v1"), Revision: 0}, version))
	require.NoError(t, store.Save(ctx, projection.Snapshot{ProjectionID: "p-1", ProjectionName: "widgets", State: []byte("v2"), Revision: 1}, version))

	snap, err := store.Load(ctx, "widgets", "p-1", version)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), snap.State)
	assert.Equal(t, int64(1), snap.Revision)
}

func TestInMemorySnapshotStore_LoadMetaMirrorsLoad(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySnapshotStore()
	version := projection.Version{Name: "widgets", Revision: 1}
	require.NoError(t, store.Save(ctx, projection.Snapshot{ProjectionID: "p-1", ProjectionName: "widgets", Revision: 3}, version))

	meta, err := store.LoadMeta(ctx, "widgets", "p-1", version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Revision)
}
