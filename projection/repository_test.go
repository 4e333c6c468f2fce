package projection

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*fakeStore
	loads int
}

func (c *countingStore) Load(ctx context.Context, version Version, projectionID string, marker int64) ([]Commit, error) {
	c.loads++
	return c.fakeStore.Load(ctx, version, projectionID, marker)
}

func newTestRepository(t *testing.T, pageSize int64) (*Repository, *countingStore, *fakeSnapshotStore) {
	t.Helper()

	store := &countingStore{fakeStore: newFakeStore()}
	snaps := newFakeSnapshotStore()
	strategy := NewPageSnapshotStrategy(pageSize)
	loader := NewLoader(store, snaps, strategy, NopLogger{})

	registry := NewFolderRegistry()
	require.NoError(t, registry.Register(counterDefinition()))

	cache := NewVersionCache(5 * time.Minute)
	vmDef := versionManagerDefinition()
	resolver := NewVersionResolver(cache, loader, vmDef, Version{Name: "version-manager", Status: StatusLive, Revision: 1}, nil)

	contractID := NewContractIDResolver(func(t reflect.Type) string {
		return strings.ToLower(strings.TrimSuffix(t.Name(), "Type"))
	})

	repo := NewRepository(store, snaps, resolver, loader, registry, contractID)
	return repo, store, snaps
}

// counterType is the projectionType handle used to resolve "counter" via
// reflection in ContractIDResolver; the resolver keys on the concrete Go
// type, not on its value, so a zero value is enough.
type counterType struct{}

func seedLiveVersion(repo *Repository, revision int64) {
	repo.resolver.cache.CacheAll(Versions{
		Name: "counter",
		Live: &Version{Name: "counter", Status: StatusLive, Revision: revision},
	})
}

func TestScenarioS1_EmptyProjection(t *testing.T) {
	repo, _, _ := newTestRepository(t, 5)
	seedLiveVersion(repo, 1)

	state, err := repo.Get(context.Background(), "t1", counterType{}, "A")
	require.NoError(t, err)
	assert.Equal(t, counterState{Total: 0}, state)
}

func TestScenarioS2_SinglePageFold(t *testing.T) {
	repo, _, _ := newTestRepository(t, 5)
	seedLiveVersion(repo, 1)
	version := Version{Name: "counter", Status: StatusLive, Revision: 1}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		err := repo.SaveTargeted(ctx, "A", counterType{}, counterEvent{id: "A", delta: i}, Origin{EventPosition: int64(i)}, version)
		require.NoError(t, err)
	}

	state, err := repo.Get(ctx, "t1", counterType{}, "A")
	require.NoError(t, err)
	assert.Equal(t, counterState{Total: 1 + 2 + 3}, state)

	_, loadErr := repo.snapshots.LoadMeta(ctx, "counter", "A", version)
	require.NoError(t, loadErr)
}

func TestScenarioS3_CheckpointBoundary(t *testing.T) {
	repo, _, snaps := newTestRepository(t, 3)
	seedLiveVersion(repo, 1)
	version := Version{Name: "counter", Status: StatusLive, Revision: 1}

	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		err := repo.SaveTargeted(ctx, "A", counterType{}, counterEvent{id: "A", delta: 1}, Origin{EventPosition: int64(i)}, version)
		require.NoError(t, err)
	}

	state, err := repo.Get(ctx, "t1", counterType{}, "A")
	require.NoError(t, err)
	assert.Equal(t, counterState{Total: 7}, state)

	meta, err := snaps.LoadMeta(ctx, "counter", "A", version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Revision, "two snapshots should have been saved by the time all 7 commits are read back")
}

func TestScenarioS4_DualVersionWrite(t *testing.T) {
	repo, _, _ := newTestRepository(t, 5)
	live := Version{Name: "counter", Status: StatusLive, Revision: 1}
	building := Version{Name: "counter", Status: StatusBuilding, Revision: 2}
	repo.resolver.cache.CacheAll(Versions{Name: "counter", Live: &live, Building: []Version{building}})

	ctx := context.Background()
	results, err := repo.Save(ctx, "t1", counterType{}, counterEvent{id: "A", delta: 4}, Origin{EventPosition: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	liveState, err := repo.Get(ctx, "t1", counterType{}, "A")
	require.NoError(t, err)
	assert.Equal(t, counterState{Total: 4}, liveState)
}

func TestScenarioS5_RebuildTargetedWriteRejected(t *testing.T) {
	repo, store, _ := newTestRepository(t, 5)
	canceled := Version{Name: "counter", Status: StatusCanceled, Revision: 3}

	err := repo.SaveTargeted(context.Background(), "A", counterType{}, counterEvent{id: "A", delta: 1}, Origin{}, canceled)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeInvalidArgument, perr.Code)
	assert.Equal(t, 0, len(store.fakeStore.commits), "no I/O should occur on a rejected targeted write")
}

func TestScenarioS6_VersionRefresh(t *testing.T) {
	repo, store, _ := newTestRepository(t, 5)
	selfVersion := Version{Name: "version-manager", Status: StatusLive, Revision: 1}
	seedVersionManagerCommit(t, store, selfVersion, "t1/counter", versionEvent{name: "counter", status: StatusLive, revision: 1})

	ctx := context.Background()
	before := store.loads

	_, err := repo.resolver.GetProjectionVersions(ctx, "counter", "t1")
	require.NoError(t, err)
	firstRoundLoads := store.loads - before

	before = store.loads
	_, err = repo.resolver.GetProjectionVersions(ctx, "counter", "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, store.loads-before, "a fresh cache entry must not trigger another version-manager load")
	assert.Greater(t, firstRoundLoads, 0, "the first (cold) resolution must read the version-manager stream")
}

func TestFanOutIsolation_OneVersionFailureDoesNotBlockAnother(t *testing.T) {
	repo, store, _ := newTestRepository(t, 5)
	live := Version{Name: "counter", Status: StatusLive, Revision: 1}
	building := Version{Name: "counter", Status: StatusBuilding, Revision: 2}
	repo.resolver.cache.CacheAll(Versions{Name: "counter", Live: &live, Building: []Version{building}})

	store.fakeStore.FailNextWrite(building)

	ctx := context.Background()
	results, err := repo.Save(ctx, "t1", counterType{}, counterEvent{id: "A", delta: 9}, Origin{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var liveOK, buildingFailed bool
	for _, r := range results {
		if r.Version.Status == StatusLive {
			liveOK = r.Err == nil
		}
		if r.Version.Status == StatusBuilding {
			buildingFailed = r.Err != nil
		}
	}
	assert.True(t, liveOK, "live version write must succeed despite the building version failing")
	assert.True(t, buildingFailed, "building version write was expected to fail")
}

func TestFoldDeterminism_IndependentOfPageBoundaries(t *testing.T) {
	def := counterDefinition()
	events := []Commit{
		{Event: counterEvent{delta: 1}},
		{Event: counterEvent{delta: 2}},
		{Event: counterEvent{delta: 3}},
		{Event: counterEvent{delta: 4}},
	}

	whole := New("A", events, func() (Snapshot, error) { return NoSnapshot("A", "counter"), nil })
	wholeState, err := whole.RestoreFromHistory(def)
	require.NoError(t, err)

	firstHalf := New("A", events[:2], func() (Snapshot, error) { return NoSnapshot("A", "counter"), nil })
	intermediate, err := firstHalf.RestoreFromHistory(def)
	require.NoError(t, err)

	intermediateBytes, err := def.Serialize(intermediate)
	require.NoError(t, err)
	secondHalf := New("A", events[2:], func() (Snapshot, error) {
		return Snapshot{ProjectionID: "A", ProjectionName: "counter", State: intermediateBytes, Revision: 1}, nil
	})
	splitState, err := secondHalf.RestoreFromHistory(def)
	require.NoError(t, err)

	assert.Equal(t, wholeState, splitState)
}

func TestMarkerMonotonicity(t *testing.T) {
	repo, _, _ := newTestRepository(t, 2)
	version := Version{Name: "counter", Status: StatusLive, Revision: 1}
	seedLiveVersion(repo, 1)

	ctx := context.Background()
	var markers []int64
	for i := 1; i <= 6; i++ {
		err := repo.SaveTargeted(ctx, "A", counterType{}, counterEvent{id: "A", delta: 1}, Origin{EventPosition: int64(i)}, version)
		require.NoError(t, err)
	}

	for marker := int64(0); marker <= 2; marker++ {
		page, err := repo.store.Load(ctx, version, "A", marker)
		require.NoError(t, err)
		for range page {
			markers = append(markers, marker)
		}
	}
	for i := 1; i < len(markers); i++ {
		assert.GreaterOrEqual(t, markers[i], markers[i-1])
	}
}

// versionEvent — событие проекции version-manager.
type versionEvent struct {
	name     Name
	status   Status
	revision int64
}

func (versionEvent) EventType() string { return "version.transitioned" }

func versionManagerDefinition() Definition {
	return Definition{
		Name:      "version-manager",
		Snapshots: false,
		Zero:      func() any { return Versions{} },
		Fold: func(state any, event Event) (any, error) {
			versions, _ := state.(Versions)
			e := event.(versionEvent)
			v := Version{Name: e.name, Status: e.status, Revision: e.revision}
			switch e.status {
			case StatusLive:
				versions.Live = &v
			case StatusBuilding:
				versions.Building = append(versions.Building, v)
			}
			return versions, nil
		},
	}
}

func seedVersionManagerCommit(t *testing.T, store *countingStore, selfVersion Version, id string, event Event) {
	t.Helper()
	err := store.Save(context.Background(), Commit{
		ProjectionID:   id,
		Version:        selfVersion,
		Event:          event,
		SnapshotMarker: 0,
		PersistedAt:    time.Now(),
	})
	require.NoError(t, err)
}

func TestGetWithProgress_ReportsOneCallbackPerPage(t *testing.T) {
	repo, _, _ := newTestRepository(t, 2)
	version := Version{Name: "counter", Status: StatusLive, Revision: 1}
	seedLiveVersion(repo, 1)

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		err := repo.SaveTargeted(ctx, "A", counterType{}, counterEvent{id: "A", delta: 1}, Origin{EventPosition: int64(i)}, version)
		require.NoError(t, err)
	}

	var snapshots []ReplayProgress
	state, err := repo.GetWithProgress(ctx, "t1", counterType{}, "A", func(p ReplayProgress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)
	assert.Equal(t, counterState{Total: 5}, state)

	require.NotEmpty(t, snapshots)
	for i, p := range snapshots {
		if i > 0 {
			assert.GreaterOrEqual(t, p.CurrentMarker, snapshots[i-1].CurrentMarker)
		}
	}
	// The writes above already checkpointed snapshot revision 2 over e1..e4, so
	// Get reads a single page (marker 2) holding e5; ProcessedCommits is cumulative.
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(1), snapshots[len(snapshots)-1].ProcessedCommits)
}

func TestGetWithProgress_NilCallbackBehavesLikeGet(t *testing.T) {
	repo, _, _ := newTestRepository(t, 2)
	version := Version{Name: "counter", Status: StatusLive, Revision: 1}
	seedLiveVersion(repo, 1)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		err := repo.SaveTargeted(ctx, "A", counterType{}, counterEvent{id: "A", delta: 1}, Origin{EventPosition: int64(i)}, version)
		require.NoError(t, err)
	}

	withProgress, err := repo.GetWithProgress(ctx, "t1", counterType{}, "A", nil)
	require.NoError(t, err)
	plain, err := repo.Get(ctx, "t1", counterType{}, "A")
	require.NoError(t, err)
	assert.Equal(t, plain, withProgress)
}
