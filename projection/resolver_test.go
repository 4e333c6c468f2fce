package projection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, store Store, snaps *fakeSnapshotStore, ttl time.Duration) *VersionResolver {
	t.Helper()
	loader := NewLoader(store, snaps, NewPageSnapshotStrategy(5), NopLogger{})
	cache := NewVersionCache(ttl)
	self := Version{Name: "version-manager", Status: StatusLive, Revision: 1}
	return NewVersionResolver(cache, loader, versionManagerDefinition(), self, nil)
}

func TestVersionResolver_ColdResolutionReadsVersionManager(t *testing.T) {
	store := newFakeStore()
	snaps := newFakeSnapshotStore()
	resolver := newTestResolver(t, store, snaps, 5*time.Minute)

	self := Version{Name: "version-manager", Status: StatusLive, Revision: 1}
	require.NoError(t, store.Save(context.Background(), Commit{
		ProjectionID: "t1/counter",
		Version:      self,
		Event:        versionEvent{name: "counter", status: StatusLive, revision: 1},
	}))

	versions, err := resolver.GetProjectionVersions(context.Background(), "counter", "t1")
	require.NoError(t, err)
	require.NotNil(t, versions.Live)
	assert.Equal(t, int64(1), versions.Live.Revision)
}

// failingLoadStore errors on every Load, simulating an external store outage
// during a refresh attempt.
type failingLoadStore struct{ *fakeStore }

func (s *failingLoadStore) Load(context.Context, Version, string, int64) ([]Commit, error) {
	return nil, assert.AnError
}

func TestVersionResolver_FailedRefreshFallsBackToStaleCache(t *testing.T) {
	store := &failingLoadStore{fakeStore: newFakeStore()}
	snaps := newFakeSnapshotStore()
	resolver := newTestResolver(t, store, snaps, time.Nanosecond)

	live := Version{Name: "counter", Status: StatusLive, Revision: 1}
	resolver.cache.CacheAll(Versions{Name: "counter", Live: &live})
	time.Sleep(time.Millisecond) // force staleness so the next call attempts (and fails) a refresh

	versions, err := resolver.GetProjectionVersions(context.Background(), "counter", "t1")
	require.NoError(t, err, "a failed refresh with existing cached data must not surface as an error")
	require.NotNil(t, versions.Live)
	assert.Equal(t, int64(1), versions.Live.Revision)
}

func TestVersionResolver_EmptyCacheAndEmptyVersionManagerYieldsEmptyVersions(t *testing.T) {
	store := newFakeStore()
	snaps := newFakeSnapshotStore()
	resolver := newTestResolver(t, store, snaps, 5*time.Minute)

	versions, err := resolver.GetProjectionVersions(context.Background(), "counter", "t1")
	require.NoError(t, err, "no commits for the version-manager id is a legitimate empty result, not a failure")
	assert.True(t, versions.IsEmpty())
}
