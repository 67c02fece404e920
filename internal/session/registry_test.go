// internal/session/registry_test.go
package session

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/playnine/internal/models"
	"github.com/jason-s-yu/playnine/internal/store"
)

func newTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	logger := logrus.New()
	snapshots, err := store.NewSnapshotStore(dir, logger)
	require.NoError(t, err)
	return NewRegistry(snapshots, logger, Options{})
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := newTestRegistry(t, t.TempDir())
	a, err := r.GetOrCreate("t1")
	require.NoError(t, err)
	b, err := r.GetOrCreate("t1")
	require.NoError(t, err)
	assert.Same(t, a, b, "one session per table")

	_, ok := r.Get("t2")
	assert.False(t, ok, "Get never creates")
	t.Cleanup(func() { r.Destroy("t1") })
}

func TestRegistrySurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	r1 := newTestRegistry(t, dir)
	tbl, err := r1.GetOrCreate("t1")
	require.NoError(t, err)
	aliceID, gerr := tbl.Session.Join("Alice")
	require.Nil(t, gerr)
	_, gerr = tbl.Session.Join("Bob")
	require.Nil(t, gerr)
	require.Nil(t, tbl.Session.Do(models.Intent{Type: models.IntentStart, Actor: aliceID}))
	want := tbl.Session.Snapshot()
	// Simulate a crash: stop the writers but keep the files.
	tbl.Session.Stop()

	r2 := newTestRegistry(t, dir)
	require.NoError(t, r2.RestoreAll())
	restored, ok := r2.Get("t1")
	require.True(t, ok, "persisted tables come back on startup")
	got := restored.Session.Snapshot()
	t.Cleanup(restored.Session.Stop)

	assert.Equal(t, want.Phase, got.Phase)
	assert.Equal(t, want.RoundNum, got.RoundNum)
	require.Len(t, got.Players, 2)
	assert.Equal(t, want.Players, got.Players)
	assert.Equal(t, want.DrawPileCount, got.DrawPileCount)
	assert.Empty(t, got.ActivePlayerIDs, "restored tables start with nobody connected")
}

func TestRegistryDestroysEmptiedTable(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(t, dir)
	tbl, err := r.GetOrCreate("t1")
	require.NoError(t, err)

	aliceID, gerr := tbl.Session.Join("Alice")
	require.Nil(t, gerr)
	names, err := r.snapshots.List()
	require.NoError(t, err)
	require.Equal(t, []string{"t1"}, names, "a seated table is on disk")

	require.Nil(t, tbl.Session.Do(models.Intent{Type: models.IntentLeave, Actor: aliceID}))

	waitFor(t, 3*time.Second, func() bool {
		_, ok := r.Get("t1")
		return !ok
	}, "empty table teardown")
	names, err = r.snapshots.List()
	require.NoError(t, err)
	assert.Empty(t, names, "the snapshot file is gone")
}
