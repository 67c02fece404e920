// internal/store/snapshot_test.go
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/playnine/internal/models"
)

func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	s, err := NewSnapshotStore(t.TempDir(), logger)
	require.NoError(t, err)
	return s
}

func sampleState(name string) *models.TableState {
	st := models.NewTableState(name)
	st.Phase = models.PhasePlay
	st.RoundNum = 3
	p := &models.Player{ID: uuid.New(), Name: "Alice"}
	for i := 0; i < models.HandSize; i++ {
		p.Hand = append(p.Hand, models.Card{Value: i, FaceUp: i%2 == 0})
	}
	st.Players = []*models.Player{p}
	st.DrawPile = []models.Card{{Value: 7}, {Value: -5}}
	st.DiscardPile = []models.Card{{Value: 12, FaceUp: true}}
	st.Scores[p.ID] = 21
	st.ActivePlayerIDs[p.ID] = true
	st.PlayerLastActive[p.ID] = 12345
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	st := sampleState("t1")
	require.NoError(t, s.Save(st))

	got, err := s.Load("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, st.Phase, got.Phase)
	assert.Equal(t, st.RoundNum, got.RoundNum)
	require.Len(t, got.Players, 1)
	assert.Equal(t, st.Players[0].Hand, got.Players[0].Hand)
	assert.Equal(t, st.DrawPile, got.DrawPile)
	assert.Equal(t, 21, got.Scores[st.Players[0].ID])

	// Presence never survives a restart.
	assert.Empty(t, got.ActivePlayerIDs)
	assert.Empty(t, got.PlayerLastActive)
}

func TestLoadMissingTable(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadSkipsUnknownVersion(t *testing.T) {
	s := newTestStore(t)
	st := sampleState("t1")
	st.Version = 99
	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "t1.json"), data, 0o644))

	got, err := s.Load("t1")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown schema versions are skipped, not guessed at")
}

func TestLoadToleratesUnknownAndMissingFields(t *testing.T) {
	s := newTestStore(t)
	raw := `{"version":1,"phase":"waiting","players":[],"future_field":42}`
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "t1.json"), []byte(raw), 0o644))

	got, err := s.Load("t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PhaseWaiting, got.Phase)
	assert.Equal(t, "t1", got.Name)
	assert.NotNil(t, got.Scores, "missing maps default to empty")
	assert.Equal(t, 0, got.RoundNum)
}

func TestSaveIsAtomicOverwrite(t *testing.T) {
	s := newTestStore(t)
	st := sampleState("t1")
	require.NoError(t, s.Save(st))
	st.RoundNum = 9
	require.NoError(t, s.Save(st))

	got, err := s.Load("t1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.RoundNum)

	// No temp droppings left behind.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t1.json", entries[0].Name())
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleState("alpha")))
	require.NoError(t, s.Save(sampleState("beta")))

	names, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)

	require.NoError(t, s.Delete("alpha"))
	require.NoError(t, s.Delete("alpha"), "deleting twice is fine")

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)
}
