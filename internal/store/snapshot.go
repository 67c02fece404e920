// internal/store/snapshot.go
//
// On-disk table persistence: one JSON file per table, written atomically so
// a crash mid-write can never leave a torn snapshot behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/models"
)

// SnapshotStore owns a directory of <table>.json files. Each file is only
// ever written by its table's session, so there is no cross-file locking.
type SnapshotStore struct {
	dir    string
	logger *logrus.Logger
}

// NewSnapshotStore creates the directory if needed.
func NewSnapshotStore(dir string, logger *logrus.Logger) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &SnapshotStore{dir: dir, logger: logger}, nil
}

func (s *SnapshotStore) path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

// Save serializes the full state and renames it over the table's file. The
// temp file carries a random suffix so concurrent saves of different tables
// never collide.
func (s *SnapshotStore) Save(t *models.TableState) error {
	t.Version = models.SnapshotVersion
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", t.Name, err)
	}
	tmp := s.path(t.Name) + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot for %s: %w", t.Name, err)
	}
	if err := os.Rename(tmp, s.path(t.Name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot for %s: %w", t.Name, err)
	}
	return nil
}

// Load reads one table's snapshot. Returns (nil, nil) when no file exists or
// the file's schema version is unknown; unknown versions are logged and
// skipped rather than guessed at. Unknown JSON fields are ignored and
// missing fields keep their zero values, so older files stay loadable.
func (s *SnapshotStore) Load(table string) (*models.TableState, error) {
	data, err := os.ReadFile(s.path(table))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot for %s: %w", table, err)
	}
	var t models.TableState
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", table, err)
	}
	if t.Version != models.SnapshotVersion {
		s.logger.WithFields(logrus.Fields{
			"table":   table,
			"version": t.Version,
		}).Warn("skipping snapshot with unknown schema version")
		return nil, nil
	}
	t.Name = table
	t.EnsureMaps()
	// Presence is ephemeral: a restored table starts with nobody connected.
	t.ActivePlayerIDs = make(map[uuid.UUID]bool)
	t.PlayerLastActive = make(map[uuid.UUID]int64)
	return &t, nil
}

// List returns the table names that have a snapshot on disk.
func (s *SnapshotStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan snapshot dir %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// Delete removes a table's snapshot. Missing files are fine: destruction is
// idempotent.
func (s *SnapshotStore) Delete(table string) error {
	err := os.Remove(s.path(table))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot for %s: %w", table, err)
	}
	return nil
}
