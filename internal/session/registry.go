// internal/session/registry.go
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/hub"
	"github.com/jason-s-yu/playnine/internal/models"
	"github.com/jason-s-yu/playnine/internal/store"
)

// Table pairs a session with its subscriber hub.
type Table struct {
	Session *Session
	Hub     *hub.Hub
}

// Registry is the named mapping table-name -> session. Its lock guards
// creation and removal only; everything per-table goes through the session's
// writer.
type Registry struct {
	mu     sync.Mutex
	tables map[string]*Table

	snapshots *store.SnapshotStore
	logger    *logrus.Logger
	opts      Options

	// SweepInterval controls how often idle, player-less tables are reaped.
	SweepInterval time.Duration
}

// NewRegistry builds an empty registry. opts is the template applied to
// every session it creates.
func NewRegistry(snapshots *store.SnapshotStore, logger *logrus.Logger, opts Options) *Registry {
	return &Registry{
		tables:        make(map[string]*Table),
		snapshots:     snapshots,
		logger:        logger,
		opts:          opts,
		SweepInterval: time.Minute,
	}
}

// Get returns an existing table without creating one.
func (r *Registry) Get(name string) (*Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	return t, ok
}

// GetOrCreate returns the table, restoring it from disk or creating a fresh
// empty one. The name must already be validated.
func (r *Registry) GetOrCreate(name string) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[name]; ok {
		return t, nil
	}

	st, err := r.snapshots.Load(name)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = models.NewTableState(name)
	}
	return r.startLocked(name, st), nil
}

// startLocked wires a session + hub pair and launches the writer. Caller
// holds r.mu.
func (r *Registry) startLocked(name string, st *models.TableState) *Table {
	sess := New(name, st, r.snapshots, r.logger, r.opts)
	h := hub.NewHub(name, r.logger)
	sess.BroadcastFn = func(snap *models.Snapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			r.logger.WithField("table", name).Errorf("marshal snapshot: %v", err)
			return
		}
		h.Broadcast(data)
	}
	sess.OnEmpty = func() {
		r.tableEmptied(name)
	}
	sess.Start()

	t := &Table{Session: sess, Hub: h}
	r.tables[name] = t
	return t
}

// RestoreAll scans the snapshot directory and brings every persisted table
// back to life. Restored tables start with no connections.
func (r *Registry) RestoreAll() error {
	names, err := r.snapshots.List()
	if err != nil {
		return err
	}
	restored := 0
	for _, name := range names {
		st, err := r.snapshots.Load(name)
		if err != nil {
			r.logger.WithField("table", name).Warnf("skipping unreadable snapshot: %v", err)
			continue
		}
		if st == nil {
			continue
		}
		r.mu.Lock()
		if _, ok := r.tables[name]; !ok {
			r.startLocked(name, st)
			restored++
		}
		r.mu.Unlock()
	}
	if restored > 0 {
		r.logger.Infof("restored %d table(s) from %v", restored, names)
	}
	return nil
}

// tableEmptied handles a table whose last player just left: the snapshot
// file goes away immediately; the session itself is only torn down once no
// spectators remain.
func (r *Registry) tableEmptied(name string) {
	if err := r.snapshots.Delete(name); err != nil {
		r.logger.WithField("table", name).Errorf("delete snapshot: %v", err)
	}
	r.mu.Lock()
	t, ok := r.tables[name]
	r.mu.Unlock()
	if ok && t.Hub.SubscriberCount() == 0 {
		r.Destroy(name)
	}
}

// Destroy stops a table's writer, removes its file, and forgets it.
func (r *Registry) Destroy(name string) {
	r.mu.Lock()
	t, ok := r.tables[name]
	if ok {
		delete(r.tables, name)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	t.Session.Stop()
	if err := r.snapshots.Delete(name); err != nil {
		r.logger.WithField("table", name).Errorf("delete snapshot: %v", err)
	}
	r.logger.WithField("table", name).Info("table destroyed")
}

// RunSweeper periodically reaps tables that hold no players, no
// subscribers, and have been idle for at least one interval. Blocks until
// the context ends.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	candidates := make(map[string]*Table, len(r.tables))
	for name, t := range r.tables {
		candidates[name] = t
	}
	r.mu.Unlock()

	cutoff := time.Now().Add(-r.SweepInterval)
	for name, t := range candidates {
		if t.Hub.SubscriberCount() > 0 {
			continue
		}
		if t.Session.LastTouched().After(cutoff) {
			continue
		}
		if t.Session.PlayerCount() > 0 {
			continue
		}
		r.Destroy(name)
	}
}
