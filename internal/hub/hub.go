// internal/hub/hub.go
//
// The hub is the per-table broadcast set: player-bound connections plus any
// number of spectators. Each subscriber owns a buffered outbound queue
// drained by a dedicated writer goroutine, so one slow client never stalls
// the table. Every subscriber sees snapshots in commit order; a subscriber
// that cannot keep up is disconnected rather than skipped ahead.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const outboundQueueSize = 32

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// Subscriber is one live connection to a table. PlayerID is uuid.Nil for
// spectators.
type Subscriber struct {
	PlayerID uuid.UUID

	conn   *websocket.Conn
	out    chan []byte
	cancel context.CancelFunc
	once   sync.Once
}

// Send enqueues one outbound frame. If the subscriber's queue is full the
// connection is torn down: delivering a gapped snapshot stream would be
// worse than reconnecting.
func (s *Subscriber) Send(data []byte) {
	select {
	case s.out <- data:
	default:
		s.Close()
	}
}

// Close cancels the subscriber's connection context. Safe to call more than
// once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// writeLoop drains the outbound queue onto the wire until the context ends.
func (s *Subscriber) writeLoop(ctx context.Context, logger *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("player_id", s.PlayerID).Debugf("subscriber write failed: %v", err)
				s.Close()
				return
			}
		}
	}
}

// Hub tracks every subscriber of one table.
type Hub struct {
	table  string
	logger *logrus.Entry

	mu         sync.Mutex
	players    map[uuid.UUID]*Subscriber
	spectators map[*Subscriber]struct{}
}

// NewHub builds an empty hub for a table.
func NewHub(table string, logger *logrus.Logger) *Hub {
	return &Hub{
		table:      table,
		logger:     logger.WithField("table", table),
		players:    make(map[uuid.UUID]*Subscriber),
		spectators: make(map[*Subscriber]struct{}),
	}
}

// AddPlayer registers a player-bound connection and starts its writer. A
// player may hold at most one live connection; the returned bool is false
// when the seat already has one.
func (h *Hub) AddPlayer(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, playerID uuid.UUID) (*Subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.players[playerID]; taken {
		return nil, false
	}
	sub := &Subscriber{
		PlayerID: playerID,
		conn:     conn,
		out:      make(chan []byte, outboundQueueSize),
		cancel:   cancel,
	}
	h.players[playerID] = sub
	go sub.writeLoop(ctx, h.logger)
	return sub, true
}

// AddSpectator registers a read-only connection and starts its writer.
func (h *Hub) AddSpectator(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		conn:   conn,
		out:    make(chan []byte, outboundQueueSize),
		cancel: cancel,
	}
	h.mu.Lock()
	h.spectators[sub] = struct{}{}
	h.mu.Unlock()
	go sub.writeLoop(ctx, h.logger)
	return sub
}

// Remove drops a subscriber from the hub. Returns true when the subscriber
// was still registered.
func (h *Hub) Remove(sub *Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.PlayerID != uuid.Nil {
		if cur, ok := h.players[sub.PlayerID]; ok && cur == sub {
			delete(h.players, sub.PlayerID)
			return true
		}
		return false
	}
	if _, ok := h.spectators[sub]; ok {
		delete(h.spectators, sub)
		return true
	}
	return false
}

// IsPlayerConnected reports whether a player id currently holds a live
// connection.
func (h *Hub) IsPlayerConnected(playerID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.players[playerID]
	return ok
}

// SubscriberCount totals players and spectators.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players) + len(h.spectators)
}

// Broadcast enqueues one frame to every subscriber. Per-subscriber ordering
// follows call order; callers serialize on the session's writer, so every
// subscriber observes a strict prefix of committed snapshots.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.players)+len(h.spectators))
	for _, s := range h.players {
		subs = append(subs, s)
	}
	for s := range h.spectators {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Send(data)
	}
}
