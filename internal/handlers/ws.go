// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jason-s-yu/playnine/internal/game"
	"github.com/jason-s-yu/playnine/internal/hub"
	"github.com/jason-s-yu/playnine/internal/middleware"
	"github.com/jason-s-yu/playnine/internal/models"
	"github.com/jason-s-yu/playnine/internal/session"
)

// wsErrorFrame is the per-connection rejection message. It travels through
// the subscriber's outbound queue so errors and snapshots stay ordered.
type wsErrorFrame struct {
	Error   game.ErrorKind `json:"error"`
	Message string         `json:"message"`
}

func sendFrame(sub *hub.Subscriber, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	sub.Send(data)
}

// WSHandler upgrades the connection for /play9/ws/{table}?id=<player_id>.
// With an id the connection is player-bound; without one it is a spectator
// view. Either way the client receives the current snapshot immediately and
// a fresh one after every committed transition.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	tableName, gerr := pathTable(r, "/play9/ws/")
	if gerr != nil {
		writeGameError(w, gerr)
		return
	}

	tbl, err := s.Registry.GetOrCreate(tableName)
	if err != nil {
		s.Logger.WithField("table", tableName).Errorf("get or create table: %v", err)
		writeError(w, http.StatusInternalServerError, game.ErrInternal, "failed to open table")
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error for table %s: %v", tableName, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal error during handler exit")
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var sub *hub.Subscriber
	playerID := uuid.Nil
	if idStr := r.URL.Query().Get("id"); idStr != "" {
		playerID, err = uuid.Parse(idStr)
		if err != nil {
			_ = writeWsRaw(ctx, c, wsErrorFrame{Error: game.ErrInvalidInput, Message: "invalid player id"})
			c.Close(websocket.StatusPolicyViolation, "invalid player id")
			return
		}
		if tbl.Session.Snapshot().PlayerIndexByID(playerID.String()) < 0 {
			_ = writeWsRaw(ctx, c, wsErrorFrame{Error: game.ErrNotAPlayer, Message: "not a player at this table"})
			c.Close(websocket.StatusPolicyViolation, "not a player at this table")
			return
		}
		var ok bool
		sub, ok = tbl.Hub.AddPlayer(ctx, cancel, c, playerID)
		if !ok {
			_ = writeWsRaw(ctx, c, wsErrorFrame{Error: game.ErrAlreadyConnected, Message: "player already connected elsewhere"})
			c.Close(websocket.StatusPolicyViolation, "player already connected elsewhere")
			return
		}
		tbl.Session.Attach(playerID)
	} else {
		sub = tbl.Hub.AddSpectator(ctx, cancel, c)
	}

	defer func() {
		removed := tbl.Hub.Remove(sub)
		if removed && playerID != uuid.Nil {
			tbl.Session.Detach(playerID)
		}
		middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
	}()

	sendFrame(sub, tbl.Session.Snapshot())

	s.readIntents(ctx, c, tbl, sub, playerID)
}

// readIntents is the per-connection inbound loop: decode, bind the actor,
// hand off to the session, and surface rejections to this connection only.
func (s *Server) readIntents(ctx context.Context, c *websocket.Conn, tbl *session.Table, sub *hub.Subscriber, playerID uuid.UUID) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.Logger.Debugf("websocket read error on table %s: %v", tbl.Session.Name(), err)
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var in models.Intent
		if err := json.Unmarshal(data, &in); err != nil {
			sendFrame(sub, wsErrorFrame{Error: game.ErrInvalidInput, Message: "malformed JSON"})
			continue
		}
		if playerID == uuid.Nil && in.RequiresActor() {
			sendFrame(sub, wsErrorFrame{Error: game.ErrNotAPlayer, Message: "spectators may only send heartbeats"})
			continue
		}
		in.Actor = playerID

		if gerr := tbl.Session.Do(in); gerr != nil {
			sendFrame(sub, wsErrorFrame{Error: gerr.Kind, Message: gerr.Message})
		}
	}
}

// writeWsRaw writes one frame directly, for connections rejected before they
// get a subscriber queue.
func writeWsRaw(ctx context.Context, c *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, data)
}
