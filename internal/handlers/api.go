// internal/handlers/api.go
//
// The HTTP surface under /play9: lobby and table pages, join/leave/state
// endpoints, and the websocket upgrade. Everything stateful is delegated to
// the registry and the per-table sessions; handlers only validate, route,
// and serialize.
package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/game"
	"github.com/jason-s-yu/playnine/internal/models"
	"github.com/jason-s-yu/playnine/internal/session"
)

// Server bundles the dependencies every /play9 handler needs.
type Server struct {
	Registry  *session.Registry
	Logger    *logrus.Logger
	StaticDir string
}

// NewServer builds the handler set.
func NewServer(reg *session.Registry, logger *logrus.Logger, staticDir string) *Server {
	return &Server{Registry: reg, Logger: logger, StaticDir: staticDir}
}

// Register mounts every /play9 route on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/play9", s.LobbyPageHandler)
	mux.HandleFunc("/play9/table/", s.TablePageHandler)
	mux.HandleFunc("/play9/player/", s.TablePageHandler)
	mux.HandleFunc("/play9/join", s.JoinHandler)
	mux.HandleFunc("/play9/leave", s.LeaveHandler)
	mux.HandleFunc("/play9/api/table/", s.StateHandler)
	mux.HandleFunc("/play9/ws/", s.WSHandler)
	mux.Handle("/play9/static/", http.StripPrefix("/play9/static/",
		http.FileServer(http.Dir(s.StaticDir))))
}

// pathTable extracts and validates the table name that follows prefix in the
// request path.
func pathTable(r *http.Request, prefix string) (string, *game.Error) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	name := strings.SplitN(rest, "/", 2)[0]
	return game.ValidateTableName(name)
}

// LobbyPageHandler serves the lobby view (main entry point).
func (s *Server) LobbyPageHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.StaticDir, "lobby.html"))
}

// TablePageHandler serves the table/waiting-room/player view. The same page
// serves all three; the client's id query parameter distinguishes them.
func (s *Server) TablePageHandler(w http.ResponseWriter, r *http.Request) {
	prefix := "/play9/table/"
	if strings.HasPrefix(r.URL.Path, "/play9/player/") {
		prefix = "/play9/player/"
	}
	if _, gerr := pathTable(r, prefix); gerr != nil {
		writeGameError(w, gerr)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.StaticDir, "table.html"))
}

type joinRequest struct {
	TableName  string `json:"table_name"`
	PlayerName string `json:"player_name,omitempty"`
}

type joinResponse struct {
	TableName string `json:"table_name"`
	PlayerID  string `json:"player_id,omitempty"`
}

// JoinHandler seats a player at a table, creating the table on first touch.
// An empty player name enters as a spectator view only.
func (s *Server) JoinHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, game.ErrInvalidInput, "malformed JSON body")
		return
	}
	tableName, gerr := game.ValidateTableName(req.TableName)
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

	if strings.TrimSpace(req.PlayerName) == "" {
		writeJSON(w, http.StatusOK, joinResponse{TableName: tableName})
		return
	}

	playerName, gerr := game.ValidatePlayerName(req.PlayerName)
	if gerr != nil {
		writeGameError(w, gerr)
		return
	}
	playerID, gerr := tbl.Session.Join(playerName)
	if gerr != nil {
		writeGameError(w, gerr)
		return
	}
	if tbl.Hub.IsPlayerConnected(playerID) {
		writeError(w, http.StatusBadRequest, game.ErrAlreadyConnected, "player already connected elsewhere")
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{TableName: tableName, PlayerID: playerID.String()})
}

type leaveRequest struct {
	TableName string `json:"table_name"`
	PlayerID  string `json:"player_id"`
}

// LeaveHandler removes a player from a table. Idempotent: leaving a table
// you are not at, or one that does not exist, succeeds.
func (s *Server) LeaveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req leaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, game.ErrInvalidInput, "malformed JSON body")
		return
	}
	tableName, gerr := game.ValidateTableName(req.TableName)
	if gerr != nil {
		writeGameError(w, gerr)
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, game.ErrInvalidInput, "invalid player_id")
		return
	}
	tbl, ok := s.Registry.Get(tableName)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if gerr := tbl.Session.Do(models.Intent{Type: models.IntentLeave, Actor: playerID}); gerr != nil {
		writeGameError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// StateHandler returns the current snapshot as JSON (spectator view), for
// polling or websocket fallback.
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	tableName, gerr := pathTable(r, "/play9/api/table/")
	if gerr != nil {
		writeGameError(w, gerr)
		return
	}
	tbl, ok := s.Registry.Get(tableName)
	if !ok {
		writeJSON(w, http.StatusOK, models.EmptySnapshot(tableName))
		return
	}
	writeJSON(w, http.StatusOK, tbl.Session.Snapshot())
}
