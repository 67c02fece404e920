// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/playnine/internal/game"
)

// errorBody is the JSON shape of every rejected HTTP request.
type errorBody struct {
	Error  game.ErrorKind `json:"error"`
	Detail string         `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeGameError maps an engine rejection onto an HTTP response.
func writeGameError(w http.ResponseWriter, gerr *game.Error) {
	status := http.StatusBadRequest
	if gerr.Kind == game.ErrInternal {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: gerr.Kind, Detail: gerr.Message})
}

func writeError(w http.ResponseWriter, status int, kind game.ErrorKind, detail string) {
	writeJSON(w, status, errorBody{Error: kind, Detail: detail})
}
