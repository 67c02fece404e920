// internal/models/intent.go
package models

import (
	"github.com/google/uuid"
)

// IntentType enumerates every client-originated message the engine or
// session understands.
type IntentType string

const (
	IntentJoin                 IntentType = "join"
	IntentLeave                IntentType = "leave"
	IntentStart                IntentType = "start"
	IntentReveal               IntentType = "reveal"
	IntentDrawFromDraw         IntentType = "draw_from_draw"
	IntentDrawFromDiscard      IntentType = "draw_from_discard"
	IntentPlayReplace          IntentType = "play_replace"
	IntentPlayDiscardOnly      IntentType = "play_discard_only"
	IntentPlayDiscardFlip      IntentType = "play_discard_flip"
	IntentPlayFlipAfterDiscard IntentType = "play_flip_after_discard"
	IntentPlayPutBack          IntentType = "play_put_back"
	IntentAdvanceScoring       IntentType = "advance_scoring"
	IntentRequestRestart       IntentType = "request_restart"
	IntentVoteRestart          IntentType = "vote_restart"
	IntentVoteRestartNo        IntentType = "vote_restart_no"
	IntentHeartbeat            IntentType = "heartbeat"
)

// Intent is a decoded client message. Actor is never read from the wire; the
// websocket handler's read loop binds it to the connection's player id before
// the intent reaches the session.
type Intent struct {
	Type IntentType `json:"type"`

	// CardIndex targets a hand slot for reveal/replace/flip intents. A
	// pointer distinguishes "absent" from index 0.
	CardIndex *int `json:"card_index,omitempty"`

	// PlayerName is only meaningful for join.
	PlayerName string `json:"player_name,omitempty"`

	Actor uuid.UUID `json:"-"`
}

// RequiresActor reports whether the intent must be bound to a seated player.
// Spectator connections may only send intents for which this is false.
func (in Intent) RequiresActor() bool {
	return in.Type != IntentHeartbeat
}
