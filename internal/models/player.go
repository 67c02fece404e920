// internal/models/player.go
package models

import (
	"github.com/google/uuid"
)

// HandSize is the fixed number of cards dealt to each player. The hand is
// laid out as four columns of two: column c holds indices c (top) and c+4
// (bottom).
const HandSize = 8

// Player is one seat at a table. A player remains seated while disconnected;
// presence is tracked separately on TableState.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Hand []Card    `json:"hand"`

	// RevealedCount tracks how many cards the player has flipped during the
	// reveal phase (0..2).
	RevealedCount int `json:"revealed_count"`

	// FinalTurnTaken marks that this player has played their one extra turn
	// of the final lap.
	FinalTurnTaken bool `json:"final_turn_taken,omitempty"`
}

// FaceDownCount returns how many of the player's cards are still hidden.
func (p *Player) FaceDownCount() int {
	n := 0
	for _, c := range p.Hand {
		if !c.FaceUp {
			n++
		}
	}
	return n
}

// AllFaceUp reports whether the player has revealed their entire hand.
func (p *Player) AllFaceUp() bool {
	if len(p.Hand) != HandSize {
		return false
	}
	return p.FaceDownCount() == 0
}
