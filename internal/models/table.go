// internal/models/table.go
package models

import (
	"github.com/google/uuid"
)

// SnapshotVersion is the persisted-file schema version. Loaders skip files
// with a version they do not understand.
const SnapshotVersion = 1

// Phase is the table lifecycle phase.
type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseWaiting Phase = "waiting"
	PhaseReveal  Phase = "reveal"
	PhasePlay    Phase = "play"
	PhaseScoring Phase = "scoring"
)

// DrawSource records which pile the mid-turn drawn card came from.
type DrawSource string

const (
	DrawSourceDraw    DrawSource = "draw"
	DrawSourceDiscard DrawSource = "discard"
)

// MinPlayers and MaxPlayers bound the seats at one table. Tables of seven or
// eight use a third pack.
const (
	MinPlayers = 2
	MaxPlayers = 8
)

// TotalRounds is the number of holes in a full game.
const TotalRounds = 9

// TableState is the full authoritative state of one table. It is only ever
// mutated by the owning session's writer goroutine. Piles are ordered with
// the top card last.
type TableState struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Phase   Phase  `json:"phase"`

	// Players in join order; join order defines turn order.
	Players []*Player `json:"players"`

	DealerIdx        int `json:"dealer_idx"`
	CurrentPlayerIdx int `json:"current_player_idx"`

	DrawPile    []Card `json:"draw_pile"`
	DiscardPile []Card `json:"discard_pile"`

	// DrawnCard is held by the current player mid-turn, after a draw and
	// before placement. DrawnFrom constrains the legal placements.
	DrawnCard *Card      `json:"drawn_card,omitempty"`
	DrawnFrom DrawSource `json:"drawn_from,omitempty"`

	// MustFlipAfterDiscard is set when the current player drew from the draw
	// pile, discarded that card, and still has a face-down card to flip.
	MustFlipAfterDiscard bool `json:"must_flip_after_discard,omitempty"`

	// LastAffected points at the most recently mutated hand card.
	LastAffected *CardRef `json:"last_affected_card,omitempty"`

	RoundNum    int               `json:"round_num"`
	RoundScores map[uuid.UUID]int `json:"round_scores,omitempty"`
	Scores      map[uuid.UUID]int `json:"scores"`

	// FinalLapTriggerIdx is the seat of the player who first revealed all
	// eight cards; nil until that happens.
	FinalLapTriggerIdx *int `json:"final_lap_trigger_idx,omitempty"`

	// Restart vote. RestartRequestedBy is nil when no vote is pending.
	RestartRequestedBy *uuid.UUID         `json:"restart_requested_by,omitempty"`
	RestartRequestedAt int64              `json:"restart_requested_at,omitempty"`
	RestartYesVotes    map[uuid.UUID]bool `json:"restart_yes_votes,omitempty"`

	// Presence. Not persisted: a restored table starts with nobody
	// connected.
	ActivePlayerIDs  map[uuid.UUID]bool  `json:"-"`
	PlayerLastActive map[uuid.UUID]int64 `json:"-"`
}

// NewTableState returns an empty table with presence maps initialized.
func NewTableState(name string) *TableState {
	return &TableState{
		Version:          SnapshotVersion,
		Name:             name,
		Phase:            PhaseEmpty,
		Scores:           make(map[uuid.UUID]int),
		ActivePlayerIDs:  make(map[uuid.UUID]bool),
		PlayerLastActive: make(map[uuid.UUID]int64),
	}
}

// EnsureMaps re-establishes maps that may be nil after JSON decoding.
func (t *TableState) EnsureMaps() {
	if t.Scores == nil {
		t.Scores = make(map[uuid.UUID]int)
	}
	if t.ActivePlayerIDs == nil {
		t.ActivePlayerIDs = make(map[uuid.UUID]bool)
	}
	if t.PlayerLastActive == nil {
		t.PlayerLastActive = make(map[uuid.UUID]int64)
	}
}

// PlayerIndex returns the seat index for a player id, or -1.
func (t *TableState) PlayerIndex(id uuid.UUID) int {
	for i, p := range t.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// PlayerByID returns the seated player with the given id, or nil.
func (t *TableState) PlayerByID(id uuid.UUID) *Player {
	if i := t.PlayerIndex(id); i >= 0 {
		return t.Players[i]
	}
	return nil
}

// PlayerByName returns the seated player with the given display name, or nil.
func (t *TableState) PlayerByName(name string) *Player {
	for _, p := range t.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// CurrentPlayer returns the active turn holder, or nil outside of a round.
func (t *TableState) CurrentPlayer() *Player {
	if t.CurrentPlayerIdx < 0 || t.CurrentPlayerIdx >= len(t.Players) {
		return nil
	}
	return t.Players[t.CurrentPlayerIdx]
}

// Clone returns a deep copy of the table, presence included. The session
// uses it to roll back an intent whose persistence failed.
func (t *TableState) Clone() *TableState {
	c := *t
	c.Players = make([]*Player, len(t.Players))
	for i, p := range t.Players {
		pc := *p
		pc.Hand = append([]Card(nil), p.Hand...)
		c.Players[i] = &pc
	}
	c.DrawPile = append([]Card(nil), t.DrawPile...)
	c.DiscardPile = append([]Card(nil), t.DiscardPile...)
	if t.DrawnCard != nil {
		dc := *t.DrawnCard
		c.DrawnCard = &dc
	}
	if t.LastAffected != nil {
		la := *t.LastAffected
		c.LastAffected = &la
	}
	if t.FinalLapTriggerIdx != nil {
		v := *t.FinalLapTriggerIdx
		c.FinalLapTriggerIdx = &v
	}
	if t.RestartRequestedBy != nil {
		v := *t.RestartRequestedBy
		c.RestartRequestedBy = &v
	}
	c.RoundScores = copyIntMap(t.RoundScores)
	c.Scores = copyIntMap(t.Scores)
	if t.RestartYesVotes != nil {
		c.RestartYesVotes = make(map[uuid.UUID]bool, len(t.RestartYesVotes))
		for k, v := range t.RestartYesVotes {
			c.RestartYesVotes[k] = v
		}
	}
	c.ActivePlayerIDs = make(map[uuid.UUID]bool, len(t.ActivePlayerIDs))
	for k, v := range t.ActivePlayerIDs {
		c.ActivePlayerIDs[k] = v
	}
	c.PlayerLastActive = make(map[uuid.UUID]int64, len(t.PlayerLastActive))
	for k, v := range t.PlayerLastActive {
		c.PlayerLastActive[k] = v
	}
	return &c
}

func copyIntMap(m map[uuid.UUID]int) map[uuid.UUID]int {
	if m == nil {
		return nil
	}
	out := make(map[uuid.UUID]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CardCount totals every card in the table: piles, hands, and the drawn card.
// It must always equal the deck size for the seated player count.
func (t *TableState) CardCount() int {
	n := len(t.DrawPile) + len(t.DiscardPile)
	for _, p := range t.Players {
		n += len(p.Hand)
	}
	if t.DrawnCard != nil {
		n++
	}
	return n
}
