// internal/models/snapshot.go
package models

import (
	"sort"
)

// SnapshotPlayer is one seat as observers see it: face-down values masked.
type SnapshotPlayer struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Hand           []Card `json:"hand"`
	RevealedCount  int    `json:"revealed_count"`
	FinalTurnTaken bool   `json:"final_turn_taken,omitempty"`
	Connected      bool   `json:"connected"`
}

// Snapshot is the full observer view of a table, broadcast after every
// committed transition. One snapshot serves every subscriber: the server
// never leaks a face-down value to anyone, including the card's owner.
type Snapshot struct {
	Name             string           `json:"name"`
	Phase            Phase            `json:"phase"`
	Players          []SnapshotPlayer `json:"players"`
	DealerIdx        int              `json:"dealer_idx"`
	CurrentPlayerIdx int              `json:"current_player_idx"`
	RoundNum         int              `json:"round_num"`

	DrawPileCount    int   `json:"draw_pile_count"`
	DiscardPileCount int   `json:"discard_pile_count"`
	// DiscardPileTop holds up to the two topmost discard values, top first.
	DiscardPileTop []int `json:"discard_pile_top"`

	// DrawnCard is visible to all observers: revealing the draw is part of
	// the gesture, and a discard-drawn card was already face-up.
	DrawnCard *Card      `json:"drawn_card,omitempty"`
	DrawnFrom DrawSource `json:"drawn_from,omitempty"`

	MustFlipAfterDiscard bool     `json:"must_flip_after_discard,omitempty"`
	LastAffected         *CardRef `json:"last_affected_card,omitempty"`

	RoundScores map[string]int `json:"round_scores,omitempty"`
	Scores      map[string]int `json:"scores"`

	FinalLapTriggerIdx *int `json:"final_lap_trigger_idx,omitempty"`

	RestartRequestedBy *string  `json:"restart_requested_by,omitempty"`
	RestartRequestedAt int64    `json:"restart_requested_at,omitempty"`
	RestartYesVotes    []string `json:"restart_yes_votes,omitempty"`

	ActivePlayerIDs  []string         `json:"active_player_ids"`
	PlayerLastActive map[string]int64 `json:"player_last_active,omitempty"`

	// InactiveTurnName names the player whose idle turn was just forced by
	// the server, so observers can surface the timeout.
	InactiveTurnName string `json:"inactive_turn_name,omitempty"`
}

// PlayerIndexByID returns the seat index for a player id string, or -1.
func (s *Snapshot) PlayerIndexByID(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// maskCard redacts the value of a face-down card.
func maskCard(c Card) Card {
	if c.FaceUp {
		return c
	}
	return Card{Value: FaceDownMask, FaceUp: false}
}

// BuildSnapshot renders the observer view of a table. Redaction happens
// here, at serialization time; the state itself always holds real values.
func BuildSnapshot(t *TableState) *Snapshot {
	snap := &Snapshot{
		Name:                 t.Name,
		Phase:                t.Phase,
		DealerIdx:            t.DealerIdx,
		CurrentPlayerIdx:     t.CurrentPlayerIdx,
		RoundNum:             t.RoundNum,
		DrawPileCount:        len(t.DrawPile),
		DiscardPileCount:     len(t.DiscardPile),
		DiscardPileTop:       []int{},
		MustFlipAfterDiscard: t.MustFlipAfterDiscard,
		LastAffected:         t.LastAffected,
		FinalLapTriggerIdx:   t.FinalLapTriggerIdx,
		RestartRequestedAt:   t.RestartRequestedAt,
		Scores:               make(map[string]int, len(t.Scores)),
		ActivePlayerIDs:      []string{},
	}

	for i := len(t.DiscardPile) - 1; i >= 0 && len(snap.DiscardPileTop) < 2; i-- {
		snap.DiscardPileTop = append(snap.DiscardPileTop, t.DiscardPile[i].Value)
	}

	for _, p := range t.Players {
		sp := SnapshotPlayer{
			ID:             p.ID.String(),
			Name:           p.Name,
			Hand:           make([]Card, len(p.Hand)),
			RevealedCount:  p.RevealedCount,
			FinalTurnTaken: p.FinalTurnTaken,
			Connected:      t.ActivePlayerIDs[p.ID],
		}
		for i, c := range p.Hand {
			sp.Hand[i] = maskCard(c)
		}
		snap.Players = append(snap.Players, sp)
	}

	if t.DrawnCard != nil {
		c := *t.DrawnCard
		c.FaceUp = true
		snap.DrawnCard = &c
		snap.DrawnFrom = t.DrawnFrom
	}

	for id, s := range t.Scores {
		snap.Scores[id.String()] = s
	}
	if len(t.RoundScores) > 0 {
		snap.RoundScores = make(map[string]int, len(t.RoundScores))
		for id, s := range t.RoundScores {
			snap.RoundScores[id.String()] = s
		}
	}

	if t.RestartRequestedBy != nil {
		by := t.RestartRequestedBy.String()
		snap.RestartRequestedBy = &by
		for id, yes := range t.RestartYesVotes {
			if yes {
				snap.RestartYesVotes = append(snap.RestartYesVotes, id.String())
			}
		}
		sort.Strings(snap.RestartYesVotes)
	}

	for id, active := range t.ActivePlayerIDs {
		if active {
			snap.ActivePlayerIDs = append(snap.ActivePlayerIDs, id.String())
		}
	}
	sort.Strings(snap.ActivePlayerIDs)

	if len(t.PlayerLastActive) > 0 {
		snap.PlayerLastActive = make(map[string]int64, len(t.PlayerLastActive))
		for id, ts := range t.PlayerLastActive {
			snap.PlayerLastActive[id.String()] = ts
		}
	}

	return snap
}

// EmptySnapshot is the view of a table that has no players or does not exist
// yet.
func EmptySnapshot(name string) *Snapshot {
	return &Snapshot{
		Name:            name,
		Phase:           PhaseEmpty,
		Players:         []SnapshotPlayer{},
		DrawPileCount:   DeckSizeFor(MinPlayers),
		DiscardPileTop:  []int{},
		Scores:          map[string]int{},
		ActivePlayerIDs: []string{},
	}
}
