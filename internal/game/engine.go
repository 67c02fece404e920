// internal/game/engine.go
//
// The engine is the pure state-transition core: given a table state and an
// intent it either commits a transition and returns an event describing it,
// or returns a rejection without touching the state. All validation happens
// before the first mutation. The engine never runs concurrently with itself
// on the same table; the owning session serializes every call.
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/playnine/internal/models"
)

// Event describes a committed transition, in the shape the historian queue
// expects.
type Event struct {
	Type    string                 `json:"type"`
	Actor   uuid.UUID              `json:"actor"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Engine applies intents to table states. The rng drives shuffles; a fixed
// seed makes every transition sequence deterministic, which the tests rely
// on. now is swappable for restart-vote timestamp tests.
type Engine struct {
	rng *rand.Rand
	now func() time.Time
}

// NewEngine builds an engine around the given rng. A nil rng gets a
// time-seeded source.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng, now: time.Now}
}

// NewEngineWithClock is NewEngine with an injected clock.
func NewEngineWithClock(rng *rand.Rand, now func() time.Time) *Engine {
	e := NewEngine(rng)
	if now != nil {
		e.now = now
	}
	return e
}

// Apply runs one intent against the table. On success the state has been
// mutated and the returned event describes the transition; on rejection the
// state is untouched.
func (e *Engine) Apply(t *models.TableState, in models.Intent) (*Event, *Error) {
	switch in.Type {
	case models.IntentJoin:
		return e.applyJoin(t, in)
	case models.IntentLeave:
		return e.applyLeave(t, in)
	case models.IntentStart:
		return e.applyStart(t, in)
	case models.IntentReveal:
		return e.applyReveal(t, in)
	case models.IntentDrawFromDraw:
		return e.applyDrawFromDraw(t, in)
	case models.IntentDrawFromDiscard:
		return e.applyDrawFromDiscard(t, in)
	case models.IntentPlayReplace:
		return e.applyPlayReplace(t, in)
	case models.IntentPlayDiscardOnly:
		return e.applyPlayDiscardOnly(t, in)
	case models.IntentPlayDiscardFlip:
		return e.applyPlayDiscardFlip(t, in)
	case models.IntentPlayFlipAfterDiscard:
		return e.applyPlayFlipAfterDiscard(t, in)
	case models.IntentPlayPutBack:
		return e.applyPlayPutBack(t, in)
	case models.IntentAdvanceScoring:
		return e.applyAdvanceScoring(t, in)
	case models.IntentRequestRestart:
		return e.applyRequestRestart(t, in)
	case models.IntentVoteRestart:
		return e.applyVoteRestart(t, in)
	case models.IntentVoteRestartNo:
		return e.applyVoteRestartNo(t, in)
	default:
		return nil, reject(ErrInvalidInput, "unknown intent type %q", in.Type)
	}
}

// --- membership ---

func (e *Engine) applyJoin(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.Phase != models.PhaseEmpty && t.Phase != models.PhaseWaiting {
		return nil, reject(ErrGameAlreadyStarted, "cannot join a table mid-game")
	}
	if len(t.Players) >= models.MaxPlayers {
		return nil, reject(ErrTableFull, "table already seats %d players", models.MaxPlayers)
	}
	if t.PlayerByName(in.PlayerName) != nil {
		return nil, reject(ErrInvalidName, "name %q is already seated", in.PlayerName)
	}
	p := &models.Player{ID: in.Actor, Name: in.PlayerName}
	t.Players = append(t.Players, p)
	if t.Phase == models.PhaseEmpty {
		t.Phase = models.PhaseWaiting
	}
	return &Event{
		Type:    string(models.IntentJoin),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"player_name": in.PlayerName},
	}, nil
}

func (e *Engine) applyLeave(t *models.TableState, in models.Intent) (*Event, *Error) {
	idx := t.PlayerIndex(in.Actor)
	if idx < 0 {
		// Leaving twice is the same as leaving once.
		return &Event{Type: string(models.IntentLeave), Actor: in.Actor}, nil
	}
	leaver := t.Players[idx]

	// The leaver's half-finished turn is abandoned: a pending drawn card
	// lands on the discard pile and any owed flip is forgiven.
	if idx == t.CurrentPlayerIdx {
		if t.DrawnCard != nil {
			c := *t.DrawnCard
			c.FaceUp = true
			t.DiscardPile = append(t.DiscardPile, c)
			t.DrawnCard = nil
			t.DrawnFrom = ""
		}
		t.MustFlipAfterDiscard = false
	}

	// Dealt cards return face-down to the bottom of the draw pile so the
	// deck stays whole.
	if len(leaver.Hand) > 0 {
		returned := make([]models.Card, 0, len(leaver.Hand))
		for _, c := range leaver.Hand {
			returned = append(returned, models.Card{Value: c.Value})
		}
		t.DrawPile = append(returned, t.DrawPile...)
	}

	t.Players = append(t.Players[:idx], t.Players[idx+1:]...)
	delete(t.Scores, in.Actor)
	delete(t.RoundScores, in.Actor)
	delete(t.ActivePlayerIDs, in.Actor)
	delete(t.PlayerLastActive, in.Actor)
	if t.LastAffected != nil && t.LastAffected.PlayerID == in.Actor.String() {
		t.LastAffected = nil
	}

	// Drop their restart vote; cancel the vote entirely if they asked for it.
	if t.RestartRequestedBy != nil {
		if *t.RestartRequestedBy == in.Actor {
			clearRestartVote(t)
		} else {
			delete(t.RestartYesVotes, in.Actor)
		}
	}

	n := len(t.Players)
	if n == 0 {
		resetToEmpty(t)
		return &Event{Type: string(models.IntentLeave), Actor: in.Actor}, nil
	}

	adjust := func(i int) int {
		if i > idx {
			i--
		}
		if i >= n {
			i = 0
		}
		return i
	}
	t.DealerIdx = adjust(t.DealerIdx)
	t.CurrentPlayerIdx = adjust(t.CurrentPlayerIdx)
	if t.FinalLapTriggerIdx != nil {
		if *t.FinalLapTriggerIdx == idx {
			// The trigger left; the final lap is off.
			t.FinalLapTriggerIdx = nil
			for _, p := range t.Players {
				p.FinalTurnTaken = false
			}
		} else {
			trig := adjust(*t.FinalLapTriggerIdx)
			t.FinalLapTriggerIdx = &trig
		}
	}

	inRound := t.Phase == models.PhaseReveal || t.Phase == models.PhasePlay || t.Phase == models.PhaseScoring
	if inRound && n < models.MinPlayers {
		resetToWaiting(t, false)
		return &Event{Type: string(models.IntentLeave), Actor: in.Actor}, nil
	}

	switch t.Phase {
	case models.PhaseReveal:
		if allRevealed(t) {
			t.Phase = models.PhasePlay
		}
	case models.PhasePlay:
		if t.FinalLapTriggerIdx != nil {
			if finalLapDone(t) {
				e.finishRound(t)
				break
			}
			// The turn must not land on the trigger or a player whose
			// extra turn is already spent.
			for t.CurrentPlayerIdx == *t.FinalLapTriggerIdx ||
				t.Players[t.CurrentPlayerIdx].FinalTurnTaken {
				t.CurrentPlayerIdx = (t.CurrentPlayerIdx + 1) % n
			}
		}
	}

	return &Event{Type: string(models.IntentLeave), Actor: in.Actor}, nil
}

// --- round lifecycle ---

func (e *Engine) applyStart(t *models.TableState, in models.Intent) (*Event, *Error) {
	switch t.Phase {
	case models.PhaseWaiting:
	case models.PhaseEmpty:
		return nil, reject(ErrWrongPhase, "table has no players")
	default:
		return nil, reject(ErrGameAlreadyStarted, "game already started")
	}
	if t.PlayerIndex(in.Actor) < 0 {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if len(t.Players) < models.MinPlayers {
		return nil, reject(ErrInvalidInput, "need at least %d players", models.MinPlayers)
	}
	e.deal(t, 1)
	return &Event{
		Type:    string(models.IntentStart),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"players": len(t.Players)},
	}, nil
}

func (e *Engine) applyReveal(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.Phase != models.PhaseReveal {
		return nil, reject(ErrWrongPhase, "not in reveal phase")
	}
	p := t.PlayerByID(in.Actor)
	if p == nil {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if p.RevealedCount >= 2 {
		return nil, reject(ErrIllegalTarget, "already revealed 2 cards")
	}
	idx, rerr := cardIndex(in)
	if rerr != nil {
		return nil, rerr
	}
	if p.Hand[idx].FaceUp {
		return nil, reject(ErrIllegalTarget, "card already face-up")
	}
	p.Hand[idx].FaceUp = true
	p.RevealedCount++
	t.LastAffected = &models.CardRef{PlayerID: in.Actor.String(), CardIndex: idx}
	if allRevealed(t) {
		t.Phase = models.PhasePlay
	}
	return &Event{
		Type:    string(models.IntentReveal),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"card_index": idx},
	}, nil
}

func (e *Engine) applyAdvanceScoring(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.Phase != models.PhaseScoring {
		return nil, reject(ErrWrongPhase, "not in scoring phase")
	}
	if t.PlayerIndex(in.Actor) < 0 {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if t.RoundNum >= models.TotalRounds {
		resetToWaiting(t, true)
		return &Event{Type: "game_over", Actor: in.Actor}, nil
	}
	e.deal(t, t.RoundNum+1)
	return &Event{
		Type:    string(models.IntentAdvanceScoring),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"round_num": t.RoundNum},
	}, nil
}

// --- turn actions ---

func (e *Engine) applyDrawFromDraw(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkTurnDraw(t, in); rerr != nil {
		return nil, rerr
	}
	if len(t.DrawPile) == 0 {
		e.reshuffleDiscards(t)
	}
	if len(t.DrawPile) == 0 {
		return nil, reject(ErrIllegalTarget, "draw pile empty")
	}
	card := t.DrawPile[len(t.DrawPile)-1]
	t.DrawPile = t.DrawPile[:len(t.DrawPile)-1]
	card.FaceUp = true
	t.DrawnCard = &card
	t.DrawnFrom = models.DrawSourceDraw
	if len(t.DrawPile) == 0 {
		e.reshuffleDiscards(t)
	}
	return &Event{Type: string(models.IntentDrawFromDraw), Actor: in.Actor}, nil
}

func (e *Engine) applyDrawFromDiscard(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkTurnDraw(t, in); rerr != nil {
		return nil, rerr
	}
	if len(t.DiscardPile) == 0 {
		return nil, reject(ErrIllegalTarget, "discard pile empty")
	}
	card := t.DiscardPile[len(t.DiscardPile)-1]
	t.DiscardPile = t.DiscardPile[:len(t.DiscardPile)-1]
	t.DrawnCard = &card
	t.DrawnFrom = models.DrawSourceDiscard
	return &Event{Type: string(models.IntentDrawFromDiscard), Actor: in.Actor}, nil
}

func (e *Engine) applyPlayReplace(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkDrawnCard(t, in); rerr != nil {
		return nil, rerr
	}
	idx, rerr := cardIndex(in)
	if rerr != nil {
		return nil, rerr
	}
	p := t.CurrentPlayer()
	old := p.Hand[idx]
	placed := *t.DrawnCard
	placed.FaceUp = true
	p.Hand[idx] = placed
	old.FaceUp = true
	t.DiscardPile = append(t.DiscardPile, old)
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.LastAffected = &models.CardRef{PlayerID: in.Actor.String(), CardIndex: idx}
	e.completeTurn(t)
	return &Event{
		Type:    string(models.IntentPlayReplace),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"card_index": idx},
	}, nil
}

func (e *Engine) applyPlayDiscardOnly(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkDrawnCard(t, in); rerr != nil {
		return nil, rerr
	}
	if t.DrawnFrom != models.DrawSourceDraw {
		return nil, reject(ErrIllegalTarget, "a card drawn from the discard pile must be played")
	}
	p := t.CurrentPlayer()
	t.DiscardPile = append(t.DiscardPile, *t.DrawnCard)
	t.DrawnCard = nil
	t.DrawnFrom = ""
	if p.FaceDownCount() > 0 {
		t.MustFlipAfterDiscard = true
	} else {
		e.completeTurn(t)
	}
	return &Event{Type: string(models.IntentPlayDiscardOnly), Actor: in.Actor}, nil
}

func (e *Engine) applyPlayDiscardFlip(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkDrawnCard(t, in); rerr != nil {
		return nil, rerr
	}
	if t.DrawnFrom != models.DrawSourceDraw {
		return nil, reject(ErrIllegalTarget, "a card drawn from the discard pile must be played")
	}
	idx, rerr := cardIndex(in)
	if rerr != nil {
		return nil, rerr
	}
	p := t.CurrentPlayer()
	if p.Hand[idx].FaceUp {
		return nil, reject(ErrIllegalTarget, "card already face-up")
	}
	t.DiscardPile = append(t.DiscardPile, *t.DrawnCard)
	t.DrawnCard = nil
	t.DrawnFrom = ""
	p.Hand[idx].FaceUp = true
	t.LastAffected = &models.CardRef{PlayerID: in.Actor.String(), CardIndex: idx}
	e.completeTurn(t)
	return &Event{
		Type:    string(models.IntentPlayDiscardFlip),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"card_index": idx},
	}, nil
}

func (e *Engine) applyPlayFlipAfterDiscard(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.Phase != models.PhasePlay {
		return nil, reject(ErrWrongPhase, "not in play phase")
	}
	if rerr := e.checkActorIsCurrent(t, in); rerr != nil {
		return nil, rerr
	}
	if !t.MustFlipAfterDiscard {
		return nil, reject(ErrIllegalTarget, "no flip required")
	}
	idx, rerr := cardIndex(in)
	if rerr != nil {
		return nil, rerr
	}
	p := t.CurrentPlayer()
	if p.Hand[idx].FaceUp {
		return nil, reject(ErrIllegalTarget, "card already face-up")
	}
	p.Hand[idx].FaceUp = true
	t.MustFlipAfterDiscard = false
	t.LastAffected = &models.CardRef{PlayerID: in.Actor.String(), CardIndex: idx}
	e.completeTurn(t)
	return &Event{
		Type:    string(models.IntentPlayFlipAfterDiscard),
		Actor:   in.Actor,
		Payload: map[string]interface{}{"card_index": idx},
	}, nil
}

func (e *Engine) applyPlayPutBack(t *models.TableState, in models.Intent) (*Event, *Error) {
	if rerr := e.checkDrawnCard(t, in); rerr != nil {
		return nil, rerr
	}
	if t.DrawnFrom != models.DrawSourceDiscard {
		return nil, reject(ErrIllegalTarget, "can only put back a card drawn from the discard pile")
	}
	c := *t.DrawnCard
	c.FaceUp = true
	t.DiscardPile = append(t.DiscardPile, c)
	t.DrawnCard = nil
	t.DrawnFrom = ""
	// Deliberately not a turn completion: putting the card back un-commits
	// the draw.
	return &Event{Type: string(models.IntentPlayPutBack), Actor: in.Actor}, nil
}

// --- restart voting ---

func (e *Engine) applyRequestRestart(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.PlayerIndex(in.Actor) < 0 {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if t.RestartRequestedBy != nil {
		return nil, reject(ErrIllegalTarget, "a restart vote is already pending")
	}
	actor := in.Actor
	t.RestartRequestedBy = &actor
	t.RestartRequestedAt = e.now().Unix()
	t.RestartYesVotes = map[uuid.UUID]bool{actor: true}
	return &Event{Type: string(models.IntentRequestRestart), Actor: in.Actor}, nil
}

func (e *Engine) applyVoteRestart(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.PlayerIndex(in.Actor) < 0 {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if t.RestartRequestedBy == nil {
		return nil, reject(ErrIllegalTarget, "no restart vote pending")
	}
	if t.RestartYesVotes == nil {
		t.RestartYesVotes = make(map[uuid.UUID]bool)
	}
	t.RestartYesVotes[in.Actor] = true
	for _, p := range t.Players {
		if t.ActivePlayerIDs[p.ID] && !t.RestartYesVotes[p.ID] {
			return &Event{Type: string(models.IntentVoteRestart), Actor: in.Actor}, nil
		}
	}
	// Every connected player said yes: same seats, fresh game.
	resetToWaiting(t, true)
	return &Event{Type: "restart", Actor: in.Actor}, nil
}

func (e *Engine) applyVoteRestartNo(t *models.TableState, in models.Intent) (*Event, *Error) {
	if t.PlayerIndex(in.Actor) < 0 {
		return nil, reject(ErrNotAPlayer, "not a player at this table")
	}
	if t.RestartRequestedBy == nil {
		return nil, reject(ErrIllegalTarget, "no restart vote pending")
	}
	clearRestartVote(t)
	return &Event{Type: string(models.IntentVoteRestartNo), Actor: in.Actor}, nil
}

// --- shared transition pieces ---

// deal shuffles a fresh deck and hands out eight cards per player. Round one
// seats the dealer at the last joiner; later rounds rotate the button.
func (e *Engine) deal(t *models.TableState, roundNum int) {
	n := len(t.Players)
	deck := BuildDeck(e.rng, n)
	for _, p := range t.Players {
		p.Hand = make([]models.Card, 0, models.HandSize)
		for i := 0; i < models.HandSize; i++ {
			p.Hand = append(p.Hand, deck[len(deck)-1])
			deck = deck[:len(deck)-1]
		}
		p.RevealedCount = 0
		p.FinalTurnTaken = false
	}
	top := deck[len(deck)-1]
	deck = deck[:len(deck)-1]
	top.FaceUp = true
	t.DrawPile = deck
	t.DiscardPile = []models.Card{top}
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.MustFlipAfterDiscard = false
	t.FinalLapTriggerIdx = nil
	t.RoundScores = nil
	t.LastAffected = nil
	clearRestartVote(t)
	if roundNum == 1 {
		t.DealerIdx = n - 1
	} else {
		t.DealerIdx = (t.DealerIdx + 1) % n
	}
	t.CurrentPlayerIdx = (t.DealerIdx + 1) % n
	t.RoundNum = roundNum
	t.Phase = models.PhaseReveal
}

// reshuffleDiscards rebuilds the draw pile from every discard except the
// top, which stays visible.
func (e *Engine) reshuffleDiscards(t *models.TableState) {
	if len(t.DiscardPile) <= 1 {
		return
	}
	top := t.DiscardPile[len(t.DiscardPile)-1]
	recycled := make([]models.Card, 0, len(t.DiscardPile)-1)
	for _, c := range t.DiscardPile[:len(t.DiscardPile)-1] {
		recycled = append(recycled, models.Card{Value: c.Value})
	}
	e.rng.Shuffle(len(recycled), func(i, j int) {
		recycled[i], recycled[j] = recycled[j], recycled[i]
	})
	t.DrawPile = append(t.DrawPile, recycled...)
	t.DiscardPile = []models.Card{top}
}

// completeTurn finishes the current player's turn: records final-lap
// bookkeeping, then either ends the round or passes the turn along.
func (e *Engine) completeTurn(t *models.TableState) {
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.MustFlipAfterDiscard = false

	idx := t.CurrentPlayerIdx
	n := len(t.Players)

	if t.FinalLapTriggerIdx != nil && *t.FinalLapTriggerIdx != idx {
		t.Players[idx].FinalTurnTaken = true
	}
	if t.FinalLapTriggerIdx == nil && t.Players[idx].AllFaceUp() {
		trigger := idx
		t.FinalLapTriggerIdx = &trigger
	}

	if t.FinalLapTriggerIdx != nil {
		if finalLapDone(t) {
			e.finishRound(t)
			return
		}
		next := (idx + 1) % n
		for next == *t.FinalLapTriggerIdx || t.Players[next].FinalTurnTaken {
			next = (next + 1) % n
		}
		t.CurrentPlayerIdx = next
		return
	}
	t.CurrentPlayerIdx = (idx + 1) % n
}

// finishRound flips everything that is still hidden, tallies the hole, and
// moves to scoring.
func (e *Engine) finishRound(t *models.TableState) {
	t.RoundScores = make(map[uuid.UUID]int, len(t.Players))
	for _, p := range t.Players {
		for i := range p.Hand {
			p.Hand[i].FaceUp = true
		}
		s := ScoreHand(p.Hand)
		t.RoundScores[p.ID] = s
		t.Scores[p.ID] += s
	}
	t.Phase = models.PhaseScoring
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.MustFlipAfterDiscard = false
	t.FinalLapTriggerIdx = nil
}

// finalLapDone reports whether every non-trigger player has taken their one
// extra turn.
func finalLapDone(t *models.TableState) bool {
	for i, p := range t.Players {
		if i == *t.FinalLapTriggerIdx {
			continue
		}
		if !p.FinalTurnTaken {
			return false
		}
	}
	return true
}

func allRevealed(t *models.TableState) bool {
	for _, p := range t.Players {
		if p.RevealedCount < 2 {
			return false
		}
	}
	return true
}

func clearRestartVote(t *models.TableState) {
	t.RestartRequestedBy = nil
	t.RestartRequestedAt = 0
	t.RestartYesVotes = nil
}

func resetToEmpty(t *models.TableState) {
	t.Phase = models.PhaseEmpty
	t.Players = nil
	t.DealerIdx = 0
	t.CurrentPlayerIdx = 0
	t.DrawPile = nil
	t.DiscardPile = nil
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.MustFlipAfterDiscard = false
	t.LastAffected = nil
	t.RoundNum = 0
	t.RoundScores = nil
	t.Scores = make(map[uuid.UUID]int)
	t.FinalLapTriggerIdx = nil
	clearRestartVote(t)
}

// resetToWaiting keeps the seats and returns the table to the lobby state.
func resetToWaiting(t *models.TableState, clearScores bool) {
	t.Phase = models.PhaseWaiting
	for _, p := range t.Players {
		p.Hand = nil
		p.RevealedCount = 0
		p.FinalTurnTaken = false
	}
	t.DealerIdx = 0
	t.CurrentPlayerIdx = 0
	t.DrawPile = nil
	t.DiscardPile = nil
	t.DrawnCard = nil
	t.DrawnFrom = ""
	t.MustFlipAfterDiscard = false
	t.LastAffected = nil
	t.RoundNum = 0
	t.RoundScores = nil
	t.FinalLapTriggerIdx = nil
	clearRestartVote(t)
	if clearScores {
		t.Scores = make(map[uuid.UUID]int)
	}
}

// --- validation helpers ---

func (e *Engine) checkActorIsCurrent(t *models.TableState, in models.Intent) *Error {
	idx := t.PlayerIndex(in.Actor)
	if idx < 0 {
		return reject(ErrNotAPlayer, "not a player at this table")
	}
	if idx != t.CurrentPlayerIdx {
		return reject(ErrNotYourTurn, "not your turn")
	}
	return nil
}

// checkTurnDraw guards both draw intents: play phase, current player, no
// card already in hand, no pending forced flip.
func (e *Engine) checkTurnDraw(t *models.TableState, in models.Intent) *Error {
	if t.Phase != models.PhasePlay {
		return reject(ErrWrongPhase, "not in play phase")
	}
	if rerr := e.checkActorIsCurrent(t, in); rerr != nil {
		return rerr
	}
	if t.DrawnCard != nil {
		return reject(ErrIllegalTarget, "already drew a card this turn")
	}
	if t.MustFlipAfterDiscard {
		return reject(ErrIllegalTarget, "must flip a card before drawing again")
	}
	return nil
}

// checkDrawnCard guards the placement intents, which all require a drawn
// card in the current player's hand.
func (e *Engine) checkDrawnCard(t *models.TableState, in models.Intent) *Error {
	if t.Phase != models.PhasePlay {
		return reject(ErrWrongPhase, "not in play phase")
	}
	if rerr := e.checkActorIsCurrent(t, in); rerr != nil {
		return rerr
	}
	if t.DrawnCard == nil {
		return reject(ErrIllegalTarget, "no card drawn")
	}
	return nil
}

func cardIndex(in models.Intent) (int, *Error) {
	if in.CardIndex == nil {
		return 0, reject(ErrInvalidInput, "card_index is required")
	}
	idx := *in.CardIndex
	if idx < 0 || idx >= models.HandSize {
		return 0, reject(ErrInvalidInput, "card_index %d out of range", idx)
	}
	return idx, nil
}
