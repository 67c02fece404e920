// internal/session/session.go
//
// A Session owns one table's authoritative state. Every intent, timer fire,
// and presence change is funneled through a single writer goroutine, so at
// most one engine transition per table is ever in flight. Committed
// transitions are persisted, then broadcast; rejections go back to the
// originating connection only.
package session

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/playnine/internal/cache"
	"github.com/jason-s-yu/playnine/internal/game"
	"github.com/jason-s-yu/playnine/internal/models"
	"github.com/jason-s-yu/playnine/internal/store"
)

const intentQueueSize = 64

// Options tunes one session. Zero values fall back to sane defaults.
type Options struct {
	IdleTurnTimeout    time.Duration
	RestartVoteTimeout time.Duration

	// PublishFn receives a record for every committed intent. Nil disables
	// the historian feed. Publishing is best-effort and never rejects an
	// intent.
	PublishFn func(context.Context, cache.TableActionRecord) error

	// Rand seeds the engine; nil gets a time-seeded source. Tests pass a
	// fixed seed for deterministic shuffles.
	Rand *rand.Rand

	// Clock is swappable for tests.
	Clock func() time.Time
}

func (o *Options) fillDefaults() {
	if o.IdleTurnTimeout == 0 {
		o.IdleTurnTimeout = 60 * time.Second
	}
	if o.RestartVoteTimeout == 0 {
		o.RestartVoteTimeout = 30 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

type op int

const (
	opIntent op = iota
	opJoin
	opAttach
	opDetach
	opSnapshot
	opForceTurn
	opRestartExpire
	opStop
)

type joinResult struct {
	playerID uuid.UUID
	err      *game.Error
}

type envelope struct {
	op       op
	intent   models.Intent
	name     string
	playerID uuid.UUID
	gen      int

	errc  chan *game.Error
	joinc chan joinResult
	snapc chan *models.Snapshot
}

// Session is the single-writer owner of a table's state, timers, and
// snapshot file.
type Session struct {
	name   string
	logger *logrus.Entry

	eng   *game.Engine
	state *models.TableState
	store *store.SnapshotStore
	opts  Options

	// BroadcastFn fans a committed snapshot out to every subscriber. Wired
	// before Start; nil drops broadcasts (tests).
	BroadcastFn func(*models.Snapshot)

	// OnEmpty is invoked (on its own goroutine) when the last player leaves
	// and the table returns to empty.
	OnEmpty func()

	intents chan envelope
	stopped chan struct{}

	turnTimer    *time.Timer
	turnGen      int
	restartTimer *time.Timer
	restartGen   int
	// restartSeenAt is when the pending restart vote was first scheduled,
	// at full clock precision (RestartRequestedAt holds whole seconds).
	restartSeenAt time.Time

	// turnHolder/turnStartedAt track when the turn last changed hands, so a
	// fresh turn holder always gets a full timeout window even if their
	// recorded activity is old.
	turnHolder    uuid.UUID
	turnStartedAt time.Time

	actionIndex int
	lastTouched atomic.Int64
}

// New builds a session around an existing state. The caller sets BroadcastFn
// and OnEmpty before calling Start.
func New(name string, st *models.TableState, snapshots *store.SnapshotStore, logger *logrus.Logger, opts Options) *Session {
	opts.fillDefaults()
	st.EnsureMaps()
	s := &Session{
		name:    name,
		logger:  logger.WithField("table", name),
		eng:     game.NewEngineWithClock(opts.Rand, opts.Clock),
		state:   st,
		store:   snapshots,
		opts:    opts,
		intents: make(chan envelope, intentQueueSize),
		stopped: make(chan struct{}),
	}
	s.lastTouched.Store(opts.Clock().Unix())
	return s
}

// Name returns the table name.
func (s *Session) Name() string { return s.name }

// LastTouched is the unix time of the last processed envelope, for the
// registry's idle sweep.
func (s *Session) LastTouched() time.Time {
	return time.Unix(s.lastTouched.Load(), 0)
}

// Start launches the writer goroutine.
func (s *Session) Start() {
	go s.run()
}

// Stop halts the writer after the queue drains to it. Idempotent.
func (s *Session) Stop() {
	select {
	case <-s.stopped:
		return
	default:
	}
	s.post(envelope{op: opStop})
	<-s.stopped
}

// post enqueues an envelope unless the session has stopped.
func (s *Session) post(env envelope) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.intents <- env:
		return true
	case <-s.stopped:
		return false
	}
}

// Do applies one intent synchronously and returns its rejection, if any.
func (s *Session) Do(in models.Intent) *game.Error {
	errc := make(chan *game.Error, 1)
	if !s.post(envelope{op: opIntent, intent: in, errc: errc}) {
		return &game.Error{Kind: game.ErrInternal, Message: "table is shutting down"}
	}
	return <-errc
}

// Join seats a player by name, reusing an existing seat when the name is
// already at the table. Returns the player's id.
func (s *Session) Join(name string) (uuid.UUID, *game.Error) {
	joinc := make(chan joinResult, 1)
	if !s.post(envelope{op: opJoin, name: name, joinc: joinc}) {
		return uuid.Nil, &game.Error{Kind: game.ErrInternal, Message: "table is shutting down"}
	}
	res := <-joinc
	return res.playerID, res.err
}

// Attach marks a player's connection as live.
func (s *Session) Attach(playerID uuid.UUID) {
	s.post(envelope{op: opAttach, playerID: playerID})
}

// Detach marks a player's connection as gone. The player stays seated.
func (s *Session) Detach(playerID uuid.UUID) {
	s.post(envelope{op: opDetach, playerID: playerID})
}

// Snapshot returns the current observer view.
func (s *Session) Snapshot() *models.Snapshot {
	snapc := make(chan *models.Snapshot, 1)
	if !s.post(envelope{op: opSnapshot, snapc: snapc}) {
		return models.EmptySnapshot(s.name)
	}
	return <-snapc
}

// PlayerCount reports seated players via the writer, for the registry sweep.
func (s *Session) PlayerCount() int {
	return len(s.Snapshot().Players)
}

func (s *Session) run() {
	for env := range s.intents {
		s.lastTouched.Store(s.opts.Clock().Unix())
		switch env.op {
		case opIntent:
			s.handleIntent(env)
		case opJoin:
			s.handleJoin(env)
		case opAttach:
			s.handlePresence(env.playerID, true)
		case opDetach:
			s.handlePresence(env.playerID, false)
		case opSnapshot:
			env.snapc <- models.BuildSnapshot(s.state)
		case opForceTurn:
			s.handleForceTurn(env.gen)
		case opRestartExpire:
			s.handleRestartExpire(env.gen)
		case opStop:
			s.stopTimers()
			close(s.stopped)
			return
		}
	}
}

// handleIntent runs one client intent through the engine and commits it.
func (s *Session) handleIntent(env envelope) {
	in := env.intent

	if in.Type == models.IntentHeartbeat {
		s.handleHeartbeat(in)
		env.reply(nil)
		return
	}
	if in.Type == models.IntentJoin {
		// Seating goes through Join, which validates the name and reuses
		// existing seats.
		env.reply(&game.Error{Kind: game.ErrInvalidInput, Message: "join is not a table intent"})
		return
	}

	backup := s.state.Clone()
	ev, rerr := s.eng.Apply(s.state, in)
	if rerr != nil {
		env.reply(rerr)
		return
	}
	if in.Actor != uuid.Nil && s.state.PlayerByID(in.Actor) != nil {
		s.state.PlayerLastActive[in.Actor] = s.opts.Clock().Unix()
	}
	if perr := s.persist(); perr != nil {
		s.state = backup
		s.logger.Errorf("persist failed, intent %s rolled back: %v", in.Type, perr)
		env.reply(&game.Error{Kind: game.ErrInternal, Message: "failed to persist table state"})
		return
	}
	s.finishCommit([]*game.Event{ev}, "")
	env.reply(nil)
}

func (s *Session) handleJoin(env envelope) {
	if p := s.state.PlayerByName(env.name); p != nil {
		// Same name, same seat: hand, score, and id survive reconnects.
		env.joinc <- joinResult{playerID: p.ID}
		return
	}
	in := models.Intent{Type: models.IntentJoin, Actor: uuid.New(), PlayerName: env.name}
	backup := s.state.Clone()
	ev, rerr := s.eng.Apply(s.state, in)
	if rerr != nil {
		env.joinc <- joinResult{err: rerr}
		return
	}
	s.state.PlayerLastActive[in.Actor] = s.opts.Clock().Unix()
	if perr := s.persist(); perr != nil {
		s.state = backup
		s.logger.Errorf("persist failed, join rolled back: %v", perr)
		env.joinc <- joinResult{err: &game.Error{Kind: game.ErrInternal, Message: "failed to persist table state"}}
		return
	}
	s.finishCommit([]*game.Event{ev}, "")
	env.joinc <- joinResult{playerID: in.Actor}
}

func (s *Session) handleHeartbeat(in models.Intent) {
	if in.Actor == uuid.Nil {
		return
	}
	p := s.state.PlayerByID(in.Actor)
	if p == nil {
		return
	}
	s.state.PlayerLastActive[in.Actor] = s.opts.Clock().Unix()
	// Heartbeats reset the idle-turn countdown but change nothing visible,
	// so no broadcast.
	if s.state.CurrentPlayer() == p {
		s.scheduleTurnTimer()
	}
}

func (s *Session) handlePresence(playerID uuid.UUID, active bool) {
	if active {
		s.state.ActivePlayerIDs[playerID] = true
		s.state.PlayerLastActive[playerID] = s.opts.Clock().Unix()
	} else {
		if !s.state.ActivePlayerIDs[playerID] {
			return
		}
		delete(s.state.ActivePlayerIDs, playerID)
	}
	s.broadcast("")
	s.scheduleTurnTimer()
}

// handleForceTurn synthesizes the minimum legal action for a player who sat
// through their whole turn window: draw from draw, discard it, and flip the
// first face-down card if the discard demands one.
func (s *Session) handleForceTurn(gen int) {
	if gen != s.turnGen {
		return
	}
	if s.state.Phase != models.PhasePlay {
		return
	}
	cur := s.state.CurrentPlayer()
	if cur == nil {
		return
	}
	deadline := s.turnBasis(cur.ID).Add(s.opts.IdleTurnTimeout)
	if s.opts.Clock().Before(deadline) {
		// Activity arrived while the timer was in flight.
		s.scheduleTurnTimer()
		return
	}

	backup := s.state.Clone()
	var events []*game.Event
	step := func(in models.Intent) bool {
		ev, rerr := s.eng.Apply(s.state, in)
		if rerr != nil {
			s.logger.Warnf("forced action %s rejected: %v", in.Type, rerr)
			return false
		}
		events = append(events, ev)
		return true
	}

	actor := cur.ID
	if !step(models.Intent{Type: models.IntentDrawFromDraw, Actor: actor}) {
		s.scheduleTurnTimer()
		return
	}
	step(models.Intent{Type: models.IntentPlayDiscardOnly, Actor: actor})
	if s.state.MustFlipAfterDiscard {
		for i, c := range cur.Hand {
			if !c.FaceUp {
				idx := i
				step(models.Intent{Type: models.IntentPlayFlipAfterDiscard, Actor: actor, CardIndex: &idx})
				break
			}
		}
	}

	s.state.PlayerLastActive[actor] = s.opts.Clock().Unix()
	if perr := s.persist(); perr != nil {
		s.state = backup
		s.logger.Errorf("persist failed, forced turn rolled back: %v", perr)
		s.scheduleTurnTimer()
		return
	}
	s.logger.WithField("player", cur.Name).Info("forced idle turn")
	s.finishCommit(events, cur.Name)
}

func (s *Session) handleRestartExpire(gen int) {
	if gen != s.restartGen {
		return
	}
	if s.state.RestartRequestedBy == nil {
		return
	}
	deadline := s.restartBasis().Add(s.opts.RestartVoteTimeout)
	if s.opts.Clock().Before(deadline) {
		s.scheduleRestartTimer()
		return
	}
	actor := *s.state.RestartRequestedBy
	backup := s.state.Clone()
	ev, rerr := s.eng.Apply(s.state, models.Intent{Type: models.IntentVoteRestartNo, Actor: actor})
	if rerr != nil {
		return
	}
	if perr := s.persist(); perr != nil {
		s.state = backup
		s.logger.Errorf("persist failed, restart expiry rolled back: %v", perr)
		return
	}
	s.logger.Info("restart vote expired")
	s.finishCommit([]*game.Event{ev}, "")
}

// finishCommit runs the after-commit fan-out: broadcast, historian feed,
// timer upkeep, and empty-table teardown.
func (s *Session) finishCommit(events []*game.Event, inactiveTurnName string) {
	s.broadcast(inactiveTurnName)
	s.publish(events)
	s.scheduleTurnTimer()
	s.scheduleRestartTimer()

	if len(s.state.Players) == 0 && s.state.Phase == models.PhaseEmpty && s.OnEmpty != nil {
		go s.OnEmpty()
	}
}

func (s *Session) broadcast(inactiveTurnName string) {
	if s.BroadcastFn == nil {
		return
	}
	snap := models.BuildSnapshot(s.state)
	snap.InactiveTurnName = inactiveTurnName
	s.BroadcastFn(snap)
}

func (s *Session) persist() error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.state)
}

func (s *Session) publish(events []*game.Event) {
	if s.opts.PublishFn == nil {
		return
	}
	for _, ev := range events {
		s.actionIndex++
		rec := cache.TableActionRecord{
			TableName:     s.name,
			ActionIndex:   s.actionIndex,
			ActorID:       ev.Actor,
			ActionType:    ev.Type,
			ActionPayload: ev.Payload,
			Timestamp:     s.opts.Clock().UnixMilli(),
		}
		go func(rec cache.TableActionRecord) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := s.opts.PublishFn(ctx, rec); err != nil {
				s.logger.Warnf("historian publish failed: %v", err)
			}
		}(rec)
	}
}

// scheduleTurnTimer (re)arms the idle-turn timer against the current
// player's last activity. Called only from the writer goroutine.
func (s *Session) scheduleTurnTimer() {
	s.turnGen++
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.state.Phase != models.PhasePlay {
		s.turnHolder = uuid.Nil
		return
	}
	cur := s.state.CurrentPlayer()
	if cur == nil {
		s.turnHolder = uuid.Nil
		return
	}
	if cur.ID != s.turnHolder {
		s.turnHolder = cur.ID
		s.turnStartedAt = s.opts.Clock()
	}
	deadline := s.turnBasis(cur.ID).Add(s.opts.IdleTurnTimeout)
	wait := deadline.Sub(s.opts.Clock())
	if wait < 0 {
		wait = 0
	}
	gen := s.turnGen
	s.turnTimer = time.AfterFunc(wait, func() {
		s.post(envelope{op: opForceTurn, gen: gen})
	})
}

// turnBasis is the countdown start for the current player: their last
// activity, or the moment the turn reached them, whichever is later.
func (s *Session) turnBasis(playerID uuid.UUID) time.Time {
	basis := time.Unix(s.state.PlayerLastActive[playerID], 0)
	if playerID == s.turnHolder && s.turnStartedAt.After(basis) {
		basis = s.turnStartedAt
	}
	return basis
}

// restartBasis is the countdown start for the pending restart vote: the
// precise moment it was first scheduled when that falls in the recorded
// request second, else the recorded second itself.
func (s *Session) restartBasis() time.Time {
	if s.restartSeenAt.Unix() == s.state.RestartRequestedAt {
		return s.restartSeenAt
	}
	return time.Unix(s.state.RestartRequestedAt, 0)
}

func (s *Session) scheduleRestartTimer() {
	s.restartGen++
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	if s.state.RestartRequestedBy == nil {
		s.restartSeenAt = time.Time{}
		return
	}
	if s.restartSeenAt.IsZero() {
		s.restartSeenAt = s.opts.Clock()
	}
	deadline := s.restartBasis().Add(s.opts.RestartVoteTimeout)
	wait := deadline.Sub(s.opts.Clock())
	if wait < 0 {
		wait = 0
	}
	gen := s.restartGen
	s.restartTimer = time.AfterFunc(wait, func() {
		s.post(envelope{op: opRestartExpire, gen: gen})
	})
}

func (s *Session) stopTimers() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

func (env envelope) reply(err *game.Error) {
	if env.errc != nil {
		env.errc <- err
	}
}
