// internal/room/room.go
package room

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

// Phase is the explicit state tag of a room's question lifecycle. Keeping it
// as a tag (instead of inferring state from nullable fields) makes illegal
// combinations like "paused with no active question" unrepresentable.
type Phase int

const (
	// PhaseLobby means no round is in progress.
	PhaseLobby Phase = iota
	// PhaseActive means a question window is open and admitting answers.
	PhaseActive
	// PhasePaused means the window is frozen; the remaining time is captured
	// and no answers are admitted.
	PhasePaused
)

const (
	minQuestionDurationSec     = 5
	defaultQuestionDurationSec = 20
	maxQuestionOptions         = 6

	// minResumeWindow guarantees players a beat to answer after a resume even
	// if the round was paused at the deadline edge.
	minResumeWindow = time.Second

	roundLeaderboardSize  = 10
	scoresLeaderboardSize = 50
	finalLeaderboardSize  = 20

	defaultPlayerName       = "Player"
	defaultInterstitialText = "Next question coming up..."
)

// Room is one live quiz session: roster, current question window, pause
// state, and scores. All mutations happen under Mu and are triggered only by
// events from the recorded host connection or the room's own players; every
// other caller is silently ignored.
type Room struct {
	PIN string

	// HostConn is the single connection allowed to drive state transitions.
	// Set at creation, never reassigned.
	HostConn uuid.UUID

	Meta models.RoomMeta

	players map[uuid.UUID]*models.Player
	// order remembers roster insertion order; leaderboard ties are broken by it.
	order []uuid.UUID

	phase          Phase
	current        *models.Question
	endsAt         time.Time
	pauseRemaining time.Duration
	ended          bool

	clock clockwork.Clock
	Mu    sync.Mutex

	// BroadcastFn sends an event to every connection subscribed to this room.
	// Called with Mu held; implementations must not block.
	BroadcastFn func(ev Event)
	// ToConnFn sends an event to a single connection. Same contract.
	ToConnFn func(connID uuid.UUID, ev Event)

	// OnEnd is invoked exactly once when the room reaches its terminal state,
	// after Mu has been released. Typically removes the room from its registry.
	OnEnd func(pin string)
}

// NewRoom constructs a room in the lobby phase with an empty roster.
func NewRoom(pin string, hostConn uuid.UUID, title string, clock clockwork.Clock) *Room {
	if strings.TrimSpace(title) == "" {
		title = "New Quiz"
	}
	return &Room{
		PIN:      pin,
		HostConn: hostConn,
		Meta:     models.RoomMeta{Title: title},
		players:  make(map[uuid.UUID]*models.Player),
		clock:    clock,
	}
}

func (r *Room) broadcast(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

func (r *Room) toConn(connID uuid.UUID, ev Event) {
	if r.ToConnFn != nil {
		r.ToConnFn(connID, ev)
	}
}

// Phase returns the current lifecycle phase.
func (r *Room) Phase() Phase {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.phase
}

// Ended reports whether the room reached its terminal state.
func (r *Room) Ended() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.ended
}

// HasPlayer reports whether connID is a known player of the room.
func (r *Room) HasPlayer(connID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	_, ok := r.players[connID]
	return ok
}

// Player returns a copy of the player for connID.
func (r *Room) Player(connID uuid.UUID) (models.Player, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// Join adds a connection to the roster and broadcasts the updated player
// list. Valid any time before the room ends, including mid-round: a late
// joiner starts at zero and simply cannot have answered the current round.
func (r *Room) Join(connID uuid.UUID, name string) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended {
		return
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPlayerName
	}
	if _, known := r.players[connID]; !known {
		r.order = append(r.order, connID)
	}
	r.players[connID] = &models.Player{Name: name}

	r.broadcast(Event{"type": EventRoomPlayers, "players": r.rosterUnsafe()})
	r.toConn(connID, Event{"type": EventPlayerJoined, "pin": r.PIN})
}

// RemovePlayer drops a player from the roster (disconnect path) and
// broadcasts the updated roster. The round, if any, stays active.
func (r *Room) RemovePlayer(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended {
		return
	}
	if _, known := r.players[connID]; !known {
		return
	}
	delete(r.players, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.broadcast(Event{"type": EventRoomPlayers, "players": r.rosterUnsafe()})
}

// StartQuestion opens a new question window. Host only. Starting while a
// round is already active silently overwrites it and resets all answers;
// that is intentional, so a host can recover from a stuck round.
func (r *Room) StartQuestion(connID uuid.UUID, spec models.QuestionSpec) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn {
		return
	}

	durationSec := spec.DurationSec
	if durationSec <= 0 {
		durationSec = defaultQuestionDurationSec
	}
	if durationSec < minQuestionDurationSec {
		durationSec = minQuestionDurationSec
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	qType := spec.Type
	if qType == "" {
		qType = "mc"
	}
	options := spec.Options
	if len(options) > maxQuestionOptions {
		options = options[:maxQuestionOptions]
	}

	now := r.clock.Now()
	r.current = &models.Question{
		ID:           id,
		Text:         spec.Text,
		Type:         qType,
		Options:      options,
		CorrectIndex: spec.CorrectIndex,
		StartedAt:    now.UnixMilli(),
		DurationSec:  durationSec,
	}
	r.endsAt = now.Add(time.Duration(durationSec) * time.Second)
	r.phase = PhaseActive
	r.pauseRemaining = 0

	for _, p := range r.players {
		p.Answer = nil
		p.AnsweredAt = nil
	}

	// Clients compute their own countdown from the absolute deadline; the
	// server never pushes timer ticks.
	r.broadcast(Event{"type": EventInterstitialHide})
	r.broadcast(Event{
		"type":     EventQuestionStart,
		"question": r.current,
		"endsAt":   r.endsAt.UnixMilli(),
	})
}

// SubmitAnswer records a player's first answer for the active round. Late,
// duplicate, paused, or unknown-player submissions are silently dropped.
// The host gets a progress update for each accepted answer.
func (r *Room) SubmitAnswer(connID uuid.UUID, answer int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || r.phase != PhaseActive {
		return
	}
	p, known := r.players[connID]
	if !known {
		return
	}
	if r.clock.Now().After(r.endsAt) {
		return
	}
	if p.Answer != nil {
		return
	}

	at := r.clock.Now().UnixMilli()
	p.Answer = &answer
	p.AnsweredAt = &at

	answered := 0
	for _, pl := range r.players {
		if pl.Answer != nil {
			answered++
		}
	}
	r.toConn(r.HostConn, Event{
		"type":     EventHostProgress,
		"answered": answered,
		"total":    len(r.players),
	})
}

// FinishQuestion closes the round (paused or not), applies speed scoring,
// and broadcasts per-player results plus a top-10 leaderboard. The room
// returns to the lobby phase; the host decides when this happens, the server
// never fires it on its own even if the deadline has long passed.
func (r *Room) FinishQuestion(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn || r.current == nil {
		return
	}

	q := r.current
	results := scoreRound(r.orderedPlayersUnsafe(), q, r.endsAt.UnixMilli())

	r.broadcast(Event{
		"type":         EventQuestionResults,
		"correctIndex": q.CorrectIndex,
		"results":      results,
		"leaderboard":  r.leaderboardUnsafe(roundLeaderboardSize),
	})

	r.current = nil
	r.endsAt = time.Time{}
	r.pauseRemaining = 0
	r.phase = PhaseLobby
}

// PauseQuestion freezes the active window, capturing the exact remaining
// time. Answers are rejected while paused because the phase tag gates them,
// not because the deadline is rewritten.
func (r *Room) PauseQuestion(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn || r.phase != PhaseActive {
		return
	}
	remaining := r.endsAt.Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	r.pauseRemaining = remaining
	r.phase = PhasePaused
	r.broadcast(Event{"type": EventQuestionPaused})
}

// ResumeQuestion reopens a paused window with the captured remaining time
// (at least one second) and broadcasts the new deadline so clients
// resynchronize their countdown.
func (r *Room) ResumeQuestion(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn || r.phase != PhasePaused {
		return
	}
	window := r.pauseRemaining
	if window < minResumeWindow {
		window = minResumeWindow
	}
	r.endsAt = r.clock.Now().Add(window)
	r.pauseRemaining = 0
	r.phase = PhaseActive
	r.broadcast(Event{"type": EventQuestionResumed, "endsAt": r.endsAt.UnixMilli()})
}

// SetMeta shallow-merges the patch into the room's display metadata and
// broadcasts the result. Host only, valid in any non-terminal state.
func (r *Room) SetMeta(connID uuid.UUID, patch models.MetaPatch) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn {
		return
	}
	patch.Apply(&r.Meta)
	r.broadcast(Event{"type": EventRoomMeta, "meta": r.Meta})
}

// ShowInterstitial broadcasts an interstitial screen between questions.
// Pure side channel: room state is unchanged.
func (r *Room) ShowInterstitial(connID uuid.UUID, message string, durationMs int64, imageURL, youtubeURL, bgColor string) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn {
		return
	}
	if message == "" {
		message = defaultInterstitialText
	}
	var until interface{}
	if durationMs > 0 {
		until = r.clock.Now().UnixMilli() + durationMs
	}
	r.broadcast(Event{
		"type":       EventInterstitialShow,
		"message":    message,
		"imageUrl":   imageURL,
		"youtubeUrl": youtubeURL,
		"bgColor":    bgColor,
		"until":      until,
	})
}

// SkipVideo tells clients to drop any video gating so players can answer now.
func (r *Room) SkipVideo(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn {
		return
	}
	r.broadcast(Event{"type": EventVideoSkip})
}

// ShowScores broadcasts a top-50 leaderboard snapshot without mutating scores.
func (r *Room) ShowScores(connID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.ended || connID != r.HostConn {
		return
	}
	r.broadcast(Event{"type": EventScoresShow, "leaderboard": r.leaderboardUnsafe(scoresLeaderboardSize)})
}

// EndGame broadcasts the final top-20 leaderboard plus a room-ended signal,
// then moves the room to its terminal state and fires OnEnd. Host disconnect
// routes here too. Any later event referencing this room's PIN is a no-op.
func (r *Room) EndGame(connID uuid.UUID) {
	r.Mu.Lock()
	if r.ended || connID != r.HostConn {
		r.Mu.Unlock()
		return
	}
	r.broadcast(Event{"type": EventGameFinal, "leaderboard": r.leaderboardUnsafe(finalLeaderboardSize)})
	r.broadcast(Event{"type": EventRoomEnded})
	r.ended = true
	r.current = nil
	r.pauseRemaining = 0
	r.phase = PhaseLobby
	onEnd := r.OnEnd
	r.Mu.Unlock()

	if onEnd != nil {
		onEnd(r.PIN)
	}
}

// rosterUnsafe snapshots the roster in insertion order. Caller holds Mu.
func (r *Room) rosterUnsafe() []models.Player {
	roster := make([]models.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			roster = append(roster, *p)
		}
	}
	return roster
}

// orderedPlayersUnsafe returns the live player pointers in insertion order.
func (r *Room) orderedPlayersUnsafe() []*models.Player {
	players := make([]*models.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

// leaderboardUnsafe sorts players by descending score, ties kept in roster
// order (stable sort), truncated to n. Caller holds Mu.
func (r *Room) leaderboardUnsafe(n int) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(r.order))
	for _, p := range r.orderedPlayersUnsafe() {
		entries = append(entries, models.LeaderboardEntry{Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
