// internal/room/room_test.go
package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	all    []Event
	direct map[uuid.UUID][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{direct: make(map[uuid.UUID][]Event)}
}

func (mb *mockBroadcaster) broadcastFn(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.all = append(mb.all, ev)
}

func (mb *mockBroadcaster) toConnFn(connID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.direct[connID] = append(mb.direct[connID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.all = nil
	mb.direct = make(map[uuid.UUID][]Event)
}

func (mb *mockBroadcaster) eventsOfType(t string) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []Event
	for _, ev := range mb.all {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) lastOfType(t string) Event {
	evs := mb.eventsOfType(t)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func (mb *mockBroadcaster) lastDirect(connID uuid.UUID) Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	evs := mb.direct[connID]
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

// setupTestRoom builds a lobby-phase room with a host and n joined players.
func setupTestRoom(t *testing.T, n int) (*Room, uuid.UUID, []uuid.UUID, *mockBroadcaster, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	host := uuid.New()
	r := NewRoom("123456", host, "Test Quiz", clock)
	mb := newMockBroadcaster()
	r.BroadcastFn = mb.broadcastFn
	r.ToConnFn = mb.toConnFn

	players := make([]uuid.UUID, n)
	for i := range players {
		players[i] = uuid.New()
		r.Join(players[i], fmt.Sprintf("player-%d", i))
	}
	mb.clear()
	return r, host, players, mb, clock
}

func intPtr(n int) *int { return &n }

func startQuestion(r *Room, host uuid.UUID, durationSec int, correct *int) {
	r.StartQuestion(host, models.QuestionSpec{
		Text:         "What year was the state declared?",
		Options:      []string{"1948", "1936", "1956", "1967"},
		CorrectIndex: correct,
		DurationSec:  durationSec,
	})
}

func TestStartQuestionClampsDuration(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 1)

	startQuestion(r, host, 1, intPtr(0))
	ev := mb.lastOfType(EventQuestionStart)
	require.NotNil(t, ev)
	q := ev["question"].(*models.Question)
	assert.Equal(t, 5, q.DurationSec, "requested 1s must be stored as the 5s minimum")

	startQuestion(r, host, 0, intPtr(0))
	q = mb.lastOfType(EventQuestionStart)["question"].(*models.Question)
	assert.Equal(t, 20, q.DurationSec, "missing duration defaults to 20s")
}

func TestStartQuestionBroadcastsAbsoluteDeadline(t *testing.T) {
	r, host, _, mb, clock := setupTestRoom(t, 1)

	startQuestion(r, host, 15, intPtr(0))
	ev := mb.lastOfType(EventQuestionStart)
	require.NotNil(t, ev)
	assert.Equal(t, clock.Now().Add(15*time.Second).UnixMilli(), ev["endsAt"])
	require.Len(t, mb.eventsOfType(EventInterstitialHide), 1)
	assert.Equal(t, PhaseActive, r.Phase())
}

func TestFirstAnswerWins(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 2)
	startQuestion(r, host, 15, intPtr(0))

	r.SubmitAnswer(players[0], 2)
	r.SubmitAnswer(players[0], 0) // duplicate, silently dropped

	p, ok := r.Player(players[0])
	require.True(t, ok)
	require.NotNil(t, p.Answer)
	assert.Equal(t, 2, *p.Answer, "second submission must not overwrite the first")

	progress := mb.lastDirect(host)
	require.NotNil(t, progress)
	assert.Equal(t, EventHostProgress, progress.Type())
	assert.Equal(t, 1, progress["answered"])
	assert.Equal(t, 2, progress["total"])
}

func TestLateAnswerRejected(t *testing.T) {
	r, host, players, _, clock := setupTestRoom(t, 1)
	startQuestion(r, host, 5, intPtr(0))

	clock.Advance(6 * time.Second)
	r.SubmitAnswer(players[0], 0)

	p, _ := r.Player(players[0])
	assert.Nil(t, p.Answer, "answers after the deadline are rejected even before finish")
	assert.Equal(t, PhaseActive, r.Phase(), "an expired round stays active until the host finishes it")
}

func TestUnknownConnectionCannotAnswer(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))

	r.SubmitAnswer(uuid.New(), 0)
	assert.Nil(t, mb.lastDirect(host), "no progress update for a non-player submission")
}

func TestAnswerRejectedWhilePaused(t *testing.T) {
	r, host, players, _, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))
	r.PauseQuestion(host)

	r.SubmitAnswer(players[0], 0)
	p, _ := r.Player(players[0])
	assert.Nil(t, p.Answer)
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	r, host, _, mb, clock := setupTestRoom(t, 1)
	startQuestion(r, host, 20, intPtr(0))

	clock.Advance(8 * time.Second) // 12s remaining
	r.PauseQuestion(host)
	require.Equal(t, PhasePaused, r.Phase())
	require.Len(t, mb.eventsOfType(EventQuestionPaused), 1)

	clock.Advance(3 * time.Second)
	r.ResumeQuestion(host)

	ev := mb.lastOfType(EventQuestionResumed)
	require.NotNil(t, ev)
	assert.Equal(t, clock.Now().Add(12*time.Second).UnixMilli(), ev["endsAt"],
		"resume must restore exactly the captured remaining time")
	assert.Equal(t, PhaseActive, r.Phase())
}

func TestResumeGrantsMinimumWindow(t *testing.T) {
	r, host, _, mb, clock := setupTestRoom(t, 1)
	startQuestion(r, host, 5, intPtr(0))

	clock.Advance(10 * time.Second) // already expired
	r.PauseQuestion(host)
	r.ResumeQuestion(host)

	ev := mb.lastOfType(EventQuestionResumed)
	require.NotNil(t, ev)
	assert.Equal(t, clock.Now().Add(time.Second).UnixMilli(), ev["endsAt"])
}

func TestPauseOnlyFromActive(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 1)

	r.PauseQuestion(host) // lobby: no round to pause
	assert.Empty(t, mb.eventsOfType(EventQuestionPaused))

	startQuestion(r, host, 15, intPtr(0))
	r.PauseQuestion(host)
	r.PauseQuestion(host) // already paused
	assert.Len(t, mb.eventsOfType(EventQuestionPaused), 1)

	r.ResumeQuestion(host)
	r.ResumeQuestion(host) // already running
	assert.Len(t, mb.eventsOfType(EventQuestionResumed), 1)
}

func TestFinishQuestionScoresAndReturnsToLobby(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 2)
	startQuestion(r, host, 15, intPtr(0))

	r.SubmitAnswer(players[0], 0) // correct at 0ms elapsed
	r.SubmitAnswer(players[1], 3) // wrong
	r.FinishQuestion(host)

	ev := mb.lastOfType(EventQuestionResults)
	require.NotNil(t, ev)
	results := ev["results"].([]models.RoundResult)
	require.Len(t, results, 2)
	assert.True(t, results[0].Correct)
	assert.Equal(t, 650, results[0].Add, "500 base + floor(15000/100) speed bonus")
	assert.Equal(t, 650, results[0].Score)
	assert.False(t, results[1].Correct)
	assert.Equal(t, 0, results[1].Add)

	assert.Equal(t, PhaseLobby, r.Phase())
}

func TestFinishWhilePausedScoresRound(t *testing.T) {
	r, host, players, mb, clock := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))

	clock.Advance(5 * time.Second)
	r.SubmitAnswer(players[0], 0)
	r.PauseQuestion(host)
	r.FinishQuestion(host)

	ev := mb.lastOfType(EventQuestionResults)
	require.NotNil(t, ev)
	results := ev["results"].([]models.RoundResult)
	require.Len(t, results, 1)
	assert.Equal(t, 600, results[0].Add, "5s elapsed leaves a 10000ms bonus window")
	assert.Equal(t, PhaseLobby, r.Phase())
}

func TestPollRoundScoresZero(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, nil) // no correct answer

	r.SubmitAnswer(players[0], 1)
	r.FinishQuestion(host)

	results := mb.lastOfType(EventQuestionResults)["results"].([]models.RoundResult)
	assert.False(t, results[0].Correct)
	assert.Equal(t, 0, results[0].Score)
}

func TestStartOverwritesActiveRoundAndResetsAnswers(t *testing.T) {
	r, host, players, _, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))
	r.SubmitAnswer(players[0], 0)

	startQuestion(r, host, 15, intPtr(1))
	p, _ := r.Player(players[0])
	assert.Nil(t, p.Answer, "a new round resets every player's answer")
	assert.Nil(t, p.AnsweredAt)
	assert.Equal(t, PhaseActive, r.Phase())
}

func TestNonHostCannotDriveTransitions(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 1)
	imposter := players[0]

	startQuestion(r, imposter, 15, intPtr(0))
	assert.Empty(t, mb.eventsOfType(EventQuestionStart), "start_question is host-only")

	startQuestion(r, host, 15, intPtr(0))
	mb.clear()

	r.PauseQuestion(imposter)
	r.FinishQuestion(imposter)
	r.EndGame(imposter)
	assert.Empty(t, mb.all, "non-host transitions are silently ignored")
	assert.False(t, r.Ended())
}

func TestJoinMidRound(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))

	late := uuid.New()
	r.Join(late, "  ")

	ev := mb.lastOfType(EventRoomPlayers)
	require.NotNil(t, ev)
	roster := ev["players"].([]models.Player)
	require.Len(t, roster, 2)
	assert.Equal(t, "Player", roster[1].Name, "blank names get the placeholder")
	assert.Equal(t, 0, roster[1].Score)
	assert.Nil(t, roster[1].Answer)

	joined := mb.lastDirect(late)
	require.NotNil(t, joined)
	assert.Equal(t, EventPlayerJoined, joined.Type())
	assert.Equal(t, "123456", joined["pin"])
}

func TestRemovePlayerKeepsRoundActive(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 2)
	startQuestion(r, host, 15, intPtr(0))
	mb.clear()

	r.RemovePlayer(players[0])

	roster := mb.lastOfType(EventRoomPlayers)["players"].([]models.Player)
	assert.Len(t, roster, 1)
	assert.Equal(t, PhaseActive, r.Phase())
}

func TestSetMetaShallowMerge(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 0)

	title := "History Night"
	r.SetMeta(host, models.MetaPatch{Title: &title})
	cover := "https://example.com/cover.png"
	r.SetMeta(host, models.MetaPatch{CoverImageURL: &cover})

	meta := mb.lastOfType(EventRoomMeta)["meta"].(models.RoomMeta)
	assert.Equal(t, "History Night", meta.Title, "later patches keep untouched fields")
	assert.Equal(t, cover, meta.CoverImageURL)
}

func TestInterstitialDefaults(t *testing.T) {
	r, host, _, mb, clock := setupTestRoom(t, 0)

	r.ShowInterstitial(host, "", 4000, "", "", "#222")
	ev := mb.lastOfType(EventInterstitialShow)
	require.NotNil(t, ev)
	assert.NotEmpty(t, ev["message"])
	assert.Equal(t, clock.Now().UnixMilli()+4000, ev["until"])

	r.ShowInterstitial(host, "Next up", 0, "", "", "")
	ev = mb.lastOfType(EventInterstitialShow)
	assert.Nil(t, ev["until"], "no duration means no auto-hide deadline")
}

func TestLeaderboardOrderingTiesAndTruncation(t *testing.T) {
	r, host, _, mb, _ := setupTestRoom(t, 0)

	// 12 players: indexes 0..5 answer correctly in join order (equal speed,
	// equal score), the rest never answer.
	conns := make([]uuid.UUID, 12)
	for i := range conns {
		conns[i] = uuid.New()
		r.Join(conns[i], fmt.Sprintf("p%02d", i))
	}
	startQuestion(r, host, 15, intPtr(0))
	for i := 0; i < 6; i++ {
		r.SubmitAnswer(conns[i], 0)
	}
	mb.clear()
	r.FinishQuestion(host)

	lb := mb.lastOfType(EventQuestionResults)["leaderboard"].([]models.LeaderboardEntry)
	require.Len(t, lb, 10, "round leaderboard is truncated to 10")
	for i := 0; i < 6; i++ {
		assert.Equal(t, fmt.Sprintf("p%02d", i), lb[i].Name, "ties preserve roster order")
		assert.Equal(t, 650, lb[i].Score)
	}
	assert.Equal(t, 0, lb[6].Score)

	mb.clear()
	r.ShowScores(host)
	lb = mb.lastOfType(EventScoresShow)["leaderboard"].([]models.LeaderboardEntry)
	assert.Len(t, lb, 12, "show_scores allows up to 50 entries")
}

func TestShowScoresDoesNotMutate(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 1)
	startQuestion(r, host, 15, intPtr(0))
	r.SubmitAnswer(players[0], 0)
	r.FinishQuestion(host)

	mb.clear()
	r.ShowScores(host)
	r.ShowScores(host)
	evs := mb.eventsOfType(EventScoresShow)
	require.Len(t, evs, 2)
	first := evs[0]["leaderboard"].([]models.LeaderboardEntry)
	second := evs[1]["leaderboard"].([]models.LeaderboardEntry)
	assert.Equal(t, first, second)
}

func TestScoresAccumulateAcrossRounds(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 1)

	for i := 0; i < 2; i++ {
		startQuestion(r, host, 15, intPtr(0))
		r.SubmitAnswer(players[0], 0)
		r.FinishQuestion(host)
	}

	results := mb.lastOfType(EventQuestionResults)["results"].([]models.RoundResult)
	assert.Equal(t, 1300, results[0].Score, "scores accumulate and are never reset mid-room")
}

func TestEndGameIsTerminal(t *testing.T) {
	r, host, players, mb, _ := setupTestRoom(t, 1)
	var endedPIN string
	r.OnEnd = func(pin string) { endedPIN = pin }

	r.EndGame(host)

	require.Len(t, mb.eventsOfType(EventGameFinal), 1)
	require.Len(t, mb.eventsOfType(EventRoomEnded), 1)
	assert.Equal(t, "123456", endedPIN)
	assert.True(t, r.Ended())

	mb.clear()
	r.EndGame(host)
	startQuestion(r, host, 15, intPtr(0))
	r.Join(uuid.New(), "late")
	r.SubmitAnswer(players[0], 0)
	assert.Empty(t, mb.all, "every event on an ended room is a no-op")
}
