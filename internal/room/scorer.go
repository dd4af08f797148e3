// internal/room/scorer.go
package room

import (
	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

const (
	// basePoints is awarded for any correct answer regardless of speed.
	basePoints = 500
	// speedBonusDivisorMs converts remaining window time into bonus points:
	// one point per tenth of a second left on the clock.
	speedBonusDivisorMs = 100
)

// scoreRound converts each player's (answer, timing) pair into a point delta
// for the finished question and accumulates it onto their score. Results are
// returned in roster order.
//
// A correct answer earns basePoints plus a speed bonus proportional to the
// time remaining when it was submitted. Incorrect or unanswered players earn
// zero, as does everyone when the question has no correct index (poll-style
// rounds). Scores never decrease.
func scoreRound(players []*models.Player, q *models.Question, endsAtMs int64) []models.RoundResult {
	results := make([]models.RoundResult, 0, len(players))
	for _, p := range players {
		correct := q.CorrectIndex != nil && p.Answer != nil && *p.Answer == *q.CorrectIndex
		add := 0
		if correct {
			// Players who answered exactly at the deadline may carry no
			// timestamp; fall back to the round's end and clamp at zero.
			answeredAt := endsAtMs
			if p.AnsweredAt != nil {
				answeredAt = *p.AnsweredAt
			}
			elapsed := answeredAt - q.StartedAt
			if elapsed < 0 {
				elapsed = 0
			}
			remaining := q.DurationMs() - elapsed
			if remaining < 0 {
				remaining = 0
			}
			add = basePoints + int(remaining/speedBonusDivisorMs)
		}
		p.Score += add
		results = append(results, models.RoundResult{
			Name:    p.Name,
			Answer:  p.Answer,
			Correct: correct,
			Add:     add,
			Score:   p.Score,
		})
	}
	return results
}
