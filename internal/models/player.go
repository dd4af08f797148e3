package models

// Player is one connected participant of a room. Created on join, removed on
// disconnect or room end. Score only ever grows; Answer/AnsweredAt are reset
// at the start of every round.
type Player struct {
	Name  string `json:"name"`
	Score int    `json:"score"`

	// Answer is the option index submitted for the current round, nil if the
	// player has not answered yet.
	Answer *int `json:"answer"`

	// AnsweredAt is the submission time in unix milliseconds, nil if unanswered.
	AnsweredAt *int64 `json:"answeredAt"`
}

// RoundResult is one player's outcome for a finished round.
type RoundResult struct {
	Name    string `json:"name"`
	Answer  *int   `json:"answer"`
	Correct bool   `json:"correct"`
	Add     int    `json:"add"`
	Score   int    `json:"score"`
}

// LeaderboardEntry is one row of a score snapshot.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
