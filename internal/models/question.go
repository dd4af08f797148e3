// internal/models/question.go
package models

// QuestionSpec is the client- or generator-supplied description of a round.
// Values are not trusted: the room clamps the duration and option count when
// the round actually starts.
type QuestionSpec struct {
	ID           string   `json:"id,omitempty"`
	Text         string   `json:"text"`
	Type         string   `json:"type,omitempty"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct"`
	DurationSec  int      `json:"durationSec"`
}

// Question is the active round owned by a room. It is not persisted beyond
// the round. A nil CorrectIndex means the round has no objectively correct
// answer (poll-style): every submission scores zero.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct"`
	StartedAt    int64    `json:"startedAt"` // unix milliseconds
	DurationSec  int      `json:"durationSec"`
}

// DurationMs returns the round length in milliseconds.
func (q *Question) DurationMs() int64 {
	return int64(q.DurationSec) * 1000
}

// GeneratedQuiz is the sanitized output of the question-generation service:
// a titled list of 4-option multiple-choice questions ready to feed
// host:start_question.
type GeneratedQuiz struct {
	Title     string         `json:"title"`
	Questions []QuestionSpec `json:"questions"`
}
