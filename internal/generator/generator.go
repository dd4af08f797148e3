// internal/generator/generator.go
//
// Package generator is the question-generation collaborator consumed by the
// session core: given a topic and a count it returns a cleaned list of
// 4-option multiple-choice questions. The core treats the output as an
// opaque input feeding host:start_question.
package generator

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

// Generator produces a titled quiz for a free-text prompt. Implementations
// must return already-sanitized questions (see SanitizeQuestions).
type Generator interface {
	Generate(ctx context.Context, promptText string, count int) (models.GeneratedQuiz, error)
}

// Mock is the fallback generator used when no model backend is configured.
// It derives filler questions from the prompt text itself so the rest of the
// pipeline can be exercised end to end without credentials.
type Mock struct{}

// Generate implements Generator.
func (Mock) Generate(_ context.Context, promptText string, count int) (models.GeneratedQuiz, error) {
	base := strings.TrimSpace(promptText)
	if base == "" {
		base = "General knowledge"
	}

	var seeds []string
	for _, line := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '\n' || r == '.' || r == '!' || r == '?'
	}) {
		if s := strings.TrimSpace(line); s != "" {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		seeds = []string{base}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sliceFrom := func(s string, start, end int) string {
		r := []rune(s)
		if start >= len(r) {
			return ""
		}
		if end > len(r) {
			end = len(r)
		}
		return strings.TrimSpace(string(r[start:end]))
	}

	list := make([]models.QuestionSpec, 0, count)
	for i := 0; i < count; i++ {
		seed := seeds[i%len(seeds)]
		correct := rng.Intn(optionCount)
		opts := []string{
			sliceFrom(seed, 0, 24),
			sliceFrom(base, 2, 26),
			sliceFrom(base, 4, 28),
			sliceFrom(base, 6, 30),
		}
		fallbacks := []string{"Option A", "Option B", "Option C", "Option D"}
		for j, o := range opts {
			if o == "" {
				opts[j] = fallbacks[j]
			}
		}
		list = append(list, models.QuestionSpec{
			Text:         "Question: " + clipRunes(seed, 80),
			Options:      opts,
			CorrectIndex: &correct,
			DurationSec:  defaultDurationSec,
		})
	}

	return models.GeneratedQuiz{
		Title:     "New Quiz",
		Questions: SanitizeQuestions(rng, list, count, promptText),
	}, nil
}
