// internal/generator/plan.go
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// The plan wizard walks a host through the details needed before generating
// a quiz: topic, audience level, question count, and style, in that order.

const (
	minPlanCount     = 1
	maxPlanCount     = 20
	defaultPlanCount = 8
)

var planKeyOrder = []string{"topic", "level", "count", "style"}

var planKeyLabels = map[string]string{
	"topic": "the quiz topic",
	"level": "the age or level of the target audience",
	"count": "the number of questions",
	"style": "the preferred style or focus (for example history, people, dates)",
}

var planDefaultQuestions = map[string]string{
	"topic": "What topic should the questions focus on?",
	"level": "What is the age or level of the target audience?",
	"count": "How many questions should I create (1-20)?",
	"style": "Any preferred style? (for example: dates, people, short facts)",
}

// PlanAnswers holds the wizard's collected answers. Zero values mean
// unanswered.
type PlanAnswers struct {
	Topic string `json:"topic,omitempty"`
	Level string `json:"level,omitempty"`
	Count int    `json:"count,omitempty"`
	Style string `json:"style,omitempty"`
}

// PlanSession is one host's in-progress wizard conversation.
type PlanSession struct {
	ID      string      `json:"id"`
	Answers PlanAnswers `json:"answers"`
}

// PlanResult is the wizard's reply: either the next clarifying question, or
// the final summary plus the prompt text to feed Generate.
type PlanResult struct {
	Done       bool         `json:"done"`
	NextKey    string       `json:"nextKey,omitempty"`
	Question   string       `json:"question,omitempty"`
	Summary    *PlanAnswers `json:"summary,omitempty"`
	PromptText string       `json:"promptText,omitempty"`
	Count      int          `json:"count,omitempty"`
}

// Prompter phrases the next clarifying question. Optional: the planner falls
// back to canned questions when it is absent or errors.
type Prompter interface {
	PhraseQuestion(ctx context.Context, known PlanAnswers, missingKey string) (string, error)
}

// Planner drives the plan wizard over a session store.
type Planner struct {
	store    SessionStore
	prompter Prompter
	logger   *logrus.Logger
}

// NewPlanner builds a planner. prompter may be nil.
func NewPlanner(store SessionStore, prompter Prompter, logger *logrus.Logger) *Planner {
	return &Planner{store: store, prompter: prompter, logger: logger}
}

func (a *PlanAnswers) merge(partial PlanAnswers) {
	if partial.Topic != "" {
		a.Topic = partial.Topic
	}
	if partial.Level != "" {
		a.Level = partial.Level
	}
	if partial.Count != 0 {
		a.Count = partial.Count
	}
	if partial.Style != "" {
		a.Style = partial.Style
	}
}

func (a *PlanAnswers) normalize() {
	a.Topic = strings.TrimSpace(a.Topic)
	a.Level = strings.TrimSpace(a.Level)
	a.Style = strings.TrimSpace(a.Style)
	if a.Count != 0 {
		if a.Count < minPlanCount {
			a.Count = minPlanCount
		}
		if a.Count > maxPlanCount {
			a.Count = maxPlanCount
		}
	}
}

func (a PlanAnswers) missingKey() string {
	for _, key := range planKeyOrder {
		switch key {
		case "topic":
			if a.Topic == "" {
				return key
			}
		case "level":
			if a.Level == "" {
				return key
			}
		case "count":
			if a.Count == 0 {
				return key
			}
		case "style":
			if a.Style == "" {
				return key
			}
		}
	}
	return ""
}

// Plan merges the partial answers into the session and returns either the
// next clarifying question or the finished summary.
func (p *Planner) Plan(ctx context.Context, sessionID string, partial PlanAnswers) (PlanResult, error) {
	if sessionID == "" {
		sessionID = "default"
	}

	sess, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("failed to load plan session %s: %w", sessionID, err)
	}
	if sess == nil {
		sess = &PlanSession{ID: sessionID}
	}
	sess.Answers.merge(partial)
	sess.Answers.normalize()
	if err := p.store.Put(ctx, sess); err != nil {
		return PlanResult{}, fmt.Errorf("failed to store plan session %s: %w", sessionID, err)
	}

	if missing := sess.Answers.missingKey(); missing != "" {
		question := ""
		if p.prompter != nil {
			q, err := p.prompter.PhraseQuestion(ctx, sess.Answers, missing)
			if err != nil {
				p.logger.Warnf("plan wizard: failed to phrase question for %q: %v", missing, err)
			} else {
				question = q
			}
		}
		if question == "" {
			question = planDefaultQuestions[missing]
		}
		return PlanResult{Done: false, NextKey: missing, Question: question}, nil
	}

	summary := sess.Answers
	lines := []string{summary.Topic}
	if summary.Topic == "" {
		lines = []string{"General knowledge"}
	}
	if summary.Level != "" {
		lines = append(lines, fmt.Sprintf("Target audience: %s", summary.Level))
	}
	if summary.Style != "" {
		lines = append(lines, fmt.Sprintf("Style: %s", summary.Style))
	}
	count := summary.Count
	if count == 0 {
		count = defaultPlanCount
	}
	return PlanResult{
		Done:       true,
		Summary:    &summary,
		PromptText: strings.Join(lines, "\n"),
		Count:      count,
	}, nil
}
