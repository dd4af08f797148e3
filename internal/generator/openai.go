// internal/generator/openai.go
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/models"
)

// generateTimeout bounds one model call; the session flow must never stall
// on a slow backend.
const generateTimeout = 6 * time.Second

// phraseTimeout bounds the short wizard-question calls.
const phraseTimeout = 4 * time.Second

const systemPrompt = `You generate factual multiple-choice questions. Output strictly valid JSON only with schema: { "title": string, "questions": [ { "text": string, "options": string[4], "correct": number(0-3), "durationSec": number } ] }. No markdown. Exactly 4 short distinct options. Do not copy or echo the user input. Do not use the word "quiz" in questions or options. durationSec should be about 15.`

// ChatClient talks to an OpenAI-compatible chat-completions endpoint over
// plain HTTP. It implements both Generator and the planner's Prompter.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *logrus.Logger
}

// NewChatClient builds a client for the given endpoint. baseURL is the API
// root, e.g. "https://api.openai.com/v1".
func NewChatClient(baseURL, apiKey, model string, logger *logrus.Logger) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	ResponseFormat *chatRespFmt  `json:"response_format,omitempty"`
	Messages       []chatMessage `json:"messages"`
}

type chatRespFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete performs one chat-completions round trip and returns the raw
// assistant content.
func (c *ChatClient) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call chat completions: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// rawQuiz matches the schema the model is instructed to emit.
type rawQuiz struct {
	Title     string `json:"title"`
	Questions []struct {
		Text        string   `json:"text"`
		Options     []string `json:"options"`
		Correct     int      `json:"correct"`
		DurationSec int      `json:"durationSec"`
	} `json:"questions"`
}

// Generate implements Generator by asking the model for strict JSON and
// running the result through the sanitizer.
func (c *ChatClient) Generate(ctx context.Context, promptText string, count int) (models.GeneratedQuiz, error) {
	if promptText == "" {
		promptText = "General knowledge"
	}
	user := strings.Join([]string{
		fmt.Sprintf("Topic/source text: %s", promptText),
		fmt.Sprintf("Number of questions: %d", count),
		"Rules:",
		"- Short, clear factual questions.",
		"- 4 short distinct options, exactly one correct, no labels like correct/wrong.",
		"- Do not echo the instructions back as question or answer text.",
	}, "\n")

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	content, err := c.complete(ctx, chatRequest{
		Model:          c.model,
		ResponseFormat: &chatRespFmt{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return models.GeneratedQuiz{}, err
	}

	var raw rawQuiz
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return models.GeneratedQuiz{}, fmt.Errorf("model produced invalid quiz JSON: %w", err)
	}
	if len(raw.Questions) == 0 {
		return models.GeneratedQuiz{}, fmt.Errorf("model produced no questions")
	}

	list := make([]models.QuestionSpec, 0, len(raw.Questions))
	for _, q := range raw.Questions {
		correct := q.Correct
		list = append(list, models.QuestionSpec{
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: &correct,
			DurationSec:  q.DurationSec,
		})
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = "New Quiz"
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return models.GeneratedQuiz{
		Title:     clipRunes(title, 60),
		Questions: SanitizeQuestions(rng, list, count, promptText),
	}, nil
}

// PhraseQuestion asks the model for one short clarifying question for the
// plan wizard. Callers fall back to a canned question on any error.
func (c *ChatClient) PhraseQuestion(ctx context.Context, known PlanAnswers, missing string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, phraseTimeout)
	defer cancel()

	knownSoFar := fmt.Sprintf(`Known so far: topic=%q, level=%q, count=%q, style=%q.`,
		known.Topic, known.Level, countString(known.Count), known.Style)
	instruction := fmt.Sprintf("Write one short, clear question asking for %s. No explanations. Just one question.", planKeyLabels[missing])

	content, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Write one short question only. No explanations."},
			{Role: "user", Content: knownSoFar + "\n" + instruction},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func countString(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}
