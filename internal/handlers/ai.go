// internal/handlers/ai.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/schr45-ship-it/shaalkal-socket-server/internal/generator"
)

// AIHandlers exposes the question-generation collaborator over HTTP: a chat
// wizard that collects quiz parameters and a generate endpoint that returns
// a sanitized quiz. The session core never calls these; hosts do, and feed
// the result into host:start_question.
type AIHandlers struct {
	Planner *generator.Planner

	// Primary is the configured model backend; may be nil.
	Primary generator.Generator
	// Fallback is used when Primary is absent or fails, so the endpoint
	// always returns a usable quiz.
	Fallback generator.Generator

	Logger *logrus.Logger
}

type planRequest struct {
	SessionID string                `json:"sessionId"`
	Answers   generator.PlanAnswers `json:"answers"`
}

type generateRequest struct {
	PromptText string `json:"promptText"`
	Count      int    `json:"count"`
}

// PlanHandler handles POST /ai/plan: merge partial answers, reply with the
// next clarifying question or the final summary.
func (h *AIHandlers) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}
	result, err := h.Planner.Plan(r.Context(), req.SessionID, req.Answers)
	if err != nil {
		h.Logger.Warnf("plan wizard failed: %v", err)
		writeBadRequest(w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GenerateHandler handles POST /ai/generate: produce a sanitized quiz for
// the prompt, falling back to the mock generator so the reply is never empty.
func (h *AIHandlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w)
		return
	}

	count := req.Count
	if count <= 0 {
		count = 8
	}
	if count > 20 {
		count = 20
	}

	if h.Primary != nil {
		quiz, err := h.Primary.Generate(r.Context(), req.PromptText, count)
		if err == nil {
			writeJSON(w, http.StatusOK, quiz)
			return
		}
		h.Logger.Warnf("primary generator failed, using fallback: %v", err)
	}

	quiz, err := h.Fallback.Generate(r.Context(), req.PromptText, count)
	if err != nil {
		h.Logger.Errorf("fallback generator failed: %v", err)
		writeBadRequest(w)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
}
