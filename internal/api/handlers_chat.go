package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"lawyrs/internal/agent"
	"lawyrs/internal/domain"
)

type ChatHandler struct {
	assistant Assistant
	history   HistoryReader
	logger    *slog.Logger
}

type chatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id,omitempty"`
	CaseID       *int64 `json:"case_id,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	AgentType    string `json:"agent_type,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	FullCrew     bool   `json:"full_crew,omitempty"`
}

// Chat handles POST /api/assistant/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.assistant.HandleTurn(r.Context(), agent.TurnRequest{
		Message:      req.Message,
		SessionID:    req.SessionID,
		CaseID:       req.CaseID,
		Jurisdiction: req.Jurisdiction,
		AgentType:    req.AgentType,
		DocumentType: req.DocumentType,
		FullCrew:     req.FullCrew,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("turn failed", "request_id", GetRequestID(r), "error", err)
		writeError(w, http.StatusServiceUnavailable, "matter data is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type classifyResponse struct {
	Message string            `json:"message"`
	Route   domain.AgentRoute `json:"route"`
}

// Classify handles GET /api/assistant/classify?message=&session_id=.
// With a session id the last assistant turn counts toward continuation.
func (h *ChatHandler) Classify(w http.ResponseWriter, r *http.Request) {
	msg := strings.TrimSpace(r.URL.Query().Get("message"))
	if msg == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	history := []domain.ConversationTurn{}
	if sid := r.URL.Query().Get("session_id"); sid != "" && h.history != nil {
		turns, err := h.history.GetHistory(r.Context(), sid, 20)
		if err != nil {
			h.logger.Warn("classify without history", "session", sid, "error", err)
		} else {
			history = turns
		}
	}

	writeJSON(w, http.StatusOK, classifyResponse{Message: msg, Route: h.assistant.Classify(msg, history)})
}
