package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lawyrs/internal/domain"
)

const (
	defaultSessionHistory = 50
	maxSessionHistory     = 500
)

type SessionHandler struct {
	sessions SessionReader
	history  HistoryReader
}

type sessionResponse struct {
	Session *domain.Session           `json:"session"`
	History []domain.ConversationTurn `json:"history"`
}

// Get handles GET /api/assistant/sessions/{id}?limit=.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSessionHistory
	}
	limit = min(limit, maxSessionHistory)

	history, err := h.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, History: history})
}
