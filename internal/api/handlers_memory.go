package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lawyrs/internal/domain"
)

const maxMemoryResults = 100

type MemoryHandler struct {
	memory    MemoryService
	principal domain.Principal
}

type memorySearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type memoryListResponse struct {
	Memories []domain.MemoryEntry `json:"memories"`
	Count    int                  `json:"count"`
}

// Search handles POST /api/assistant/memory/search.
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req memorySearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = domain.MaxContextMemories
	}
	req.Limit = min(req.Limit, maxMemoryResults)

	res, err := h.memory.Search(r.Context(), h.principal, req.Query, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/assistant/memory/stats.
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.memory.Stats(r.Context(), h.principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// List handles GET /api/assistant/memory?specialist=&case_id=&key=&limit=.
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := domain.MemoryQuery{
		Principal: h.principal,
		Key:       r.URL.Query().Get("key"),
	}
	if s := r.URL.Query().Get("specialist"); s != "" {
		sp, err := domain.ParseSpecialist(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Specialist = sp
	}
	if c := r.URL.Query().Get("case_id"); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "case_id must be an integer")
			return
		}
		q.CaseID = &id
	}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if q.Limit <= 0 {
		q.Limit = domain.MaxContextMemories
	}
	q.Limit = min(q.Limit, maxMemoryResults)

	mems, err := h.memory.Read(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if mems == nil {
		mems = []domain.MemoryEntry{}
	}
	writeJSON(w, http.StatusOK, memoryListResponse{Memories: mems, Count: len(mems)})
}

// CloudList handles GET /api/assistant/memory/cloud. The list is empty when
// the cloud service is off or unreachable.
func (h *MemoryHandler) CloudList(w http.ResponseWriter, r *http.Request) {
	mems, err := h.memory.List(r.Context(), h.principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if mems == nil {
		mems = []domain.MemoryEntry{}
	}
	writeJSON(w, http.StatusOK, memoryListResponse{Memories: mems, Count: len(mems)})
}

// Delete handles DELETE /api/assistant/memory/{id}. Only cloud memories can
// be deleted; local rows are kept.
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.memory.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
