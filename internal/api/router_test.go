package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/agent"
	"lawyrs/internal/domain"
)

type fakeAssistant struct {
	last        agent.TurnRequest
	err         error
	lastHistory []domain.ConversationTurn
}

func (f *fakeAssistant) HandleTurn(_ context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	return &agent.TurnResult{
		SessionID: "s-1",
		Route:     domain.AgentRoute{Primary: domain.Drafter, Confidence: 0.9},
		Output: &domain.AgentOutput{
			Content: "## Summary\nDraft attached.", Specialist: domain.Drafter, Tier: domain.TierTemplate,
			Citations: []domain.Citation{}, Risks: []string{}, SubAgents: []domain.Specialist{},
		},
		MemorySource: domain.SourceLocal,
	}, nil
}

func (f *fakeAssistant) Classify(msg string, history []domain.ConversationTurn) domain.AgentRoute {
	f.lastHistory = history
	return domain.AgentRoute{Primary: domain.Researcher, Confidence: 0.75, Reasoning: "keyword routing: researcher=6"}
}

type fakeStore struct {
	sessions map[string]*domain.Session
	turns    []domain.ConversationTurn
	pingErr  error
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeStore) GetHistory(_ context.Context, _ string, limit int) ([]domain.ConversationTurn, error) {
	if limit < len(f.turns) {
		return f.turns[len(f.turns)-limit:], nil
	}
	return f.turns, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeMemory struct {
	lastQuery domain.MemoryQuery
	lastLimit int
	cloud     []domain.MemoryEntry
	deleted   []string
}

func (f *fakeMemory) Search(_ context.Context, _ domain.Principal, query string, limit int) (domain.MemorySearchResult, error) {
	f.lastLimit = limit
	return domain.MemorySearchResult{Source: domain.SourceLocal, Entries: []domain.MemoryEntry{{Key: "strategy", Value: query}}}, nil
}

func (f *fakeMemory) Read(_ context.Context, q domain.MemoryQuery) ([]domain.MemoryEntry, error) {
	f.lastQuery = q
	return nil, nil
}

func (f *fakeMemory) Stats(context.Context, domain.Principal) (domain.MemoryStats, error) {
	return domain.MemoryStats{LocalTotal: 3}, nil
}

func (f *fakeMemory) List(context.Context, domain.Principal) ([]domain.MemoryEntry, error) {
	return f.cloud, nil
}

func (f *fakeMemory) Delete(_ context.Context, id string) error {
	for i, m := range f.cloud {
		if m.ID == id {
			f.cloud = append(f.cloud[:i], f.cloud[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeRemote struct {
	enabled bool
	err     error
}

func (f fakeRemote) Enabled() bool { return f.enabled }
func (f fakeRemote) Health(context.Context) error { return f.err }

type testEnv struct {
	assistant *fakeAssistant
	store     *fakeStore
	memory    *fakeMemory
	handler   http.Handler
}

func newTestEnv(apiKey string, remote RemoteChecker) *testEnv {
	e := &testEnv{
		assistant: &fakeAssistant{},
		store: &fakeStore{
			sessions: map[string]*domain.Session{
				"s-1": {ID: "s-1", AgentsUsed: []domain.Specialist{domain.Drafter}, TotalTokens: 65},
			},
			turns: []domain.ConversationTurn{
				{Role: domain.RoleUser, Content: "draft it"},
				{Role: domain.RoleAssistant, Content: "done", AgentType: domain.Drafter},
			},
		},
		memory: &fakeMemory{cloud: []domain.MemoryEntry{
			{ID: "m0-1", Key: "strategy", Value: "mediate first", Source: domain.SourceCloud},
		}},
	}
	e.handler = NewRouter(Deps{
		Assistant:   e.assistant,
		Sessions:    e.store,
		History:     e.store,
		Memory:      e.memory,
		Store:       e.store,
		Remote:      remote,
		Principal:   "firm",
		APIKey:      apiKey,
		MetricsPath: "/metrics",
		Version:     "test",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return e
}

func (e *testEnv) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestChat_OK(t *testing.T) {
	e := newTestEnv("", nil)
	rec := e.do(http.MethodPost, "/api/assistant/chat",
		`{"message":"draft a motion","session_id":"s-1","case_id":42,"jurisdiction":"kansas","agent_type":"drafter"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res agent.TurnResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, domain.Drafter, res.Route.Primary)
	assert.Equal(t, domain.TierTemplate, res.Output.Tier)

	require.NotNil(t, e.assistant.last.CaseID)
	assert.EqualValues(t, 42, *e.assistant.last.CaseID)
	assert.Equal(t, "kansas", e.assistant.last.Jurisdiction)
	assert.Equal(t, "drafter", e.assistant.last.AgentType)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChat_BadRequests(t *testing.T) {
	e := newTestEnv("", nil)
	for name, body := range map[string]string{
		"malformed json": `{"message":`,
		"empty body":     ``,
		"unknown field":  `{"message":"hi","prompt":"x"}`,
		"blank message":  `{"message":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/api/assistant/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestChat_StoreFailureIs503(t *testing.T) {
	e := newTestEnv("", nil)
	e.assistant.err = errors.New("case lookup 42: database is locked")

	rec := e.do(http.MethodPost, "/api/assistant/chat", `{"message":"hi","case_id":42}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database is locked")
}

func TestBearerAuth(t *testing.T) {
	e := newTestEnv("secret", nil)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/assistant/chat", `{"message":"hi"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/assistant/chat", `{"message":"hi"}`, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/assistant/chat", `{"message":"hi"}`, "Authorization", "Bearer secret").Code)

	// Health and metrics stay open.
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/metrics", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv("secret", nil)
	rec := e.do(http.MethodOptions, "/api/assistant/chat", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClassify(t *testing.T) {
	e := newTestEnv("", nil)

	rec := e.do(http.MethodGet, "/api/assistant/classify?message=find+precedent&session_id=s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res classifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, domain.Researcher, res.Route.Primary)
	assert.Len(t, e.assistant.lastHistory, 2)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/assistant/classify", "").Code)
}

func TestSession(t *testing.T) {
	e := newTestEnv("", nil)

	rec := e.do(http.MethodGet, "/api/assistant/sessions/s-1?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, 65, res.Session.TotalTokens)
	require.Len(t, res.History, 1)
	assert.Equal(t, domain.Drafter, res.History[0].AgentType)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/assistant/sessions/nope", "").Code)
}

func TestMemoryRoutes(t *testing.T) {
	e := newTestEnv("", nil)

	rec := e.do(http.MethodPost, "/api/assistant/memory/search", `{"query":"settlement","limit":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"local"`)
	assert.Equal(t, maxMemoryResults, e.memory.lastLimit)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/assistant/memory/search", `{"query":" "}`).Code)

	rec = e.do(http.MethodGet, "/api/assistant/memory/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"local_total":3`)

	rec = e.do(http.MethodGet, "/api/assistant/memory?specialist=Analyst&case_id=42&key=risk_score", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"memories":[],"count":0}`, rec.Body.String())
	assert.Equal(t, domain.Analyst, e.memory.lastQuery.Specialist)
	assert.Equal(t, domain.Principal("firm"), e.memory.lastQuery.Principal)
	require.NotNil(t, e.memory.lastQuery.CaseID)
	assert.EqualValues(t, 42, *e.memory.lastQuery.CaseID)
	assert.Equal(t, "risk_score", e.memory.lastQuery.Key)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/assistant/memory?specialist=paralegal", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/assistant/memory?case_id=abc", "").Code)
}

func TestCloudMemoryListAndDelete(t *testing.T) {
	e := newTestEnv("", nil)

	rec := e.do(http.MethodGet, "/api/assistant/memory/cloud", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"id":"m0-1"`)

	rec = e.do(http.MethodDelete, "/api/assistant/memory/m0-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"m0-1"}, e.memory.deleted)

	rec = e.do(http.MethodDelete, "/api/assistant/memory/m0-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/api/assistant/memory/cloud", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestChat_PassesCrewOptions(t *testing.T) {
	e := newTestEnv("", nil)
	rec := e.do(http.MethodPost, "/api/assistant/chat",
		`{"message":"prepare a complaint","document_type":"petition","full_crew":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "petition", e.assistant.last.DocumentType)
	assert.True(t, e.assistant.last.FullCrew)
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name    string
		remote  RemoteChecker
		pingErr error
		code    int
		status  string
	}{
		{"all good", fakeRemote{enabled: true}, nil, http.StatusOK, "ok"},
		{"remote disabled", fakeRemote{}, nil, http.StatusOK, "ok"},
		{"remote down", fakeRemote{enabled: true, err: errors.New("connection refused")}, nil, http.StatusOK, "degraded"},
		{"store down", nil, errors.New("database is closed"), http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv("", tc.remote)
			e.store.pingErr = tc.pingErr

			rec := e.do(http.MethodGet, "/health", "")
			assert.Equal(t, tc.code, rec.Code)
			var res healthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, "disabled", res.LLM.Status)
			assert.Equal(t, "test", res.Version)
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
