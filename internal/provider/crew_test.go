package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCrewClient_Disabled(t *testing.T) {
	c := NewCrewClient(CrewConfig{URL: "  ", Logger: testLogger()})
	assert.False(t, c.Enabled())

	_, err := c.Run(context.Background(), domain.RemoteRequest{Message: "x"})
	assert.Error(t, err)
}

func TestCrewClient_RunSuccess(t *testing.T) {
	var got domain.RemoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/crew/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"success": true,
			"content": "## Summary\nFile by June.",
			"agent_type": "researcher",
			"tokens_used": 812,
			"duration_ms": 4100,
			"confidence": 0.85,
			"risks_flagged": ["SOL runs soon"],
			"citations": ["RSMo 516.120", {"source": "rule", "reference": "Mo.Sup.Ct.R. 55.05", "verified": true}],
			"follow_up_actions": ["Calendar the deadline"]
		}`)
	}))
	defer srv.Close()

	caseID := int64(7)
	c := NewCrewClient(CrewConfig{URL: srv.URL + "/", Logger: testLogger()})
	resp, err := c.Run(context.Background(), domain.RemoteRequest{
		Message:      "limitation period?",
		Jurisdiction: domain.Missouri,
		SessionID:    "s-1",
		CaseID:       &caseID,
		AgentType:    domain.Researcher,
		MatterFacts:  "MATTER: Doe",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 812, resp.TokensUsed)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, domain.RemoteCite{Source: "remote", Reference: "RSMo 516.120"}, resp.Citations[0])
	assert.True(t, resp.Citations[1].Verified)
	assert.Equal(t, []string{"Calendar the deadline"}, resp.FollowUpActions)

	assert.Equal(t, domain.Missouri, got.Jurisdiction)
	require.NotNil(t, got.CaseID)
	assert.EqualValues(t, 7, *got.CaseID)
	assert.Equal(t, domain.Researcher, got.AgentType)
}

func TestCrewClient_ServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"detail":"LLM not configured","fallback":true}`)
	}))
	defer srv.Close()

	c := NewCrewClient(CrewConfig{URL: srv.URL, Logger: testLogger()})
	_, err := c.Run(context.Background(), domain.RemoteRequest{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crew agent 503")
	assert.Contains(t, err.Error(), "LLM not configured")
}

func TestCrewClient_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewCrewClient(CrewConfig{URL: srv.URL, Logger: testLogger()})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Run(ctx, domain.RemoteRequest{Message: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCrewClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = io.WriteString(w, `{"status":"healthy"}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewCrewClient(CrewConfig{URL: srv.URL, Logger: testLogger()})
	assert.NoError(t, c.Health(context.Background()))

	down := NewCrewClient(CrewConfig{URL: srv.URL + "/nope", Logger: testLogger()})
	assert.Error(t, down.Health(context.Background()))
}
