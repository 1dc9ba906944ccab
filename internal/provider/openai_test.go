package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/domain"
)

func TestOpenAI_ConfiguredNeedsKey(t *testing.T) {
	assert.False(t, NewOpenAI(OpenAIConfig{}).Configured())
	assert.True(t, NewOpenAI(OpenAIConfig{APIKey: "sk-test"}).Configured())

	_, err := NewOpenAI(OpenAIConfig{Logger: testLogger()}).Generate(context.Background(), domain.GenerateRequest{Message: "x"})
	assert.Error(t, err)
}

func TestOpenAI_Generate(t *testing.T) {
	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = io.WriteString(w, `{
			"choices": [{"message": {"role": "assistant", "content": "Counsel, file now."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 300, "completion_tokens": 40, "total_tokens": 340}
		}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "sk-test", APIBase: srv.URL + "/v1/", Model: "gpt-test", Logger: testLogger()})
	resp, err := o.Generate(context.Background(), domain.GenerateRequest{
		SystemIdentity: "You are a senior partner.",
		Specialty:      "ROLE: Researcher",
		MatterContext:  "MATTER: Doe v. Acme",
		Grounding:      "K.S.A. 60-513",
		History: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "earlier question"},
			{Role: domain.RoleAssistant, Content: "earlier answer"},
			{Role: domain.RoleSystem, Content: "ignored"},
		},
		Message:     "When does the claim expire?",
		MaxTokens:   256,
		Temperature: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Counsel, file now.", resp.Content)
	assert.Equal(t, 340, resp.TokensUsed)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.1, *got.Temperature, 1e-9)

	roles := make([]string, 0, len(got.Messages))
	for _, m := range got.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"system", "system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "You are a senior partner.\n\nROLE: Researcher", got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "MATTER CONTEXT:\nMATTER: Doe v. Acme")
	assert.Contains(t, got.Messages[1].Content, "GROUNDING:\nK.S.A. 60-513")
	assert.NotContains(t, got.Messages[1].Content, "PRIOR MEMORY")
	assert.Equal(t, "When does the claim expire?", got.Messages[4].Content)
}

func TestOpenAI_UsageFallsBackToParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	resp, err := o.Generate(context.Background(), domain.GenerateRequest{Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, 15, resp.TokensUsed)
}

func TestOpenAI_Errors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":     {http.StatusInternalServerError, `{"error":"boom"}`},
		"rate limited":     {http.StatusTooManyRequests, `{"error":"slow down"}`},
		"no choices":       {http.StatusOK, `{"choices":[]}`},
		"blank completion": {http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`},
		"bad json":         {http.StatusOK, `{"choices":`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			o := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
			_, err := o.Generate(context.Background(), domain.GenerateRequest{Message: "x"})
			assert.Error(t, err)
		})
	}
}

func TestOpenAI_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	assert.NoError(t, NewOpenAI(OpenAIConfig{APIKey: "good", APIBase: srv.URL}).Healthy(context.Background()))
	err := NewOpenAI(OpenAIConfig{APIKey: "bad", APIBase: srv.URL}).Healthy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}
