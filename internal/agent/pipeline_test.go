package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/domain"
)

// fakeRemote is a domain.RemoteAgent with a canned answer or error.
type fakeRemote struct {
	mu       sync.Mutex
	enabled  bool
	resp     *domain.RemoteResponse
	err      error
	delay    time.Duration
	calls    int
	last     domain.RemoteRequest
	requests []domain.RemoteRequest
}

func (f *fakeRemote) Enabled() bool { return f.enabled }

func (f *fakeRemote) Run(ctx context.Context, req domain.RemoteRequest) (*domain.RemoteResponse, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

// fakeGenerator is a domain.TextGenerator.
type fakeGenerator struct {
	mu         sync.Mutex
	configured bool
	content    string
	tokens     int
	err        error
	requests   []domain.GenerateRequest
}

func (f *fakeGenerator) Name() string     { return "fake" }
func (f *fakeGenerator) Configured() bool { return f.configured }

func (f *fakeGenerator) Generate(_ context.Context, req domain.GenerateRequest) (*domain.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.GenerateResponse{Content: f.content, TokensUsed: f.tokens}, nil
}

func newTestPipeline(remote domain.RemoteAgent, gen domain.TextGenerator, limiter *RateLimiter) *Pipeline {
	return NewPipeline([]Stage{
		{Strategy: NewRemoteStrategy(remote, testLogger()), Timeout: 200 * time.Millisecond},
		{Strategy: NewLocalStrategy(gen, limiter, LocalParams{MaxTokens: 512, Temperature: 0.1}, testLogger()), Timeout: time.Second},
	}, 2*time.Second, testLogger())
}

func TestPipeline_RemoteSuccessSkipsLocal(t *testing.T) {
	remote := &fakeRemote{enabled: true, resp: &domain.RemoteResponse{
		Success: true, Content: "remote memo", TokensUsed: 900, Confidence: 0.9,
		RisksFlagged: []string{"SOL"},
		Citations:    []domain.RemoteCite{{Source: "statute", Reference: "RSMo 516.120"}},
	}}
	gen := &fakeGenerator{configured: true, content: "llm"}

	j := job(domain.Researcher, "sol?", domain.Missouri)
	j.MatterText = "MATTER: Doe v. Acme Freight (2025-CV-0042)"
	j.DocumentType = "demand_letter"
	out := newTestPipeline(remote, gen, nil).Execute(context.Background(), j)

	assert.Equal(t, domain.TierRemote, out.Tier)
	assert.Equal(t, "remote memo", out.Content)
	assert.Equal(t, 900, out.TokensUsed)
	assert.Equal(t, []string{"RSMo 516.120"}, refs(out.Citations))
	assert.Empty(t, gen.requests)
	assert.Equal(t, domain.Missouri, remote.last.Jurisdiction)
	require.NotNil(t, remote.last.CaseID)
	assert.EqualValues(t, 42, *remote.last.CaseID)
	assert.Equal(t, j.MatterText, remote.last.MatterFacts)
	assert.Equal(t, domain.Researcher, remote.last.AgentType)
	assert.Equal(t, "demand_letter", remote.last.DocumentType)
}

func TestPipeline_RemoteFailuresFallToTemplate(t *testing.T) {
	cases := map[string]*fakeRemote{
		"error":           {enabled: true, err: errors.New("crew agent 503: LLM not configured")},
		"unsuccessful":    {enabled: true, resp: &domain.RemoteResponse{Success: false, Error: "boom"}},
		"empty content":   {enabled: true, resp: &domain.RemoteResponse{Success: true, Content: "  "}},
		"timeout":         {enabled: true, delay: time.Second, resp: &domain.RemoteResponse{Success: true, Content: "late"}},
		"disabled":        {enabled: false},
		"nil response ok": {enabled: true},
	}
	for name, remote := range cases {
		t.Run(name, func(t *testing.T) {
			out := newTestPipeline(remote, nil, nil).Execute(context.Background(), job(domain.Analyst, "risk", domain.Kansas))
			require.NotNil(t, out)
			assert.Equal(t, domain.TierTemplate, out.Tier)
			assert.Equal(t, domain.Analyst, out.Specialist)
			assert.Contains(t, out.Content, "## Risk Scorecard")
		})
	}
}

func TestPipeline_LLMReplacesTextKeepsFacts(t *testing.T) {
	gen := &fakeGenerator{configured: true, content: "Polished answer from the model.", tokens: 321}
	j := job(domain.Researcher, "statute of limitations", domain.Kansas)
	j.History = make([]domain.ConversationTurn, 15)
	template := Deterministic(j)

	out := newTestPipeline(&fakeRemote{}, gen, nil).Execute(context.Background(), j)

	assert.Equal(t, domain.TierLLM, out.Tier)
	assert.Equal(t, "Polished answer from the model.", out.Content)
	assert.NotEqual(t, template.Content, out.Content)
	assert.Equal(t, template.Citations, out.Citations)
	assert.Equal(t, template.Risks, out.Risks)
	assert.Equal(t, template.MemoryWrites, out.MemoryWrites)
	assert.Equal(t, 321, out.TokensUsed)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Contains(t, req.SystemIdentity, "Current date: 2026-10-15")
	assert.Contains(t, req.SystemIdentity, "Governing jurisdiction for this request: Kansas")
	assert.Contains(t, req.Specialty, "ROLE: Researcher")
	assert.Contains(t, req.Grounding, "K.S.A. 60-513")
	assert.Len(t, req.History, 10)
	assert.Equal(t, 512, req.MaxTokens)
}

func TestPipeline_LLMFailureKeepsTemplate(t *testing.T) {
	gen := &fakeGenerator{configured: true, err: errors.New("openai 500")}
	out := newTestPipeline(&fakeRemote{}, gen, nil).Execute(context.Background(), job(domain.Drafter, "draft a letter", domain.Missouri))
	assert.Equal(t, domain.TierTemplate, out.Tier)
	assert.Contains(t, out.Content, "## Summary")
}

func TestPipeline_UnconfiguredGeneratorIsSkipped(t *testing.T) {
	gen := &fakeGenerator{configured: false, content: "never"}
	out := newTestPipeline(&fakeRemote{}, gen, nil).Execute(context.Background(), job(domain.Strategist, "plan", domain.Missouri))
	assert.Equal(t, domain.TierTemplate, out.Tier)
	assert.Empty(t, gen.requests)
}

func TestPipeline_RateLimitedCallKeepsTemplate(t *testing.T) {
	limiter := NewRateLimiter(1, 1) // next token in a minute, stage timeout is a second
	require.NoError(t, limiter.Wait(context.Background()))
	gen := &fakeGenerator{configured: true, content: "llm"}

	out := newTestPipeline(&fakeRemote{}, gen, limiter).Execute(context.Background(), job(domain.Analyst, "risk", domain.Kansas))

	assert.Equal(t, domain.TierTemplate, out.Tier)
	assert.Empty(t, gen.requests)
}

// emptyStrategy never produces anything.
type emptyStrategy struct{}

func (emptyStrategy) Name() string { return "empty" }
func (emptyStrategy) Generate(context.Context, Job) (*domain.AgentOutput, error) {
	return nil, nil
}

func TestPipeline_AllStagesEmptyStillAnswers(t *testing.T) {
	p := NewPipeline([]Stage{{Strategy: emptyStrategy{}}}, 0, testLogger())
	out := p.Execute(context.Background(), job(domain.Drafter, "x", domain.Kansas))
	require.NotNil(t, out)
	assert.Equal(t, domain.TierTemplate, out.Tier)
	assert.Equal(t, []string{"empty"}, p.Names())
}

func TestPipeline_ExhaustedBudgetStillAnswers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{configured: true, content: "llm"}

	out := newTestPipeline(&fakeRemote{enabled: true, delay: time.Second}, gen, NewRateLimiter(5, 60)).Execute(ctx, job(domain.Researcher, "rule", domain.Missouri))
	assert.Equal(t, domain.TierTemplate, out.Tier)
}
