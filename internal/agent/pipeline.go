package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lawyrs/internal/domain"
	"lawyrs/internal/matter"
	"lawyrs/internal/metrics"
)

// Strategy is one way of producing a specialist's answer. A nil output with
// a nil error means the strategy had nothing to offer (for example because it
// is not configured); the pipeline moves on silently.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, job Job) (*domain.AgentOutput, error)
}

// Stage is a strategy plus the timeout of one attempt.
type Stage struct {
	Strategy Strategy
	Timeout  time.Duration
}

// Pipeline runs stages in order and returns the first non-nil output.
type Pipeline struct {
	stages []Stage
	budget time.Duration
	logger *slog.Logger
}

func NewPipeline(stages []Stage, budget time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, budget: budget, logger: logger}
}

// Names lists the stage names in preference order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Strategy.Name()
	}
	return names
}

// Execute produces an output for job. It never returns nil: when every stage
// comes back empty the deterministic template answers.
func (p *Pipeline) Execute(ctx context.Context, job Job) *domain.AgentOutput {
	start := time.Now()
	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}

	var out *domain.AgentOutput
	for i, st := range p.stages {
		o, err := p.attempt(ctx, st, job)
		if err != nil {
			p.logger.Warn("generation stage failed, trying next",
				"stage", st.Strategy.Name(),
				"specialist", job.Specialist,
				"attempt", i+1,
				"error", err,
			)
			continue
		}
		if o != nil {
			out = o
			break
		}
	}
	if out == nil {
		out = Deterministic(job)
	}

	if out.Specialist == "" {
		out.Specialist = job.Specialist
	}
	if out.DurationMs == 0 {
		out.DurationMs = time.Since(start).Milliseconds()
	}
	metrics.TierOutputs(string(out.Tier)).Inc()
	return out
}

func (p *Pipeline) attempt(ctx context.Context, st Stage, job Job) (*domain.AgentOutput, error) {
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}
	return st.Strategy.Generate(ctx, job)
}

// RemoteStrategy asks the remote agent service for the answer.
type RemoteStrategy struct {
	agent  domain.RemoteAgent
	logger *slog.Logger
}

func NewRemoteStrategy(agent domain.RemoteAgent, logger *slog.Logger) *RemoteStrategy {
	return &RemoteStrategy{agent: agent, logger: logger}
}

func (r *RemoteStrategy) Name() string { return string(domain.TierRemote) }

func (r *RemoteStrategy) Generate(ctx context.Context, job Job) (*domain.AgentOutput, error) {
	if r.agent == nil || !r.agent.Enabled() {
		return nil, nil
	}

	start := time.Now()
	resp, err := r.agent.Run(ctx, domain.RemoteRequest{
		Message:      job.Message,
		Jurisdiction: job.Jurisdiction,
		SessionID:    job.SessionID,
		CaseID:       job.Matter.CaseID,
		AgentType:    job.Specialist,
		DocumentType: job.DocumentType,
		MatterFacts:  matterFacts(job),
	})
	metrics.RemoteLatency.ObserveSince(start)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	if !resp.Success {
		return nil, fmt.Errorf("remote agent: %s", orUnknown(resp.Error))
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, errors.New("remote agent: empty content")
	}

	out := &domain.AgentOutput{
		Content:         resp.Content,
		Specialist:      job.Specialist,
		Confidence:      resp.Confidence,
		TokensUsed:      resp.TokensUsed,
		DurationMs:      resp.DurationMs,
		Citations:       make([]domain.Citation, 0, len(resp.Citations)),
		Risks:           nonNilSlice(resp.RisksFlagged),
		FollowUpActions: nonNilSlice(resp.FollowUpActions),
		MemoryWrites:    []domain.MemoryWrite{},
		SubAgents:       []domain.Specialist{},
		Tier:            domain.TierRemote,
	}
	for _, c := range resp.Citations {
		out.Citations = append(out.Citations, domain.Citation(c))
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		out.Confidence = 0.8
	}
	if out.DurationMs == 0 {
		out.DurationMs = time.Since(start).Milliseconds()
	}
	return out, nil
}

func matterFacts(job Job) string {
	if job.Matter.Empty() {
		return ""
	}
	return job.MatterText
}

func orUnknown(s string) string {
	if s == "" {
		return "unsuccessful response"
	}
	return s
}

// LocalParams tunes the text-generation call of a LocalStrategy.
type LocalParams struct {
	MaxTokens    int
	Temperature  float64
	HistoryTurns int
}

// LocalStrategy renders the deterministic answer and, when a text generator is
// configured, asks it to rewrite the answer with the computed facts as
// grounding. It always returns an output.
type LocalStrategy struct {
	gen     domain.TextGenerator
	limiter *RateLimiter
	params  LocalParams
	logger  *slog.Logger
}

func NewLocalStrategy(gen domain.TextGenerator, limiter *RateLimiter, params LocalParams, logger *slog.Logger) *LocalStrategy {
	if params.HistoryTurns <= 0 {
		params.HistoryTurns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStrategy{gen: gen, limiter: limiter, params: params, logger: logger}
}

func (l *LocalStrategy) Name() string { return "local" }

func (l *LocalStrategy) Generate(ctx context.Context, job Job) (*domain.AgentOutput, error) {
	out := Deterministic(job)
	if l.gen == nil || !l.gen.Configured() {
		return out, nil
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			metrics.LLMRateLimited.Inc()
			l.logger.Warn("text generation skipped", "specialist", job.Specialist, "error", err)
			return out, nil
		}
	}

	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	resp, err := l.gen.Generate(ctx, domain.GenerateRequest{
		SystemIdentity: SystemIdentity(job.Jurisdiction, job.Now),
		Specialty:      Specialty(job.Specialist, job.Jurisdiction),
		MatterContext:  job.MatterText,
		PriorMemory:    matter.FormatMemories(job.PriorMemory),
		Grounding:      grounding(out),
		History:        lastTurns(job.History, l.params.HistoryTurns),
		Message:        job.Message,
		MaxTokens:      l.params.MaxTokens,
		Temperature:    l.params.Temperature,
	})
	metrics.LLMLatency.ObserveSince(start)
	if err != nil {
		l.logger.Warn("text generation failed, keeping template", "generator", l.gen.Name(), "specialist", job.Specialist, "error", err)
		return out, nil
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		l.logger.Warn("text generation returned no content, keeping template", "generator", l.gen.Name())
		return out, nil
	}

	out.Content = resp.Content
	out.TokensUsed += resp.TokensUsed
	out.Tier = domain.TierLLM
	return out, nil
}

// grounding renders the computed facts of a deterministic output for the
// generator.
func grounding(out *domain.AgentOutput) string {
	var b strings.Builder
	b.WriteString("Computed analysis (keep these facts, rewrite the prose):\n")
	b.WriteString(out.Content)
	if len(out.Citations) > 0 {
		b.WriteString("\n\nCitations to use:\n")
		for _, c := range out.Citations {
			fmt.Fprintf(&b, "- %s", c.Reference)
			if c.URL != "" {
				fmt.Fprintf(&b, " (%s)", c.URL)
			}
			b.WriteByte('\n')
		}
	}
	if len(out.Risks) > 0 {
		b.WriteString("\nRisks to flag:\n")
		bullets(&b, out.Risks)
	}
	return strings.TrimRight(b.String(), "\n")
}

// lastTurns returns the newest n turns, oldest first.
func lastTurns(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
