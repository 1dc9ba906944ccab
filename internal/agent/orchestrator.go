package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lawyrs/internal/domain"
	"lawyrs/internal/matter"
	"lawyrs/internal/metrics"
)

// ContextAssembler builds the matter snapshot for a turn.
type ContextAssembler interface {
	Assemble(ctx context.Context, caseID *int64, sessionID string) (domain.MatterContext, error)
}

// Memory is the hybrid memory surface the orchestrator reads and writes.
type Memory interface {
	Search(ctx context.Context, principal domain.Principal, query string, limit int) (domain.MemorySearchResult, error)
	Write(ctx context.Context, mem domain.MemoryEntry) (string, error)
}

// Executor runs one specialist through the generation fallback chain.
type Executor interface {
	Execute(ctx context.Context, job Job) *domain.AgentOutput
}

// TurnRequest is one inbound assistant message. FullCrew runs every
// relevant specialist and folds their answers into the primary's.
type TurnRequest struct {
	Message      string
	SessionID    string
	CaseID       *int64
	Jurisdiction string
	AgentType    string
	DocumentType string
	FullCrew     bool
	Principal    domain.Principal
}

// TurnResult is the answer to a turn.
type TurnResult struct {
	SessionID    string              `json:"session_id"`
	Route        domain.AgentRoute   `json:"route"`
	Output       *domain.AgentOutput `json:"output"`
	MemorySource string              `json:"memory_source"`
}

// OrchestratorConfig wires the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Classifier   *Classifier
	Assembler    ContextAssembler
	Memory       Memory
	Chat         domain.ChatStore
	Executor     Executor
	Sessions     *SessionTracker
	Principal    domain.Principal
	Jurisdiction domain.Jurisdiction

	HistoryLimit      int
	MemorySearchLimit int
	TokenFraction     float64

	Now    func() time.Time
	Logger *slog.Logger
}

// Orchestrator runs the assistant turn lifecycle. It holds no per-turn
// state; concurrent turns share only the stores.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MemorySearchLimit <= 0 {
		cfg.MemorySearchLimit = domain.MaxContextMemories
	}
	if cfg.TokenFraction < 0 {
		cfg.TokenFraction = 0
	}
	if cfg.Jurisdiction == "" {
		cfg.Jurisdiction = domain.DefaultJurisdiction
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}
}

// Classify previews the route for message without running a turn.
func (o *Orchestrator) Classify(message string, history []domain.ConversationTurn) domain.AgentRoute {
	return o.cfg.Classifier.Classify(message, history)
}

// HandleTurn answers one message. The only error class it returns for a
// well-formed request is a failure of the primary case lookup; generation
// failures always degrade to a usable answer.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()
	metrics.ActiveTurns.Inc()
	defer metrics.ActiveTurns.Dec()
	defer metrics.TurnLatency.ObserveSince(start)

	message := strings.TrimSpace(req.Message)
	if message == "" {
		metrics.InvalidRequests.Inc()
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	var forced domain.Specialist
	if req.AgentType != "" {
		s, err := domain.ParseSpecialist(req.AgentType)
		if err != nil {
			metrics.InvalidRequests.Inc()
			return nil, err
		}
		forced = s
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	principal := req.Principal
	if principal == "" {
		principal = o.cfg.Principal
	}
	jurisdiction := o.cfg.Jurisdiction
	if req.Jurisdiction != "" {
		jurisdiction = domain.NormalizeJurisdiction(req.Jurisdiction)
	}
	metrics.TurnsTotal.Inc()

	var (
		mc     domain.MatterContext
		recall domain.MemorySearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mc, err = o.cfg.Assembler.Assemble(gctx, req.CaseID, sessionID)
		if err != nil {
			return fmt.Errorf("assemble matter context: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		recall = o.recall(gctx, principal, message)
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Error("turn aborted", "session", sessionID, "error", err)
		return nil, err
	}

	history := mc.Transcript
	if !mc.TranscriptLoaded {
		history = o.history(ctx, sessionID)
	}

	var route domain.AgentRoute
	if forced != "" {
		route = o.cfg.Classifier.Force(forced)
	} else {
		route = o.cfg.Classifier.Classify(message, history)
	}
	metrics.Routes(string(route.Primary)).Inc()

	o.persist(ctx, domain.ConversationTurn{
		SessionID: sessionID,
		CaseID:    mc.CaseID,
		Principal: principal,
		Role:      domain.RoleUser,
		Content:   message,
	})

	job := Job{
		Specialist:   route.Primary,
		Message:      message,
		Jurisdiction: jurisdiction,
		SessionID:    sessionID,
		Principal:    principal,
		DocumentType: strings.TrimSpace(req.DocumentType),
		Matter:       mc,
		MatterText:   matter.Format(mc),
		PriorMemory:  recall.Entries,
		History:      history,
		Now:          o.cfg.Now(),
	}
	members := team(route, req.FullCrew, message, job.DocumentType)
	switch {
	case req.FullCrew:
		metrics.FullCrewTurns.Inc()
	case len(members) > 1:
		metrics.CoRoutesTotal.Inc()
	}
	outs := o.executeAll(ctx, job, members)
	out := outs[0]
	for _, secondary := range outs[1:] {
		out = MergeOutputs(out, secondary, o.cfg.TokenFraction)
	}

	// Side effects outlive a caller that hangs up once the answer exists.
	persistCtx := context.WithoutCancel(ctx)
	o.persist(persistCtx, domain.ConversationTurn{
		SessionID: sessionID,
		CaseID:    mc.CaseID,
		Principal: principal,
		Role:      domain.RoleAssistant,
		Content:   out.Content,
		AgentType: route.Primary,
		Metadata:  turnMetadata(route, out),
	})
	o.writeMemories(persistCtx, principal, route.Primary, mc.CaseID, out.MemoryWrites)

	if o.cfg.Sessions != nil {
		used := append([]domain.Specialist{route.Primary}, out.SubAgents...)
		_ = o.cfg.Sessions.Track(persistCtx, SessionUsage{
			SessionID:   sessionID,
			CaseID:      mc.CaseID,
			Principal:   principal,
			Specialists: used,
			Tokens:      out.TokensUsed,
			RouteLine:   RouteLine(route),
		})
	}

	o.logger.Info("turn complete",
		"session", sessionID,
		"primary", route.Primary,
		"co_route", route.CoRoute,
		"full_crew", req.FullCrew,
		"tier", out.Tier,
		"tokens", out.TokensUsed,
		"duration", time.Since(start),
	)
	return &TurnResult{
		SessionID:    sessionID,
		Route:        route,
		Output:       out,
		MemorySource: recall.Source,
	}, nil
}

// executeAll runs one job per specialist concurrently, so a co-routed or
// full-crew turn costs one executor budget rather than one per member.
// Results keep the order of members.
func (o *Orchestrator) executeAll(ctx context.Context, base Job, members []domain.Specialist) []*domain.AgentOutput {
	outs := make([]*domain.AgentOutput, len(members))
	var g errgroup.Group
	for i, s := range members {
		i := i
		j := base
		j.Specialist = s
		g.Go(func() error {
			outs[i] = o.cfg.Executor.Execute(ctx, j)
			return nil
		})
	}
	_ = g.Wait()
	return outs
}

func (o *Orchestrator) history(ctx context.Context, sessionID string) []domain.ConversationTurn {
	turns, err := o.cfg.Chat.GetHistory(ctx, sessionID, o.cfg.HistoryLimit)
	if err != nil {
		o.logger.Error("load history failed, continuing without it", "session", sessionID, "error", err)
		return []domain.ConversationTurn{}
	}
	return turns
}

func (o *Orchestrator) recall(ctx context.Context, principal domain.Principal, message string) domain.MemorySearchResult {
	if o.cfg.Memory == nil {
		return domain.MemorySearchResult{Source: domain.SourceLocal, Entries: []domain.MemoryEntry{}}
	}
	res, err := o.cfg.Memory.Search(ctx, principal, message, o.cfg.MemorySearchLimit)
	if err != nil {
		o.logger.Error("memory search failed", "error", err)
	}
	if res.Entries == nil {
		res.Entries = []domain.MemoryEntry{}
	}
	if res.Source == "" {
		res.Source = domain.SourceLocal
	}
	return res
}

func (o *Orchestrator) persist(ctx context.Context, turn domain.ConversationTurn) {
	if err := o.cfg.Chat.AddMessage(ctx, turn); err != nil {
		metrics.LocalStoreFailures.Inc()
		o.logger.Error("persist chat message failed", "session", turn.SessionID, "role", turn.Role, "error", err)
	}
}

func (o *Orchestrator) writeMemories(ctx context.Context, principal domain.Principal, s domain.Specialist, caseID *int64, writes []domain.MemoryWrite) {
	if o.cfg.Memory == nil {
		return
	}
	for _, w := range writes {
		_, err := o.cfg.Memory.Write(ctx, domain.MemoryEntry{
			Principal:  principal,
			Specialist: s,
			Key:        w.Key,
			Value:      w.Value,
			Confidence: w.Confidence,
			CaseID:     caseID,
		})
		if err != nil {
			metrics.LocalStoreFailures.Inc()
			o.logger.Error("memory write failed", "key", w.Key, "error", err)
		}
	}
}

type turnMeta struct {
	Citations  []domain.Citation   `json:"citations"`
	Risks      []string            `json:"risks_flagged"`
	SubAgents  []domain.Specialist `json:"sub_agents"`
	Tier       domain.Tier         `json:"tier"`
	Confidence float64             `json:"confidence"`
	Routing    string              `json:"routing"`
}

func turnMetadata(route domain.AgentRoute, out *domain.AgentOutput) string {
	data, err := json.Marshal(turnMeta{
		Citations:  out.Citations,
		Risks:      out.Risks,
		SubAgents:  out.SubAgents,
		Tier:       out.Tier,
		Confidence: route.Confidence,
		Routing:    route.Reasoning,
	})
	if err != nil {
		return "{}"
	}
	return string(data)
}
