// Package api serves the assistant over HTTP for the practice-management
// front-end.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"lawyrs/internal/agent"
	"lawyrs/internal/domain"
	"lawyrs/internal/metrics"
)

// Assistant runs and previews turns.
type Assistant interface {
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Classify(message string, history []domain.ConversationTurn) domain.AgentRoute
}

// MemoryService is the hybrid memory surface exposed for inspection.
type MemoryService interface {
	Search(ctx context.Context, principal domain.Principal, query string, limit int) (domain.MemorySearchResult, error)
	Read(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryEntry, error)
	Stats(ctx context.Context, principal domain.Principal) (domain.MemoryStats, error)
	List(ctx context.Context, principal domain.Principal) ([]domain.MemoryEntry, error)
	Delete(ctx context.Context, id string) error
}

type SessionReader interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
}

type HistoryReader interface {
	GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteChecker reports on the remote agent service.
type RemoteChecker interface {
	Enabled() bool
	Health(ctx context.Context) error
}

// Deps are the collaborators of the router. Remote and LLM may be nil.
type Deps struct {
	Assistant   Assistant
	Sessions    SessionReader
	History     HistoryReader
	Memory      MemoryService
	Store       Pinger
	Remote      RemoteChecker
	LLM         domain.TextGenerator
	Principal   domain.Principal
	APIKey      string
	MetricsPath string // empty disables /metrics
	Version     string
	Logger      *slog.Logger
}

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(d.Logger))
	r.Use(Recovery(d.Logger))

	healthH := &HealthHandler{store: d.Store, remote: d.Remote, llm: d.LLM, version: d.Version}
	chatH := &ChatHandler{assistant: d.Assistant, history: d.History, logger: d.Logger}
	sessionH := &SessionHandler{sessions: d.Sessions, history: d.History}
	memoryH := &MemoryHandler{memory: d.Memory, principal: d.Principal}

	r.Get("/health", healthH.Health)
	if d.MetricsPath != "" {
		r.Get(d.MetricsPath, metrics.Collector.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(d.APIKey))

		r.Route("/api/assistant", func(r chi.Router) {
			r.Post("/chat", chatH.Chat)
			r.Get("/classify", chatH.Classify)
			r.Get("/sessions/{id}", sessionH.Get)

			r.Route("/memory", func(r chi.Router) {
				r.Get("/", memoryH.List)
				r.Post("/search", memoryH.Search)
				r.Get("/stats", memoryH.Stats)
				r.Get("/cloud", memoryH.CloudList)
				r.Delete("/{id}", memoryH.Delete)
			})
		})
	})

	return r
}
