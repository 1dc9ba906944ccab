package domain

import (
	"context"
	"time"
)

// Principal is the owner identity a turn runs on behalf of. Memory rows,
// sessions and chat messages are attributed to it.
type Principal string

// Roles of a ConversationTurn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn is one persisted chat message. Immutable once stored.
type ConversationTurn struct {
	ID        int64      `json:"id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	CaseID    *int64     `json:"case_id,omitempty"`
	Principal Principal  `json:"principal,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	AgentType Specialist `json:"agent_type,omitempty"`
	Metadata  string     `json:"metadata,omitempty"` // JSON blob: citations, risks, tier
	CreatedAt time.Time  `json:"created_at"`
}

// Memory sources. Callers use them to tell which store answered a search.
const (
	SourceLocal = "local"
	SourceCloud = "cloud"
)

// MemoryEntry is a durable, specialist-attributed fact.
type MemoryEntry struct {
	ID         string     `json:"id"`
	Principal  Principal  `json:"principal,omitempty"`
	Specialist Specialist `json:"agent_type"`
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	CaseID     *int64     `json:"case_id,omitempty"`
	Source     string     `json:"source"`
	Score      float64    `json:"score,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MemoryWrite is a fact a specialist asks to persist after the turn.
type MemoryWrite struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// MemoryQuery filters a targeted local read. Zero fields do not filter.
type MemoryQuery struct {
	Principal  Principal
	Specialist Specialist
	Key        string
	CaseID     *int64
	Limit      int
}

// MemorySearchResult is a free-text search answer tagged with its source.
type MemorySearchResult struct {
	Source  string        `json:"source"`
	Entries []MemoryEntry `json:"entries"`
}

// MemoryStats merges counts from both stores.
type MemoryStats struct {
	LocalTotal        int                `json:"local_total"`
	LocalBySpecialist map[Specialist]int `json:"local_by_specialist"`
	CloudEnabled      bool               `json:"cloud_enabled"`
	CloudTotal        int                `json:"cloud_total"`
}

// Session is the per-conversation usage summary.
type Session struct {
	ID          string       `json:"id"`
	CaseID      *int64       `json:"case_id,omitempty"`
	Principal   Principal    `json:"principal,omitempty"`
	AgentsUsed  []Specialist `json:"agents_used"`
	TotalTokens int          `json:"total_tokens"`
	RoutingLog  string       `json:"routing_log"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// MemoryStore is the local relational system of record for memory facts.
type MemoryStore interface {
	SaveMemory(ctx context.Context, mem MemoryEntry) (string, error)
	GetMemories(ctx context.Context, q MemoryQuery) ([]MemoryEntry, error)
	SearchMemories(ctx context.Context, principal Principal, query string, limit int) ([]MemoryEntry, error)
	CountMemories(ctx context.Context, principal Principal) (map[Specialist]int, error)
}

// ChatStore persists the conversation transcript.
type ChatStore interface {
	AddMessage(ctx context.Context, turn ConversationTurn) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]ConversationTurn, error)
}

// SessionStore persists Session records. GetSession returns nil, nil when
// the session does not exist yet.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	CreateSession(ctx context.Context, s Session) error
	UpdateSession(ctx context.Context, s Session) error
}

// CloudMemory is the optional semantic-memory service. A disabled client
// answers every call with an empty result and a nil error.
type CloudMemory interface {
	Enabled() bool
	Add(ctx context.Context, mem MemoryEntry) (string, error)
	Search(ctx context.Context, principal Principal, query string, limit int) ([]MemoryEntry, error)
	List(ctx context.Context, principal Principal) ([]MemoryEntry, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, principal Principal) (int, error)
}

// CaseData is the read-only view over case, document, task, event and
// billing tables. GetCase returns nil, nil for an unknown id.
type CaseData interface {
	GetCase(ctx context.Context, id int64) (*CaseRecord, error)
	RecentDocuments(ctx context.Context, caseID int64, limit int) ([]DocumentSummary, error)
	UpcomingTasks(ctx context.Context, caseID int64, limit int) ([]TaskSummary, error)
	UpcomingEvents(ctx context.Context, caseID int64, limit int) ([]EventSummary, error)
	Billing(ctx context.Context, caseID int64) (*BillingSummary, error)
}
