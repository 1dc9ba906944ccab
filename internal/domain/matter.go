package domain

import "time"

// Slice limits for a MatterContext.
const (
	MaxContextDocuments = 10
	MaxContextTasks     = 10
	MaxContextEvents    = 5
	MaxContextMemories  = 5
)

// MatterContext is the read-only snapshot of a case assembled once per turn.
// With no case selected every scalar is nil and every slice is empty.
type MatterContext struct {
	CaseID        *int64  `json:"case_id"`
	CaseNumber    *string `json:"case_number"`
	Title         *string `json:"title"`
	CaseType      *string `json:"case_type"`
	Status        *string `json:"status"`
	ClientName    *string `json:"client_name"`
	OpposingParty *string `json:"opposing_party"`
	Court         *string `json:"court"`
	Judge         *string `json:"judge"`
	Description   *string `json:"description"`

	Documents []DocumentSummary `json:"documents"`
	Tasks     []TaskSummary     `json:"tasks"`
	Events    []EventSummary    `json:"events"`
	Billing   *BillingSummary   `json:"billing"`

	PriorResearch []MemoryEntry `json:"prior_research"`
	PriorAnalysis []MemoryEntry `json:"prior_analysis"`

	// Transcript is the recent conversation, oldest first.
	Transcript []ConversationTurn `json:"transcript"`
	// TranscriptLoaded is set when the assembler read the transcript, even
	// if the read degraded to empty.
	TranscriptLoaded bool `json:"-"`
}

// EmptyMatterContext returns the all-null context used when no case resolves.
func EmptyMatterContext() MatterContext {
	return MatterContext{
		Documents:     []DocumentSummary{},
		Tasks:         []TaskSummary{},
		Events:        []EventSummary{},
		PriorResearch: []MemoryEntry{},
		PriorAnalysis: []MemoryEntry{},
		Transcript:    []ConversationTurn{},
	}
}

// Empty reports whether no case is selected.
func (m MatterContext) Empty() bool { return m.CaseID == nil }

// Str dereferences an optional string field.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type DocumentSummary struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	FileType  string `json:"file_type"`
	Category  string `json:"category"`
	Status    string `json:"status"`
	AISummary string `json:"ai_summary,omitempty"`
}

type TaskSummary struct {
	Title    string     `json:"title"`
	Priority string     `json:"priority"`
	Status   string     `json:"status"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

type EventSummary struct {
	Title     string    `json:"title"`
	EventType string    `json:"event_type"`
	StartAt   time.Time `json:"start_at"`
	Location  string    `json:"location,omitempty"`
}

type BillingSummary struct {
	TotalBilled      float64 `json:"total_billed"`
	TotalPaid        float64 `json:"total_paid"`
	TotalOutstanding float64 `json:"total_outstanding"`
	TotalHours       float64 `json:"total_hours"`
	AvgRate          float64 `json:"avg_rate"`
}

// CaseRecord is the identity row of a case as read from the store.
type CaseRecord struct {
	ID            int64
	CaseNumber    string
	Title         string
	CaseType      string
	Status        string
	ClientName    string
	OpposingParty string
	Court         string
	Judge         string
	Description   string
}
