package domain

import (
	"context"
	"encoding/json"
)

// TextGenerator is a generic text-generation backend.
type TextGenerator interface {
	Name() string
	// Configured reports whether a credential is present. An unconfigured
	// generator is skipped silently.
	Configured() bool
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest carries every prompt ingredient for one generation call.
type GenerateRequest struct {
	SystemIdentity string
	Specialty      string
	MatterContext  string
	PriorMemory    string
	Grounding      string
	History        []ConversationTurn
	Message        string
	MaxTokens      int
	Temperature    float64
}

type GenerateResponse struct {
	Content    string
	TokensUsed int
}

// RemoteAgent is the external agent service tried before local generation.
type RemoteAgent interface {
	Enabled() bool
	Run(ctx context.Context, req RemoteRequest) (*RemoteResponse, error)
}

type RemoteRequest struct {
	Message      string       `json:"message"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	SessionID    string       `json:"session_id,omitempty"`
	CaseID       *int64       `json:"case_id,omitempty"`
	AgentType    Specialist   `json:"agent_type,omitempty"`
	DocumentType string       `json:"document_type,omitempty"`
	MatterFacts  string       `json:"matter_facts,omitempty"`
}

type RemoteResponse struct {
	Success         bool         `json:"success"`
	Content         string       `json:"content"`
	AgentType       string       `json:"agent_type"`
	TokensUsed      int          `json:"tokens_used"`
	DurationMs      int64        `json:"duration_ms"`
	Confidence      float64      `json:"confidence"`
	RisksFlagged    []string     `json:"risks_flagged"`
	Citations       []RemoteCite `json:"citations"`
	FollowUpActions []string     `json:"follow_up_actions"`
	Error           string       `json:"error,omitempty"`
}

// RemoteCite is a citation from the remote service, sent either as a bare
// reference string or as an object.
type RemoteCite struct {
	Source    string `json:"source"`
	Reference string `json:"reference"`
	URL       string `json:"url"`
	Verified  bool   `json:"verified"`
}

func (c *RemoteCite) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*c = RemoteCite{Source: "remote", Reference: ref}
		return nil
	}
	type plain RemoteCite
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = RemoteCite(p)
	return nil
}
