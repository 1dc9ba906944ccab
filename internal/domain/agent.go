package domain

// Tier records which generation backend produced an AgentOutput.
type Tier string

const (
	TierRemote   Tier = "remote"
	TierLLM      Tier = "llm"
	TierTemplate Tier = "template"
)

// AgentRoute is the classifier's decision for a turn.
type AgentRoute struct {
	Primary    Specialist         `json:"primary"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	CoRoute    *Specialist        `json:"co_route,omitempty"`
	Scores     map[Specialist]int `json:"scores,omitempty"`
}

// Citation is one source reference in an AgentOutput.
type Citation struct {
	Source    string `json:"source"` // statute | rule | case_law | court_rule | matter
	Reference string `json:"reference"`
	URL       string `json:"url,omitempty"`
	Verified  bool   `json:"verified"`
}

// AgentOutput is a specialist's result for one turn. The pipeline builds it
// fresh and it is not mutated after merging.
type AgentOutput struct {
	Content         string        `json:"content"`
	Specialist      Specialist    `json:"agent_type"`
	Confidence      float64       `json:"confidence"`
	TokensUsed      int           `json:"tokens_used"`
	DurationMs      int64         `json:"duration_ms"`
	Citations       []Citation    `json:"citations"`
	Risks           []string      `json:"risks_flagged"`
	FollowUpActions []string      `json:"follow_up_actions"`
	MemoryWrites    []MemoryWrite `json:"memory_updates"`
	SubAgents       []Specialist  `json:"sub_agents"`
	Tier            Tier          `json:"tier"`
}
