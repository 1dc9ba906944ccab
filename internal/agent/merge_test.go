package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/domain"
)

func drafterOutput() *domain.AgentOutput {
	return &domain.AgentOutput{
		Content:    "# Draft\n\n## Summary\nMotion drafted.\n\n## Document\nbody",
		Specialist: domain.Drafter,
		TokensUsed: 100,
		Citations: []domain.Citation{
			{Source: "court_rule", Reference: "Mo.Sup.Ct.R. 55.05"},
			{Source: "court_rule", Reference: "Mo.Sup.Ct.R. 56.01(b)"},
		},
		Risks:        []string{"fact pleading"},
		MemoryWrites: []domain.MemoryWrite{{Key: "draft:motion", Value: "v"}},
		SubAgents:    []domain.Specialist{},
		Tier:         domain.TierTemplate,
	}
}

func analystOutput() *domain.AgentOutput {
	return &domain.AgentOutput{
		Content:    "# Risk\n\n## Summary\nOverall risk 6.2/10 (moderate).\n\n## Risk Scorecard\n| x |",
		Specialist: domain.Analyst,
		TokensUsed: 100,
		Citations: []domain.Citation{
			{Source: "court_rule", Reference: "Mo.Sup.Ct.R. 56.01(b)"},
			{Source: "statute", Reference: "RSMo 537.765"},
		},
		Risks:        []string{"fact pleading", "a", "b", "c"},
		MemoryWrites: []domain.MemoryWrite{{Key: "risk_score", Value: "6.2"}, {Key: "draft:motion", Value: "v"}},
		SubAgents:    []domain.Specialist{domain.Researcher},
		Tier:         domain.TierLLM,
	}
}

func TestMergeOutputs(t *testing.T) {
	primary, secondary := drafterOutput(), analystOutput()
	before := *primary

	merged := MergeOutputs(primary, secondary, 0.3)

	assert.Equal(t, []domain.Specialist{domain.Analyst}, merged.SubAgents, "one-level merge ignores the secondary's own sub-agents")
	assert.Equal(t, 130, merged.TokensUsed)

	refs := make([]string, 0, len(merged.Citations))
	for _, c := range merged.Citations {
		refs = append(refs, c.Reference)
	}
	assert.Equal(t, []string{"Mo.Sup.Ct.R. 55.05", "Mo.Sup.Ct.R. 56.01(b)", "RSMo 537.765"}, refs)
	assert.Equal(t, []string{"fact pleading", "a", "b", "c"}, merged.Risks)
	assert.Len(t, merged.MemoryWrites, 3, "memory writes are concatenated without dedupe")

	assert.True(t, strings.HasPrefix(merged.Content, "# Draft"))
	assert.Contains(t, merged.Content, "## Analyst Perspective\n\nOverall risk 6.2/10 (moderate).")
	assert.NotContains(t, merged.Content, "Risk Scorecard")
	assert.Contains(t, merged.Content, "Key risks:\n- fact pleading\n- a\n- b")
	assert.NotContains(t, merged.Content, "- c")

	assert.Equal(t, domain.Drafter, merged.Specialist)
	assert.Equal(t, domain.TierTemplate, merged.Tier)
	assert.Equal(t, before.Content, primary.Content, "inputs are not mutated")
	assert.Len(t, primary.Citations, 2)
	assert.Empty(t, primary.SubAgents)
}

func TestMergeOutputs_NoSummaryUsesPrefix(t *testing.T) {
	secondary := analystOutput()
	secondary.Content = strings.Repeat("word ", 400)
	secondary.Risks = nil

	merged := MergeOutputs(drafterOutput(), secondary, 0.3)
	i := strings.Index(merged.Content, "## Analyst Perspective")
	require.Positive(t, i)
	tail := merged.Content[i:]
	assert.Less(t, len(tail), excerptLimit+60)
	assert.True(t, strings.HasSuffix(tail, "..."))
	assert.NotContains(t, tail, "Key risks")
}

func TestMergeOutputs_NilSecondary(t *testing.T) {
	p := drafterOutput()
	merged := MergeOutputs(p, nil, 0.3)
	assert.Equal(t, p.Content, merged.Content)
	assert.Equal(t, 100, merged.TokensUsed)
	assert.NotSame(t, p, merged)
}

func TestSection(t *testing.T) {
	body, ok := section("# T\n## Summary\nline one\nline two\n## Next\nx", "Summary")
	require.True(t, ok)
	assert.Equal(t, "line one\nline two", body)

	_, ok = section("no headings", "Summary")
	assert.False(t, ok)
}
