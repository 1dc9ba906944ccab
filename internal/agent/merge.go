package agent

import (
	"fmt"
	"math"
	"strings"

	"lawyrs/internal/domain"
)

const (
	excerptLimit  = 600
	mergedRiskCap = 3
)

// MergeOutputs folds a co-routed secondary output into the primary and
// returns the merged copy. Neither input is modified. The merge is one level
// deep: SubAgents of the secondary are not followed.
func MergeOutputs(primary, secondary *domain.AgentOutput, tokenFraction float64) *domain.AgentOutput {
	if primary == nil {
		return secondary
	}
	merged := *primary
	merged.Citations = append([]domain.Citation{}, primary.Citations...)
	merged.Risks = append([]string{}, primary.Risks...)
	merged.FollowUpActions = append([]string{}, primary.FollowUpActions...)
	merged.MemoryWrites = append([]domain.MemoryWrite{}, primary.MemoryWrites...)
	merged.SubAgents = append([]domain.Specialist{}, primary.SubAgents...)
	if secondary == nil {
		return &merged
	}

	merged.SubAgents = append(merged.SubAgents, secondary.Specialist)
	merged.TokensUsed += int(math.Round(float64(secondary.TokensUsed) * tokenFraction))

	seenRef := make(map[string]bool, len(merged.Citations))
	for _, c := range merged.Citations {
		seenRef[c.Reference] = true
	}
	for _, c := range secondary.Citations {
		if !seenRef[c.Reference] {
			seenRef[c.Reference] = true
			merged.Citations = append(merged.Citations, c)
		}
	}

	seenRisk := make(map[string]bool, len(merged.Risks))
	for _, r := range merged.Risks {
		seenRisk[r] = true
	}
	for _, r := range secondary.Risks {
		if !seenRisk[r] {
			seenRisk[r] = true
			merged.Risks = append(merged.Risks, r)
		}
	}

	merged.MemoryWrites = append(merged.MemoryWrites, secondary.MemoryWrites...)

	var b strings.Builder
	b.WriteString(strings.TrimRight(primary.Content, "\n"))
	fmt.Fprintf(&b, "\n\n---\n\n## %s Perspective\n\n", secondary.Specialist.Title())
	b.WriteString(condense(secondary.Content))
	if len(secondary.Risks) > 0 {
		b.WriteString("\n\nKey risks:\n")
		bullets(&b, secondary.Risks[:min(len(secondary.Risks), mergedRiskCap)])
	}
	merged.Content = strings.TrimRight(b.String(), "\n")
	return &merged
}

// condense returns the body of the "## Summary" section of content, or a
// fixed-length prefix when there is none.
func condense(content string) string {
	if s, ok := section(content, "Summary"); ok && s != "" {
		return s
	}
	return clipText(content, excerptLimit)
}

// section returns the trimmed body of the level-two heading named title.
func section(content, title string) (string, bool) {
	lines := strings.Split(content, "\n")
	heading := "## " + title
	for i, ln := range lines {
		if !strings.EqualFold(strings.TrimSpace(ln), heading) {
			continue
		}
		var body []string
		for _, next := range lines[i+1:] {
			if strings.HasPrefix(next, "## ") || strings.HasPrefix(next, "# ") {
				break
			}
			body = append(body, next)
		}
		return strings.TrimSpace(strings.Join(body, "\n")), true
	}
	return "", false
}

func clipText(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
