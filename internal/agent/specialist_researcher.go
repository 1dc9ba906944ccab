package agent

import (
	"fmt"
	"slices"
	"strings"

	"lawyrs/internal/domain"
)

func researchTemplate(job Job) *domain.AgentOutput {
	topics := detectTopics(job.Message)
	auths := applicable(job.Jurisdiction, topics)
	cites := citationsFor(auths)
	if mc := matterCitation(job.Matter); mc != nil {
		cites = append(cites, *mc)
	}

	risks := []string{limitationRisk(job.Jurisdiction)}
	if slices.Contains(topics, topicMedMal) && job.Jurisdiction.Covers(domain.Missouri) {
		risks = append(risks, "Medical malpractice in Missouri requires an affidavit of merit (RSMo 538.225)")
	}
	if slices.Contains(topics, topicGovernment) && job.Jurisdiction.Covers(domain.Kansas) {
		risks = append(risks, "Claims against a Kansas government entity follow the KTCA (K.S.A. 75-6101)")
	}
	if job.Jurisdiction.Covers(domain.Kansas) && slices.Contains(topics, topicFault) {
		risks = append(risks, "Kansas 50% bar: a plaintiff 50% or more at fault recovers nothing (K.S.A. 60-258a)")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Memo: %s law\n\n", job.Jurisdiction.Display())
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "Authority for %s covering %s. %d primary sources identified.\n",
		matterLabel(job.Matter), strings.Join(topics, ", "), len(auths))

	b.WriteString("\n## Statutory Authority\n")
	if len(auths) == 0 {
		b.WriteString("- No catalogued authority for this jurisdiction; research primary sources directly\n")
	}
	for _, a := range auths {
		fmt.Fprintf(&b, "- **%s**: %s\n", a.ref, a.note)
	}

	b.WriteString("\n## Limitation Period and Comparative Fault\n")
	bullets(&b, risks)

	if len(job.PriorMemory) > 0 {
		b.WriteString("\n## Prior Research\n")
		for _, m := range job.PriorMemory {
			fmt.Fprintf(&b, "- %s: %s\n", m.Key, m.Value)
		}
	}

	actions := []string{
		"Pull and read the current text of each cited section",
		"Run a citator check on controlling appellate decisions",
		"Calendar the limitation deadline with a 30-day warning",
	}
	if job.Jurisdiction == domain.Multistate {
		actions = append(actions, "Compare forum rules before choosing Kansas or Missouri venue")
	}
	b.WriteString("\n## Next Actions\n")
	numbered(&b, actions)
	sourcesSection(&b, cites)

	refs := make([]string, 0, len(auths))
	for _, a := range auths {
		refs = append(refs, a.ref)
	}
	return &domain.AgentOutput{
		Content:         b.String(),
		Confidence:      0.75,
		Citations:       cites,
		Risks:           risks,
		FollowUpActions: actions,
		MemoryWrites: []domain.MemoryWrite{{
			Key:        "research:" + topics[0],
			Value:      fmt.Sprintf("%s: %s", job.Jurisdiction.Display(), strings.Join(refs, "; ")),
			Confidence: 0.7,
		}},
	}
}
