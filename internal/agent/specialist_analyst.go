package agent

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"lawyrs/internal/domain"
)

// riskFactor is one row of the analyst's scorecard.
type riskFactor struct {
	name  string
	score int
	note  string
}

// flagThreshold is the factor score at which a risk is flagged.
const flagThreshold = 7

var (
	severeInjuryRe = regexp.MustCompile(`wrongful death|death|catastroph|paraly|amputat|brain injur`)
	injuryRe       = regexp.MustCompile(`injur|damage|medical bills|lost wages`)
	liabilityRe    = regexp.MustCompile(`disputed|contested|deny|denies|unclear liability`)
	clearFaultRe   = regexp.MustCompile(`rear-end|rear end|admitted|clear liability|ran a red`)
	evidenceGapRe  = regexp.MustCompile(`missing|gap|no witness|lost|spoliat|inconsisten`)
)

func clampScore(n int) int {
	return max(1, min(10, n))
}

func scoreFactors(job Job) []riskFactor {
	lower := strings.ToLower(job.Message + " " + domain.Str(job.Matter.Description))
	mc := job.Matter

	liability := riskFactor{name: "Liability", score: 5, note: "liability not yet tested"}
	switch {
	case clearFaultRe.MatchString(lower):
		liability.score, liability.note = 3, "facts point to defendant fault"
	case liabilityRe.MatchString(lower):
		liability.score, liability.note = 7, "liability is disputed"
	}

	damages := riskFactor{name: "Damages", score: 4, note: "damages not quantified"}
	switch {
	case severeInjuryRe.MatchString(lower):
		damages.score, damages.note = 8, "severe injury drives high exposure"
	case injuryRe.MatchString(lower):
		damages.score, damages.note = 6, "damages claimed; document specials"
	}

	soon, overdue := dueSoon(mc.Tasks, job.Now, 30*24*time.Hour)
	sol := riskFactor{name: "Limitation period", score: 4, note: limitationRisk(job.Jurisdiction)}
	if job.Jurisdiction == domain.Kansas {
		sol.score++
	}
	if strings.Contains(lower, "sol") || strings.Contains(lower, "limitation") {
		sol.score += 2
	}

	fault := riskFactor{name: "Comparative fault"}
	switch {
	case job.Jurisdiction == domain.Kansas:
		fault.score, fault.note = 7, "Kansas 50% bar (K.S.A. 60-258a) can eliminate recovery"
	case job.Jurisdiction == domain.Missouri:
		fault.score, fault.note = 4, "Missouri pure comparative fault (RSMo 537.765) reduces but never bars recovery"
	default:
		fault.score, fault.note = 6, "fault rules differ by state; confirm choice of law"
	}
	if strings.Contains(lower, "comparative") || strings.Contains(lower, "plaintiff was") {
		fault.score++
	}

	evidence := riskFactor{name: "Evidence gaps", score: 4, note: "record looks adequate"}
	switch {
	case mc.Empty():
		evidence.score, evidence.note = 6, "no matter selected; record unknown"
	case len(mc.Documents) == 0:
		evidence.score, evidence.note = 8, "no documents on file"
	case len(mc.Documents) < 3:
		evidence.score, evidence.note = 6, "thin document record"
	}
	if evidenceGapRe.MatchString(lower) {
		evidence.score += 2
		evidence.note += "; gaps mentioned"
	}

	deadlines := riskFactor{name: "Deadline management", score: 3, note: "no open deadlines within 30 days"}
	if len(soon) > 0 {
		deadlines.score = 4 + min(len(soon), 3)
		deadlines.note = fmt.Sprintf("%d deadline(s) within 30 days; next: %s", len(soon), soon[0].Title)
	}
	if len(overdue) > 0 {
		deadlines.score += 3
		deadlines.note = fmt.Sprintf("%d overdue task(s); %s", len(overdue), deadlines.note)
	}

	factors := []riskFactor{liability, damages, sol, fault, evidence, deadlines}
	for i := range factors {
		factors[i].score = clampScore(factors[i].score)
	}
	return factors
}

func overallRisk(factors []riskFactor) (float64, string) {
	sum := 0
	for _, f := range factors {
		sum += f.score
	}
	avg := math.Round(float64(sum)/float64(len(factors))*10) / 10
	switch {
	case avg >= 7:
		return avg, "high"
	case avg >= 4:
		return avg, "moderate"
	default:
		return avg, "low"
	}
}

func analysisTemplate(job Job) *domain.AgentOutput {
	factors := scoreFactors(job)
	overall, rating := overallRisk(factors)

	var risks []string
	for _, f := range factors {
		if f.score >= flagThreshold {
			risks = append(risks, fmt.Sprintf("%s risk %d/10: %s", f.name, f.score, f.note))
		}
	}

	auths := applicable(job.Jurisdiction, []string{topicFault, topicSOL})
	cites := citationsFor(auths)
	if mc := matterCitation(job.Matter); mc != nil {
		cites = append(cites, *mc)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Risk Assessment: %s\n\n", matterLabel(job.Matter))
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "Overall risk %.1f/10 (%s) under %s law. %d of 6 factors flagged.\n",
		overall, rating, job.Jurisdiction.Display(), len(risks))

	b.WriteString("\n## Risk Scorecard\n")
	b.WriteString("| Factor | Score | Notes |\n|---|---|---|\n")
	for _, f := range factors {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", f.name, f.score, f.note)
	}

	b.WriteString("\n## SWOT\n")
	fmt.Fprintf(&b, "- Strengths: %s\n", lowest(factors).note)
	fmt.Fprintf(&b, "- Weaknesses: %s\n", highest(factors).note)
	if job.Jurisdiction.Covers(domain.Missouri) {
		b.WriteString("- Opportunities: joint and several liability reaches any defendant 51% or more at fault (RSMo 537.067)\n")
	} else {
		b.WriteString("- Opportunities: allocate fault to non-parties (empty-chair defense)\n")
	}
	if job.Jurisdiction.Covers(domain.Kansas) {
		b.WriteString("- Threats: proportional fault only; each defendant pays only its share\n")
	} else {
		b.WriteString("- Threats: fact-pleading defects under Mo.Sup.Ct.R. 55.05\n")
	}

	if bl := job.Matter.Billing; bl != nil && bl.TotalBilled > 0 {
		b.WriteString("\n## Cost to Date\n")
		fmt.Fprintf(&b, "Billed $%.2f, outstanding $%.2f, %.1f hours.\n", bl.TotalBilled, bl.TotalOutstanding, bl.TotalHours)
	}

	actions := []string{fmt.Sprintf("Address the highest factor first: %s", highest(factors).name)}
	if len(risks) > 0 {
		actions = append(actions, "Reassess the scorecard after the next discovery response")
	}
	actions = append(actions, "Share the scorecard with the client and record the risk tolerance")
	b.WriteString("\n## Next Actions\n")
	numbered(&b, actions)
	sourcesSection(&b, cites)

	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		parts = append(parts, fmt.Sprintf("%s %d", strings.ToLower(f.name), f.score))
	}
	return &domain.AgentOutput{
		Content:         b.String(),
		Confidence:      0.7,
		Citations:       cites,
		Risks:           risks,
		FollowUpActions: actions,
		MemoryWrites: []domain.MemoryWrite{{
			Key:        "risk_score",
			Value:      fmt.Sprintf("%.1f/10 (%s): %s", overall, rating, strings.Join(parts, ", ")),
			Confidence: 0.65,
		}},
	}
}

// highest and lowest break ties by scorecard order.
func highest(factors []riskFactor) riskFactor {
	best := factors[0]
	for _, f := range factors[1:] {
		if f.score > best.score {
			best = f
		}
	}
	return best
}

func lowest(factors []riskFactor) riskFactor {
	best := factors[0]
	for _, f := range factors[1:] {
		if f.score < best.score {
			best = f
		}
	}
	return best
}
