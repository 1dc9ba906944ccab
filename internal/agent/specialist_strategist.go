package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"lawyrs/internal/domain"
)

// assumedClaimValue is used when neither the message nor the file states an
// amount.
const assumedClaimValue = 100000.0

var dollarRe = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]+)?)\s*(k|m|thousand|million)?`)

// claimValue extracts the largest dollar figure in message.
func claimValue(message string) (float64, bool) {
	best := 0.0
	for _, m := range dollarRe.FindAllStringSubmatch(strings.ToLower(message), -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "k", "thousand":
			v *= 1e3
		case "m", "million":
			v *= 1e6
		}
		best = max(best, v)
	}
	return best, best > 0
}

type settlementOption struct {
	name        string
	fraction    float64 // share of claim value recovered
	probability float64
	cost        float64
	pros, cons  string
}

func (o settlementOption) expectedValue(value float64) float64 {
	return o.probability*o.fraction*value - o.cost
}

func strategyOptions(job Job) []settlementOption {
	spent := 0.0
	if bl := job.Matter.Billing; bl != nil {
		spent = bl.TotalBilled
	}
	trialCost := max(2*spent, 25000)

	// Trial odds follow the fault regime: the Kansas bar makes a verdict riskier.
	trialOdds := 0.5
	switch {
	case job.Jurisdiction == domain.Kansas:
		trialOdds = 0.45
	case job.Jurisdiction == domain.Missouri:
		trialOdds = 0.55
	}

	adr := "Mediation after targeted discovery"
	if job.Jurisdiction.Covers(domain.Kansas) {
		adr = "Court-annexed mediation after targeted discovery"
	}
	return []settlementOption{
		{"Negotiate now", 0.55, 0.7, 5000, "fast, low cost", "leaves value on the table"},
		{adr, 0.7, 0.6, 0.4 * trialCost, "better information, neutral pressure", "discovery spend under proportionality limits"},
		{"Try the case", 1.0, trialOdds, trialCost, "full value if successful", "verdict risk and appeal delay"},
	}
}

type milestone struct {
	when  time.Time
	label string
}

func timeline(mc domain.MatterContext) []milestone {
	var out []milestone
	for _, t := range mc.Tasks {
		if t.DueDate != nil && !strings.EqualFold(t.Status, "completed") {
			out = append(out, milestone{*t.DueDate, "Deadline: " + t.Title})
		}
	}
	for _, e := range mc.Events {
		out = append(out, milestone{e.StartAt, "Event: " + e.Title})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].when.Before(out[j].when) })
	return out
}

func missingChecklist(job Job) []string {
	items := []string{
		"Limitation deadline confirmed and double-calendared",
		"Litigation hold and preservation letter sent",
		"Insurance coverage and policy limits identified",
		"Medical and other liens identified",
		"Expert needs and disclosure deadlines mapped",
	}
	if job.Jurisdiction.Covers(domain.Kansas) {
		items = append(items, "Non-party fault exposure assessed (empty-chair defense)")
	}
	if job.Jurisdiction.Covers(domain.Missouri) {
		items = append(items, "Each defendant's fault share tested against the 51% joint and several threshold")
	}
	if job.Matter.Empty() {
		items = append(items, "Open a matter so deadlines and documents can be tracked")
	} else if len(job.Matter.Documents) == 0 {
		items = append(items, "No documents on file: collect the core records")
	}
	return items
}

func strategyTemplate(job Job) *domain.AgentOutput {
	value, stated := claimValue(job.Message)
	if !stated {
		value = assumedClaimValue
	}
	options := strategyOptions(job)
	best := 0
	for i, o := range options {
		if o.expectedValue(value) > options[best].expectedValue(value) {
			best = i
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Strategy: %s\n\n", matterLabel(job.Matter))
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "Recommended: %s (expected value $%.0f on a $%.0f claim) under %s law.\n",
		options[best].name, options[best].expectedValue(value), value, job.Jurisdiction.Display())
	if !stated {
		fmt.Fprintf(&b, "Claim value assumed at $%.0f; replace with the damages model.\n", value)
	}

	b.WriteString("\n## Options\n")
	b.WriteString("| Option | Recovery | Probability | Cost | Expected value | Pros | Cons |\n|---|---|---|---|---|---|---|\n")
	for _, o := range options {
		fmt.Fprintf(&b, "| %s | %.0f%% | %.0f%% | $%.0f | $%.0f | %s | %s |\n",
			o.name, o.fraction*100, o.probability*100, o.cost, o.expectedValue(value), o.pros, o.cons)
	}

	b.WriteString("\n## Timeline\n")
	ms := timeline(job.Matter)
	if len(ms) == 0 {
		b.WriteString("- No dated deadlines or events on file\n")
	}
	for _, m := range ms {
		fmt.Fprintf(&b, "- %s %s\n", m.when.Format("2006-01-02"), m.label)
	}

	if job.Jurisdiction == domain.Multistate {
		b.WriteString("\n## Venue\n")
		b.WriteString("- Kansas: two-year limitation, 50% bar, proportional fault only\n")
		b.WriteString("- Missouri: five-year limitation, pure comparative fault, joint and several at 51%, fact pleading\n")
	}
	if job.Jurisdiction.Covers(domain.Missouri) {
		b.WriteString("\n## Discovery Budget\n")
		b.WriteString("- Scope discovery to Mo.Sup.Ct.R. 56.01(b) proportionality; seek ESI cost-shifting where warranted\n")
	}

	checklist := missingChecklist(job)
	b.WriteString("\n## What Am I Missing?\n")
	for _, c := range checklist {
		fmt.Fprintf(&b, "- [ ] %s\n", c)
	}

	actions := []string{
		fmt.Sprintf("Present the three options to the client with %s as the recommendation", options[best].name),
		"Build the damages model to replace assumed values",
		"Calendar every deadline in the timeline with reminders",
	}
	b.WriteString("\n## Next Actions\n")
	numbered(&b, actions)

	auths := applicable(job.Jurisdiction, []string{topicFault, topicDiscovery})
	cites := citationsFor(auths)
	sourcesSection(&b, cites)
	if mc := matterCitation(job.Matter); mc != nil {
		cites = append(cites, *mc)
	}

	var risks []string
	if soon, overdue := dueSoon(job.Matter.Tasks, job.Now, 14*24*time.Hour); len(overdue) > 0 || len(soon) > 0 {
		risks = append(risks, fmt.Sprintf("%d overdue and %d upcoming deadline(s) in the next 14 days", len(overdue), len(soon)))
	}
	if !stated {
		risks = append(risks, "Expected values rest on an assumed claim value")
	}

	return &domain.AgentOutput{
		Content:         b.String(),
		Confidence:      0.7,
		Citations:       cites,
		Risks:           risks,
		FollowUpActions: actions,
		MemoryWrites: []domain.MemoryWrite{{
			Key:        "strategy",
			Value:      fmt.Sprintf("Recommended %s; EV $%.0f on $%.0f (%s)", options[best].name, options[best].expectedValue(value), value, job.Jurisdiction.Display()),
			Confidence: 0.6,
		}},
	}
}
