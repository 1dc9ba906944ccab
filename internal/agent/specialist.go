package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"lawyrs/internal/domain"
)

// Job is everything a specialist needs to answer one turn.
type Job struct {
	Specialist   domain.Specialist
	Message      string
	Jurisdiction domain.Jurisdiction
	SessionID    string
	Principal    domain.Principal
	DocumentType string
	Matter       domain.MatterContext
	MatterText   string
	PriorMemory  []domain.MemoryEntry
	History      []domain.ConversationTurn
	Now          time.Time
}

// templateFunc builds a specialist's deterministic output. It has no external
// dependencies and never fails.
type templateFunc func(Job) *domain.AgentOutput

var templates = map[domain.Specialist]templateFunc{
	domain.Researcher: researchTemplate,
	domain.Analyst:    analysisTemplate,
	domain.Drafter:    draftTemplate,
	domain.Strategist: strategyTemplate,
}

// Deterministic renders the rule-based answer for job. Unknown specialists
// fall back to the strategist.
func Deterministic(job Job) *domain.AgentOutput {
	if job.Now.IsZero() {
		job.Now = time.Now()
	}
	if job.Jurisdiction == "" {
		job.Jurisdiction = domain.DefaultJurisdiction
	}
	fn, ok := templates[job.Specialist]
	if !ok {
		job.Specialist = domain.Strategist
		fn = strategyTemplate
	}
	out := fn(job)
	out.Specialist = job.Specialist
	out.Tier = domain.TierTemplate
	out.Citations = nonNilSlice(out.Citations)
	out.Risks = nonNilSlice(out.Risks)
	out.FollowUpActions = nonNilSlice(out.FollowUpActions)
	out.MemoryWrites = nonNilSlice(out.MemoryWrites)
	out.SubAgents = nonNilSlice(out.SubAgents)
	return out
}

// authority is one statute or rule the templates can cite.
type authority struct {
	state  domain.Jurisdiction
	kind   string
	ref    string
	url    string
	note   string
	topics []string
}

const (
	topicSOL        = "sol"
	topicFault      = "comparative-fault"
	topicPleading   = "pleading"
	topicDiscovery  = "discovery"
	topicMedMal     = "medical-malpractice"
	topicGovernment = "government-claims"
	topicLiability  = "joint-liability"
)

func moURL(section string) string {
	return "https://revisor.mo.gov/main/OneSection.aspx?section=" + section
}

var authorities = []authority{
	{domain.Kansas, "statute", "K.S.A. 60-513", "https://www.ksrevisor.gov/statutes/chapters/ch60/",
		"two-year period for personal injury and negligence actions", []string{topicSOL}},
	{domain.Kansas, "statute", "K.S.A. 60-258a", "https://www.ksrevisor.gov/statutes/chapters/ch60/",
		"modified comparative fault; recovery barred at 50% or more", []string{topicFault, topicLiability}},
	{domain.Kansas, "statute", "K.S.A. 75-6101", "https://www.ksrevisor.gov/statutes/chapters/ch75/",
		"Kansas Tort Claims Act for claims against government entities", []string{topicGovernment}},
	{domain.Kansas, "court_rule", "Kan. Sup. Ct. R. 170", "https://www.kscourts.gov/",
		"form of pleadings and papers", []string{topicPleading}},
	{domain.Missouri, "statute", "RSMo 516.120", moURL("516.120"),
		"five-year period for personal injury actions", []string{topicSOL}},
	{domain.Missouri, "statute", "RSMo 516.105", moURL("516.105"),
		"two-year period for medical malpractice", []string{topicSOL, topicMedMal}},
	{domain.Missouri, "statute", "RSMo 537.765", moURL("537.765"),
		"pure comparative fault", []string{topicFault}},
	{domain.Missouri, "statute", "RSMo 537.067", moURL("537.067"),
		"joint and several liability only at 51% or more fault", []string{topicFault, topicLiability}},
	{domain.Missouri, "statute", "RSMo 538.225", moURL("538.225"),
		"affidavit of merit in medical malpractice", []string{topicMedMal}},
	{domain.Missouri, "court_rule", "Mo.Sup.Ct.R. 55.05", "https://www.courts.mo.gov/",
		"fact pleading", []string{topicPleading}},
	{domain.Missouri, "court_rule", "Mo.Sup.Ct.R. 56.01(b)", "https://www.courts.mo.gov/",
		"discovery scope, proportionality and ESI cost-shifting", []string{topicDiscovery}},
	{domain.Federal, "court_rule", "Fed. R. Civ. P. 26(b)(1)", "https://www.uscourts.gov/rules-policies",
		"scope and proportionality of discovery", []string{topicDiscovery}},
	{domain.Federal, "court_rule", "Fed. R. Civ. P. 8(a)", "https://www.uscourts.gov/rules-policies",
		"notice pleading", []string{topicPleading}},
}

var topicSignals = []struct {
	topic string
	re    *regexp.Regexp
}{
	{topicSOL, regexp.MustCompile(`\bsol\b|limitation|deadline|time[- ]bar|too late|expire`)},
	{topicFault, regexp.MustCompile(`comparative|fault|negligen|contribut`)},
	{topicLiability, regexp.MustCompile(`joint|several|co-?defendant|multiple defendants`)},
	{topicPleading, regexp.MustCompile(`petition|complaint|plead|motion|answer`)},
	{topicDiscovery, regexp.MustCompile(`discovery|interrogator|deposition|\besi\b|subpoena|compel|produc`)},
	{topicMedMal, regexp.MustCompile(`malpractice|medical|physician|doctor|hospital`)},
	{topicGovernment, regexp.MustCompile(`\bcity\b|county|government|state agency|municipal|ktca`)},
}

// detectTopics returns the legal topics a message touches, in a fixed order.
// A message that touches none gets the two topics every injury matter needs.
func detectTopics(message string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, ts := range topicSignals {
		if ts.re.MatchString(lower) {
			out = append(out, ts.topic)
		}
	}
	if len(out) == 0 {
		out = []string{topicSOL, topicFault}
	}
	return out
}

// applicable returns the authorities for the given topics under j, in
// catalogue order.
func applicable(j domain.Jurisdiction, topics []string) []authority {
	want := make(map[string]bool, len(topics))
	for _, t := range topics {
		want[t] = true
	}
	var out []authority
	for _, a := range authorities {
		if !covers(j, a.state) {
			continue
		}
		for _, t := range a.topics {
			if want[t] {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func covers(j, state domain.Jurisdiction) bool {
	if state == domain.Federal {
		return j == domain.Federal
	}
	if j == domain.Federal {
		return false
	}
	if j.Covers(domain.Kansas) || j.Covers(domain.Missouri) {
		return j.Covers(state)
	}
	// Unknown jurisdiction strings get both states.
	return true
}

func citationsFor(auths []authority) []domain.Citation {
	out := make([]domain.Citation, 0, len(auths))
	for _, a := range auths {
		out = append(out, domain.Citation{Source: a.kind, Reference: a.ref, URL: a.url})
	}
	return out
}

// matterCitation cites the active case as a source, or nil without one.
func matterCitation(mc domain.MatterContext) *domain.Citation {
	if mc.Empty() {
		return nil
	}
	return &domain.Citation{
		Source:    "matter",
		Reference: fmt.Sprintf("%s (%s)", domain.Str(mc.Title), domain.Str(mc.CaseNumber)),
		Verified:  true,
	}
}

func limitationRisk(j domain.Jurisdiction) string {
	switch {
	case j == domain.Kansas:
		return "Limitation period: K.S.A. 60-513 allows two years; confirm the accrual date"
	case j == domain.Missouri:
		return "Limitation period: RSMo 516.120 allows five years (two for medical malpractice under 516.105); confirm the accrual date"
	case j == domain.Multistate:
		return "Limitation periods differ: Kansas two years (K.S.A. 60-513), Missouri five years (RSMo 516.120); calendar the shorter one"
	default:
		return "Limitation period not confirmed; identify the governing statute and accrual date"
	}
}

// dueSoon returns open tasks due within window of now, soonest first, and
// the ones already overdue.
func dueSoon(tasks []domain.TaskSummary, now time.Time, window time.Duration) (soon, overdue []domain.TaskSummary) {
	for _, t := range tasks {
		if t.DueDate == nil || strings.EqualFold(t.Status, "completed") {
			continue
		}
		switch {
		case t.DueDate.Before(now):
			overdue = append(overdue, t)
		case t.DueDate.Before(now.Add(window)):
			soon = append(soon, t)
		}
	}
	sort.SliceStable(soon, func(i, j int) bool { return soon[i].DueDate.Before(*soon[j].DueDate) })
	return soon, overdue
}

func matterLabel(mc domain.MatterContext) string {
	if mc.Empty() {
		return "this question"
	}
	return domain.Str(mc.Title)
}

func bullets(b *strings.Builder, items []string) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func numbered(b *strings.Builder, items []string) {
	for i, it := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, it)
	}
}

func sourcesSection(b *strings.Builder, cites []domain.Citation) {
	b.WriteString("\n## Sources\n")
	if len(cites) == 0 {
		b.WriteString("- None cited\n")
		return
	}
	for _, c := range cites {
		if c.URL != "" {
			fmt.Fprintf(b, "- %s (%s)\n", c.Reference, c.URL)
		} else {
			fmt.Fprintf(b, "- %s\n", c.Reference)
		}
	}
	b.WriteString("\nVerify every citation on ksrevisor.gov or revisor.mo.gov before relying on it.\n")
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
