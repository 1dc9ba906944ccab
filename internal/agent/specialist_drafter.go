package agent

import (
	"fmt"
	"regexp"
	"strings"

	"lawyrs/internal/domain"
)

// docKind is a document the drafter knows how to lay out.
type docKind struct {
	slug     string
	title    string
	re       *regexp.Regexp
	sections []string
	pleading bool
}

// docKinds is checked in order; the first match wins.
var docKinds = []docKind{
	{"motion-to-compel", "Motion to Compel Discovery", regexp.MustCompile(`motion to compel`),
		[]string{"Introduction", "Discovery Requests at Issue", "Good-Faith Conferral", "Argument", "Relief Requested"}, true},
	{"motion", "Motion", regexp.MustCompile(`motion`),
		[]string{"Introduction", "Statement of Facts", "Argument", "Relief Requested"}, true},
	{"petition", "Petition for Damages", regexp.MustCompile(`petition|complaint`),
		[]string{"Parties", "Jurisdiction and Venue", "Facts Common to All Counts", "Count I: Negligence", "Damages", "Prayer for Relief"}, true},
	{"demand-letter", "Demand Letter", regexp.MustCompile(`demand`),
		[]string{"Facts", "Liability", "Injuries and Damages", "Demand", "Response Deadline"}, false},
	{"engagement-letter", "Engagement Letter", regexp.MustCompile(`engagement|retainer`),
		[]string{"Scope of Representation", "Fees and Billing", "Client Responsibilities", "Termination", "Signatures"}, false},
	{"discovery-request", "Discovery Requests", regexp.MustCompile(`discovery request|interrogator|request for production`),
		[]string{"Definitions", "Instructions", "Interrogatories", "Requests for Production"}, true},
}

var genericDoc = docKind{"document", "Legal Document", nil, []string{"Background", "Body", "Conclusion"}, false}

// pickDocKind prefers an explicit document type over cues in the message.
// An explicit type nothing recognises still titles the generic layout.
func pickDocKind(message, docType string) docKind {
	if docType = normalizeDocType(docType); docType != "" {
		for _, k := range docKinds {
			if strings.ReplaceAll(k.slug, "-", " ") == docType {
				return k
			}
		}
		if k, ok := matchDocKind(docType); ok {
			return k
		}
		custom := genericDoc
		custom.title = titleWords(docType)
		return custom
	}
	if k, ok := matchDocKind(strings.ToLower(message)); ok {
		return k
	}
	return genericDoc
}

func matchDocKind(lower string) (docKind, bool) {
	for _, k := range docKinds {
		if k.re.MatchString(lower) {
			return k, true
		}
	}
	return docKind{}, false
}

func normalizeDocType(v string) string {
	v = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(v))
	return strings.Join(strings.Fields(v), " ")
}

func titleWords(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func caption(b *strings.Builder, job Job) {
	mc := job.Matter
	court := domain.Str(mc.Court)
	if court == "" {
		court = "[COURT]"
	}
	plaintiff, defendant := domain.Str(mc.ClientName), domain.Str(mc.OpposingParty)
	if plaintiff == "" {
		plaintiff = "[PLAINTIFF]"
	}
	if defendant == "" {
		defendant = "[DEFENDANT]"
	}
	number := domain.Str(mc.CaseNumber)
	if number == "" {
		number = "[CASE NO.]"
	}
	fmt.Fprintf(b, "**IN THE %s**\n\n", strings.ToUpper(court))
	fmt.Fprintf(b, "%s, Plaintiff,\n\nv.\t\tCase No. %s\n\n%s, Defendant.\n\n", plaintiff, number, defendant)
}

func draftTemplate(job Job) *domain.AgentOutput {
	kind := pickDocKind(job.Message, job.DocumentType)

	topics := []string{topicPleading}
	if strings.Contains(kind.slug, "discovery") || strings.Contains(kind.slug, "compel") {
		topics = append(topics, topicDiscovery)
	}
	auths := applicable(job.Jurisdiction, topics)
	cites := citationsFor(auths)

	var risks []string
	if kind.pleading && job.Jurisdiction.Covers(domain.Missouri) {
		risks = append(risks, "Missouri requires fact pleading (Mo.Sup.Ct.R. 55.05); conclusory allegations invite dismissal")
	}
	if kind.slug == "motion-to-compel" {
		risks = append(risks, "Document the good-faith conferral before filing or the motion may be denied")
	}
	if kind.slug == "demand-letter" {
		risks = append(risks, limitationRisk(job.Jurisdiction))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Draft: %s\n\n", kind.title)
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "Draft %s for %s in %s form. Review every bracketed placeholder before filing or sending.\n",
		strings.ToLower(kind.title), matterLabel(job.Matter), job.Jurisdiction.Display())

	b.WriteString("\n## Document\n\n")
	if kind.pleading {
		caption(&b, job)
	}
	fmt.Fprintf(&b, "### %s\n\n", strings.ToUpper(kind.title))
	for i, sec := range kind.sections {
		fmt.Fprintf(&b, "**%d. %s**\n\n[Draft %s here.]", i+1, sec, strings.ToLower(sec))
		if i < len(auths) {
			fmt.Fprintf(&b, " [%d]", i+1)
		}
		b.WriteString("\n\n")
	}
	if d := domain.Str(job.Matter.Description); d != "" && kind.pleading {
		fmt.Fprintf(&b, "Facts on file: %s\n\n", d)
	}
	b.WriteString("Respectfully submitted,\n\n[ATTORNEY NAME], [BAR NO.]\n\n")

	if kind.pleading {
		b.WriteString("### CERTIFICATE OF SERVICE\n\n")
		b.WriteString("I certify that on [DATE] a copy of the foregoing was served on all counsel of record through the court's electronic filing system.\n\n")
	}

	if len(auths) > 0 {
		b.WriteString("---\n")
		for i, a := range auths {
			fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, a.ref, a.note)
		}
	}

	b.WriteString("\n## Formatting\n")
	switch {
	case job.Jurisdiction == domain.Kansas:
		b.WriteString("- Kansas Supreme Court Rule 170 form of papers\n")
	case job.Jurisdiction == domain.Missouri:
		b.WriteString("- Mo.Sup.Ct.R. 55.03 signature block and 55.05 fact pleading\n")
	case job.Jurisdiction == domain.Federal:
		b.WriteString("- Local rules of the district; Fed. R. Civ. P. 11 signature\n")
	default:
		b.WriteString("- Follow the form rules of the forum court\n")
	}
	if len(risks) > 0 {
		b.WriteString("\n## Risks\n")
		bullets(&b, risks)
	}

	actions := []string{
		"Fill every bracketed placeholder from the file",
		"Verify the footnoted citations",
	}
	if kind.pleading {
		actions = append(actions, "File and serve; calendar the response deadline")
	} else {
		actions = append(actions, "Send for client review before delivery")
	}
	b.WriteString("\n## Next Actions\n")
	numbered(&b, actions)
	sourcesSection(&b, cites)

	if mc := matterCitation(job.Matter); mc != nil {
		cites = append(cites, *mc)
	}
	return &domain.AgentOutput{
		Content:         b.String(),
		Confidence:      0.72,
		Citations:       cites,
		Risks:           risks,
		FollowUpActions: actions,
		MemoryWrites: []domain.MemoryWrite{{
			Key:        "draft:" + kind.slug,
			Value:      fmt.Sprintf("%s drafted for %s (%s)", kind.title, matterLabel(job.Matter), job.Jurisdiction.Display()),
			Confidence: 0.8,
		}},
	}
}
