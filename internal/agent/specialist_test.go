package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawyrs/internal/domain"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func sp(s string) *string { return &s }

func doeMatter() domain.MatterContext {
	id := int64(42)
	soon := testNow.Add(5 * 24 * time.Hour)
	late := testNow.Add(-48 * time.Hour)
	mc := domain.EmptyMatterContext()
	mc.CaseID = &id
	mc.Title = sp("Doe v. Acme Freight")
	mc.CaseNumber = sp("2025-CV-0042")
	mc.Court = sp("Jackson County Circuit Court")
	mc.ClientName = sp("Jane Doe")
	mc.OpposingParty = sp("Acme Freight LLC")
	mc.Description = sp("Rear-end collision on I-70; client suffered a back injury")
	mc.Tasks = []domain.TaskSummary{
		{Title: "Respond to motion to compel", Priority: "high", Status: "pending", DueDate: &soon},
		{Title: "Serve initial disclosures", Priority: "medium", Status: "pending", DueDate: &late},
	}
	mc.Events = []domain.EventSummary{{Title: "Deposition of driver", EventType: "deposition", StartAt: testNow.Add(10 * 24 * time.Hour)}}
	mc.Billing = &domain.BillingSummary{TotalBilled: 20000, TotalPaid: 15000, TotalOutstanding: 5000, TotalHours: 80, AvgRate: 250}
	return mc
}

func job(s domain.Specialist, msg string, j domain.Jurisdiction) Job {
	return Job{Specialist: s, Message: msg, Jurisdiction: j, Matter: doeMatter(), Now: testNow}
}

func refs(cites []domain.Citation) []string {
	out := make([]string, 0, len(cites))
	for _, c := range cites {
		out = append(out, c.Reference)
	}
	return out
}

func TestDeterministic_EverySpecialistHasSummaryAndMemory(t *testing.T) {
	for _, s := range domain.Specialists {
		for _, j := range []domain.Jurisdiction{domain.Kansas, domain.Missouri, domain.Federal, domain.Multistate} {
			out := Deterministic(job(s, "what should I do next?", j))
			require.NotNil(t, out)
			assert.Equal(t, s, out.Specialist)
			assert.Equal(t, domain.TierTemplate, out.Tier)
			body, ok := section(out.Content, "Summary")
			assert.True(t, ok, "%s/%s has a summary", s, j)
			assert.NotEmpty(t, body)
			assert.NotEmpty(t, out.MemoryWrites, "%s writes memory", s)
			assert.NotNil(t, out.Citations)
			assert.NotNil(t, out.Risks)
			assert.NotNil(t, out.SubAgents)
			assert.GreaterOrEqual(t, out.Confidence, 0.5)
		}
	}
}

func TestDeterministic_NoMatterStillAnswers(t *testing.T) {
	for _, s := range domain.Specialists {
		out := Deterministic(Job{Specialist: s, Message: "", Matter: domain.EmptyMatterContext()})
		assert.NotEmpty(t, out.Content)
		assert.Contains(t, out.Content, "## Summary")
	}
}

func TestDeterministic_UnknownSpecialistFallsBackToStrategist(t *testing.T) {
	out := Deterministic(Job{Specialist: "paralegal", Now: testNow})
	assert.Equal(t, domain.Strategist, out.Specialist)
}

func TestResearcher_JurisdictionAuthority(t *testing.T) {
	ks := Deterministic(job(domain.Researcher, "statute of limitations for negligence", domain.Kansas))
	assert.Contains(t, refs(ks.Citations), "K.S.A. 60-513")
	assert.Contains(t, refs(ks.Citations), "K.S.A. 60-258a")
	assert.NotContains(t, refs(ks.Citations), "RSMo 516.120")
	assert.Equal(t, "research:sol", ks.MemoryWrites[0].Key)

	mo := Deterministic(job(domain.Researcher, "medical malpractice limitation", domain.Missouri))
	assert.Contains(t, refs(mo.Citations), "RSMo 516.105")
	assert.Contains(t, refs(mo.Citations), "RSMo 538.225")
	assert.Contains(t, strings.Join(mo.Risks, "\n"), "affidavit of merit")

	both := Deterministic(job(domain.Researcher, "limitation period", domain.Multistate))
	assert.Contains(t, refs(both.Citations), "K.S.A. 60-513")
	assert.Contains(t, refs(both.Citations), "RSMo 516.120")
	assert.Contains(t, refs(both.Citations), "Doe v. Acme Freight (2025-CV-0042)")
}

func TestAnalyst_Scorecard(t *testing.T) {
	out := Deterministic(job(domain.Analyst, "assess our risk exposure", domain.Kansas))

	factors := scoreFactors(job(domain.Analyst, "assess our risk exposure", domain.Kansas))
	require.Len(t, factors, 6)
	for _, f := range factors {
		assert.GreaterOrEqual(t, f.score, 1)
		assert.LessOrEqual(t, f.score, 10)
	}
	assert.Contains(t, out.Content, "| Comparative fault | 7 |")
	assert.Contains(t, out.Content, "## SWOT")
	assert.Equal(t, "risk_score", out.MemoryWrites[0].Key)
	assert.Contains(t, strings.Join(out.Risks, "\n"), "Deadline management risk")
}

func TestAnalyst_NoDocumentsIsAnEvidenceGap(t *testing.T) {
	factors := scoreFactors(job(domain.Analyst, "review", domain.Missouri))
	assert.Equal(t, "Evidence gaps", factors[4].name)
	assert.Equal(t, 8, factors[4].score)
}

func TestDrafter_MotionToCompel(t *testing.T) {
	out := Deterministic(job(domain.Drafter, "Draft a motion to compel discovery responses", domain.Missouri))

	assert.Contains(t, out.Content, "MOTION TO COMPEL DISCOVERY")
	assert.Contains(t, out.Content, "IN THE JACKSON COUNTY CIRCUIT COURT")
	assert.Contains(t, out.Content, "Case No. 2025-CV-0042")
	assert.Contains(t, out.Content, "CERTIFICATE OF SERVICE")
	assert.Contains(t, out.Content, "[1] Mo.Sup.Ct.R. 55.05")
	assert.Equal(t, "draft:motion-to-compel", out.MemoryWrites[0].Key)
	assert.Contains(t, refs(out.Citations), "Mo.Sup.Ct.R. 56.01(b)")
}

func TestDrafter_DemandLetterHasNoCaption(t *testing.T) {
	out := Deterministic(job(domain.Drafter, "write a demand letter to the insurer", domain.Kansas))
	assert.Contains(t, out.Content, "DEMAND LETTER")
	assert.NotContains(t, out.Content, "CERTIFICATE OF SERVICE")
	assert.Equal(t, "draft:demand-letter", out.MemoryWrites[0].Key)
}

func TestDrafter_DocumentTypeOverridesMessage(t *testing.T) {
	tests := []struct {
		docType string
		heading string
		key     string
	}{
		{"engagement_letter", "ENGAGEMENT LETTER", "draft:engagement-letter"},
		{"Motion to Compel", "MOTION TO COMPEL DISCOVERY", "draft:motion-to-compel"},
		{"complaint", "PETITION FOR DAMAGES", "draft:petition"},
		{"settlement agreement", "SETTLEMENT AGREEMENT", "draft:document"},
	}
	for _, tt := range tests {
		t.Run(tt.docType, func(t *testing.T) {
			j := job(domain.Drafter, "write a demand letter to the insurer", domain.Kansas)
			j.DocumentType = tt.docType
			out := Deterministic(j)
			assert.Contains(t, out.Content, tt.heading)
			assert.Equal(t, tt.key, out.MemoryWrites[0].Key)
		})
	}
}

func TestStrategist_OptionsAndTimeline(t *testing.T) {
	out := Deterministic(job(domain.Strategist, "settlement options on a $250,000 claim", domain.Missouri))

	assert.Contains(t, out.Content, "on a $250000 claim")
	assert.Contains(t, out.Content, "| Negotiate now |")
	assert.Contains(t, out.Content, "| Try the case |")
	idxTask := strings.Index(out.Content, "Respond to motion to compel")
	idxEvent := strings.Index(out.Content, "Deposition of driver")
	assert.True(t, idxTask > 0 && idxEvent > idxTask, "timeline is sorted by date")
	assert.Contains(t, out.Content, "51% joint and several")
	assert.Equal(t, "strategy", out.MemoryWrites[0].Key)
	assert.NotContains(t, strings.Join(out.Risks, "\n"), "assumed claim value")
}

func TestClaimValue(t *testing.T) {
	cases := map[string]float64{
		"demand $250,000":         250000,
		"$75k or $1.5 million":    1500000,
		"somewhere near $ 40,000": 40000,
	}
	for msg, want := range cases {
		got, ok := claimValue(msg)
		assert.True(t, ok, msg)
		assert.InDelta(t, want, got, 0.01, msg)
	}
	_, ok := claimValue("no amounts here")
	assert.False(t, ok)
}

func TestDetectTopics_Default(t *testing.T) {
	assert.Equal(t, []string{topicSOL, topicFault}, detectTopics("hello"))
	assert.Contains(t, detectTopics("sue the county"), topicGovernment)
}
