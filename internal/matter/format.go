package matter

import (
	"fmt"
	"strings"

	"lawyrs/internal/domain"
)

// NoMatterNotice is the whole rendering of an empty context.
const NoMatterNotice = "No matter selected: answer from general Kansas/Missouri practice knowledge."

const summaryLimit = 200

// Format renders mc as a free-text block for a generation prompt.
func Format(mc domain.MatterContext) string {
	if mc.Empty() {
		return NoMatterNotice
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATTER: %s (%s)\n", domain.Str(mc.Title), domain.Str(mc.CaseNumber))
	writePair(&b, "Type", domain.Str(mc.CaseType), "Status", domain.Str(mc.Status))
	writePair(&b, "Client", domain.Str(mc.ClientName), "Opposing party", domain.Str(mc.OpposingParty))
	writePair(&b, "Court", domain.Str(mc.Court), "Judge", domain.Str(mc.Judge))
	if d := domain.Str(mc.Description); d != "" {
		fmt.Fprintf(&b, "Facts: %s\n", d)
	}

	if len(mc.Documents) > 0 {
		fmt.Fprintf(&b, "\nDOCUMENTS (%d most recent):\n", len(mc.Documents))
		for _, d := range mc.Documents {
			fmt.Fprintf(&b, "- %s [%s, %s]", d.Title, orDash(d.Category), orDash(d.Status))
			if d.AISummary != "" {
				fmt.Fprintf(&b, ": %s", clip(d.AISummary, summaryLimit))
			}
			b.WriteByte('\n')
		}
	}

	if len(mc.Tasks) > 0 {
		b.WriteString("\nOPEN TASKS AND DEADLINES:\n")
		for _, t := range mc.Tasks {
			due := "no due date"
			if t.DueDate != nil {
				due = "due " + t.DueDate.Format("2006-01-02")
			}
			fmt.Fprintf(&b, "- %s (%s priority, %s, %s)\n", t.Title, orDash(t.Priority), orDash(t.Status), due)
		}
	}

	if len(mc.Events) > 0 {
		b.WriteString("\nUPCOMING EVENTS:\n")
		for _, e := range mc.Events {
			fmt.Fprintf(&b, "- %s %s (%s)", e.StartAt.Format("2006-01-02 15:04"), e.Title, orDash(e.EventType))
			if e.Location != "" {
				fmt.Fprintf(&b, " at %s", e.Location)
			}
			b.WriteByte('\n')
		}
	}

	if bl := mc.Billing; bl != nil && (bl.TotalBilled > 0 || bl.TotalHours > 0) {
		fmt.Fprintf(&b, "\nBILLING: billed $%.2f, paid $%.2f, outstanding $%.2f, %.1f hours at avg $%.2f/hr\n",
			bl.TotalBilled, bl.TotalPaid, bl.TotalOutstanding, bl.TotalHours, bl.AvgRate)
	}

	writeMemories(&b, "PRIOR RESEARCH", mc.PriorResearch)
	writeMemories(&b, "PRIOR ANALYSIS", mc.PriorAnalysis)

	return strings.TrimRight(b.String(), "\n")
}

// FormatMemories renders search hits as the prior-memory prompt block.
func FormatMemories(entries []domain.MemoryEntry) string {
	if len(entries) == 0 {
		return "No prior memory."
	}
	var b strings.Builder
	for _, m := range entries {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", orDash(string(m.Specialist)), orDash(m.Key), clip(m.Value, summaryLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writePair(b *strings.Builder, k1, v1, k2, v2 string) {
	switch {
	case v1 != "" && v2 != "":
		fmt.Fprintf(b, "%s: %s | %s: %s\n", k1, v1, k2, v2)
	case v1 != "":
		fmt.Fprintf(b, "%s: %s\n", k1, v1)
	case v2 != "":
		fmt.Fprintf(b, "%s: %s\n", k2, v2)
	}
}

func writeMemories(b *strings.Builder, heading string, entries []domain.MemoryEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, m := range entries {
		fmt.Fprintf(b, "- %s: %s\n", m.Key, clip(m.Value, summaryLimit))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
