package agent

import (
	"strings"

	"lawyrs/internal/domain"
)

var draftCues = []string{"draft", "write", "prepare", "motion", "complaint", "letter"}

// CrewFor lists the specialists a full-crew turn runs, in presentation
// order. The drafter joins only when a document is asked for.
func CrewFor(message, documentType string) []domain.Specialist {
	crew := []domain.Specialist{domain.Researcher, domain.Analyst}
	if wantsDocument(message, documentType) {
		crew = append(crew, domain.Drafter)
	}
	return append(crew, domain.Strategist)
}

func wantsDocument(message, documentType string) bool {
	if strings.TrimSpace(documentType) != "" {
		return true
	}
	lower := strings.ToLower(message)
	for _, cue := range draftCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// team is the primary followed by the specialists whose answers fold into
// it. A full crew replaces the co-route.
func team(route domain.AgentRoute, fullCrew bool, message, documentType string) []domain.Specialist {
	members := []domain.Specialist{route.Primary}
	if !fullCrew {
		if route.CoRoute != nil && *route.CoRoute != route.Primary {
			members = append(members, *route.CoRoute)
		}
		return members
	}
	for _, s := range CrewFor(message, documentType) {
		if s != route.Primary {
			members = append(members, s)
		}
	}
	return members
}
