package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lawyrs/internal/domain"
)

func TestCrewFor(t *testing.T) {
	tests := []struct {
		name    string
		message string
		docType string
		want    []domain.Specialist
	}{
		{"question only", "how strong is our comparative fault defense?", "",
			[]domain.Specialist{domain.Researcher, domain.Analyst, domain.Strategist}},
		{"drafting cue", "prepare the petition", "",
			[]domain.Specialist{domain.Researcher, domain.Analyst, domain.Drafter, domain.Strategist}},
		{"explicit document", "where do we stand?", "demand_letter",
			[]domain.Specialist{domain.Researcher, domain.Analyst, domain.Drafter, domain.Strategist}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CrewFor(tt.message, tt.docType))
		})
	}
}

func TestTeam(t *testing.T) {
	analyst := domain.Analyst
	route := domain.AgentRoute{Primary: domain.Drafter, CoRoute: &analyst}

	assert.Equal(t, []domain.Specialist{domain.Drafter, domain.Analyst}, team(route, false, "draft it", ""))
	assert.Equal(t, []domain.Specialist{domain.Drafter}, team(domain.AgentRoute{Primary: domain.Drafter}, false, "draft it", ""))
	assert.Equal(t,
		[]domain.Specialist{domain.Drafter, domain.Researcher, domain.Analyst, domain.Strategist},
		team(route, true, "draft it", ""),
		"full crew keeps the primary first and ignores the co-route")
}
