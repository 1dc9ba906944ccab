package domain

import (
	"fmt"
	"strings"
)

// Specialist identifies one of the fixed content generators.
type Specialist string

const (
	Researcher Specialist = "researcher"
	Analyst    Specialist = "analyst"
	Drafter    Specialist = "drafter"
	Strategist Specialist = "strategist"
)

// Specialists lists every specialist in tie-break order. Ranking ties are
// resolved by position in this slice, never by map iteration.
var Specialists = []Specialist{Researcher, Analyst, Drafter, Strategist}

// Rank returns the tie-break position of s, or len(Specialists) when unknown.
func (s Specialist) Rank() int {
	for i, sp := range Specialists {
		if sp == s {
			return i
		}
	}
	return len(Specialists)
}

func (s Specialist) Valid() bool { return s.Rank() < len(Specialists) }

// Title is the display name used in rendered headings.
func (s Specialist) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseSpecialist accepts a specialist id in any case.
func ParseSpecialist(v string) (Specialist, error) {
	s := Specialist(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown agent type %q", ErrInvalidRequest, v)
	}
	return s, nil
}

// Jurisdiction is the governing law for a turn.
type Jurisdiction string

const (
	Kansas     Jurisdiction = "kansas"
	Missouri   Jurisdiction = "missouri"
	Federal    Jurisdiction = "federal"
	Multistate Jurisdiction = "multistate"
)

// DefaultJurisdiction applies when a request names none.
const DefaultJurisdiction = Missouri

// NormalizeJurisdiction lowercases v and falls back to the default when empty.
// Unknown values pass through so the display name can still echo them.
func NormalizeJurisdiction(v string) Jurisdiction {
	j := Jurisdiction(strings.ToLower(strings.TrimSpace(v)))
	if j == "" {
		return DefaultJurisdiction
	}
	return j
}

func (j Jurisdiction) Display() string {
	switch j {
	case Kansas:
		return "Kansas"
	case Missouri:
		return "Missouri"
	case Federal:
		return "Federal"
	case Multistate:
		return "Kansas & Missouri"
	default:
		return string(j)
	}
}

// Covers reports whether rules for state apply under j.
func (j Jurisdiction) Covers(state Jurisdiction) bool {
	return j == state || j == Multistate
}
