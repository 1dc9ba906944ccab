package agent

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"lawyrs/internal/domain"
)

// ClassifierParams are the tunable constants of keyword routing.
type ClassifierParams struct {
	DefaultSpecialist   domain.Specialist
	ContinuationBonus   int
	CoRouteMargin       int
	ZeroScoreConfidence float64
	MaxConfidence       float64
}

// DefaultClassifierParams returns the stock routing constants.
func DefaultClassifierParams() ClassifierParams {
	return ClassifierParams{
		DefaultSpecialist:   domain.Strategist,
		ContinuationBonus:   2,
		CoRouteMargin:       3,
		ZeroScoreConfidence: 0.25,
		MaxConfidence:       0.98,
	}
}

// Classifier scores a message against each specialist's routing table and
// picks a primary route plus an optional co-route. Classify is a pure
// function of the message, the history and the tables.
type Classifier struct {
	tables *RoutingTables
	params ClassifierParams
	logger *slog.Logger
}

func NewClassifier(tables *RoutingTables, params ClassifierParams, logger *slog.Logger) *Classifier {
	if !params.DefaultSpecialist.Valid() {
		params.DefaultSpecialist = domain.Strategist
	}
	if params.MaxConfidence <= 0 || params.MaxConfidence > 1 {
		params.MaxConfidence = 0.98
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{tables: tables, params: params, logger: logger}
}

type ranked struct {
	s     domain.Specialist
	score int
}

// Classify returns the route for message given the session history (oldest
// first).
func (c *Classifier) Classify(message string, history []domain.ConversationTurn) domain.AgentRoute {
	lower := strings.ToLower(message)

	scores := make(map[domain.Specialist]int, len(domain.Specialists))
	var fired []string
	matched := 0
	for _, s := range domain.Specialists {
		n, sigs := c.tables.score(s, lower)
		scores[s] = n
		matched += n
		for _, sig := range sigs {
			fired = append(fired, string(s)+":"+sig)
		}
	}

	// Nothing in the message itself points anywhere: the continuation bonus
	// alone never decides a route.
	if matched == 0 {
		return domain.AgentRoute{
			Primary:    c.params.DefaultSpecialist,
			Confidence: c.params.ZeroScoreConfidence,
			Reasoning:  fmt.Sprintf("no routing signals; default %s", c.params.DefaultSpecialist),
			Scores:     scores,
		}
	}

	continued := lastAssistantSpecialist(history)
	if continued != "" && c.params.ContinuationBonus > 0 {
		scores[continued] += c.params.ContinuationBonus
	}

	order := make([]ranked, 0, len(domain.Specialists))
	total := 0
	for _, s := range domain.Specialists {
		order = append(order, ranked{s: s, score: scores[s]})
		total += scores[s]
	}
	// Stable sort keeps the fixed specialist order for equal scores.
	sort.SliceStable(order, func(i, j int) bool { return order[i].score > order[j].score })

	top, second := order[0], order[1]
	route := domain.AgentRoute{
		Primary:    top.s,
		Confidence: c.confidence(top.score, total),
		Scores:     scores,
	}
	if second.score > 0 && top.score-second.score <= c.params.CoRouteMargin {
		co := second.s
		route.CoRoute = &co
	}
	route.Reasoning = reasoning(order, continued, c.params.ContinuationBonus, fired, route.CoRoute, top.score-second.score)

	c.logger.Debug("classified message",
		"primary", route.Primary,
		"confidence", route.Confidence,
		"co_route", route.CoRoute,
	)
	return route
}

// Force routes to s without scoring. A forced route is never co-routed.
func (c *Classifier) Force(s domain.Specialist) domain.AgentRoute {
	return domain.AgentRoute{
		Primary:    s,
		Confidence: c.params.MaxConfidence,
		Reasoning:  fmt.Sprintf("agent_type %s requested", s),
		Scores:     map[domain.Specialist]int{},
	}
}

func (c *Classifier) confidence(top, total int) float64 {
	if total <= 0 {
		return c.params.ZeroScoreConfidence
	}
	conf := 0.5 + 0.5*float64(top)/float64(total)
	return math.Min(conf, c.params.MaxConfidence)
}

// lastAssistantSpecialist returns the tag of the most recent assistant turn.
func lastAssistantSpecialist(history []domain.ConversationTurn) domain.Specialist {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != domain.RoleAssistant {
			continue
		}
		if history[i].AgentType.Valid() {
			return history[i].AgentType
		}
		return ""
	}
	return ""
}

func reasoning(order []ranked, continued domain.Specialist, bonus int, fired []string, co *domain.Specialist, margin int) string {
	var b strings.Builder
	b.WriteString("keyword routing:")
	for _, r := range order {
		if r.score > 0 {
			fmt.Fprintf(&b, " %s=%d", r.s, r.score)
		}
	}
	if continued != "" && bonus > 0 {
		fmt.Fprintf(&b, " (continuation +%d %s)", bonus, continued)
	}
	if len(fired) > 0 {
		fmt.Fprintf(&b, "; signals %s", strings.Join(fired, ","))
	}
	if co != nil {
		fmt.Fprintf(&b, "; co-route %s (margin %d)", *co, margin)
	}
	return b.String()
}
