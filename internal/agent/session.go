package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"lawyrs/internal/domain"
	"lawyrs/internal/metrics"
)

// maxRoutingLogLines bounds the routing log kept on a session.
const maxRoutingLogLines = 50

// SessionUsage is one turn's contribution to a session record.
type SessionUsage struct {
	SessionID   string
	CaseID      *int64
	Principal   domain.Principal
	Specialists []domain.Specialist
	Tokens      int
	RouteLine   string
}

// SessionTracker keeps the per-session usage summary. Updates are
// read-modify-write, so they are serialized within the process.
type SessionTracker struct {
	store  domain.SessionStore
	logger *slog.Logger
	mu     sync.Mutex
}

func NewSessionTracker(store domain.SessionStore, logger *slog.Logger) *SessionTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionTracker{store: store, logger: logger}
}

// Track creates the session on its first turn or folds u into the existing
// record. Failures are logged and returned; callers do not fail the turn.
func (st *SessionTracker) Track(ctx context.Context, u SessionUsage) error {
	if u.SessionID == "" {
		return fmt.Errorf("track session: %w: empty session id", domain.ErrInvalidRequest)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	sess, err := st.store.GetSession(ctx, u.SessionID)
	if err != nil {
		return st.fail(u, fmt.Errorf("get session: %w", err))
	}

	if sess == nil {
		fresh := domain.Session{
			ID:          u.SessionID,
			CaseID:      u.CaseID,
			Principal:   u.Principal,
			AgentsUsed:  addSpecialists(nil, u.Specialists),
			TotalTokens: u.Tokens,
			RoutingLog:  appendRouteLine("", u.RouteLine),
		}
		if err := st.store.CreateSession(ctx, fresh); err != nil {
			return st.fail(u, fmt.Errorf("create session: %w", err))
		}
		st.logger.Info("created session", "session", u.SessionID, "principal", u.Principal)
		return nil
	}

	sess.AgentsUsed = addSpecialists(sess.AgentsUsed, u.Specialists)
	sess.TotalTokens += u.Tokens
	sess.RoutingLog = appendRouteLine(sess.RoutingLog, u.RouteLine)
	if u.CaseID != nil {
		sess.CaseID = u.CaseID
	}
	if err := st.store.UpdateSession(ctx, *sess); err != nil {
		return st.fail(u, fmt.Errorf("update session: %w", err))
	}
	return nil
}

func (st *SessionTracker) fail(u SessionUsage, err error) error {
	metrics.LocalStoreFailures.Inc()
	st.logger.Error("session tracking failed", "session", u.SessionID, "error", err)
	return err
}

// addSpecialists appends each of add not already in set, keeping first-use
// order.
func addSpecialists(set, add []domain.Specialist) []domain.Specialist {
	out := append([]domain.Specialist{}, set...)
	for _, s := range add {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func appendRouteLine(log, line string) string {
	if line == "" {
		return log
	}
	var lines []string
	if log != "" {
		lines = strings.Split(log, "\n")
	}
	lines = append(lines, line)
	if len(lines) > maxRoutingLogLines {
		lines = lines[len(lines)-maxRoutingLogLines:]
	}
	return strings.Join(lines, "\n")
}

// RouteLine renders a route for the session routing log.
func RouteLine(r domain.AgentRoute) string {
	line := string(r.Primary)
	if r.CoRoute != nil {
		line += "+" + string(*r.CoRoute)
	}
	return fmt.Sprintf("%s@%.2f", line, r.Confidence)
}
