package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lawyrs/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the local system of record. It implements
// domain.MemoryStore, domain.ChatStore, domain.SessionStore and
// domain.CaseData on one SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for fixtures and the migrate command.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Snapshot writes a consistent copy of the database to dst, which must not
// exist yet.
func (s *SQLiteStore) Snapshot(ctx context.Context, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("snapshot target %s already exists", dst)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

// --- chat log ---

func (s *SQLiteStore) AddMessage(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, case_id, principal, role, content, agent_type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID, nullInt(turn.CaseID), string(turn.Principal), turn.Role, turn.Content,
		string(turn.AgentType), turn.Metadata, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// GetHistory returns the last limit turns of a session, oldest first.
func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, case_id, principal, role, content, agent_type, metadata, created_at
		 FROM chat_messages WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	turns := []domain.ConversationTurn{}
	for rows.Next() {
		var t domain.ConversationTurn
		var caseID sql.NullInt64
		var principal, agentType, metadata sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionID, &caseID, &principal, &t.Role, &t.Content,
			&agentType, &metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.CaseID = intPtr(caseID)
		t.Principal = domain.Principal(principal.String)
		t.AgentType = domain.Specialist(agentType.String)
		t.Metadata = metadata.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// --- agent memory ---

func (s *SQLiteStore) SaveMemory(ctx context.Context, mem domain.MemoryEntry) (string, error) {
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_memory (principal, agent_type, memory_key, memory_value, confidence, case_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(mem.Principal), string(mem.Specialist), mem.Key, mem.Value, mem.Confidence,
		nullInt(mem.CaseID), mem.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// GetMemories is the targeted read: most recent first, filtered by every
// non-zero field of q.
func (s *SQLiteStore) GetMemories(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []any
	if q.Principal != "" {
		where = append(where, "principal = ?")
		args = append(args, string(q.Principal))
	}
	if q.Specialist != "" {
		where = append(where, "agent_type = ?")
		args = append(args, string(q.Specialist))
	}
	if q.Key != "" {
		where = append(where, "memory_key = ?")
		args = append(args, q.Key)
	}
	if q.CaseID != nil {
		where = append(where, "case_id = ?")
		args = append(args, *q.CaseID)
	}

	query := `SELECT id, principal, agent_type, memory_key, memory_value, confidence, case_id, created_at
		 FROM agent_memory`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// SearchMemories is the local fallback search. The query is reduced to
// keywords and a row matches when any keyword appears in its key or value.
// Results never cross principals.
func (s *SQLiteStore) SearchMemories(ctx context.Context, principal domain.Principal, query string, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	words := Keywords(query)
	if len(words) == 0 {
		return []domain.MemoryEntry{}, nil
	}

	args := []any{string(principal)}
	var match []string
	for _, w := range words {
		pattern := "%" + escapeLike(w) + "%"
		match = append(match, `memory_key LIKE ? ESCAPE '\' OR memory_value LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, principal, agent_type, memory_key, memory_value, confidence, case_id, created_at
		 FROM agent_memory
		 WHERE principal = ? AND (`+strings.Join(match, " OR ")+`)
		 ORDER BY confidence DESC, created_at DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// CountMemories returns the per-specialist memory count for one principal.
func (s *SQLiteStore) CountMemories(ctx context.Context, principal domain.Principal) (map[domain.Specialist]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_type, COUNT(*) FROM agent_memory WHERE principal = ? GROUP BY agent_type`,
		string(principal))
	if err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Specialist]int)
	for rows.Next() {
		var agent string
		var n int
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, err
		}
		counts[domain.Specialist(agent)] = n
	}
	return counts, rows.Err()
}

func scanMemories(rows *sql.Rows) ([]domain.MemoryEntry, error) {
	mems := []domain.MemoryEntry{}
	for rows.Next() {
		var m domain.MemoryEntry
		var id int64
		var principal sql.NullString
		var agent string
		var caseID sql.NullInt64
		if err := rows.Scan(&id, &principal, &agent, &m.Key, &m.Value,
			&m.Confidence, &caseID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ID = strconv.FormatInt(id, 10)
		m.Principal = domain.Principal(principal.String)
		m.Specialist = domain.Specialist(agent)
		m.CaseID = intPtr(caseID)
		m.Source = domain.SourceLocal
		mems = append(mems, m)
	}
	return mems, rows.Err()
}

// --- sessions ---

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	var caseID sql.NullInt64
	var principal, agents, routing sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, case_id, principal, agents_used, total_tokens, routing_log, created_at, updated_at
		 FROM agent_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &caseID, &principal, &agents, &sess.TotalTokens, &routing, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.CaseID = intPtr(caseID)
	sess.Principal = domain.Principal(principal.String)
	sess.RoutingLog = routing.String
	sess.AgentsUsed = []domain.Specialist{}
	if agents.String != "" {
		if err := json.Unmarshal([]byte(agents.String), &sess.AgentsUsed); err != nil {
			s.logger.Warn("corrupt agents_used on session, resetting", "session", id, "err", err)
			sess.AgentsUsed = []domain.Specialist{}
		}
	}
	return &sess, nil
}

// CreateSession inserts a session row. Two turns racing to create the same
// session collapse into one row; the later write wins.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess domain.Session) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = now
	}
	agents, err := marshalAgents(sess.AgentsUsed)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_sessions (id, case_id, principal, agents_used, total_tokens, routing_log, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   agents_used = excluded.agents_used,
		   total_tokens = excluded.total_tokens,
		   routing_log = excluded.routing_log,
		   updated_at = excluded.updated_at`,
		sess.ID, nullInt(sess.CaseID), string(sess.Principal), agents, sess.TotalTokens,
		sess.RoutingLog, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess domain.Session) error {
	agents, err := marshalAgents(sess.AgentsUsed)
	if err != nil {
		return err
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_sessions SET agents_used=?, total_tokens=?, routing_log=?, case_id=COALESCE(?, case_id), updated_at=?
		 WHERE id=?`,
		agents, sess.TotalTokens, sess.RoutingLog, nullInt(sess.CaseID), sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", sess.ID, domain.ErrNotFound)
	}
	return nil
}

func marshalAgents(agents []domain.Specialist) (string, error) {
	if agents == nil {
		agents = []domain.Specialist{}
	}
	b, err := json.Marshal(agents)
	if err != nil {
		return "", fmt.Errorf("encode agents_used: %w", err)
	}
	return string(b), nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
