package memory

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the current expected schema version.
const schemaVersion = 3

// migration represents a single schema migration step.
type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of schema migrations.
// Each migration is applied exactly once, tracked in the schema_version table.
var migrations = []migration{
	{
		Version:     1,
		Description: "assistant core: chat_messages, agent_memory, agent_sessions",
		SQL: `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			case_id     INTEGER,
			principal   TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			agent_type  TEXT DEFAULT '',
			metadata    TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages(session_id, created_at);

		CREATE TABLE IF NOT EXISTS agent_memory (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			principal    TEXT NOT NULL DEFAULT '',
			agent_type   TEXT NOT NULL,
			memory_key   TEXT NOT NULL,
			memory_value TEXT NOT NULL,
			confidence   REAL DEFAULT 0.5,
			case_id      INTEGER,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_memory_agent_case ON agent_memory(agent_type, case_id);

		CREATE TABLE IF NOT EXISTS agent_sessions (
			id           TEXT PRIMARY KEY,
			case_id      INTEGER,
			principal    TEXT NOT NULL DEFAULT '',
			agents_used  TEXT NOT NULL DEFAULT '[]',
			total_tokens INTEGER DEFAULT 0,
			routing_log  TEXT DEFAULT '',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
	{
		Version:     2,
		Description: "v2: case data read by the context assembler (clients, cases, documents, tasks, events)",
		SQL: `
		CREATE TABLE IF NOT EXISTS clients (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			deleted_at  DATETIME
		);

		CREATE TABLE IF NOT EXISTS cases (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			case_number     TEXT NOT NULL,
			title           TEXT NOT NULL,
			case_type       TEXT DEFAULT '',
			status          TEXT DEFAULT 'open',
			client_id       INTEGER REFERENCES clients(id),
			opposing_party  TEXT DEFAULT '',
			court           TEXT DEFAULT '',
			judge           TEXT DEFAULT '',
			description     TEXT DEFAULT '',
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			deleted_at      DATETIME
		);

		CREATE TABLE IF NOT EXISTS documents (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id     INTEGER NOT NULL REFERENCES cases(id),
			title       TEXT NOT NULL,
			file_type   TEXT DEFAULT '',
			category    TEXT DEFAULT '',
			status      TEXT DEFAULT 'draft',
			ai_summary  TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			deleted_at  DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id, created_at);

		CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id     INTEGER NOT NULL REFERENCES cases(id),
			title       TEXT NOT NULL,
			priority    TEXT DEFAULT 'medium',
			status      TEXT DEFAULT 'pending',
			due_date    DATETIME,
			deleted_at  DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_case ON tasks(case_id, due_date);

		CREATE TABLE IF NOT EXISTS calendar_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id     INTEGER NOT NULL REFERENCES cases(id),
			title       TEXT NOT NULL,
			event_type  TEXT DEFAULT '',
			start_at    DATETIME NOT NULL,
			location    TEXT DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_case ON calendar_events(case_id, start_at);
		`,
	},
	{
		Version:     3,
		Description: "v3: billing (time_entries, invoices)",
		SQL: `
		CREATE TABLE IF NOT EXISTS time_entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id     INTEGER NOT NULL REFERENCES cases(id),
			hours       REAL NOT NULL DEFAULT 0,
			rate        REAL NOT NULL DEFAULT 0,
			description TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_time_entries_case ON time_entries(case_id);

		CREATE TABLE IF NOT EXISTS invoices (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id      INTEGER NOT NULL REFERENCES cases(id),
			total_amount REAL NOT NULL DEFAULT 0,
			amount_paid  REAL NOT NULL DEFAULT 0,
			status       TEXT DEFAULT 'draft',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_invoices_case ON invoices(case_id);
		`,
	},
}

// RunMigrations applies all pending schema migrations.
// It uses a schema_version table to track which migrations have been applied.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	currentVersion := 0
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration",
			"version", m.Version,
			"description", m.Description,
		)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			// Databases created by the legacy Node backend may already hold some
			// of these tables; retry statement by statement.
			tx.Rollback()
			logger.Warn("migration SQL partially failed, retrying per statement",
				"version", m.Version,
				"err", err,
			)
			if err := applyMigrationStatements(db, m, logger); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
				m.Version, m.Description,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration v%d: %w", m.Version, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit migration v%d: %w", m.Version, err)
			}
		}

		logger.Info("migration applied", "version", m.Version)
	}

	return nil
}

// applyMigrationStatements applies each SQL statement individually, ignoring
// "duplicate column" or "already exists" errors for idempotency.
func applyMigrationStatements(db *sql.DB, m migration, logger *slog.Logger) error {
	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") {
				logger.Debug("migration statement skipped (already applied)", "stmt_prefix", truncate(stmt, 60))
				continue
			}
			return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
		}
	}

	if _, err := db.Exec(
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err != nil {
		return 0, nil // table doesn't exist => version 0
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
