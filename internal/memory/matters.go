package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lawyrs/internal/domain"
)

// Case-data reads. These tables are owned by the practice-management
// backend; the assistant only reads them. Soft-deleted rows are invisible.

func (s *SQLiteStore) GetCase(ctx context.Context, id int64) (*domain.CaseRecord, error) {
	var c domain.CaseRecord
	var caseType, status, client, opposing, court, judge, desc sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.case_number, c.title, c.case_type, c.status, cl.name,
		        c.opposing_party, c.court, c.judge, c.description
		 FROM cases c
		 LEFT JOIN clients cl ON cl.id = c.client_id AND cl.deleted_at IS NULL
		 WHERE c.id = ? AND c.deleted_at IS NULL`, id,
	).Scan(&c.ID, &c.CaseNumber, &c.Title, &caseType, &status, &client, &opposing, &court, &judge, &desc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get case %d: %w", id, err)
	}
	c.CaseType = caseType.String
	c.Status = status.String
	c.ClientName = client.String
	c.OpposingParty = opposing.String
	c.Court = court.String
	c.Judge = judge.String
	c.Description = desc.String
	return &c, nil
}

// RecentDocuments returns the newest documents of a case.
func (s *SQLiteStore) RecentDocuments(ctx context.Context, caseID int64, limit int) ([]domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, file_type, category, status, ai_summary
		 FROM documents
		 WHERE case_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT ?`, caseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.DocumentSummary{}
	for rows.Next() {
		var d domain.DocumentSummary
		var fileType, category, status, summary sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &fileType, &category, &status, &summary); err != nil {
			return nil, err
		}
		d.FileType = fileType.String
		d.Category = category.String
		d.Status = status.String
		d.AISummary = summary.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpcomingTasks returns open tasks soonest-due first; undated tasks sort last.
func (s *SQLiteStore) UpcomingTasks(ctx context.Context, caseID int64, limit int) ([]domain.TaskSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, priority, status, due_date
		 FROM tasks
		 WHERE case_id = ? AND deleted_at IS NULL AND status != 'completed'
		 ORDER BY due_date IS NULL, due_date ASC, id ASC LIMIT ?`, caseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.TaskSummary{}
	for rows.Next() {
		var t domain.TaskSummary
		var priority, status sql.NullString
		var due sql.NullTime
		if err := rows.Scan(&t.Title, &priority, &status, &due); err != nil {
			return nil, err
		}
		t.Priority = priority.String
		t.Status = status.String
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpcomingEvents returns the soonest calendar events that have not started.
func (s *SQLiteStore) UpcomingEvents(ctx context.Context, caseID int64, limit int) ([]domain.EventSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, event_type, start_at, location
		 FROM calendar_events
		 WHERE case_id = ? AND start_at >= ?
		 ORDER BY start_at ASC, id ASC LIMIT ?`, caseID, time.Now(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []domain.EventSummary{}
	for rows.Next() {
		var e domain.EventSummary
		var eventType, location sql.NullString
		if err := rows.Scan(&e.Title, &eventType, &e.StartAt, &location); err != nil {
			return nil, err
		}
		e.EventType = eventType.String
		e.Location = location.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Billing aggregates invoices and time entries. A case with no billing rows
// yields a zero summary, not nil.
func (s *SQLiteStore) Billing(ctx context.Context, caseID int64) (*domain.BillingSummary, error) {
	var b domain.BillingSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(amount_paid), 0)
		 FROM invoices WHERE case_id = ?`, caseID,
	).Scan(&b.TotalBilled, &b.TotalPaid)
	if err != nil {
		return nil, fmt.Errorf("sum invoices: %w", err)
	}
	b.TotalOutstanding = b.TotalBilled - b.TotalPaid

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(hours), 0), COALESCE(AVG(rate), 0)
		 FROM time_entries WHERE case_id = ?`, caseID,
	).Scan(&b.TotalHours, &b.AvgRate)
	if err != nil {
		return nil, fmt.Errorf("sum time entries: %w", err)
	}
	return &b, nil
}
