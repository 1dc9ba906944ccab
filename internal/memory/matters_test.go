package memory

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	res, err := db.Exec(query, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func seedCase(t *testing.T, store *SQLiteStore) int64 {
	t.Helper()
	db := store.DB()
	client := mustExec(t, db, `INSERT INTO clients (name) VALUES ('Jane Doe')`)
	return mustExec(t, db,
		`INSERT INTO cases (case_number, title, case_type, status, client_id, opposing_party, court, judge, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"2025-CV-0042", "Doe v. Acme Freight", "personal_injury", "open", client,
		"Acme Freight LLC", "Jackson County Circuit Court", "Hon. R. Park", "Rear-end collision on I-70",
	)
}

func TestGetCase_Unknown(t *testing.T) {
	store := testStore(t)
	c, err := store.GetCase(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGetCase_JoinsClient(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)

	c, err := store.GetCase(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "2025-CV-0042", c.CaseNumber)
	assert.Equal(t, "Jane Doe", c.ClientName)
	assert.Equal(t, "Acme Freight LLC", c.OpposingParty)
	assert.Equal(t, "Jackson County Circuit Court", c.Court)
}

func TestGetCase_SoftDeletedIsInvisible(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)
	_, err := store.DB().Exec(`UPDATE cases SET deleted_at = ? WHERE id = ?`, time.Now(), id)
	require.NoError(t, err)

	c, err := store.GetCase(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRecentDocuments_NewestFirstSkipsDeleted(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)
	db := store.DB()
	base := time.Now().Add(-24 * time.Hour)

	for i := 0; i < 12; i++ {
		mustExec(t, db, `INSERT INTO documents (case_id, title, file_type, category, created_at) VALUES (?, ?, 'pdf', 'pleading', ?)`,
			id, fmt.Sprintf("doc %02d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mustExec(t, db, `INSERT INTO documents (case_id, title, created_at, deleted_at) VALUES (?, 'trashed', ?, ?)`,
		id, time.Now(), time.Now())

	docs, err := store.RecentDocuments(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, docs, 10)
	assert.Equal(t, "doc 11", docs[0].Title)
	assert.Equal(t, "pdf", docs[0].FileType)
	for _, d := range docs {
		assert.NotEqual(t, "trashed", d.Title)
	}
}

func TestUpcomingTasks_SoonestFirstUndatedLast(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)
	db := store.DB()
	now := time.Now()

	mustExec(t, db, `INSERT INTO tasks (case_id, title, priority) VALUES (?, 'undated', 'low')`, id)
	mustExec(t, db, `INSERT INTO tasks (case_id, title, priority, due_date) VALUES (?, 'later', 'medium', ?)`, id, now.Add(72*time.Hour))
	mustExec(t, db, `INSERT INTO tasks (case_id, title, priority, due_date) VALUES (?, 'sooner', 'high', ?)`, id, now.Add(24*time.Hour))
	mustExec(t, db, `INSERT INTO tasks (case_id, title, status, due_date) VALUES (?, 'done', 'completed', ?)`, id, now)

	tasks, err := store.UpcomingTasks(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "sooner", tasks[0].Title)
	assert.Equal(t, "later", tasks[1].Title)
	assert.Equal(t, "undated", tasks[2].Title)
	require.NotNil(t, tasks[0].DueDate)
	assert.Nil(t, tasks[2].DueDate)
}

func TestUpcomingEvents_FutureOnly(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)
	db := store.DB()
	now := time.Now()

	mustExec(t, db, `INSERT INTO calendar_events (case_id, title, event_type, start_at) VALUES (?, 'past hearing', 'hearing', ?)`, id, now.Add(-48*time.Hour))
	for i := 1; i <= 6; i++ {
		mustExec(t, db, `INSERT INTO calendar_events (case_id, title, event_type, start_at) VALUES (?, ?, 'deposition', ?)`,
			id, fmt.Sprintf("event %d", i), now.Add(time.Duration(i)*time.Hour))
	}

	events, err := store.UpcomingEvents(context.Background(), id, 5)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, "event 1", events[0].Title)
	assert.Equal(t, "deposition", events[0].EventType)
}

func TestBilling_Aggregates(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)
	db := store.DB()

	mustExec(t, db, `INSERT INTO invoices (case_id, total_amount, amount_paid) VALUES (?, 5000, 3000)`, id)
	mustExec(t, db, `INSERT INTO invoices (case_id, total_amount, amount_paid) VALUES (?, 2500, 0)`, id)
	mustExec(t, db, `INSERT INTO time_entries (case_id, hours, rate) VALUES (?, 10, 300)`, id)
	mustExec(t, db, `INSERT INTO time_entries (case_id, hours, rate) VALUES (?, 5, 200)`, id)

	b, err := store.Billing(context.Background(), id)
	require.NoError(t, err)
	assert.InDelta(t, 7500, b.TotalBilled, 0.001)
	assert.InDelta(t, 3000, b.TotalPaid, 0.001)
	assert.InDelta(t, 4500, b.TotalOutstanding, 0.001)
	assert.InDelta(t, 15, b.TotalHours, 0.001)
	assert.InDelta(t, 250, b.AvgRate, 0.001)
}

func TestBilling_NoRowsIsZero(t *testing.T) {
	store := testStore(t)
	id := seedCase(t, store)

	b, err := store.Billing(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Zero(t, b.TotalBilled)
	assert.Zero(t, b.AvgRate)
}
