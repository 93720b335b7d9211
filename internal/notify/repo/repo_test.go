// internal/notify/repo/repo_test.go
package repo

import (
	"context"
	"testing"
	"time"

	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, logger.NewTestLogger(t)), mock
}

func TestInsert_FillsGeneratedFields(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := r.Insert(context.Background(), &models.Notification{
		RecipientID: "user-a",
		Type:        models.TypeInspectionCompleted,
		Title:       "Inspection completed",
		Message:     "Inspection INS-1043 is ready for review",
		Data:        map[string]interface{}{"inspection_id": "INS-1043"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.PriorityMedium, n.Priority)
	assert.False(t, n.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_PropagatesDatabaseError(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(assert.AnError)

	_, err := r.Insert(context.Background(), &models.Notification{
		RecipientID: "bad-recipient",
		Type:        models.TypeStatusChanged,
		Title:       "t",
		Message:     "m",
	})

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeNotificationInsertFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func notificationRows(t *testing.T, ids ...string) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{
		"id", "recipient_id", "sender_id", "type", "priority", "title", "message", "data",
		"read_at", "dismissed_at", "created_at", "updated_at",
	})
	now := time.Now().UTC()
	for _, id := range ids {
		rows.AddRow(id, "user-a", nil, "inspection_assigned", "medium", "title", "msg",
			[]byte(`{"inspection_id":"INS-7"}`), nil, nil, now, now)
	}
	return rows
}

func TestListByRecipient(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM notifications`).
		WithArgs("user-a", 50, 0).
		WillReturnRows(notificationRows(t, "n1", "n2"))

	items, err := r.ListByRecipient(context.Background(), "user-a", 50, 0)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n1", items[0].ID)
	assert.Equal(t, "INS-7", items[0].Data["inspection_id"])
	assert.Nil(t, items[0].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadCount(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := r.UnreadCount(context.Background(), "user-a")

	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMarkRead_GuardsAlreadyRead(t *testing.T) {
	r, mock := newTestRepo(t)

	// The IS NULL guard means a second call updates zero rows, keeping
	// read_at monotonic.
	mock.ExpectExec(`UPDATE notifications SET read_at = \$1, updated_at = \$1\s+WHERE id = \$2 AND recipient_id = \$3 AND read_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), "n1", "user-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, r.MarkRead(context.Background(), "n1", "user-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead_ScopedToRecipient(t *testing.T) {
	r, mock := newTestRepo(t)

	// Another user's id in the filter turns the update into a no-op row
	// match instead of touching the foreign row.
	mock.ExpectExec(`UPDATE notifications SET read_at = \$1, updated_at = \$1\s+WHERE id = \$2 AND recipient_id = \$3 AND read_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), "n1", "user-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, r.MarkRead(context.Background(), "n1", "user-b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllRead(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectExec(`UPDATE notifications SET read_at = \$1, updated_at = \$1\s+WHERE recipient_id = \$2 AND read_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), "user-a").
		WillReturnResult(sqlmock.NewResult(0, 4))

	assert.NoError(t, r.MarkAllRead(context.Background(), "user-a"))
}

func TestDismiss(t *testing.T) {
	r, mock := newTestRepo(t)

	mock.ExpectExec(`UPDATE notifications SET dismissed_at = \$1, updated_at = \$1\s+WHERE id = \$2 AND recipient_id = \$3 AND dismissed_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), "n1", "user-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, r.Dismiss(context.Background(), "n1", "user-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForEmail(t *testing.T) {
	r, mock := newTestRepo(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "recipient_id", "sender_id", "type", "priority", "title", "message", "data",
		"read_at", "dismissed_at", "created_at", "updated_at", "email", "full_name",
	}).AddRow("n1", "user-a", "admin-1", "inspection_completed", "high", "Done", "All done",
		[]byte(`{}`), nil, nil, now, now, "user-a@example.com", "Avery Inspector")

	mock.ExpectQuery(`FROM notifications n\s+JOIN users u`).
		WithArgs("n1").
		WillReturnRows(rows)

	n, recipient, err := r.GetForEmail(context.Background(), "n1")

	require.NoError(t, err)
	assert.Equal(t, "admin-1", n.SenderID)
	assert.Equal(t, "user-a@example.com", recipient.Email)
	assert.Equal(t, "Avery Inspector", recipient.FullName)
}
