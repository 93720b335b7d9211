// internal/notify/prefs/store_test.go
package prefs

import (
	"context"
	"database/sql"
	"testing"

	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger.NewNoOpLogger()), mock
}

func prefRow(userID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "email_enabled", "push_enabled",
		"inspection_assigned_email", "inspection_assigned_push",
		"inspection_completed_email", "inspection_completed_push",
		"inspection_reviewed_email", "inspection_reviewed_push",
		"status_changed_email", "status_changed_push",
		"urgent_alert_email", "urgent_alert_push",
		"system_announcement_email", "system_announcement_push",
		"email_frequency", "quiet_hours_start", "quiet_hours_end", "timezone",
	}).AddRow(userID, true, false,
		true, true,
		false, true,
		false, true,
		true, true,
		true, true,
		false, true,
		"daily", "21:00", "07:00", "Australia/Sydney")
}

func TestGet_ReturnsStoredRow(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM notification_preferences WHERE user_id = \$1`).
		WithArgs("user-a").
		WillReturnRows(prefRow("user-a"))

	p, err := s.Get(context.Background(), "user-a")

	require.NoError(t, err)
	assert.Equal(t, "user-a", p.UserID)
	assert.True(t, p.EmailEnabled)
	assert.False(t, p.PushEnabled)
	assert.False(t, p.InspectionCompleted.Email)
	assert.Equal(t, models.FrequencyDaily, p.EmailFrequency)
	assert.Equal(t, "Australia/Sydney", p.Timezone)
}

func TestGet_MissingRowYieldsDefaults(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM notification_preferences WHERE user_id = \$1`).
		WithArgs("new-user").
		WillReturnError(sql.ErrNoRows)

	p, err := s.Get(context.Background(), "new-user")

	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences("new-user"), p)
}

func TestGet_QueryErrorIsReturned(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM notification_preferences`).
		WillReturnError(assert.AnError)

	_, err := s.Get(context.Background(), "user-a")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestUpsert_FailureReportsUpdateError(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`(?s)INSERT INTO notification_preferences`).
		WillReturnError(assert.AnError)

	err := s.Upsert(context.Background(), models.DefaultPreferences("user-a"))

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodePreferencesUpdateFailed, stdErr.Code)
}

func TestUpsert(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`(?s)INSERT INTO notification_preferences.+ON CONFLICT \(user_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := models.DefaultPreferences("user-a")
	p.EmailFrequency = models.FrequencyWeekly

	assert.NoError(t, s.Upsert(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}
