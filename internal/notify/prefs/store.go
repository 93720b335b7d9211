// internal/notify/prefs/store.go

// Package prefs is the per-user delivery preference store. A user without a
// stored row behaves as models.DefaultPreferences; rows are upserted lazily
// the first time the user saves anything.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"
)

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "preference-store"}),
	}
}

const prefColumns = `user_id, email_enabled, push_enabled,
	inspection_assigned_email, inspection_assigned_push,
	inspection_completed_email, inspection_completed_push,
	inspection_reviewed_email, inspection_reviewed_push,
	status_changed_email, status_changed_push,
	urgent_alert_email, urgent_alert_push,
	system_announcement_email, system_announcement_push,
	email_frequency, quiet_hours_start, quiet_hours_end, timezone`

// Get returns the stored preferences, or the documented defaults when no
// row exists. A missing row is not an error to the caller.
func (s *Store) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_preferences WHERE user_id = $1`, prefColumns)

	row := s.db.QueryRowContext(ctx, query, userID)

	var p models.NotificationPreferences
	err := row.Scan(&p.UserID, &p.EmailEnabled, &p.PushEnabled,
		&p.InspectionAssigned.Email, &p.InspectionAssigned.Push,
		&p.InspectionCompleted.Email, &p.InspectionCompleted.Push,
		&p.InspectionReviewed.Email, &p.InspectionReviewed.Push,
		&p.StatusChanged.Email, &p.StatusChanged.Push,
		&p.UrgentAlert.Email, &p.UrgentAlert.Push,
		&p.SystemAnnouncement.Email, &p.SystemAnnouncement.Push,
		&p.EmailFrequency, &p.QuietHoursStart, &p.QuietHoursEnd, &p.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(fmt.Sprintf("load preferences: %v", err))
	}
	return &p, nil
}

// Upsert writes the full preference record, creating the row on first save.
func (s *Store) Upsert(ctx context.Context, p *models.NotificationPreferences) error {
	query := `INSERT INTO notification_preferences (` + prefColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			push_enabled = EXCLUDED.push_enabled,
			inspection_assigned_email = EXCLUDED.inspection_assigned_email,
			inspection_assigned_push = EXCLUDED.inspection_assigned_push,
			inspection_completed_email = EXCLUDED.inspection_completed_email,
			inspection_completed_push = EXCLUDED.inspection_completed_push,
			inspection_reviewed_email = EXCLUDED.inspection_reviewed_email,
			inspection_reviewed_push = EXCLUDED.inspection_reviewed_push,
			status_changed_email = EXCLUDED.status_changed_email,
			status_changed_push = EXCLUDED.status_changed_push,
			urgent_alert_email = EXCLUDED.urgent_alert_email,
			urgent_alert_push = EXCLUDED.urgent_alert_push,
			system_announcement_email = EXCLUDED.system_announcement_email,
			system_announcement_push = EXCLUDED.system_announcement_push,
			email_frequency = EXCLUDED.email_frequency,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			timezone = EXCLUDED.timezone,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.EmailEnabled, p.PushEnabled,
		p.InspectionAssigned.Email, p.InspectionAssigned.Push,
		p.InspectionCompleted.Email, p.InspectionCompleted.Push,
		p.InspectionReviewed.Email, p.InspectionReviewed.Push,
		p.StatusChanged.Email, p.StatusChanged.Push,
		p.UrgentAlert.Email, p.UrgentAlert.Push,
		p.SystemAnnouncement.Email, p.SystemAnnouncement.Push,
		string(p.EmailFrequency), p.QuietHoursStart, p.QuietHoursEnd, p.Timezone,
	)
	if err != nil {
		return apperrors.NewPreferencesUpdateFailedError(err.Error())
	}
	return nil
}
