// internal/notify/mailqueue/scheduler.go

// Package mailqueue turns notifications into queued emails and drains the
// queue. The scheduler never sends mail itself; it only computes when the
// mail should go out and writes the notification_queue row.
package mailqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inspection-notifications/internal/common/config"
	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/common/metrics"
	"inspection-notifications/internal/models"
	"inspection-notifications/internal/notify/decision"

	"github.com/google/uuid"
)

// NotificationLoader loads a notification plus its recipient contact.
type NotificationLoader interface {
	GetForEmail(ctx context.Context, id string) (*models.Notification, *models.Recipient, error)
}

// PreferenceReader loads a recipient's delivery preferences.
type PreferenceReader interface {
	Get(ctx context.Context, userID string) (*models.NotificationPreferences, error)
}

type Scheduler struct {
	db            *sql.DB
	notifications NotificationLoader
	prefs         PreferenceReader
	cfg           config.EmailConfig
	logger        logger.Logger
	now           func() time.Time
}

func NewScheduler(db *sql.DB, notifications NotificationLoader, prefs PreferenceReader, cfg config.EmailConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		db:            db,
		notifications: notifications,
		prefs:         prefs,
		cfg:           cfg,
		logger:        log.WithFields(map[string]interface{}{"component": "email-queue"}),
		now:           time.Now,
	}
}

// QueueEmailNotification inserts at most one queued email for the
// notification. When email is disabled for the recipient or the type it is
// a no-op, so the dispatcher can call it unconditionally.
func (s *Scheduler) QueueEmailNotification(ctx context.Context, notificationID string) error {
	n, recipient, err := s.notifications.GetForEmail(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", notificationID, err)
	}

	p, err := s.prefs.Get(ctx, n.RecipientID)
	if err != nil {
		// Fall back to defaults; a broken preference read must not lose mail
		// the default set would have sent.
		s.logger.WithError(err).Warn("preference load failed, using defaults", map[string]interface{}{
			"recipientId": n.RecipientID,
		})
		p = nil
	}

	if !decision.ShouldEmail(p, n.Type) {
		return nil
	}

	subject := fmt.Sprintf("[%s] %s", s.cfg.ProductName, n.Title)
	body, err := renderBody(s.cfg, n, recipient)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	if p == nil {
		p = models.DefaultPreferences(n.RecipientID)
	}
	now := s.now().UTC()
	scheduledFor := decision.ScheduleFor(p.EmailFrequency, now, decision.UserLocation(p))

	query := `INSERT INTO notification_queue
		(id, notification_id, email_address, subject, body, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		uuid.New().String(), n.ID, recipient.Email, subject, body, scheduledFor.UTC(), now)
	if err != nil {
		return apperrors.NewEmailQueueFailedError(fmt.Sprintf("insert queued email: %v", err))
	}

	metrics.EmailsQueued.WithLabelValues(string(p.EmailFrequency)).Inc()
	s.logger.Debug("email queued", map[string]interface{}{
		"notificationId": n.ID,
		"scheduledFor":   scheduledFor.UTC().Format(time.RFC3339),
	})
	return nil
}
