// internal/notify/mailqueue/mailer.go
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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESService and SNSService are declared locally so tests can mock the AWS
// clients.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Mailer drains due notification_queue rows and hands them to SES. Urgent
// notifications with a phone number on file additionally go out as SMS.
// Rows that fail stay unsent and are retried on the next tick.
type Mailer struct {
	db       *sql.DB
	sesCli   SESService
	snsCli   SNSService
	emailCfg config.EmailConfig
	smsCfg   config.SMSConfig
	logger   logger.Logger
}

func NewMailer(db *sql.DB, sesCli SESService, snsCli SNSService, emailCfg config.EmailConfig, smsCfg config.SMSConfig, log logger.Logger) *Mailer {
	return &Mailer{
		db:       db,
		sesCli:   sesCli,
		snsCli:   snsCli,
		emailCfg: emailCfg,
		smsCfg:   smsCfg,
		logger:   log.WithFields(map[string]interface{}{"component": "mailer"}),
	}
}

// Run drains the queue on a fixed interval until ctx is cancelled.
func (m *Mailer) Run(ctx context.Context) {
	interval := time.Duration(m.emailCfg.DrainInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.DrainOnce(ctx); err != nil {
				m.logger.Error("drain failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

type dueEmail struct {
	queueID        string
	notificationID string
	emailAddress   string
	subject        string
	body           string
	priority       string
	phone          string
}

// DrainOnce sends every due unsent row once. Per-row failures are logged
// and left for the next tick.
func (m *Mailer) DrainOnce(ctx context.Context) error {
	due, err := m.selectDue(ctx)
	if err != nil {
		return err
	}

	for _, e := range due {
		if err := m.sendOne(ctx, e); err != nil {
			metrics.EmailsSent.WithLabelValues("failed").Inc()
			m.logger.Error("send failed", map[string]interface{}{
				"queueId": e.queueID,
				"error":   err.Error(),
			})
			continue
		}
		metrics.EmailsSent.WithLabelValues("sent").Inc()
	}
	return nil
}

func (m *Mailer) selectDue(ctx context.Context) ([]dueEmail, error) {
	query := `SELECT q.id, q.notification_id, q.email_address, q.subject, q.body, n.priority, COALESCE(u.phone, '')
		FROM notification_queue q
		JOIN notifications n ON n.id = q.notification_id
		JOIN users u ON u.id = n.recipient_id
		WHERE q.scheduled_for <= $1 AND q.sent_at IS NULL
		ORDER BY q.scheduled_for
		LIMIT $2`

	rows, err := m.db.QueryContext(ctx, query, time.Now().UTC(), m.emailCfg.DrainBatch)
	if err != nil {
		return nil, fmt.Errorf("select due emails: %w", err)
	}
	defer rows.Close()

	var due []dueEmail
	for rows.Next() {
		var e dueEmail
		if err := rows.Scan(&e.queueID, &e.notificationID, &e.emailAddress, &e.subject, &e.body, &e.priority, &e.phone); err != nil {
			return nil, fmt.Errorf("scan due email: %w", err)
		}
		due = append(due, e)
	}
	return due, rows.Err()
}

func (m *Mailer) sendOne(ctx context.Context, e dueEmail) error {
	_, err := m.sesCli.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{e.emailAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(e.subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(e.body)},
			},
		},
		Source: aws.String(m.emailCfg.FromEmail),
	})
	if err != nil {
		return apperrors.NewEmailSendFailedError(fmt.Sprintf("ses send: %v", err))
	}

	// SMS only for urgent notifications with a phone on file.
	if m.smsCfg.Enabled && m.snsCli != nil && e.phone != "" && e.priority == string(models.PriorityUrgent) {
		if _, err := m.snsCli.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(e.phone),
			Message:     aws.String(e.subject),
		}); err != nil {
			// Email already went out; losing the SMS is tolerated.
			m.logger.Warn("urgent SMS failed", map[string]interface{}{
				"queueId": e.queueID,
				"error":   err.Error(),
			})
		}
	}

	if _, err := m.db.ExecContext(ctx,
		`UPDATE notification_queue SET sent_at = $1 WHERE id = $2`,
		time.Now().UTC(), e.queueID,
	); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}
