// internal/notify/dispatch/dispatcher.go

// Package dispatch expands one authored event into per-recipient persisted
// notifications. Delivery is at-least-once: retrying the same logical event
// produces duplicate rows, and callers reconcile partial failure by
// comparing the returned count with the requested count.
package dispatch

import (
	"context"
	"time"

	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/common/metrics"
	"inspection-notifications/internal/common/observability"
	"inspection-notifications/internal/models"
)

// NotificationInserter writes one notification row.
type NotificationInserter interface {
	Insert(ctx context.Context, n *models.Notification) (*models.Notification, error)
}

// EmailQueuer schedules the email for a created notification.
type EmailQueuer interface {
	QueueEmailNotification(ctx context.Context, notificationID string) error
}

// LivePublisher announces an insert on the live delivery channel.
type LivePublisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

type Dispatcher struct {
	repo   NotificationInserter
	mail   EmailQueuer
	live   LivePublisher
	obs    *observability.Observability
	logger logger.Logger
}

func NewDispatcher(repo NotificationInserter, mail EmailQueuer, live LivePublisher, obs *observability.Observability, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		mail:   mail,
		live:   live,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "fanout-dispatcher"}),
	}
}

// CreateBulkNotifications writes one notification per recipient per event.
// The whole batch is attempted even when individual inserts fail; the
// returned slice holds exactly the successfully created rows in input
// order. It never errors on partial failure.
func (d *Dispatcher) CreateBulkNotifications(ctx context.Context, events []models.NotificationEvent) []models.Notification {
	start := time.Now()
	defer func() {
		metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	}()

	var created []models.Notification
	for _, event := range events {
		for _, recipientID := range event.RecipientIDs {
			n := d.createOne(ctx, event, recipientID)
			if n != nil {
				created = append(created, *n)
			}
		}
	}

	if d.obs != nil {
		status := "complete"
		if len(created) < requestedCount(events) {
			status = "partial"
		}
		d.obs.RecordFanout(ctx, status)
		d.obs.RecordFanoutDuration(ctx, time.Since(start), status)
	}

	return created
}

// CreateNotification is the single-recipient convenience form.
func (d *Dispatcher) CreateNotification(ctx context.Context, event models.NotificationEvent, recipientID string) *models.Notification {
	return d.createOne(ctx, event, recipientID)
}

func (d *Dispatcher) createOne(ctx context.Context, event models.NotificationEvent, recipientID string) *models.Notification {
	priority := event.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	n := &models.Notification{
		RecipientID: recipientID,
		SenderID:    event.SenderID,
		Type:        event.Type,
		Priority:    priority,
		Title:       event.Title,
		Message:     event.Message,
		Data:        event.Data,
	}

	inserted, err := d.repo.Insert(ctx, n)
	if err != nil {
		// One bad recipient must not block delivery to the others.
		metrics.NotificationInsertFailures.WithLabelValues(string(event.Type)).Inc()
		d.logger.WithError(err).Error("notification insert failed", map[string]interface{}{
			"recipientId": recipientID,
			"type":        string(event.Type),
		})
		return nil
	}
	metrics.NotificationsCreated.WithLabelValues(string(inserted.Type), string(inserted.Priority)).Inc()

	// The row is committed; email queueing and the live event are
	// best-effort from here. A notification without a queued email is an
	// acceptable degraded state, never the reverse.
	if err := d.mail.QueueEmailNotification(ctx, inserted.ID); err != nil {
		d.logger.Error("email queue failed", map[string]interface{}{
			"notificationId": inserted.ID,
			"error":          err.Error(),
		})
	}

	if err := d.live.Publish(ctx, inserted); err != nil {
		d.logger.Warn("live publish failed", map[string]interface{}{
			"notificationId": inserted.ID,
			"error":          err.Error(),
		})
	}

	return inserted
}

func requestedCount(events []models.NotificationEvent) int {
	total := 0
	for _, e := range events {
		total += len(e.RecipientIDs)
	}
	return total
}
