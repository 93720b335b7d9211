// internal/notify/repo/repo.go

// Package repo is the persisted notification repository. Rows are created by
// the fan-out dispatcher and mutated only by the read/dismiss operations;
// the engine never deletes them.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"

	"github.com/google/uuid"
)

type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "notification-repo"}),
	}
}

const notificationColumns = `id, recipient_id, sender_id, type, priority, title, message, data, read_at, dismissed_at, created_at, updated_at`

// Insert writes one notification row and returns it with generated fields
// filled in. Retrying the same logical event produces a duplicate row; the
// repository does not deduplicate.
func (r *Repository) Insert(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}

	var senderID interface{}
	if n.SenderID != "" {
		senderID = n.SenderID
	}

	query := `INSERT INTO notifications
		(id, recipient_id, sender_id, type, priority, title, message, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, senderID, string(n.Type), string(n.Priority),
		n.Title, n.Message, dataJSON, n.CreatedAt, n.UpdatedAt,
	); err != nil {
		return nil, apperrors.NewNotificationInsertFailedError(err.Error())
	}

	return n, nil
}

// ListByRecipient returns the recipient's notifications newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, notificationColumns)

	rows, err := r.db.QueryContext(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(fmt.Sprintf("list notifications: %v", err))
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UnreadCount counts rows that are neither read nor dismissed.
func (r *Repository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL AND dismissed_at IS NULL`
	if err := r.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, apperrors.NewQueryExecutionFailedError(fmt.Sprintf("count unread: %v", err))
	}
	return count, nil
}

// MarkRead sets read_at once on a row owned by recipientID. The IS NULL
// guard keeps the timestamp monotonic across repeated calls; the recipient
// filter makes a foreign id a zero-row update.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET read_at = $1, updated_at = $1
		WHERE id = $2 AND recipient_id = $3 AND read_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, recipientID); err != nil {
		return apperrors.NewNotificationUpdateFailedError(fmt.Sprintf("mark read: %v", err))
	}
	return nil
}

// MarkAllRead sets read_at on every unread row for the recipient.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID string) error {
	query := `UPDATE notifications SET read_at = $1, updated_at = $1
		WHERE recipient_id = $2 AND read_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), recipientID); err != nil {
		return apperrors.NewNotificationUpdateFailedError(fmt.Sprintf("mark all read: %v", err))
	}
	return nil
}

// Dismiss sets dismissed_at once on a row owned by recipientID. Dismissing
// does not require a prior read.
func (r *Repository) Dismiss(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET dismissed_at = $1, updated_at = $1
		WHERE id = $2 AND recipient_id = $3 AND dismissed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, recipientID); err != nil {
		return apperrors.NewNotificationUpdateFailedError(fmt.Sprintf("dismiss: %v", err))
	}
	return nil
}

// GetForEmail loads a notification together with the recipient contact used
// for rendering the queued email.
func (r *Repository) GetForEmail(ctx context.Context, id string) (*models.Notification, *models.Recipient, error) {
	query := `SELECT n.id, n.recipient_id, n.sender_id, n.type, n.priority, n.title, n.message, n.data,
			n.read_at, n.dismissed_at, n.created_at, n.updated_at,
			u.email, u.full_name
		FROM notifications n
		JOIN users u ON u.id = n.recipient_id
		WHERE n.id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var (
		n           models.Notification
		senderID    sql.NullString
		dataJSON    []byte
		readAt      sql.NullTime
		dismissedAt sql.NullTime
		email       string
		fullName    sql.NullString
	)

	err := row.Scan(&n.ID, &n.RecipientID, &senderID, &n.Type, &n.Priority, &n.Title, &n.Message, &dataJSON,
		&readAt, &dismissedAt, &n.CreatedAt, &n.UpdatedAt, &email, &fullName)
	if err != nil {
		return nil, nil, apperrors.NewQueryExecutionFailedError(fmt.Sprintf("load notification for email: %v", err))
	}

	applyNullables(&n, senderID, dataJSON, readAt, dismissedAt)

	recipient := &models.Recipient{
		ID:       n.RecipientID,
		Email:    email,
		FullName: fullName.String,
	}
	return &n, recipient, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n           models.Notification
		senderID    sql.NullString
		dataJSON    []byte
		readAt      sql.NullTime
		dismissedAt sql.NullTime
	)

	err := row.Scan(&n.ID, &n.RecipientID, &senderID, &n.Type, &n.Priority, &n.Title, &n.Message, &dataJSON,
		&readAt, &dismissedAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	applyNullables(&n, senderID, dataJSON, readAt, dismissedAt)
	return &n, nil
}

func applyNullables(n *models.Notification, senderID sql.NullString, dataJSON []byte, readAt, dismissedAt sql.NullTime) {
	if senderID.Valid {
		n.SenderID = senderID.String
	}
	if len(dataJSON) > 0 {
		// Bad stored payloads degrade to no data rather than failing reads.
		_ = json.Unmarshal(dataJSON, &n.Data)
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	if dismissedAt.Valid {
		t := dismissedAt.Time
		n.DismissedAt = &t
	}
}
