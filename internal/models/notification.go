// internal/models/notification.go
package models

import "time"

// NotificationType is the fixed event-type enum. user_mention is persisted
// but has no preference columns and is therefore never emailed or pushed.
type NotificationType string

const (
	TypeInspectionAssigned  NotificationType = "inspection_assigned"
	TypeInspectionCompleted NotificationType = "inspection_completed"
	TypeInspectionReviewed  NotificationType = "inspection_reviewed"
	TypeStatusChanged       NotificationType = "status_changed"
	TypeUrgentAlert         NotificationType = "urgent_alert"
	TypeSystemAnnouncement  NotificationType = "system_announcement"
	TypeUserMention         NotificationType = "user_mention"
)

// Types lists every valid notification type.
var Types = []NotificationType{
	TypeInspectionAssigned,
	TypeInspectionCompleted,
	TypeInspectionReviewed,
	TypeStatusChanged,
	TypeUrgentAlert,
	TypeSystemAnnouncement,
	TypeUserMention,
}

// IsValidType reports whether t is part of the type enum.
func IsValidType(t NotificationType) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationPriority orders notifications for display and alerting.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p NotificationPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// NotificationEvent is the ephemeral, author-supplied input to the fan-out
// dispatcher. One event expands to one persisted Notification per recipient.
type NotificationEvent struct {
	Type         NotificationType       `json:"type"`
	Priority     NotificationPriority   `json:"priority,omitempty"` // defaults to medium
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Data         map[string]interface{} `json:"data,omitempty"`
	SenderID     string                 `json:"senderId,omitempty"`
	RecipientIDs []string               `json:"recipientIds"`
}

// Notification is the persisted per-recipient record. ReadAt and DismissedAt
// are monotonic once set and independent of each other; rows are never
// deleted by the engine.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipientId"`
	SenderID    string                 `json:"senderId,omitempty"`
	Type        NotificationType       `json:"type"`
	Priority    NotificationPriority   `json:"priority"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	ReadAt      *time.Time             `json:"readAt,omitempty"`
	DismissedAt *time.Time             `json:"dismissedAt,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Unread reports whether the notification counts toward the unread badge.
func (n *Notification) Unread() bool {
	return n.ReadAt == nil && n.DismissedAt == nil
}

// QueuedEmail is one pending outbound email, created at most once per
// notification. ScheduledFor is always >= the creation time; an external (or
// the built-in) mailer drains rows where ScheduledFor <= now.
type QueuedEmail struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId"`
	EmailAddress   string     `json:"emailAddress"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	ScheduledFor   time.Time  `json:"scheduledFor"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Recipient is the contact projection read from the users table when
// rendering an email.
type Recipient struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}
