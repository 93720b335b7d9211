// Package errors provides standardized error handling for the notification engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: backend unreachable or not configured. Always
	// fail open to a disabled, inert state, never a crash.
	ErrCodeBackendNotConfigured ErrorCode = "BACKEND_NOT_CONFIGURED"

	// Authentication errors: no session or expired token. Treated the same
	// as "not authenticated".
	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"

	// Per-operation write failures. Logged, operation-local.
	ErrCodeNotificationInsertFailed ErrorCode = "NOTIFICATION_INSERT_FAILED"
	ErrCodeNotificationUpdateFailed ErrorCode = "NOTIFICATION_UPDATE_FAILED"
	ErrCodePreferencesUpdateFailed  ErrorCode = "PREFERENCES_UPDATE_FAILED"
	ErrCodeEmailQueueFailed         ErrorCode = "EMAIL_QUEUE_FAILED"
	ErrCodeEmailSendFailed          ErrorCode = "EMAIL_SEND_FAILED"

	// Malformed caller input to the creation API. Rejected synchronously,
	// no partial side effects.
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnknownNotificationType ErrorCode = "UNKNOWN_NOTIFICATION_TYPE"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is allows errors.Is matching on the error code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewBackendNotConfiguredError marks the hosted backend as absent or
// unreachable. Callers degrade to an inert state instead of failing.
func NewBackendNotConfiguredError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendNotConfigured,
		Message:   "Notification backend is not configured",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotAuthenticatedError creates a non-retryable auth error.
func NewNotAuthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthenticated,
		Message:   "No authenticated user",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable authorization error.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Caller is not privileged for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationInsertFailedError creates a retryable insert error.
func NewNotificationInsertFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationInsertFailed,
		Message:   "Failed to insert notification row",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationUpdateFailedError creates a retryable error for a failed
// read or dismiss mutation. The optimistic local state is kept; the next
// full refresh reconciles.
func NewNotificationUpdateFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationUpdateFailed,
		Message:   "Failed to update notification row",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferencesUpdateFailedError creates a retryable preference save error.
func NewPreferencesUpdateFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferencesUpdateFailed,
		Message:   "Failed to save notification preferences",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailQueueFailedError creates a retryable email queue error. A
// notification without a queued email is an acceptable degraded state.
func NewEmailQueueFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailQueueFailed,
		Message:   "Failed to queue email for notification",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendFailedError creates a retryable error for a queued email the
// mailer could not hand to the transport. The row stays unsent and is
// retried on the next drain.
func NewEmailSendFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   "Failed to send queued email",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Invalid notification request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownTypeError creates a non-retryable error for a notification type
// outside the configured enum.
func NewUnknownTypeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownNotificationType,
		Message:   "Unknown notification type",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connectivity error.
func NewDatabaseConnectionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable database error.
func NewQueryExecutionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
