// internal/notify/session/cache.go

// Package session holds the per-session aggregation cache: the ordered
// unread view a connected client renders, reconciled from a repository
// snapshot plus live delivery deltas. Each session owns exactly one Cache;
// mutations are serialized internally.
package session

import (
	"context"
	"sync"
	"time"

	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"
	"inspection-notifications/internal/notify/live"
)

// State is the cache lifecycle. Disabled is permanent for the session; a
// fresh session re-evaluates configuration and auth.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Disabled
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Disabled:
		return "disabled"
	default:
		return "uninitialized"
	}
}

// Repository is the subset of the notification repository the cache needs.
type Repository interface {
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	Dismiss(ctx context.Context, id, recipientID string) error
}

// LiveSource subscribes the session to insert events for one recipient.
type LiveSource interface {
	Subscribe(userID string, onInsert func(models.Notification)) live.Subscription
}

// Alert is the one-shot client-side signal emitted for high and urgent
// inserts. It is not persisted and fires regardless of quiet hours; quiet
// hours were already applied upstream to the queueing decisions.
type Alert struct {
	Notification models.Notification
}

const initialFetchLimit = 50

type Cache struct {
	mu     sync.Mutex
	state  State
	userID string
	items  []models.Notification // newest first
	unread int

	repo   Repository
	live   LiveSource
	sub    live.Subscription
	alerts chan Alert
	logger logger.Logger
}

func New(repo Repository, liveSrc LiveSource, log logger.Logger) *Cache {
	return &Cache{
		state:  Uninitialized,
		repo:   repo,
		live:   liveSrc,
		alerts: make(chan Alert, 16),
		logger: log.WithFields(map[string]interface{}{"component": "session-cache"}),
	}
}

// Start initializes the cache for the authenticated user. An empty userID
// (unauthenticated) or a missing repository (backend not configured) moves
// the cache to Disabled for the rest of the session; there is no retry
// loop. A failed initial fetch still lands in Ready with an empty list so
// the UI renders instead of erroring.
func (c *Cache) Start(ctx context.Context, userID string) {
	c.mu.Lock()
	if c.state != Uninitialized {
		c.mu.Unlock()
		return
	}
	if c.repo == nil {
		c.state = Disabled
		c.mu.Unlock()
		c.logger.WithError(apperrors.NewBackendNotConfiguredError("no notification repository configured")).
			Warn("notification cache disabled for session", nil)
		return
	}
	if userID == "" {
		c.state = Disabled
		c.mu.Unlock()
		c.logger.Warn("notification cache disabled for unauthenticated session", nil)
		return
	}
	c.userID = userID
	c.state = Loading
	c.mu.Unlock()

	items, err := c.repo.ListByRecipient(ctx, userID, initialFetchLimit, 0)
	if err != nil {
		c.logger.Error("initial notification fetch failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		items = nil
	}
	unread, err := c.repo.UnreadCount(ctx, userID)
	if err != nil {
		unread = countUnread(items)
	}

	c.mu.Lock()
	if c.state != Loading {
		// Closed during the fetch; Disabled is permanent.
		c.mu.Unlock()
		return
	}
	c.items = items
	c.unread = unread
	c.state = Ready
	c.mu.Unlock()

	if c.live == nil {
		return
	}
	sub := c.live.Subscribe(userID, c.onInsert)

	c.mu.Lock()
	if c.state != Ready {
		// Closed while subscribing.
		c.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notifications returns a copy of the ordered view, newest first.
func (c *Cache) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// UnreadCount returns the current unread badge value.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Alerts exposes the one-shot high/urgent signal channel. Signals are
// dropped, not queued, when nothing is listening.
func (c *Cache) Alerts() <-chan Alert {
	return c.alerts
}

// MarkAsRead applies the read optimistically, decrements the badge by at
// most one, then fires the remote mutation. A remote failure is logged and
// the optimistic state kept; the next full refresh wins.
func (c *Cache) MarkAsRead(ctx context.Context, id string) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		if c.items[i].Unread() {
			c.unread--
		}
		if c.items[i].ReadAt == nil {
			c.items[i].ReadAt = &now
		}
		break
	}
	userID := c.userID
	c.mu.Unlock()

	if err := c.repo.MarkRead(ctx, id, userID); err != nil {
		c.logger.Error("mark read failed", map[string]interface{}{
			"notificationId": id,
			"error":          err.Error(),
		})
	}
}

// MarkAllAsRead reads every unread item locally, zeroes the badge and
// fires one remote bulk mutation.
func (c *Cache) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	for i := range c.items {
		if c.items[i].ReadAt == nil {
			c.items[i].ReadAt = &now
		}
	}
	c.unread = 0
	userID := c.userID
	c.mu.Unlock()

	if err := c.repo.MarkAllRead(ctx, userID); err != nil {
		c.logger.Error("mark all read failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// Dismiss removes the item from the ordered view, decrementing the badge
// only when the removed item was unread, then fires the remote mutation.
func (c *Cache) Dismiss(ctx context.Context, id string) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		if c.items[i].Unread() {
			c.unread--
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		break
	}
	userID := c.userID
	c.mu.Unlock()

	if err := c.repo.Dismiss(ctx, id, userID); err != nil {
		c.logger.Error("dismiss failed", map[string]interface{}{
			"notificationId": id,
			"error":          err.Error(),
		})
	}
}

// onInsert handles a live delivery: prepend, bump the badge, and signal
// high/urgent priorities.
func (c *Cache) onInsert(n models.Notification) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return
	}
	c.items = append([]models.Notification{n}, c.items...)
	c.unread++
	c.mu.Unlock()

	if n.Priority == models.PriorityHigh || n.Priority == models.PriorityUrgent {
		select {
		case c.alerts <- Alert{Notification: n}:
		default:
		}
	}
}

// Close tears the session down: the live subscription is stopped and the
// cache becomes Disabled. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.state = Disabled
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func countUnread(items []models.Notification) int {
	n := 0
	for i := range items {
		if items[i].Unread() {
			n++
		}
	}
	return n
}
