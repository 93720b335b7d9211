// internal/api/handler.go

// Package api is the inbound HTTP surface: the privileged
// create-notifications operation, per-user reads and mutations, preference
// management and the operational endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"inspection-notifications/internal/auth"
	apperrors "inspection-notifications/internal/common/errors"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatcher is the fan-out entry point the API calls.
type Dispatcher interface {
	CreateBulkNotifications(ctx context.Context, events []models.NotificationEvent) []models.Notification
}

// NotificationStore covers the per-user reads and mutations.
type NotificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	Dismiss(ctx context.Context, id, recipientID string) error
}

// PreferenceStore covers preference reads and lazy upserts.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	Upsert(ctx context.Context, p *models.NotificationPreferences) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	dispatcher Dispatcher
	store      NotificationStore
	prefs      PreferenceStore
	db         Pinger
	logger     logger.Logger
}

func NewHandler(dispatcher Dispatcher, store NotificationStore, prefs PreferenceStore, db Pinger, log logger.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		store:      store,
		prefs:      prefs,
		db:         db,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// Register wires the routes onto the router.
func (h *Handler) Register(r *gin.Engine, authCtx auth.Context) {
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", RequireAuth(authCtx))
	{
		api.POST("/notifications", RequireAdmin(), h.createNotifications)
		api.GET("/notifications", h.listNotifications)
		api.POST("/notifications/:id/read", h.markRead)
		api.POST("/notifications/read-all", h.markAllRead)
		api.POST("/notifications/:id/dismiss", h.dismiss)
		api.GET("/preferences", h.getPreferences)
		api.PUT("/preferences", h.updatePreferences)
	}
}

type createRequest struct {
	RecipientIDs []string                    `json:"recipientIds"`
	Type         models.NotificationType     `json:"type"`
	Priority     models.NotificationPriority `json:"priority"`
	Title        string                      `json:"title"`
	Message      string                      `json:"message"`
	Data         map[string]interface{}      `json:"data"`
}

// validate rejects malformed input before any side effects.
func (r *createRequest) validate() *apperrors.StandardError {
	if len(r.RecipientIDs) == 0 {
		return apperrors.NewValidationError("recipientIds are required")
	}
	if r.Type == "" || r.Title == "" || r.Message == "" {
		return apperrors.NewValidationError("type, title, and message are required")
	}
	if !models.IsValidType(r.Type) {
		return apperrors.NewUnknownTypeError(string(r.Type))
	}
	if r.Priority != "" && !models.IsValidPriority(r.Priority) {
		return apperrors.NewValidationError(fmt.Sprintf("unknown priority: %s", r.Priority))
	}
	return nil
}

func (h *Handler) createNotifications(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if stdErr := req.validate(); stdErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   stdErr.Message,
			"code":    stdErr.Code,
			"details": stdErr.Details,
		})
		return
	}

	event := models.NotificationEvent{
		Type:         req.Type,
		Priority:     req.Priority,
		Title:        req.Title,
		Message:      req.Message,
		Data:         req.Data,
		SenderID:     currentIdentity(c).UserID,
		RecipientIDs: req.RecipientIDs,
	}

	created := h.dispatcher.CreateBulkNotifications(c.Request.Context(), []models.NotificationEvent{event})
	if len(created) < len(req.RecipientIDs) {
		h.logger.Warn("partial fan-out", map[string]interface{}{
			"requested": len(req.RecipientIDs),
			"created":   len(created),
		})
	}

	// Partial failure is reported by count, not by status code; the caller
	// reconciles.
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"count":         len(created),
		"notifications": created,
	})
}

func (h *Handler) listNotifications(c *gin.Context) {
	userID := currentIdentity(c).UserID

	limit := intQuery(c, "limit", listLimitCap)
	if limit > listLimitCap {
		limit = listLimitCap
	}
	offset := intQuery(c, "offset", 0)

	items, err := h.store.ListByRecipient(c.Request.Context(), userID, limit, offset)
	if err != nil {
		// Fail open for display: an empty list, never a 5xx for the badge.
		h.logger.Error("list failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		items = nil
	}

	unread, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		unread = 0
	}

	if items == nil {
		items = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unreadCount":   unread,
	})
}

func (h *Handler) markRead(c *gin.Context) {
	// The caller can only mutate their own rows.
	userID := currentIdentity(c).UserID
	if err := h.store.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.logger.Error("mark read failed", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) markAllRead(c *gin.Context) {
	userID := currentIdentity(c).UserID
	if err := h.store.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Error("mark all read failed", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) dismiss(c *gin.Context) {
	userID := currentIdentity(c).UserID
	if err := h.store.Dismiss(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.logger.Error("dismiss failed", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) getPreferences(c *gin.Context) {
	userID := currentIdentity(c).UserID

	p, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		// Degrade to the defaults the engine would apply anyway.
		p = models.DefaultPreferences(userID)
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) updatePreferences(c *gin.Context) {
	userID := currentIdentity(c).UserID

	var p models.NotificationPreferences
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	p.UserID = userID

	if err := h.prefs.Upsert(c.Request.Context(), &p); err != nil {
		h.logger.Error("preference update failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// listLimitCap bounds a single page; clients page further with offset. It
// matches the initial session fetch size.
const listLimitCap = 50

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
