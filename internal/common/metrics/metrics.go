// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notification rows created by the fan-out dispatcher",
		},
		[]string{"type", "priority"},
	)

	NotificationInsertFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_insert_failures_total",
			Help: "Total number of per-recipient insert failures during fan-out",
		},
		[]string{"type"},
	)

	EmailsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_emails_queued_total",
			Help: "Total number of emails queued by frequency",
		},
		[]string{"frequency"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_emails_sent_total",
			Help: "Total number of queued emails drained and sent",
		},
		[]string{"status"},
	)

	LiveEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_live_events_published_total",
			Help: "Total number of inserts published on the live delivery channel",
		},
	)

	LiveEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_live_events_delivered_total",
			Help: "Total number of live events delivered to subscribed sessions",
		},
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "notification_fanout_duration_seconds",
			Help: "Duration of bulk fan-out requests in seconds",
		},
	)
)
