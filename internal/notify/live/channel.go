// internal/notify/live/channel.go

// Package live streams freshly inserted notifications to connected sessions
// over redis pub/sub, one channel per recipient. It carries no history;
// the initial snapshot always comes from the repository.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/common/metrics"
	"inspection-notifications/internal/models"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "notifications:"

// ChannelFor returns the redis channel name for a recipient.
func ChannelFor(recipientID string) string {
	return channelPrefix + recipientID
}

// Subscription is a live-delivery handle. Unsubscribe is idempotent and
// stops delivery before returning.
type Subscription interface {
	Unsubscribe()
}

type Channel struct {
	client *redis.Client
	logger logger.Logger
}

// NewChannel wraps a redis client. A nil client yields a channel whose
// Publish is a no-op and whose Subscribe returns a no-op Subscription, so
// callers treat presence and absence of live updates uniformly.
func NewChannel(client *redis.Client, log logger.Logger) *Channel {
	return &Channel{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "live-channel"}),
	}
}

// Publish announces one inserted notification to the recipient's channel.
func (c *Channel) Publish(ctx context.Context, n *models.Notification) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}

	if err := c.client.Publish(ctx, ChannelFor(n.RecipientID), payload).Err(); err != nil {
		return fmt.Errorf("publish live event: %w", err)
	}
	metrics.LiveEventsPublished.Inc()
	return nil
}

// Subscribe delivers every future insert for userID to onInsert, in
// publication order, until Unsubscribe is called. A misconfigured or
// unreachable transport yields a no-op Subscription, never an error.
func (c *Channel) Subscribe(userID string, onInsert func(models.Notification)) Subscription {
	if c.client == nil {
		return noopSubscription{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := c.client.Subscribe(context.Background(), ChannelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		c.logger.Warn("live subscribe failed, continuing without realtime updates", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		_ = pubsub.Close()
		return noopSubscription{}
	}

	sub := &subscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				c.logger.Warn("bad live payload dropped", map[string]interface{}{
					"userId": userID,
					"error":  err.Error(),
				})
				continue
			}
			onInsert(n)
			metrics.LiveEventsDelivered.Inc()
		}
	}()

	return sub
}

type subscription struct {
	pubsub *redis.PubSub
	once   sync.Once
	done   chan struct{}
}

// Unsubscribe closes the underlying pub/sub and waits for the delivery
// goroutine to drain, so no callback fires after it returns.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
	})
	<-s.done
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
