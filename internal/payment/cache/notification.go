package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oryjk/payment-service/pkg/logger"
)

const notificationKeyPrefix = "payment:notification:"

// NotificationCache remembers processed WeChat notification ids so
// gateway redeliveries can be acknowledged without re-running the
// decrypt-and-update path. Redis loss is harmless: the use case layer
// enforces the same idempotency on its own.
type NotificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNotificationCache builds the dedup store. A nil client disables
// caching entirely.
func NewNotificationCache(client *redis.Client, ttl time.Duration) *NotificationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NotificationCache{client: client, ttl: ttl}
}

// Seen reports whether this notification id was already processed.
// Errors degrade to "not seen" so Redis outages never drop payments.
func (c *NotificationCache) Seen(ctx context.Context, notificationID string) bool {
	if c == nil || c.client == nil || notificationID == "" {
		return false
	}

	n, err := c.client.Exists(ctx, notificationKeyPrefix+notificationID).Result()
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("notification_id", notificationID).
			Msg("Notification dedup lookup failed")
		return false
	}
	return n > 0
}

// MarkProcessed records a successfully handled notification id.
func (c *NotificationCache) MarkProcessed(ctx context.Context, notificationID string) {
	if c == nil || c.client == nil || notificationID == "" {
		return
	}

	if err := c.client.Set(ctx, notificationKeyPrefix+notificationID, "1", c.ttl).Err(); err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("notification_id", notificationID).
			Msg("Failed to record processed notification")
	}
}
