package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

// ErrQueueUnavailable is returned when no Redis client is configured.
var ErrQueueUnavailable = errors.New("notification queue unavailable")

// NotificationRepository hands notifications to an external delivery worker
// by appending them to a Redis list.
type NotificationRepository struct {
	client *redis.Client
	key    string
}

// NewNotificationRepository constructs the repository for the given list key.
func NewNotificationRepository(client *redis.Client, key string) *NotificationRepository {
	if key == "" {
		key = "workflow:notifications"
	}
	return &NotificationRepository{client: client, key: key}
}

// Push appends the notification as JSON to the queue.
func (r *NotificationRepository) Push(ctx context.Context, n models.Notification) error {
	if r.client == nil {
		return ErrQueueUnavailable
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", r.key, err)
	}
	return nil
}

// Len reports the number of notifications awaiting delivery.
func (r *NotificationRepository) Len(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, ErrQueueUnavailable
	}
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", r.key, err)
	}
	return n, nil
}
