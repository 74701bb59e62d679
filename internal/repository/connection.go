package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ConnectionRepo is the fan-out fabric: every websocket connection holds one
// subscription, events are published to user and room channels.
type ConnectionRepo struct {
	redis *redis.Client
}

func NewConnectionRepo(redis *redis.Client) *ConnectionRepo {
	return &ConnectionRepo{
		redis: redis,
	}
}

// Subscribe opens a subscription with no channels yet; the connection adds
// its user channel after authenticate and room channels on join.
func (cr *ConnectionRepo) Subscribe(ctx context.Context) *redis.PubSub {
	return cr.redis.Subscribe(ctx)
}

func (cr *ConnectionRepo) Publish(ctx context.Context, channel string, payload []byte) error {
	return cr.redis.Publish(ctx, channel, payload).Err()
}
