package pubsub

import (
	"context"
	"fmt"

	redisclient "github.com/mxw13579/logstream-server/internal/redis"
	"go.uber.org/zap"
)

// RedisPublisher publishes payloads via Redis PUBLISH. Subscribers attach
// with SUBSCRIBE/PSUBSCRIBE on the per-session topics.
type RedisPublisher struct {
	log    *zap.Logger
	client *redisclient.Client
}

// NewRedisPublisher returns a publisher over the shared Redis client.
func NewRedisPublisher(log *zap.Logger, client *redisclient.Client) *RedisPublisher {
	return &RedisPublisher{
		log:    log.Named("publisher"),
		client: client,
	}
}

// Publish delivers payload to topic. Delivery is at-most-once: Redis drops
// messages for topics with no subscribers, which is the intended semantics
// for a live tail.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
