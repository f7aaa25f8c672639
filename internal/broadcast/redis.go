package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes to the Redis pub/sub channel named after the
// topic. The key is carried inside the payload only.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, _ string, payload []byte) error {
	return p.rdb.Publish(ctx, topic, payload).Err()
}
