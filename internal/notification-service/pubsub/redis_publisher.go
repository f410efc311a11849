package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// RedisNotifier publica avisos de conta no canal Pub/Sub lido pelo notification-service
type RedisNotifier struct {
	r       redis.Cmdable
	channel string
}

func NewRedisNotifier(r redis.Cmdable, channel string) *RedisNotifier {
	return &RedisNotifier{r: r, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, msg events.AccountNotification) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.r.Publish(ctx, n.channel, b).Err()
}
