package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal Pub/Sub e repassa cada aviso ao Hub.
// Retorna depois que a inscrição foi confirmada pelo Redis.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) error {
	sub := r.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n events.AccountNotification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(n)
			}
		}
	}()
	return nil
}
