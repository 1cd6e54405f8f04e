package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dispatch decodifica uma mensagem do Pub/Sub e repassa ao hub
func (h *Hub) Dispatch(raw []byte) error {
	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return err
	}
	h.Broadcast(upd)
	return nil
}

// StartRedisSubscriber escuta o canal de broadcast da plataforma (preços e countdown)
// e repassa as mensagens aos clientes WebSocket conectados
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				if err := hub.Dispatch([]byte(msg.Payload)); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
				}
			}
		}
	}()
}
