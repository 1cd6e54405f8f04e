package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// ChannelPlatformBroadcast é o canal padrão consumido pelo WebSocket da platform-api
const ChannelPlatformBroadcast = "platform_broadcast"

// Tópicos de broadcast
const (
	TopicCountdown   = "countdown"
	TopicPricePrefix = "price:"
)

// Message é o payload padrão para o WS da platform-api
type Message struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelPlatformBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// Broadcast serializa a mensagem e publica no canal configurado
func (b *RedisBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
