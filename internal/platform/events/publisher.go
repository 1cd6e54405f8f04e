package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

// Publisher publica eventos de negócio da plataforma
type Publisher interface {
	Publish(ctx context.Context, e events.PlatformEvent) error
}

type KafkaPublisher struct {
	Writer *kafka.Writer
	Topic  string
}

func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

// Publish usa o UserID como chave para manter a ordem dos eventos por usuário
func (p *KafkaPublisher) Publish(ctx context.Context, e events.PlatformEvent) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

// Nop descarta eventos (testes, ferramentas)
type Nop struct{}

func (Nop) Publish(context.Context, events.PlatformEvent) error { return nil }

// Emit publica após o commit; falha só é logada, a operação de negócio já foi aplicada
func Emit(ctx context.Context, pub Publisher, log *zap.Logger, e events.PlatformEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil && log != nil {
		log.Warn("publish platform event failed",
			zap.String("type", e.Type),
			zap.String("ref_id", e.RefID),
			zap.Error(err),
		)
	}
}
