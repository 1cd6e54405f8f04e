package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/pubsub"
	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cache interface {
	SetCurrent(ctx context.Context, q pricefeed.Quote) error
}

type Repo interface {
	UpsertCurrent(ctx context.Context, q pricefeed.Quote) error
	InsertHistory(ctx context.Context, q pricefeed.Quote) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, msg pubsub.Message) error
}

// Processor consome cotações do Kafka, atualiza o cache, persiste no banco e
// avisa o WebSocket da platform-api pelo Pub/Sub.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	DLQ         MessageWriter // mensagens inválidas; opcional
	Repo        Repo
	Cache       Cache
	Broadcaster Broadcaster

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Cache e broadcast são best-effort;
// só a persistência interrompe o processamento.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var ev events.PriceUpdate
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}
	q, err := pricefeed.FromEvent(ev)
	if err != nil {
		p.Log.Warn("invalid price update", zap.Error(err))
		p.fail("validate")
		p.deadLetter(ctx, m, err)
		return
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = m.Time
	}

	if err := p.Cache.SetCurrent(ctx, q); err != nil {
		p.Log.Warn("redis set failed", zap.String("symbol", q.Symbol), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	if err := p.Repo.UpsertCurrent(ctx, q); err != nil {
		p.Log.Warn("db upsert failed", zap.String("symbol", q.Symbol), zap.Error(err))
		p.fail("db_upsert")
		return
	}
	if err := p.Repo.InsertHistory(ctx, q); err != nil {
		p.Log.Warn("db insert history failed", zap.String("symbol", q.Symbol), zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	if p.Broadcaster != nil {
		msg := pubsub.Message{Topic: pubsub.TopicPricePrefix + q.Symbol, Payload: q}
		if err := p.Broadcaster.Broadcast(ctx, msg); err != nil {
			p.Log.Warn("broadcast failed", zap.String("symbol", q.Symbol), zap.Error(err))
			p.fail("broadcast")
		}
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	dl := kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "error", Value: []byte(cause.Error())}},
	}
	if err := p.DLQ.WriteMessages(ctx, dl); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}
