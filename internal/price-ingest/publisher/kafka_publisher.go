package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

// KafkaPublisher encapsula o writer Kafka do tópico de preços
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher cria o publisher do tópico informado.
// Em ambiente local/dev garante a existência do tópico antes de criar o writer.
func NewKafkaPublisher(brokers []string, topic, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env == "local" || env == "dev" {
		ensureTopic(brokers[0], topic, log)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma chave (símbolo) sempre na mesma partição
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: writer, log: log}, nil
}

// ensureTopic cria o tópico pelo controller do cluster; falhas só são logadas
func ensureTopic(broker, topic string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		log.Warn("failed to connect to kafka", zap.Error(err))
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Warn("failed to get kafka controller", zap.Error(err))
		return
	}
	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		log.Warn("failed to dial controller", zap.Error(err))
		return
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	switch {
	case err == nil:
		log.Info("kafka topic created", zap.String("topic", topic))
	case !strings.Contains(err.Error(), "already exists"):
		log.Warn("failed to create kafka topic", zap.String("topic", topic), zap.Error(err))
	}
}

// Publish envia um lote de atualizações; a chave é o símbolo do ativo
func (p *KafkaPublisher) Publish(ctx context.Context, updates ...events.PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(updates))
	now := time.Now()
	for _, u := range updates {
		value, err := json.Marshal(u)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(u.Symbol), Value: value, Time: now})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error("failed to publish price updates", zap.Error(err))
		return err
	}
	p.log.Debug("published price updates", zap.Int("count", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
