package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/price-processor/consumer"
	"github.com/radieske/crypto-bet-platform/internal/price-processor/repository"
	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/cache"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/db"
	"github.com/radieske/crypto-bet-platform/internal/shared/kafka"
	"github.com/radieske/crypto-bet-platform/internal/shared/logger"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
	"github.com/radieske/crypto-bet-platform/internal/shared/pubsub"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "price-processor-worker"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Consumer Kafka (consumer group price-processor) e DLQ para mensagens inválidas
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceUpdates, "price-processor")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPriceUpdatesDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_db_writes_total", Help: "escritas no banco (snapshot+history)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlq,
		Repo:        repository.NewPostgresRepo(pg),
		Cache:       pricefeed.NewRedisCache(cache.NewStore(redisClient), cfg.PriceCacheTTL),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		OnConsumed:  func() { consumed.Inc() },
		OnCached:    func() { cached.Inc() },
		OnPersist:   func() { persist.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}))
	defer msrv.Close()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("price-processor started", zap.String("topic", cfg.TopicPriceUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("price-processor stopped")
}
