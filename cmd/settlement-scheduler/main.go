package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/bets"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/referral"
	"github.com/radieske/crypto-bet-platform/internal/platform/schedule"
	"github.com/radieske/crypto-bet-platform/internal/platform/store/postgres"
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
		cfg.ServiceName = "settlement-scheduler"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

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

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPlatformEvents)
	defer writer.Close()
	pub := events.NewKafkaPublisher(writer, cfg.TopicPlatformEvents)

	m := metrics.NewPlatform(prometheus.DefaultRegisterer)
	st := postgres.New(pg)
	kv := cache.NewStore(redisClient)

	sched := schedule.NewService(st, kv, cfg.Location(), log)
	feed := pricefeed.NewFeed(pricefeed.NewRedisCache(kv, cfg.PriceCacheTTL), log)

	// Controlador: liquidação agendada, maturação de comissões e countdown via Pub/Sub
	ctrl := &schedule.Controller{
		Schedule:     sched,
		Store:        st,
		Settler:      bets.NewService(st, cfg.Rules, feed, sched, log, pub, m),
		Maturer:      referral.NewEngine(st, cfg.Rules, log, pub, m),
		Broadcaster:  pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel),
		Pub:          pub,
		Log:          log,
		Metrics:      m,
		PollInterval: cfg.SettlementPollInterval,
		RunLease:     cfg.SettlementRunLease,
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}))
	defer msrv.Close()
	log.Info("metrics/health listening", zap.String("addr", ":"+cfg.MetricsPort))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("settlement controller stopped with error", zap.Error(err))
	}
}
