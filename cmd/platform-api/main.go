package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/radieske/crypto-bet-platform/internal/platform-api/http"
	"github.com/radieske/crypto-bet-platform/internal/platform-api/ws"
	"github.com/radieske/crypto-bet-platform/internal/platform/accounts"
	"github.com/radieske/crypto-bet-platform/internal/platform/bets"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/referral"
	"github.com/radieske/crypto-bet-platform/internal/platform/schedule"
	"github.com/radieske/crypto-bet-platform/internal/platform/store/postgres"
	"github.com/radieske/crypto-bet-platform/internal/platform/wallet"
	"github.com/radieske/crypto-bet-platform/internal/price-processor/repository"
	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/auth"
	"github.com/radieske/crypto-bet-platform/internal/shared/cache"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/db"
	"github.com/radieske/crypto-bet-platform/internal/shared/kafka"
	"github.com/radieske/crypto-bet-platform/internal/shared/logger"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "platform-api"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	// Inicializa dependências: Postgres, Redis e Kafka
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Env == "local" {
		if err := db.MigrateUp(pg, cfg.MigrationsPath); err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
	}

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
	prices := repository.NewPostgresRepo(pg)

	// Serviços de domínio
	sched := schedule.NewService(st, kv, cfg.Location(), log)
	feed := pricefeed.NewFeed(pricefeed.NewRedisCache(kv, cfg.PriceCacheTTL), log).WithSnapshots(prices)
	ref := referral.NewEngine(st, cfg.Rules, log, pub, m)

	api := &httpapi.API{
		Log:      log,
		Auth:     auth.NewSigner(cfg.JWTSecret, cfg.ServiceName),
		Accounts: accounts.NewService(st, log),
		Wallet:   wallet.NewService(st, cfg.Rules, ref, log, pub, m),
		Bets:     bets.NewService(st, cfg.Rules, feed, sched, log, pub, m),
		Referral: ref,
		Schedule: sched,
		Prices:   feed,
		History:  prices,
		Origins:  cfg.AllowedOrigins,
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// WebSocket: preços e countdown chegam pelo Redis Pub/Sub
	hub := ws.NewHub(api.AllowOrigin, log)
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)
	api.WS = http.HandlerFunc(hub.HandleWS)

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}))
	defer msrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("platform-api listening", zap.String("addr", srv.Addr), zap.String("metrics", ":"+cfg.MetricsPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("platform-api stopped")
}
