package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/price-ingest/publisher"
	"github.com/radieske/crypto-bet-platform/internal/price-ingest/service"
	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/kafka"
	"github.com/radieske/crypto-bet-platform/internal/shared/logger"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "price-ingest-service"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	pub, err := publisher.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), cfg.TopicPriceUpdates, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	// Métricas Prometheus da coleta
	published := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_ingest_published_total", Help: "cotações publicadas por origem"}, []string{"source"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(published, errorsBy)

	poller := &service.Poller{
		Provider:    pricefeed.NewHTTPProvider(cfg.PriceFeedURL),
		Publisher:   pub,
		Symbols:     cfg.PriceSymbols,
		Interval:    cfg.PricePollInterval,
		Log:         log,
		OnPublished: func(source string, n int) { published.WithLabelValues(source).Add(float64(n)) },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	defer msrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("price-ingest started",
		zap.String("provider", cfg.PriceFeedURL),
		zap.Strings("symbols", cfg.PriceSymbols),
		zap.Duration("interval", cfg.PricePollInterval),
	)
	poller.Run(ctx)
	log.Info("price-ingest stopped")
}
