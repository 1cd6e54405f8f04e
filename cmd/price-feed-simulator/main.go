package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	simulator "github.com/radieske/crypto-bet-platform/internal/price-feed-simulator"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/logger"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "price-feed-simulator"
	}
	log := logger.Must(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Mercado simulado: preços andam a cada 3 segundos
	market := simulator.NewMarket(time.Now().UnixNano(), log)
	go market.Run(3*time.Second, ctx.Done())

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	defer msrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           market.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("price feed simulator running",
			zap.String("addr", srv.Addr),
			zap.String("paths", "/api/v3/simple/price,/api/v3/ping"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
}
