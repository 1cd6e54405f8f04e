package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/bets"
	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
	"github.com/radieske/crypto-bet-platform/internal/shared/pubsub"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

type Settler interface {
	SettleAll(ctx context.Context, winning domain.Direction) (bets.SettlementResult, error)
}

type Maturer interface {
	MaturePending(ctx context.Context) (int, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, msg pubsub.Message) error
}

// Resultados de um Tick
const (
	TickIdle    = "idle"    // sem agenda ou ainda não chegou a hora
	TickSettled = "settled" // liquidou ao menos uma aposta
	TickEmpty   = "empty"   // rodou, mas não havia apostas
	TickSkipped = "skipped" // outra instância já reivindicou a ocorrência
	TickFailed  = "failed"
)

// Controller é o disparador da liquidação no servidor.
// Cada ocorrência agendada é reivindicada numa linha de settlement_runs, então
// vários controladores podem rodar ao mesmo tempo sem liquidar em dobro.
type Controller struct {
	Schedule    *Service
	Store       store.Store
	Settler     Settler
	Maturer     Maturer
	Broadcaster Broadcaster
	Pub         events.Publisher
	Log         *zap.Logger
	Metrics     *metrics.Platform

	PollInterval      time.Duration // padrão 30s
	CountdownInterval time.Duration // padrão 1s
	// RunLease é o tempo após o qual uma execução ainda running é dada como abandonada (padrão 10m)
	RunLease time.Duration

	Now func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) lease() time.Duration {
	if c.RunLease > 0 {
		return c.RunLease
	}
	return 10 * time.Minute
}

// Tick verifica a agenda uma vez e liquida se a ocorrência venceu e ainda não rodou
func (c *Controller) Tick(ctx context.Context) (string, error) {
	// a decisão sempre parte do banco, nunca do cache
	cfg, err := c.Schedule.load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return TickIdle, nil
	}
	if err != nil {
		return TickFailed, err
	}
	at, err := cfg.At(c.Schedule.Location())
	if err != nil {
		return TickFailed, err
	}
	now := c.now()
	if now.Before(at) {
		return TickIdle, nil
	}

	run := &domain.SettlementRun{
		ScheduledAt: at.UTC(),
		Direction:   cfg.WinningDirection,
		Status:      domain.RunRunning,
		TotalPaid:   decimal.Zero,
		StartedAt:   now.UTC(),
	}
	var claimed bool
	err = c.Store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		claimed, err = tx.ClaimSettlementRun(ctx, run, now.Add(-c.lease()).UTC())
		return err
	})
	if err != nil {
		c.Metrics.SchedulerRun(TickFailed)
		return TickFailed, err
	}

	if !claimed {
		c.Log.Info("settlement occurrence already claimed", zap.Time("scheduledAt", run.ScheduledAt))
		c.Metrics.SchedulerRun(TickSkipped)
		// quem reivindicou pode ter caído depois de concluir e antes de avançar a agenda
		c.advanceIfCompleted(ctx, *cfg, run.ScheduledAt)
		return TickSkipped, nil
	}

	log := c.Log.With(zap.Time("scheduledAt", run.ScheduledAt), zap.String("winningDirection", string(cfg.WinningDirection)))
	log.Info("settlement occurrence claimed")

	res, settleErr := c.Settler.SettleAll(ctx, cfg.WinningDirection)
	result := TickSettled
	switch {
	case errors.Is(settleErr, domain.ErrNothingToProcess):
		result = TickEmpty
		settleErr = nil
	case settleErr != nil:
		result = TickFailed
	}

	finished := c.now().UTC()
	run.Processed = res.Processed
	run.TotalPaid = res.TotalPaid
	run.FinishedAt = &finished
	run.Status = domain.RunCompleted
	if settleErr != nil {
		run.Status = domain.RunFailed
		run.Error = settleErr.Error()
	}
	// contexto próprio: o registro da execução não pode se perder no shutdown
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.Store.WithinTx(fctx, func(tx store.Tx) error {
		return tx.FinishSettlementRun(fctx, run)
	}); err != nil {
		log.Error("record settlement run failed", zap.Error(err))
	}

	c.Metrics.SchedulerRun(result)
	events.Emit(fctx, c.Pub, c.Log, cevents.PlatformEvent{
		Type:   cevents.SettlementRun,
		RefID:  run.ScheduledAt.Format(time.RFC3339),
		Amount: res.TotalPaid.String(),
		Payload: map[string]any{
			"status":           string(run.Status),
			"processed":        res.Processed,
			"winners":          res.Winners,
			"losers":           res.Losers,
			"winningDirection": string(cfg.WinningDirection),
		},
		Ts: finished,
	})

	if settleErr != nil {
		// falha: a ocorrência fica failed e é reivindicada de novo no próximo tick
		log.Error("settlement run failed", zap.Error(settleErr))
		return result, settleErr
	}

	log.Info("settlement run completed",
		zap.Int("processed", res.Processed),
		zap.String("totalPaid", res.TotalPaid.String()),
	)
	c.advance(fctx, *cfg)
	return result, nil
}

func (c *Controller) advance(ctx context.Context, ran domain.ScheduleConfig) {
	if _, _, err := c.Schedule.AdvanceAfter(ctx, ran); err != nil {
		c.Log.Error("advance schedule failed", zap.Error(err))
	}
}

func (c *Controller) advanceIfCompleted(ctx context.Context, ran domain.ScheduleConfig, at time.Time) {
	var prev *domain.SettlementRun
	err := c.Store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		prev, err = tx.GetSettlementRun(ctx, at)
		return err
	})
	if err != nil {
		c.Log.Warn("read settlement run failed", zap.Error(err))
		return
	}
	if prev.Status == domain.RunCompleted {
		c.advance(ctx, ran)
	}
}

// BroadcastCountdown publica o tempo restante para o feed ao vivo
func (c *Controller) BroadcastCountdown(ctx context.Context) error {
	if c.Broadcaster == nil {
		return nil
	}
	cd, ok, err := c.Schedule.Countdown(ctx)
	if err != nil || !ok {
		return err
	}
	return c.Broadcaster.Broadcast(ctx, pubsub.Message{Topic: pubsub.TopicCountdown, Payload: cd})
}

// Run executa o loop até o contexto ser cancelado: agenda e maturação a cada PollInterval,
// contagem regressiva a cada CountdownInterval.
func (c *Controller) Run(ctx context.Context) error {
	poll := c.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	every := c.CountdownInterval
	if every <= 0 {
		every = time.Second
	}

	pollT := time.NewTicker(poll)
	defer pollT.Stop()
	cdT := time.NewTicker(every)
	defer cdT.Stop()

	c.Log.Info("settlement controller started", zap.Duration("poll", poll), zap.Duration("countdown", every))
	c.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			c.Log.Info("settlement controller stopped")
			return nil
		case <-pollT.C:
			c.poll(ctx)
		case <-cdT.C:
			if err := c.BroadcastCountdown(ctx); err != nil && ctx.Err() == nil {
				c.Log.Debug("countdown broadcast failed", zap.Error(err))
			}
		}
	}
}

func (c *Controller) poll(ctx context.Context) {
	if _, err := c.Tick(ctx); err != nil && ctx.Err() == nil {
		c.Log.Warn("settlement tick failed", zap.Error(err))
	}
	if c.Maturer == nil {
		return
	}
	if _, err := c.Maturer.MaturePending(ctx); err != nil && ctx.Err() == nil {
		c.Log.Warn("referral maturation failed", zap.Error(err))
	}
}
