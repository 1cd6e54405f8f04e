// Package schedule mantém a agenda da liquidação e o controlador que a dispara no servidor.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
)

const (
	cacheKey = "schedule:config"
	cacheTTL = time.Minute
)

// Cache é o read-through da agenda (Redis em produção); nunca é a fonte da verdade
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, v []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Service struct {
	store store.Store
	cache Cache
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

func NewService(st store.Store, cache Cache, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, cache: cache, loc: loc, log: log, now: time.Now}
}

// WithClock troca o relógio (testes)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

// Get retorna a agenda atual; ErrNotFound se o admin ainda não configurou
func (s *Service) Get(ctx context.Context) (*domain.ScheduleConfig, error) {
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.log.Warn("schedule cache read failed", zap.Error(err))
		} else if ok {
			var cfg domain.ScheduleConfig
			if err := json.Unmarshal(b, &cfg); err == nil {
				return &cfg, nil
			}
		}
	}

	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(cfg); err == nil {
			if err := s.cache.Set(ctx, cacheKey, b, cacheTTL); err != nil {
				s.log.Warn("schedule cache write failed", zap.Error(err))
			}
		}
	}
	return cfg, nil
}

// load lê direto do banco, sem cache
func (s *Service) load(ctx context.Context) (*domain.ScheduleConfig, error) {
	var cfg *domain.ScheduleConfig
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		cfg, err = tx.GetSchedule(ctx)
		return err
	})
	return cfg, err
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey); err != nil {
		s.log.Warn("schedule cache invalidate failed", zap.Error(err))
	}
}

// Set grava a agenda (admin). Data/hora são interpretadas no fuso configurado.
func (s *Service) Set(ctx context.Context, date, hhmm string, winning domain.Direction) (*domain.ScheduleConfig, error) {
	cfg := &domain.ScheduleConfig{
		ScheduledDate:    date,
		ScheduledTime:    hhmm,
		WinningDirection: winning,
		UpdatedAt:        s.now().UTC(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.SaveSchedule(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("schedule updated",
		zap.String("date", cfg.ScheduledDate),
		zap.String("time", cfg.ScheduledTime),
		zap.String("winningDirection", string(cfg.WinningDirection)),
	)
	return cfg, nil
}

// NextSettlement devolve o instante agendado; ok=false se não há agenda
func (s *Service) NextSettlement(ctx context.Context) (time.Time, bool, error) {
	cfg, err := s.Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := cfg.At(s.loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Countdown é o tempo restante até a próxima liquidação
type Countdown struct {
	ScheduledAt      time.Time `json:"scheduledAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Due              bool      `json:"due"`
}

// Countdown retorna ok=false quando não há agenda
func (s *Service) Countdown(ctx context.Context) (Countdown, bool, error) {
	at, ok, err := s.NextSettlement(ctx)
	if err != nil || !ok {
		return Countdown{}, false, err
	}
	remaining := at.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return Countdown{
		ScheduledAt:      at.UTC(),
		RemainingSeconds: int64(remaining / time.Second),
		Due:              remaining == 0,
	}, true, nil
}

// AdvanceAfter move a agenda que acabou de rodar para o próximo dia futuro.
// Se o admin trocou a agenda nesse meio tempo, não mexe (retorna false).
func (s *Service) AdvanceAfter(ctx context.Context, ran domain.ScheduleConfig) (*domain.ScheduleConfig, bool, error) {
	now := s.now()
	var (
		next     domain.ScheduleConfig
		advanced bool
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		cur, err := tx.GetSchedule(ctx)
		if err != nil {
			return err
		}
		if cur.ScheduledDate != ran.ScheduledDate || cur.ScheduledTime != ran.ScheduledTime {
			return nil
		}
		next = *cur
		for i := 0; i < 3660; i++ {
			next = next.NextDay()
			at, err := next.At(s.loc)
			if err != nil {
				return err
			}
			if at.After(now) {
				break
			}
		}
		next.UpdatedAt = now.UTC()
		advanced = true
		return tx.SaveSchedule(ctx, &next)
	})
	if err != nil {
		return nil, false, err
	}
	if !advanced {
		return nil, false, nil
	}
	s.invalidate(ctx)
	s.log.Info("schedule advanced", zap.String("from", ran.ScheduledDate), zap.String("to", next.ScheduledDate))
	return &next, true, nil
}
