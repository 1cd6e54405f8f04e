// Package bets implementa o motor de apostas direcionais: criação, cancelamento e liquidação em lote.
package bets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/vip"
	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

const sharesPrecision = domain.AmountScale

// Quoter fornece o preço atual do ativo no momento da aposta
type Quoter interface {
	Quote(ctx context.Context, symbol string) (pricefeed.Quote, error)
}

// SettlementClock informa o próximo instante de liquidação agendado (ok=false se não houver)
type SettlementClock interface {
	NextSettlement(ctx context.Context) (time.Time, bool, error)
}

type Service struct {
	store   store.Store
	rules   config.Rules
	quotes  Quoter
	clock   SettlementClock
	log     *zap.Logger
	pub     events.Publisher
	metrics *metrics.Platform
	now     func() time.Time
}

func NewService(st store.Store, rules config.Rules, quotes Quoter, clock SettlementClock, log *zap.Logger, pub events.Publisher, m *metrics.Platform) *Service {
	return &Service{store: st, rules: rules, quotes: quotes, clock: clock, log: log, pub: pub, metrics: m, now: time.Now}
}

// WithClock troca o relógio (testes)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlaceBet debita o valor na hora e fixa a taxa de juros do tier atual
func (s *Service) PlaceBet(ctx context.Context, userID, asset, direction string, amount decimal.Decimal) (*domain.Bet, error) {
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAmount(amount); err != nil {
		return nil, err
	}
	if amount.LessThan(s.rules.MinBet) {
		return nil, fmt.Errorf("%w: minimum bet is %s", domain.ErrBelowMinimum, s.rules.MinBet)
	}
	q, err := s.quotes.Quote(ctx, asset)
	if err != nil {
		return nil, err
	}
	if !q.Price.IsPositive() {
		return nil, fmt.Errorf("%w: no price for %s", domain.ErrUnknownAsset, asset)
	}

	now := s.now().UTC()
	var b *domain.Bet
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(acc.Balance) {
			return domain.ErrInsufficientFunds
		}

		b = &domain.Bet{
			ID:           uuid.NewString(),
			UserID:       userID,
			Asset:        q.Symbol,
			Direction:    dir,
			Amount:       amount,
			Shares:       amount.DivRound(q.Price, sharesPrecision),
			Price:        q.Price,
			InterestRate: vip.TierFor(acc.VIPLevel).InterestRate,
			Status:       domain.BetOpen,
			Payout:       decimal.Zero,
			CreatedAt:    now,
		}

		bal, err := tx.AddBalance(ctx, userID, amount.Neg())
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID: userID, Op: domain.OpBetStake, Amount: amount.Neg(), BalanceAfter: bal, RefID: b.ID, CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.InsertBet(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BetPlaced()
	s.log.Info("bet placed",
		zap.String("betId", b.ID),
		zap.String("userId", userID),
		zap.String("asset", b.Asset),
		zap.String("direction", string(dir)),
		zap.String("amount", amount.String()),
		zap.String("interestRate", b.InterestRate.String()),
	)
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.BetPlaced, UserID: userID, RefID: b.ID, Amount: amount.String(),
		Payload: map[string]any{"asset": b.Asset, "direction": string(dir), "price": b.Price.String()}, Ts: now,
	})
	return b, nil
}

// CancelBet devolve o valor se a aposta é do usuário e ainda está na janela de cancelamento
func (s *Service) CancelBet(ctx context.Context, userID, betID string) (*domain.Bet, error) {
	var scheduledAt time.Time
	if s.clock != nil {
		at, ok, err := s.clock.NextSettlement(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve settlement schedule: %w", err)
		}
		if ok {
			scheduledAt = at
		}
	}

	now := s.now().UTC()
	var b *domain.Bet
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		b, err = tx.GetBet(ctx, betID)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return domain.ErrForbidden
		}
		if err := b.CheckCancelable(now, s.rules.BetCancelWindow, scheduledAt, s.rules.SettlementCutoff); err != nil {
			return err
		}
		ok, err := tx.CancelOpenBet(ctx, betID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrBetNotOpen
		}
		bal, err := tx.AddBalance(ctx, userID, b.Amount)
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID: userID, Op: domain.OpBetRefund, Amount: b.Amount, BalanceAfter: bal, RefID: b.ID, CreatedAt: now,
		}); err != nil {
			return err
		}
		b.Status = domain.BetCancelled
		b.SettledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BetCancelled()
	s.log.Info("bet cancelled", zap.String("betId", b.ID), zap.String("userId", userID))
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.BetCancelled, UserID: userID, RefID: b.ID, Amount: b.Amount.String(), Ts: now,
	})
	return b, nil
}

// SettlementResult resume uma execução de SettleAll.
// Skipped conta apostas que outra execução concorrente já tinha travado.
type SettlementResult struct {
	Direction domain.Direction `json:"winningDirection"`
	Processed int              `json:"processed"`
	Winners   int              `json:"winners"`
	Losers    int              `json:"losers"`
	Skipped   int              `json:"skipped"`
	TotalPaid decimal.Decimal  `json:"totalPaid"`
}

// SettleAll liquida todas as apostas abertas e não processadas.
// Cada aposta é travada (isProcessed) e paga na mesma transação, então reexecuções
// e execuções concorrentes nunca pagam a mesma aposta duas vezes.
// Sem apostas a liquidar, retorna ErrNothingToProcess.
func (s *Service) SettleAll(ctx context.Context, winning domain.Direction) (SettlementResult, error) {
	res := SettlementResult{Direction: winning, TotalPaid: decimal.Zero}
	if _, err := domain.ParseDirection(string(winning)); err != nil {
		return res, err
	}

	var open []domain.Bet
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		open, err = tx.ListUnprocessedOpenBets(ctx)
		return err
	})
	if err != nil {
		return res, err
	}
	if len(open) == 0 {
		return res, domain.ErrNothingToProcess
	}

	var failures []error
	for _, b := range open {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		won := b.Direction == winning
		payout := decimal.Zero
		if won {
			payout = b.WinningPayout()
		}

		now := s.now().UTC()
		latched := false
		err := s.store.WithinTx(ctx, func(tx store.Tx) error {
			ok, err := tx.LatchBet(ctx, b.ID, payout, now)
			if err != nil || !ok {
				return err
			}
			latched = true
			if !won {
				return nil
			}
			bal, err := tx.AddBalance(ctx, b.UserID, payout)
			if err != nil {
				return err
			}
			return tx.AppendLedger(ctx, &domain.LedgerEntry{
				UserID: b.UserID, Op: domain.OpBetPayout, Amount: payout, BalanceAfter: bal, RefID: b.ID, CreatedAt: now,
			})
		})
		if err != nil {
			s.log.Error("settle bet failed", zap.String("betId", b.ID), zap.Error(err))
			failures = append(failures, fmt.Errorf("bet %s: %w", b.ID, err))
			continue
		}
		if !latched {
			res.Skipped++
			continue
		}

		res.Processed++
		if won {
			res.Winners++
			res.TotalPaid = res.TotalPaid.Add(payout)
		} else {
			res.Losers++
		}
		s.metrics.BetSettled(won, payout)
		events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
			Type: cevents.BetSettled, UserID: b.UserID, RefID: b.ID, Amount: payout.String(),
			Payload: map[string]any{"won": won, "winningDirection": string(winning)}, Ts: now,
		})
	}

	s.log.Info("settlement finished",
		zap.String("winningDirection", string(winning)),
		zap.Int("processed", res.Processed),
		zap.Int("winners", res.Winners),
		zap.Int("losers", res.Losers),
		zap.Int("skipped", res.Skipped),
		zap.String("totalPaid", res.TotalPaid.String()),
	)

	if len(failures) > 0 {
		return res, errors.Join(failures...)
	}
	if res.Processed == 0 {
		return res, domain.ErrNothingToProcess
	}
	return res, nil
}

func (s *Service) ListBets(ctx context.Context, f store.BetFilter) ([]domain.Bet, error) {
	var out []domain.Bet
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListBets(ctx, f)
		return err
	})
	return out, err
}

// ListOpenBets lista as apostas que entrariam na próxima liquidação
func (s *Service) ListOpenBets(ctx context.Context) ([]domain.Bet, error) {
	var out []domain.Bet
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListUnprocessedOpenBets(ctx)
		return err
	})
	return out, err
}
