// Package wallet implementa o fluxo de aprovação de depósitos e saques.
// Depósito só credita na aprovação; saque retém o saldo na solicitação e devolve na rejeição.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/vip"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	"github.com/radieske/crypto-bet-platform/internal/shared/metrics"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

var hundred = decimal.NewFromInt(100)

// ReferralHook é chamado dentro da transação de aprovação do depósito
type ReferralHook interface {
	ApplyDeposit(ctx context.Context, tx store.Tx, depositorID string, amount decimal.Decimal, at time.Time) (*domain.ReferralCommissionItem, error)
}

type Service struct {
	store    store.Store
	rules    config.Rules
	referral ReferralHook
	log      *zap.Logger
	pub      events.Publisher
	metrics  *metrics.Platform
	now      func() time.Time
}

func NewService(st store.Store, rules config.Rules, referral ReferralHook, log *zap.Logger, pub events.Publisher, m *metrics.Platform) *Service {
	return &Service{store: st, rules: rules, referral: referral, log: log, pub: pub, metrics: m, now: time.Now}
}

// WithClock troca o relógio (testes)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// monthStart é o início do período de contagem de saques (mês corrente, UTC)
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func validateAmount(amount, minimum decimal.Decimal) error {
	if err := domain.CheckAmount(amount); err != nil {
		return err
	}
	if amount.LessThan(minimum) {
		return fmt.Errorf("%w: minimum is %s", domain.ErrBelowMinimum, minimum)
	}
	return nil
}

// ---- depósitos

func (s *Service) RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, proofRef string) (*domain.DepositRequest, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, fmt.Errorf("%w: method", domain.ErrMissingField)
	}
	if err := validateAmount(amount, s.rules.MinDeposit); err != nil {
		return nil, err
	}

	d := &domain.DepositRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		ProofRef:  strings.TrimSpace(proofRef),
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, userID); err != nil {
			return err
		}
		return tx.InsertDeposit(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("deposit", string(domain.StatusPending))
	s.log.Info("deposit requested", zap.String("depositId", d.ID), zap.String("userId", userID), zap.String("amount", amount.String()))
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.DepositRequested, UserID: userID, RefID: d.ID, Amount: amount.String(),
		Payload: map[string]any{"method": d.Method}, Ts: d.CreatedAt,
	})
	return d, nil
}

// ApproveDeposit credita saldo e totalDeposits, recalcula o nível VIP e gera a comissão de indicação.
// Tudo na mesma transação; segunda aprovação retorna ErrAlreadyResolved sem efeito.
func (s *Service) ApproveDeposit(ctx context.Context, depositID string) (*domain.DepositRequest, error) {
	now := s.now().UTC()

	var (
		d     *domain.DepositRequest
		level int
		item  *domain.ReferralCommissionItem
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		d, err = tx.GetDeposit(ctx, depositID)
		if err != nil {
			return err
		}
		ok, err := tx.ResolveDeposit(ctx, depositID, domain.StatusApproved, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: deposit %s is %s", domain.ErrAlreadyResolved, depositID, d.Status)
		}

		bal, err := tx.AddBalance(ctx, d.UserID, d.Amount)
		if err != nil {
			return err
		}
		total, err := tx.AddTotalDeposits(ctx, d.UserID, d.Amount)
		if err != nil {
			return err
		}
		level, err = tx.RaiseVIPLevel(ctx, d.UserID, vip.LevelForDeposits(total))
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID: d.UserID, Op: domain.OpDeposit, Amount: d.Amount, BalanceAfter: bal, RefID: d.ID, CreatedAt: now,
		}); err != nil {
			return err
		}

		if s.referral != nil {
			item, err = s.referral.ApplyDeposit(ctx, tx, d.UserID, d.Amount, now)
			if err != nil {
				return err
			}
		}

		d.Status = domain.StatusApproved
		d.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("deposit", string(domain.StatusApproved))
	fields := []zap.Field{
		zap.String("depositId", d.ID),
		zap.String("userId", d.UserID),
		zap.String("amount", d.Amount.String()),
		zap.Int("vipLevel", level),
	}
	if item != nil {
		fields = append(fields, zap.String("referrerId", item.ReferrerID), zap.String("commission", item.Amount.String()))
	}
	s.log.Info("deposit approved", fields...)
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.DepositApproved, UserID: d.UserID, RefID: d.ID, Amount: d.Amount.String(),
		Payload: map[string]any{"vipLevel": level}, Ts: now,
	})
	return d, nil
}

// RejectDeposit não mexe no saldo: o valor nunca foi concedido
func (s *Service) RejectDeposit(ctx context.Context, depositID string) (*domain.DepositRequest, error) {
	now := s.now().UTC()

	var d *domain.DepositRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		d, err = tx.GetDeposit(ctx, depositID)
		if err != nil {
			return err
		}
		ok, err := tx.ResolveDeposit(ctx, depositID, domain.StatusRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: deposit %s is %s", domain.ErrAlreadyResolved, depositID, d.Status)
		}
		d.Status = domain.StatusRejected
		d.RejectedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("deposit", string(domain.StatusRejected))
	s.log.Info("deposit rejected", zap.String("depositId", d.ID), zap.String("userId", d.UserID))
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.DepositRejected, UserID: d.UserID, RefID: d.ID, Amount: d.Amount.String(), Ts: now,
	})
	return d, nil
}

func (s *Service) ListDeposits(ctx context.Context, f store.RequestFilter) ([]domain.DepositRequest, error) {
	var out []domain.DepositRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListDeposits(ctx, f)
		return err
	})
	return out, err
}

// ---- saques

// RequestWithdrawal valida mínimo, teto do tier, quantidade no mês e saldo, nessa ordem,
// e só então retém o valor.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method, address string) (*domain.WithdrawalRequest, error) {
	method = strings.TrimSpace(method)
	address = strings.TrimSpace(address)
	if method == "" {
		return nil, fmt.Errorf("%w: method", domain.ErrMissingField)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: address", domain.ErrMissingField)
	}
	if err := validateAmount(amount, s.rules.MinWithdrawal); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var w *domain.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		tier := vip.TierFor(acc.VIPLevel)

		if amount.GreaterThan(tier.MonthlyLimit) {
			return fmt.Errorf("%w: level %d allows up to %s", domain.ErrExceedsTierLimit, tier.Level, tier.MonthlyLimit)
		}
		used, err := tx.CountWithdrawalsSince(ctx, userID, monthStart(now))
		if err != nil {
			return err
		}
		if used >= tier.RetirosCantidad {
			return fmt.Errorf("%w: %d of %d used", domain.ErrWithdrawalCountExhausted, used, tier.RetirosCantidad)
		}
		if amount.GreaterThan(acc.Balance) {
			return domain.ErrInsufficientFunds
		}

		fee := amount.Mul(tier.WithdrawalFee).Div(hundred).Round(2)
		w = &domain.WithdrawalRequest{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			Fee:       fee,
			NetAmount: amount.Sub(fee),
			Method:    method,
			Address:   address,
			Status:    domain.StatusPending,
			CreatedAt: now,
		}

		bal, err := tx.AddBalance(ctx, userID, amount.Neg())
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID: userID, Op: domain.OpWithdrawalHold, Amount: amount.Neg(), BalanceAfter: bal, RefID: w.ID, CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("withdrawal", string(domain.StatusPending))
	s.log.Info("withdrawal requested",
		zap.String("withdrawalId", w.ID),
		zap.String("userId", userID),
		zap.String("amount", amount.String()),
		zap.String("fee", w.Fee.String()),
	)
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.WithdrawalRequested, UserID: userID, RefID: w.ID, Amount: amount.String(),
		Payload: map[string]any{"fee": w.Fee.String(), "net": w.NetAmount.String(), "method": w.Method}, Ts: now,
	})
	return w, nil
}

// ApproveWithdrawal só marca: o saldo já foi retido na solicitação
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	now := s.now().UTC()

	var w *domain.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		w, err = s.resolveWithdrawal(ctx, tx, id, domain.StatusApproved, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("withdrawal", string(domain.StatusApproved))
	s.log.Info("withdrawal approved", zap.String("withdrawalId", w.ID), zap.String("userId", w.UserID))
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.WithdrawalApproved, UserID: w.UserID, RefID: w.ID, Amount: w.NetAmount.String(), Ts: now,
	})
	return w, nil
}

// RejectWithdrawal devolve exatamente o valor retido
func (s *Service) RejectWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	now := s.now().UTC()

	var w *domain.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		w, err = s.resolveWithdrawal(ctx, tx, id, domain.StatusRejected, now)
		if err != nil {
			return err
		}
		bal, err := tx.AddBalance(ctx, w.UserID, w.Amount)
		if err != nil {
			return err
		}
		return tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID: w.UserID, Op: domain.OpWithdrawalRefund, Amount: w.Amount, BalanceAfter: bal, RefID: w.ID, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WalletRequest("withdrawal", string(domain.StatusRejected))
	s.log.Info("withdrawal rejected, amount refunded", zap.String("withdrawalId", w.ID), zap.String("userId", w.UserID))
	events.Emit(ctx, s.pub, s.log, cevents.PlatformEvent{
		Type: cevents.WithdrawalRejected, UserID: w.UserID, RefID: w.ID, Amount: w.Amount.String(), Ts: now,
	})
	return w, nil
}

func (s *Service) resolveWithdrawal(ctx context.Context, tx store.Tx, id string, status domain.RequestStatus, now time.Time) (*domain.WithdrawalRequest, error) {
	w, err := tx.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := tx.ResolveWithdrawal(ctx, id, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: withdrawal %s is %s", domain.ErrAlreadyResolved, id, w.Status)
	}
	w.Status = status
	if status == domain.StatusApproved {
		w.ApprovedAt = &now
	} else {
		w.RejectedAt = &now
	}
	return w, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, f store.RequestFilter) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListWithdrawals(ctx, f)
		return err
	})
	return out, err
}

// Remaining retorna quantos saques ainda cabem no mês corrente
func (s *Service) Remaining(ctx context.Context, userID string) (int, error) {
	var left int
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		acc, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		used, err := tx.CountWithdrawalsSince(ctx, userID, monthStart(s.now()))
		if err != nil {
			return err
		}
		left = vip.TierFor(acc.VIPLevel).RetirosCantidad - used
		if left < 0 {
			left = 0
		}
		return nil
	})
	return left, err
}
