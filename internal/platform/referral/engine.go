// Package referral calcula e libera as comissões de indicação.
// A comissão nasce de um depósito aprovado do indicado, matura por uma janela fixa
// e depois pode ser sacada (com taxa por nível VIP) ou transferida ao saldo (sem taxa).
package referral

import (
	"context"
	"errors"
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

const PayoutRequested = "requested"

var hundred = decimal.NewFromInt(100)

type Engine struct {
	store   store.Store
	rules   config.Rules
	log     *zap.Logger
	pub     events.Publisher
	metrics *metrics.Platform
	now     func() time.Time
}

func NewEngine(st store.Store, rules config.Rules, log *zap.Logger, pub events.Publisher, m *metrics.Platform) *Engine {
	return &Engine{store: st, rules: rules, log: log, pub: pub, metrics: m, now: time.Now}
}

// WithClock troca o relógio (testes)
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ApplyDeposit credita a comissão do indicador dentro da transação de aprovação do depósito.
// Retorna nil se o depositante não foi indicado.
func (e *Engine) ApplyDeposit(ctx context.Context, tx store.Tx, depositorID string, amount decimal.Decimal, at time.Time) (*domain.ReferralCommissionItem, error) {
	depositor, err := tx.GetAccount(ctx, depositorID)
	if err != nil {
		return nil, err
	}
	if depositor.ReferredBy == "" {
		return nil, nil
	}
	referrer, err := tx.GetAccountByReferralCode(ctx, depositor.ReferredBy)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// código órfão: não há quem receber
			e.log.Warn("referral code without account", zap.String("code", depositor.ReferredBy))
			return nil, nil
		}
		return nil, err
	}

	commission := amount.Mul(e.rules.ReferralRate).Round(domain.AmountScale)

	it, err := tx.GetCommission(ctx, referrer.ID, depositorID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		it = &domain.ReferralCommissionItem{
			ID:             uuid.NewString(),
			ReferrerID:     referrer.ID,
			ReferredUserID: depositorID,
			Amount:         commission,
			Status:         domain.CommissionPending,
			DepositDate:    at,
		}
		if err := tx.InsertCommission(ctx, it); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		// novo depósito soma e reinicia a maturação
		it.Amount = it.Amount.Add(commission)
		it.DepositDate = at
		it.Status = domain.CommissionPending
		it.AvailableDate = nil
		if err := tx.UpdateCommission(ctx, it); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// OnApprovedDeposit é a versão autônoma de ApplyDeposit, em transação própria
func (e *Engine) OnApprovedDeposit(ctx context.Context, depositorID string, amount decimal.Decimal) (*domain.ReferralCommissionItem, error) {
	var it *domain.ReferralCommissionItem
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		it, err = e.ApplyDeposit(ctx, tx, depositorID, amount, e.now().UTC())
		return err
	})
	return it, err
}

func (e *Engine) matureIn(ctx context.Context, tx store.Tx, referrerID string, now time.Time) (int, error) {
	items, err := tx.ListCommissions(ctx, referrerID, domain.CommissionPending)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range items {
		it := items[i]
		if !it.Matured(now, e.rules.ReferralMaturation) {
			continue
		}
		at := now
		it.Status = domain.CommissionAvailable
		it.AvailableDate = &at
		if err := tx.UpdateCommission(ctx, &it); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// MaturePending libera todos os itens pendentes cuja janela de maturação já passou
func (e *Engine) MaturePending(ctx context.Context) (int, error) {
	now := e.now().UTC()
	var n int
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = e.matureIn(ctx, tx, "", now)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.metrics.ReferralMatured(n)
		e.log.Info("referral commissions matured", zap.Int("count", n))
	}
	return n, nil
}

// matureFor grava a maturação do indicador em transação própria,
// assim um resgate recusado depois não desfaz a promoção
func (e *Engine) matureFor(ctx context.Context, referrerID string, now time.Time) error {
	return e.store.WithinTx(ctx, func(tx store.Tx) error {
		_, err := e.matureIn(ctx, tx, referrerID, now)
		return err
	})
}

// collect soma os itens disponíveis do indicador
func (e *Engine) collect(ctx context.Context, tx store.Tx, referrerID string) ([]domain.ReferralCommissionItem, decimal.Decimal, error) {
	items, err := tx.ListCommissions(ctx, referrerID, domain.CommissionAvailable)
	if err != nil {
		return nil, decimal.Zero, err
	}
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount)
	}
	if len(items) == 0 || !sum.IsPositive() {
		return nil, decimal.Zero, domain.ErrNoAvailableCommission
	}
	return items, sum, nil
}

func markWithdrawn(ctx context.Context, tx store.Tx, items []domain.ReferralCommissionItem, now time.Time) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i := range items {
		it := items[i]
		at := now
		it.Status = domain.CommissionWithdrawn
		it.WithdrawnDate = &at
		if err := tx.UpdateCommission(ctx, &it); err != nil {
			return nil, err
		}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// WithdrawAvailable gera o pagamento externo das comissões disponíveis, descontando a taxa do nível
func (e *Engine) WithdrawAvailable(ctx context.Context, referrerID, address string) (*domain.ReferralPayout, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address", domain.ErrMissingField)
	}
	now := e.now().UTC()
	if err := e.matureFor(ctx, referrerID, now); err != nil {
		return nil, err
	}

	var payout *domain.ReferralPayout
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		acc, err := tx.GetAccount(ctx, referrerID)
		if err != nil {
			return err
		}
		items, gross, err := e.collect(ctx, tx, referrerID)
		if err != nil {
			return err
		}
		if gross.LessThan(e.rules.MinReferralWithdrawal) {
			return fmt.Errorf("%w: referral withdrawal requires at least %s", domain.ErrBelowMinimum, e.rules.MinReferralWithdrawal)
		}

		feePct := vip.ReferralWithdrawalFee(acc.VIPLevel)
		fee := gross.Mul(feePct).Div(hundred).Round(2)

		ids, err := markWithdrawn(ctx, tx, items, now)
		if err != nil {
			return err
		}
		payout = &domain.ReferralPayout{
			ID:         uuid.NewString(),
			ReferrerID: referrerID,
			Gross:      gross,
			FeePercent: feePct,
			Fee:        fee,
			Net:        gross.Sub(fee),
			Address:    address,
			Status:     PayoutRequested,
			ItemIDs:    ids,
			CreatedAt:  now,
		}
		return tx.InsertReferralPayout(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("referral payout requested",
		zap.String("referrerId", referrerID),
		zap.String("gross", payout.Gross.String()),
		zap.String("net", payout.Net.String()),
	)
	events.Emit(ctx, e.pub, e.log, cevents.PlatformEvent{
		Type:   cevents.ReferralPayoutRequested,
		UserID: referrerID,
		RefID:  payout.ID,
		Amount: payout.Net.String(),
		Payload: map[string]any{
			"gross":   payout.Gross.String(),
			"fee":     payout.Fee.String(),
			"address": payout.Address,
			"items":   len(payout.ItemIDs),
		},
		Ts: now,
	})
	return payout, nil
}

// TransferAvailableToBalance credita as comissões disponíveis no saldo, sem taxa
func (e *Engine) TransferAvailableToBalance(ctx context.Context, referrerID string) (decimal.Decimal, error) {
	now := e.now().UTC()
	if err := e.matureFor(ctx, referrerID, now); err != nil {
		return decimal.Zero, err
	}

	var sum decimal.Decimal
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, referrerID); err != nil {
			return err
		}
		items, total, err := e.collect(ctx, tx, referrerID)
		if err != nil {
			return err
		}
		bal, err := tx.AddBalance(ctx, referrerID, total)
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &domain.LedgerEntry{
			UserID:       referrerID,
			Op:           domain.OpReferralTransfer,
			Amount:       total,
			BalanceAfter: bal,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		if _, err := markWithdrawn(ctx, tx, items, now); err != nil {
			return err
		}
		sum = total
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.log.Info("referral commission transferred", zap.String("referrerId", referrerID), zap.String("amount", sum.String()))
	events.Emit(ctx, e.pub, e.log, cevents.PlatformEvent{
		Type:   cevents.ReferralTransferred,
		UserID: referrerID,
		Amount: sum.String(),
		Ts:     now,
	})
	return sum, nil
}

// Summary agrega as comissões do indicador por status
type Summary struct {
	ReferralCode string                          `json:"referralCode"`
	Pending      decimal.Decimal                 `json:"pending"`
	Available    decimal.Decimal                 `json:"available"`
	Withdrawn    decimal.Decimal                 `json:"withdrawn"`
	Items        []domain.ReferralCommissionItem `json:"items"`
}

func (e *Engine) Summary(ctx context.Context, referrerID string) (*Summary, error) {
	now := e.now().UTC()
	out := &Summary{}
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		acc, err := tx.GetAccount(ctx, referrerID)
		if err != nil {
			return err
		}
		out.ReferralCode = acc.ReferralCode
		// leitura já reflete a maturação vencida
		if _, err := e.matureIn(ctx, tx, referrerID, now); err != nil {
			return err
		}
		items, err := tx.ListCommissions(ctx, referrerID, "")
		if err != nil {
			return err
		}
		out.Items = items
		for _, it := range items {
			switch it.Status {
			case domain.CommissionPending:
				out.Pending = out.Pending.Add(it.Amount)
			case domain.CommissionAvailable:
				out.Available = out.Available.Add(it.Amount)
			case domain.CommissionWithdrawn:
				out.Withdrawn = out.Withdrawn.Add(it.Amount)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
