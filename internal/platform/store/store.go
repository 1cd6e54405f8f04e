// Package store define os contratos de persistência da plataforma.
// Toda operação de negócio roda dentro de Store.WithinTx; as implementações garantem
// que o saldo só muda por incremento atômico sob lock da linha da conta.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
)

// Store abre transações. fn retornando erro desfaz tudo o que foi escrito.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx agrega os repositórios disponíveis dentro de uma transação
type Tx interface {
	AccountRepo
	DepositRepo
	WithdrawalRepo
	BetRepo
	ReferralRepo
	ScheduleRepo
}

type AccountRepo interface {
	InsertAccount(ctx context.Context, a *domain.Account) error
	// GetAccount trava a linha da conta até o fim da transação
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	// AddBalance aplica delta atomicamente; retorna ErrInsufficientFunds se o saldo ficaria negativo
	AddBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error)
	AddTotalDeposits(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	// RaiseVIPLevel nunca reduz o nível; retorna o nível resultante
	RaiseVIPLevel(ctx context.Context, userID string, level int) (int, error)
	SetReferredBy(ctx context.Context, userID, code string) error
	AppendLedger(ctx context.Context, e *domain.LedgerEntry) error
	ListLedger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)
}

// RequestFilter filtra depósitos/saques; campos vazios não filtram
type RequestFilter struct {
	UserID string
	Status domain.RequestStatus
	Limit  int
}

type DepositRepo interface {
	InsertDeposit(ctx context.Context, d *domain.DepositRequest) error
	GetDeposit(ctx context.Context, id string) (*domain.DepositRequest, error)
	// ResolveDeposit só transiciona a partir de pending; false = já resolvido
	ResolveDeposit(ctx context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error)
	ListDeposits(ctx context.Context, f RequestFilter) ([]domain.DepositRequest, error)
}

type WithdrawalRepo interface {
	InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (*domain.WithdrawalRequest, error)
	ResolveWithdrawal(ctx context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error)
	ListWithdrawals(ctx context.Context, f RequestFilter) ([]domain.WithdrawalRequest, error)
	// CountWithdrawalsSince conta saques pending/approved criados a partir de since
	CountWithdrawalsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// BetFilter filtra apostas; campos vazios não filtram
type BetFilter struct {
	UserID string
	Status domain.BetStatus
	Limit  int
}

type BetRepo interface {
	InsertBet(ctx context.Context, b *domain.Bet) error
	GetBet(ctx context.Context, id string) (*domain.Bet, error)
	// CancelOpenBet só transiciona open -> cancelled; false = não estava aberta
	CancelOpenBet(ctx context.Context, id string, at time.Time) (bool, error)
	ListUnprocessedOpenBets(ctx context.Context) ([]domain.Bet, error)
	// LatchBet marca a aposta como completed/processed se ainda não foi; false = já processada
	LatchBet(ctx context.Context, id string, payout decimal.Decimal, at time.Time) (bool, error)
	ListBets(ctx context.Context, f BetFilter) ([]domain.Bet, error)
}

type ReferralRepo interface {
	// GetCommission retorna o item ainda não sacado (pending/available) do par, travado
	GetCommission(ctx context.Context, referrerID, referredUserID string) (*domain.ReferralCommissionItem, error)
	InsertCommission(ctx context.Context, it *domain.ReferralCommissionItem) error
	UpdateCommission(ctx context.Context, it *domain.ReferralCommissionItem) error
	// ListCommissions: referrerID vazio = todos; status vazio = todos
	ListCommissions(ctx context.Context, referrerID string, status domain.CommissionStatus) ([]domain.ReferralCommissionItem, error)
	InsertReferralPayout(ctx context.Context, p *domain.ReferralPayout) error
}

type ScheduleRepo interface {
	// GetSchedule retorna ErrNotFound quando nada foi configurado
	GetSchedule(ctx context.Context) (*domain.ScheduleConfig, error)
	SaveSchedule(ctx context.Context, s *domain.ScheduleConfig) error
	// ClaimSettlementRun cria a trava da ocorrência; false = outra instância já reivindicou.
	// Uma execução failed, ou running iniciada antes de staleBefore, pode ser reivindicada de novo.
	ClaimSettlementRun(ctx context.Context, run *domain.SettlementRun, staleBefore time.Time) (bool, error)
	FinishSettlementRun(ctx context.Context, run *domain.SettlementRun) error
	GetSettlementRun(ctx context.Context, scheduledAt time.Time) (*domain.SettlementRun, error)
}
