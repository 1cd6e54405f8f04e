package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale é a quantidade de casas decimais guardadas nas colunas monetárias (NUMERIC(20,8))
const AmountScale = 8

// CheckAmount exige valor positivo representável sem arredondamento
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrAmountPrecision
	}
	return nil
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account é o registro do ledger por usuário.
// ID vem do provedor de autenticação; ReferredBy guarda o referralCode de quem indicou ("" se ninguém).
type Account struct {
	ID            string
	Balance       decimal.Decimal
	VIPLevel      int
	TotalDeposits decimal.Decimal
	ReferralCode  string
	ReferredBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LedgerOp string

const (
	OpDeposit          LedgerOp = "DEPOSIT"
	OpWithdrawalHold   LedgerOp = "WITHDRAWAL_HOLD"
	OpWithdrawalRefund LedgerOp = "WITHDRAWAL_REFUND"
	OpBetStake         LedgerOp = "BET_STAKE"
	OpBetRefund        LedgerOp = "BET_REFUND"
	OpBetPayout        LedgerOp = "BET_PAYOUT"
	OpReferralTransfer LedgerOp = "REFERRAL_TRANSFER"
)

// LedgerEntry registra cada mutação de saldo; Amount é assinado (débito < 0)
type LedgerEntry struct {
	ID           int64
	UserID       string
	Op           LedgerOp
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	RefID        string
	CreatedAt    time.Time
}
