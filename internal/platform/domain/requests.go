package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// DepositRequest: pending -> approved|rejected, exatamente uma vez
type DepositRequest struct {
	ID         string
	UserID     string
	Amount     decimal.Decimal
	Method     string
	ProofRef   string // URL do comprovante no object storage
	Status     RequestStatus
	CreatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
}

// WithdrawalRequest: o saldo já foi debitado na criação (retenção); rejeição devolve Amount
type WithdrawalRequest struct {
	ID         string
	UserID     string
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	NetAmount  decimal.Decimal
	Method     string
	Address    string
	Status     RequestStatus
	CreatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
}
