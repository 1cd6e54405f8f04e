package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionAvailable CommissionStatus = "available"
	CommissionWithdrawn CommissionStatus = "withdrawn"
)

// ReferralCommissionItem acumula a comissão de um par (indicador, indicado).
// Cada depósito aprovado do indicado soma ao valor e reinicia a maturação.
type ReferralCommissionItem struct {
	ID             string
	ReferrerID     string
	ReferredUserID string
	Amount         decimal.Decimal
	Status         CommissionStatus
	DepositDate    time.Time
	AvailableDate  *time.Time
	WithdrawnDate  *time.Time
}

// Matured indica se a janela de maturação já passou em now
func (i ReferralCommissionItem) Matured(now time.Time, window time.Duration) bool {
	return i.Status == CommissionPending && now.Sub(i.DepositDate) >= window
}

// ReferralPayout é o registro de pagamento externo gerado por um saque de comissões
type ReferralPayout struct {
	ID         string
	ReferrerID string
	Gross      decimal.Decimal
	FeePercent decimal.Decimal
	Fee        decimal.Decimal
	Net        decimal.Decimal
	Address    string
	Status     string // "requested"
	ItemIDs    []string
	CreatedAt  time.Time
}
