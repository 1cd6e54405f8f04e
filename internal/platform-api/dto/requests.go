package dto

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Validate aplica as tags `validate` da requisição
func Validate(v any) error {
	return validate.Struct(v)
}

// ParseAmount converte valores monetários recebidos como string ("25.50")
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

type RegisterRequest struct {
	ReferralCode string `json:"referralCode" validate:"omitempty,alphanum,max=32"`
}

type ApplyReferralRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=32"`
}

type DepositRequest struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Method   string `json:"method" validate:"required,max=64"`
	ProofURL string `json:"proofUrl" validate:"omitempty,url"`
}

type WithdrawalRequest struct {
	Amount  string `json:"amount" validate:"required,numeric"`
	Method  string `json:"method" validate:"required,max=64"`
	Address string `json:"address" validate:"required,max=128"`
}

type PlaceBetRequest struct {
	Asset     string `json:"asset" validate:"required,alphanum,max=16"`
	Direction string `json:"direction" validate:"required,oneof=a_favor en_contra"`
	Amount    string `json:"amount" validate:"required,numeric"`
}

type ReferralWithdrawRequest struct {
	Address string `json:"address" validate:"required,max=128"`
}

type ScheduleRequest struct {
	Date             string `json:"scheduledDate" validate:"required,datetime=2006-01-02"`
	Time             string `json:"scheduledTime" validate:"required,datetime=15:04"`
	WinningDirection string `json:"winningDirection" validate:"required,oneof=a_favor en_contra"`
}

// SettleRequest: sem direção, usa a configurada na agenda
type SettleRequest struct {
	WinningDirection string `json:"winningDirection" validate:"omitempty,oneof=a_favor en_contra"`
}

type VIPLevelRequest struct {
	Level int `json:"level" validate:"min=0,max=10"`
}
