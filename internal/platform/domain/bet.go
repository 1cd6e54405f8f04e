package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionFavor   Direction = "a_favor"
	DirectionAgainst Direction = "en_contra"
)

// ParseDirection valida a direção recebida de fora
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionFavor, DirectionAgainst:
		return d, nil
	}
	return "", ErrInvalidDirection
}

type BetStatus string

const (
	BetOpen      BetStatus = "open"
	BetCancelled BetStatus = "cancelled"
	BetCompleted BetStatus = "completed"
)

var hundred = decimal.NewFromInt(100)

// Bet é uma aposta direcional. InterestRate (% diário) é fixado na criação a partir do tier VIP.
// IsProcessed é uma trava de mão única: uma vez true, a aposta nunca é liquidada de novo.
type Bet struct {
	ID           string
	UserID       string
	Asset        string
	Direction    Direction
	Amount       decimal.Decimal
	Shares       decimal.Decimal
	Price        decimal.Decimal
	InterestRate decimal.Decimal
	Status       BetStatus
	IsProcessed  bool
	Payout       decimal.Decimal
	CreatedAt    time.Time
	SettledAt    *time.Time
}

// WinningPayout = amount + amount * (interestRate / 100), em AmountScale casas
func (b Bet) WinningPayout() decimal.Decimal {
	return b.Amount.Add(b.Amount.Mul(b.InterestRate).Div(hundred)).Round(AmountScale)
}

// CheckCancelable aplica a janela de cancelamento: aposta aberta, criada há menos de window
// e, havendo liquidação agendada, faltando pelo menos cutoff para ela.
// scheduledAt zero significa nenhum agendamento.
func (b Bet) CheckCancelable(now time.Time, window time.Duration, scheduledAt time.Time, cutoff time.Duration) error {
	if b.Status != BetOpen || b.IsProcessed {
		return ErrBetNotOpen
	}
	if now.Sub(b.CreatedAt) >= window {
		return ErrCancelWindowClosed
	}
	if !scheduledAt.IsZero() && scheduledAt.Sub(now) < cutoff {
		return ErrCancelWindowClosed
	}
	return nil
}
