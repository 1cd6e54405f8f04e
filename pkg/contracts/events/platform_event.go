package events

import "time"

// Tipos de evento publicados no tópico "platform_events".
const (
	DepositRequested        = "deposit_requested"
	DepositApproved         = "deposit_approved"
	DepositRejected         = "deposit_rejected"
	WithdrawalRequested     = "withdrawal_requested"
	WithdrawalApproved      = "withdrawal_approved"
	WithdrawalRejected      = "withdrawal_rejected"
	BetPlaced               = "bet_placed"
	BetCancelled            = "bet_cancelled"
	BetSettled              = "bet_settled"
	ReferralPayoutRequested = "referral_payout_requested"
	ReferralTransferred     = "referral_transferred"
	SettlementRun           = "settlement_run"
)

// PlatformEvent é o envelope único dos eventos de negócio da plataforma.
// RefID aponta para o registro de origem (depósito, saque, aposta, payout).
type PlatformEvent struct {
	Type    string         `json:"type"`
	UserID  string         `json:"user_id,omitempty"`
	RefID   string         `json:"ref_id,omitempty"`
	Amount  string         `json:"amount,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Ts      time.Time      `json:"ts"`
}
