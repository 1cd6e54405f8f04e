package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/vip"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type AccountResponse struct {
	UserID               string          `json:"userId"`
	Balance              decimal.Decimal `json:"balance"`
	VIPLevel             int             `json:"vipLevel"`
	TotalDeposits        decimal.Decimal `json:"totalDeposits"`
	ReferralCode         string          `json:"referralCode"`
	ReferredBy           string          `json:"referredBy,omitempty"`
	Tier                 *vip.Tier       `json:"tier,omitempty"`
	WithdrawalsRemaining *int            `json:"withdrawalsRemaining,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

func Account(a *domain.Account) AccountResponse {
	return AccountResponse{
		UserID:        a.ID,
		Balance:       a.Balance,
		VIPLevel:      a.VIPLevel,
		TotalDeposits: a.TotalDeposits,
		ReferralCode:  a.ReferralCode,
		ReferredBy:    a.ReferredBy,
		CreatedAt:     a.CreatedAt,
	}
}

type DepositResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	ProofURL   string          `json:"proofUrl,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	ApprovedAt *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt *time.Time      `json:"rejectedAt,omitempty"`
}

func Deposit(d domain.DepositRequest) DepositResponse {
	return DepositResponse{
		ID: d.ID, UserID: d.UserID, Amount: d.Amount, Method: d.Method, ProofURL: d.ProofRef,
		Status: string(d.Status), CreatedAt: d.CreatedAt, ApprovedAt: d.ApprovedAt, RejectedAt: d.RejectedAt,
	}
}

func Deposits(in []domain.DepositRequest) []DepositResponse {
	out := make([]DepositResponse, 0, len(in))
	for _, d := range in {
		out = append(out, Deposit(d))
	}
	return out
}

type WithdrawalResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
	Fee        decimal.Decimal `json:"fee"`
	NetAmount  decimal.Decimal `json:"netAmount"`
	Method     string          `json:"method"`
	Address    string          `json:"address"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	ApprovedAt *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt *time.Time      `json:"rejectedAt,omitempty"`
}

func Withdrawal(w domain.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID: w.ID, UserID: w.UserID, Amount: w.Amount, Fee: w.Fee, NetAmount: w.NetAmount,
		Method: w.Method, Address: w.Address, Status: string(w.Status),
		CreatedAt: w.CreatedAt, ApprovedAt: w.ApprovedAt, RejectedAt: w.RejectedAt,
	}
}

func Withdrawals(in []domain.WithdrawalRequest) []WithdrawalResponse {
	out := make([]WithdrawalResponse, 0, len(in))
	for _, w := range in {
		out = append(out, Withdrawal(w))
	}
	return out
}

type BetResponse struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Asset        string          `json:"asset"`
	Direction    string          `json:"direction"`
	Amount       decimal.Decimal `json:"amount"`
	Shares       decimal.Decimal `json:"shares"`
	Price        decimal.Decimal `json:"price"`
	InterestRate decimal.Decimal `json:"interestRate"`
	Status       string          `json:"status"`
	IsProcessed  bool            `json:"isProcessed"`
	Payout       decimal.Decimal `json:"payout"`
	CreatedAt    time.Time       `json:"createdAt"`
	SettledAt    *time.Time      `json:"settledAt,omitempty"`
}

func Bet(b domain.Bet) BetResponse {
	return BetResponse{
		ID: b.ID, UserID: b.UserID, Asset: b.Asset, Direction: string(b.Direction),
		Amount: b.Amount, Shares: b.Shares, Price: b.Price, InterestRate: b.InterestRate,
		Status: string(b.Status), IsProcessed: b.IsProcessed, Payout: b.Payout,
		CreatedAt: b.CreatedAt, SettledAt: b.SettledAt,
	}
}

func Bets(in []domain.Bet) []BetResponse {
	out := make([]BetResponse, 0, len(in))
	for _, b := range in {
		out = append(out, Bet(b))
	}
	return out
}

type CommissionItemResponse struct {
	ID             string          `json:"id"`
	ReferredUserID string          `json:"referredUserId"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	DepositDate    time.Time       `json:"depositDate"`
	AvailableDate  *time.Time      `json:"availableDate,omitempty"`
	WithdrawnDate  *time.Time      `json:"withdrawnDate,omitempty"`
}

type ReferralSummaryResponse struct {
	ReferralCode string                   `json:"referralCode"`
	Pending      decimal.Decimal          `json:"pending"`
	Available    decimal.Decimal          `json:"available"`
	Withdrawn    decimal.Decimal          `json:"withdrawn"`
	Items        []CommissionItemResponse `json:"items"`
}

func CommissionItems(in []domain.ReferralCommissionItem) []CommissionItemResponse {
	out := make([]CommissionItemResponse, 0, len(in))
	for _, i := range in {
		out = append(out, CommissionItemResponse{
			ID: i.ID, ReferredUserID: i.ReferredUserID, Amount: i.Amount, Status: string(i.Status),
			DepositDate: i.DepositDate, AvailableDate: i.AvailableDate, WithdrawnDate: i.WithdrawnDate,
		})
	}
	return out
}

type ReferralPayoutResponse struct {
	ID         string          `json:"id"`
	Gross      decimal.Decimal `json:"gross"`
	FeePercent decimal.Decimal `json:"feePercent"`
	Fee        decimal.Decimal `json:"fee"`
	Net        decimal.Decimal `json:"net"`
	Address    string          `json:"address"`
	Status     string          `json:"status"`
	ItemIDs    []string        `json:"itemIds"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func ReferralPayout(p *domain.ReferralPayout) ReferralPayoutResponse {
	return ReferralPayoutResponse{
		ID: p.ID, Gross: p.Gross, FeePercent: p.FeePercent, Fee: p.Fee, Net: p.Net,
		Address: p.Address, Status: p.Status, ItemIDs: p.ItemIDs, CreatedAt: p.CreatedAt,
	}
}

type TransferResponse struct {
	Transferred decimal.Decimal `json:"transferred"`
}

// ScheduleResponse é a visão do usuário: a direção vencedora nunca é exposta
type ScheduleResponse struct {
	ScheduledDate    string     `json:"scheduledDate"`
	ScheduledTime    string     `json:"scheduledTime"`
	ScheduledAt      *time.Time `json:"scheduledAt,omitempty"`
	RemainingSeconds int64      `json:"remainingSeconds"`
	Due              bool       `json:"due"`
}

// AdminScheduleResponse inclui a direção vencedora
type AdminScheduleResponse struct {
	ScheduledDate    string    `json:"scheduledDate"`
	ScheduledTime    string    `json:"scheduledTime"`
	WinningDirection string    `json:"winningDirection"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func AdminSchedule(c *domain.ScheduleConfig) AdminScheduleResponse {
	return AdminScheduleResponse{
		ScheduledDate: c.ScheduledDate, ScheduledTime: c.ScheduledTime,
		WinningDirection: string(c.WinningDirection), UpdatedAt: c.UpdatedAt,
	}
}

type LedgerEntryResponse struct {
	Op           string          `json:"op"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	RefID        string          `json:"refId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func Ledger(in []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(in))
	for _, e := range in {
		out = append(out, LedgerEntryResponse{
			Op: string(e.Op), Amount: e.Amount, BalanceAfter: e.BalanceAfter, RefID: e.RefID, CreatedAt: e.CreatedAt,
		})
	}
	return out
}

type VIPLevelResponse struct {
	UserID   string `json:"userId"`
	VIPLevel int    `json:"vipLevel"`
}

type MatureResponse struct {
	Matured int `json:"matured"`
}
