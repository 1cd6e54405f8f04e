// Package memory implementa store.Store em memória.
// Cada transação trabalha sobre uma cópia do estado e só publica a cópia no commit,
// com um mutex único serializando as transações.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
)

type state struct {
	accounts    map[string]domain.Account
	deposits    map[string]domain.DepositRequest
	withdrawals map[string]domain.WithdrawalRequest
	bets        map[string]domain.Bet
	commissions map[string]domain.ReferralCommissionItem
	payouts     map[string]domain.ReferralPayout
	runs        map[int64]domain.SettlementRun
	schedule    *domain.ScheduleConfig
	ledger      []domain.LedgerEntry
	ledgerSeq   int64
}

func newState() *state {
	return &state{
		accounts:    make(map[string]domain.Account),
		deposits:    make(map[string]domain.DepositRequest),
		withdrawals: make(map[string]domain.WithdrawalRequest),
		bets:        make(map[string]domain.Bet),
		commissions: make(map[string]domain.ReferralCommissionItem),
		payouts:     make(map[string]domain.ReferralPayout),
		runs:        make(map[int64]domain.SettlementRun),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		accounts:    cloneMap(s.accounts),
		deposits:    cloneMap(s.deposits),
		withdrawals: cloneMap(s.withdrawals),
		bets:        cloneMap(s.bets),
		commissions: cloneMap(s.commissions),
		payouts:     cloneMap(s.payouts),
		runs:        cloneMap(s.runs),
		ledger:      append([]domain.LedgerEntry(nil), s.ledger...),
		ledgerSeq:   s.ledgerSeq,
	}
	if s.schedule != nil {
		sc := *s.schedule
		c.schedule = &sc
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store { return &Store{data: newState()} }

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// WithinTx executa fn sobre uma cópia do estado; erro descarta a cópia
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{st: s.data.clone()}
	if err := fn(t); err != nil {
		return err
	}
	s.data = t.st
	return nil
}

type tx struct{ st *state }

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
}

func limit[T any](xs []T, n int) []T {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}

// ---- contas

func (t *tx) InsertAccount(_ context.Context, a *domain.Account) error {
	if _, ok := t.st.accounts[a.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, a.ID)
	}
	for _, other := range t.st.accounts {
		if other.ReferralCode == a.ReferralCode {
			return fmt.Errorf("%w: referral code %s", domain.ErrAccountExists, a.ReferralCode)
		}
	}
	t.st.accounts[a.ID] = *a
	return nil
}

func (t *tx) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	a, ok := t.st.accounts[userID]
	if !ok {
		return nil, notFound("account", userID)
	}
	return &a, nil
}

func (t *tx) GetAccountByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	for _, a := range t.st.accounts {
		if a.ReferralCode == code {
			return &a, nil
		}
	}
	return nil, notFound("referral code", code)
}

func (t *tx) AddBalance(_ context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.st.accounts[userID]
	if !ok {
		return decimal.Zero, notFound("account", userID)
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return a.Balance, domain.ErrInsufficientFunds
	}
	a.Balance = next
	a.UpdatedAt = time.Now()
	t.st.accounts[userID] = a
	return next, nil
}

func (t *tx) AddTotalDeposits(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.st.accounts[userID]
	if !ok {
		return decimal.Zero, notFound("account", userID)
	}
	a.TotalDeposits = a.TotalDeposits.Add(amount)
	t.st.accounts[userID] = a
	return a.TotalDeposits, nil
}

func (t *tx) RaiseVIPLevel(_ context.Context, userID string, level int) (int, error) {
	a, ok := t.st.accounts[userID]
	if !ok {
		return 0, notFound("account", userID)
	}
	if level > a.VIPLevel {
		a.VIPLevel = level
		t.st.accounts[userID] = a
	}
	return a.VIPLevel, nil
}

func (t *tx) SetReferredBy(_ context.Context, userID, code string) error {
	a, ok := t.st.accounts[userID]
	if !ok {
		return notFound("account", userID)
	}
	if a.ReferredBy != "" {
		return domain.ErrReferralAlreadySet
	}
	a.ReferredBy = code
	t.st.accounts[userID] = a
	return nil
}

func (t *tx) AppendLedger(_ context.Context, e *domain.LedgerEntry) error {
	t.st.ledgerSeq++
	e.ID = t.st.ledgerSeq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	t.st.ledger = append(t.st.ledger, *e)
	return nil
}

func (t *tx) ListLedger(_ context.Context, userID string, n int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for i := len(t.st.ledger) - 1; i >= 0; i-- {
		if t.st.ledger[i].UserID == userID {
			out = append(out, t.st.ledger[i])
		}
	}
	return limit(out, n), nil
}

// ---- depósitos

func (t *tx) InsertDeposit(_ context.Context, d *domain.DepositRequest) error {
	t.st.deposits[d.ID] = *d
	return nil
}

func (t *tx) GetDeposit(_ context.Context, id string) (*domain.DepositRequest, error) {
	d, ok := t.st.deposits[id]
	if !ok {
		return nil, notFound("deposit", id)
	}
	return &d, nil
}

func (t *tx) ResolveDeposit(_ context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error) {
	d, ok := t.st.deposits[id]
	if !ok {
		return false, notFound("deposit", id)
	}
	if d.Status != domain.StatusPending {
		return false, nil
	}
	d.Status = status
	if status == domain.StatusApproved {
		d.ApprovedAt = &at
	} else {
		d.RejectedAt = &at
	}
	t.st.deposits[id] = d
	return true, nil
}

func (t *tx) ListDeposits(_ context.Context, f store.RequestFilter) ([]domain.DepositRequest, error) {
	var out []domain.DepositRequest
	for _, d := range t.st.deposits {
		if (f.UserID == "" || d.UserID == f.UserID) && (f.Status == "" || d.Status == f.Status) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, f.Limit), nil
}

// ---- saques

func (t *tx) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *tx) GetWithdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	w, ok := t.st.withdrawals[id]
	if !ok {
		return nil, notFound("withdrawal", id)
	}
	return &w, nil
}

func (t *tx) ResolveWithdrawal(_ context.Context, id string, status domain.RequestStatus, at time.Time) (bool, error) {
	w, ok := t.st.withdrawals[id]
	if !ok {
		return false, notFound("withdrawal", id)
	}
	if w.Status != domain.StatusPending {
		return false, nil
	}
	w.Status = status
	if status == domain.StatusApproved {
		w.ApprovedAt = &at
	} else {
		w.RejectedAt = &at
	}
	t.st.withdrawals[id] = w
	return true, nil
}

func (t *tx) ListWithdrawals(_ context.Context, f store.RequestFilter) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	for _, w := range t.st.withdrawals {
		if (f.UserID == "" || w.UserID == f.UserID) && (f.Status == "" || w.Status == f.Status) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, f.Limit), nil
}

func (t *tx) CountWithdrawalsSince(_ context.Context, userID string, since time.Time) (int, error) {
	n := 0
	for _, w := range t.st.withdrawals {
		if w.UserID == userID && w.Status != domain.StatusRejected && !w.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---- apostas

func (t *tx) InsertBet(_ context.Context, b *domain.Bet) error {
	t.st.bets[b.ID] = *b
	return nil
}

func (t *tx) GetBet(_ context.Context, id string) (*domain.Bet, error) {
	b, ok := t.st.bets[id]
	if !ok {
		return nil, notFound("bet", id)
	}
	return &b, nil
}

func (t *tx) CancelOpenBet(_ context.Context, id string, at time.Time) (bool, error) {
	b, ok := t.st.bets[id]
	if !ok {
		return false, notFound("bet", id)
	}
	if b.Status != domain.BetOpen || b.IsProcessed {
		return false, nil
	}
	b.Status = domain.BetCancelled
	b.SettledAt = &at
	t.st.bets[id] = b
	return true, nil
}

func (t *tx) ListUnprocessedOpenBets(_ context.Context) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range t.st.bets {
		if b.Status == domain.BetOpen && !b.IsProcessed {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) LatchBet(_ context.Context, id string, payout decimal.Decimal, at time.Time) (bool, error) {
	b, ok := t.st.bets[id]
	if !ok {
		return false, notFound("bet", id)
	}
	if b.IsProcessed || b.Status != domain.BetOpen {
		return false, nil
	}
	b.IsProcessed = true
	b.Status = domain.BetCompleted
	b.Payout = payout
	b.SettledAt = &at
	t.st.bets[id] = b
	return true, nil
}

func (t *tx) ListBets(_ context.Context, f store.BetFilter) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range t.st.bets {
		if (f.UserID == "" || b.UserID == f.UserID) && (f.Status == "" || b.Status == f.Status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, f.Limit), nil
}

// ---- indicações

func (t *tx) GetCommission(_ context.Context, referrerID, referredUserID string) (*domain.ReferralCommissionItem, error) {
	for _, it := range t.st.commissions {
		if it.ReferrerID == referrerID && it.ReferredUserID == referredUserID && it.Status != domain.CommissionWithdrawn {
			return &it, nil
		}
	}
	return nil, notFound("commission", referrerID+"/"+referredUserID)
}

func (t *tx) InsertCommission(_ context.Context, it *domain.ReferralCommissionItem) error {
	t.st.commissions[it.ID] = *it
	return nil
}

func (t *tx) UpdateCommission(_ context.Context, it *domain.ReferralCommissionItem) error {
	if _, ok := t.st.commissions[it.ID]; !ok {
		return notFound("commission", it.ID)
	}
	t.st.commissions[it.ID] = *it
	return nil
}

func (t *tx) ListCommissions(_ context.Context, referrerID string, status domain.CommissionStatus) ([]domain.ReferralCommissionItem, error) {
	var out []domain.ReferralCommissionItem
	for _, it := range t.st.commissions {
		if (referrerID == "" || it.ReferrerID == referrerID) && (status == "" || it.Status == status) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepositDate.Equal(out[j].DepositDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepositDate.Before(out[j].DepositDate)
	})
	return out, nil
}

func (t *tx) InsertReferralPayout(_ context.Context, p *domain.ReferralPayout) error {
	t.st.payouts[p.ID] = *p
	return nil
}

// ---- agenda

func (t *tx) GetSchedule(_ context.Context) (*domain.ScheduleConfig, error) {
	if t.st.schedule == nil {
		return nil, notFound("schedule", "singleton")
	}
	sc := *t.st.schedule
	return &sc, nil
}

func (t *tx) SaveSchedule(_ context.Context, s *domain.ScheduleConfig) error {
	sc := *s
	t.st.schedule = &sc
	return nil
}

func (t *tx) ClaimSettlementRun(_ context.Context, run *domain.SettlementRun, staleBefore time.Time) (bool, error) {
	key := run.ScheduledAt.UnixNano()
	if prev, ok := t.st.runs[key]; ok {
		stale := prev.Status == domain.RunRunning && prev.StartedAt.Before(staleBefore)
		if prev.Status != domain.RunFailed && !stale {
			return false, nil
		}
	}
	r := *run
	r.Status = domain.RunRunning
	t.st.runs[key] = r
	return true, nil
}

func (t *tx) FinishSettlementRun(_ context.Context, run *domain.SettlementRun) error {
	key := run.ScheduledAt.UnixNano()
	if _, ok := t.st.runs[key]; !ok {
		return notFound("settlement run", run.ScheduledAt.String())
	}
	t.st.runs[key] = *run
	return nil
}

func (t *tx) GetSettlementRun(_ context.Context, scheduledAt time.Time) (*domain.SettlementRun, error) {
	r, ok := t.st.runs[scheduledAt.UnixNano()]
	if !ok {
		return nil, notFound("settlement run", scheduledAt.String())
	}
	return &r, nil
}
