package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/accounts"
	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/referral"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/store/memory"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

var t0 = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	st  *memory.Store
	svc *Service
	rec *events.Recorder
	now time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: memory.New(), rec: &events.Recorder{}, now: t0}
	clock := func() time.Time { return f.now }
	rules := config.DefaultRules()
	ref := referral.NewEngine(f.st, rules, zap.NewNop(), f.rec, nil).WithClock(clock)
	f.svc = NewService(f.st, rules, ref, zap.NewNop(), f.rec, nil).WithClock(clock)

	acc := accounts.NewService(f.st, zap.NewNop())
	_, err := acc.Register(context.Background(), "u1", "")
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	var a *domain.Account
	require.NoError(t, f.st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		a, err = tx.GetAccount(context.Background(), id)
		return err
	}))
	return a
}

// fund aprova um depósito do valor informado
func (f *fixture) fund(t *testing.T, id, amount string) {
	t.Helper()
	ctx := context.Background()
	d, err := f.svc.RequestDeposit(ctx, id, dec(amount), "usdt-trc20", "")
	require.NoError(t, err)
	_, err = f.svc.ApproveDeposit(ctx, d.ID)
	require.NoError(t, err)
}

func TestDepositLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	d, err := f.svc.RequestDeposit(ctx, "u1", dec("250"), "usdt-trc20", "https://bucket/proof.png")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, d.Status)
	assert.True(t, f.account(t, "u1").Balance.IsZero(), "pending deposit grants nothing")

	d, err = f.svc.ApproveDeposit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, d.Status)
	require.NotNil(t, d.ApprovedAt)

	acc := f.account(t, "u1")
	assert.Equal(t, "250", acc.Balance.String())
	assert.Equal(t, "250", acc.TotalDeposits.String())
	assert.Equal(t, 2, acc.VIPLevel)

	_, err = f.svc.ApproveDeposit(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	_, err = f.svc.RejectDeposit(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, "250", f.account(t, "u1").Balance.String(), "second approval is a no-op")

	assert.Equal(t, []string{cevents.DepositRequested, cevents.DepositApproved}, f.rec.Types())
}

func TestDepositValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.RequestDeposit(ctx, "u1", dec("19.99"), "usdt", "")
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	_, err = f.svc.RequestDeposit(ctx, "u1", dec("-5"), "usdt", "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.RequestDeposit(ctx, "u1", dec("50.123456789"), "usdt", "")
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)
	_, err = f.svc.RequestDeposit(ctx, "u1", dec("50"), "", "")
	assert.ErrorIs(t, err, domain.ErrMissingField)
	_, err = f.svc.RequestDeposit(ctx, "ghost", dec("50"), "usdt", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.ApproveDeposit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRejectDepositHasNoBalanceEffect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d, err := f.svc.RequestDeposit(ctx, "u1", dec("100"), "usdt", "")
	require.NoError(t, err)

	d, err = f.svc.RejectDeposit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, d.Status)
	assert.True(t, f.account(t, "u1").Balance.IsZero())

	_, err = f.svc.ApproveDeposit(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestApproveDepositCreditsReferrer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ref := f.account(t, "u1")
	_, err := accounts.NewService(f.st, zap.NewNop()).Register(ctx, "kid", ref.ReferralCode)
	require.NoError(t, err)

	f.fund(t, "kid", "300")

	var items []domain.ReferralCommissionItem
	require.NoError(t, f.st.WithinTx(ctx, func(tx store.Tx) error {
		items, err = tx.ListCommissions(ctx, "u1", "")
		return err
	}))
	require.Len(t, items, 1)
	assert.Equal(t, "6", items[0].Amount.String())
	assert.Equal(t, "kid", items[0].ReferredUserID)
	assert.True(t, f.account(t, "u1").Balance.IsZero(), "commission matures before reaching balance")
}

func TestWithdrawalAboveTierLimitRejectedBeforeMutation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "u1", "40") // nível 0: teto 15

	_, err := f.svc.RequestWithdrawal(ctx, "u1", dec("20"), "usdt", "TXaddr")
	assert.ErrorIs(t, err, domain.ErrExceedsTierLimit)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, "40", f.account(t, "u1").Balance.String())

	ws, err := f.svc.ListWithdrawals(ctx, store.RequestFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestWithdrawalHoldAndRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "u1", "60") // nível 1: teto 50, 2 saques, taxa 9%

	w, err := f.svc.RequestWithdrawal(ctx, "u1", dec("45"), "usdt", "TXaddr")
	require.NoError(t, err)
	assert.Equal(t, "15", f.account(t, "u1").Balance.String())
	assert.Equal(t, "4.05", w.Fee.String())
	assert.Equal(t, "40.95", w.NetAmount.String())

	w, err = f.svc.RejectWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, w.Status)
	assert.Equal(t, "60", f.account(t, "u1").Balance.String())

	_, err = f.svc.RejectWithdrawal(ctx, w.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, "60", f.account(t, "u1").Balance.String(), "refund happens once")

	w, err = f.svc.RequestWithdrawal(ctx, "u1", dec("30"), "usdt", "TXaddr")
	require.NoError(t, err)
	w, err = f.svc.ApproveWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, w.Status)
	assert.Equal(t, "30", f.account(t, "u1").Balance.String())

	acc := f.account(t, "u1")
	assert.Equal(t, 1, acc.VIPLevel, "withdrawals never lower the tier")
}

func TestWithdrawalCountPerMonth(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "u1", "100") // nível 1: 2 saques por mês

	_, err := f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "a")
	require.NoError(t, err)
	w2, err := f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "a")
	require.NoError(t, err)

	left, err := f.svc.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "a")
	assert.ErrorIs(t, err, domain.ErrWithdrawalCountExhausted)

	// rejeitado não conta
	_, err = f.svc.RejectWithdrawal(ctx, w2.ID)
	require.NoError(t, err)
	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "a")
	require.NoError(t, err)

	// mês seguinte zera a contagem
	f.now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "a")
	require.NoError(t, err)
}

func TestWithdrawalValidationOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "u1", "20") // nível 0, teto 15

	_, err := f.svc.RequestWithdrawal(ctx, "u1", dec("5"), "usdt", "a")
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("10"), "usdt", "")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("15"), "usdt", "a")
	require.NoError(t, err)
	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("15"), "usdt", "a")
	assert.ErrorIs(t, err, domain.ErrWithdrawalCountExhausted)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, "u1", "50") // nível 1, teto 50
	_, err := f.svc.RequestWithdrawal(ctx, "u1", dec("30"), "usdt", "a")
	require.NoError(t, err)

	_, err = f.svc.RequestWithdrawal(ctx, "u1", dec("30"), "usdt", "a")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "20", f.account(t, "u1").Balance.String())
}
