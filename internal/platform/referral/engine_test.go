package referral

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
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/store/memory"
	"github.com/radieske/crypto-bet-platform/internal/shared/config"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	st  *memory.Store
	eng *Engine
	rec *events.Recorder
	now time.Time
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// setup cria "ref" (indicador) e "kid" (indicado por ref)
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{st: memory.New(), rec: &events.Recorder{}, now: t0}
	f.eng = NewEngine(f.st, config.DefaultRules(), zap.NewNop(), f.rec, nil).
		WithClock(func() time.Time { return f.now })

	acc := accounts.NewService(f.st, zap.NewNop())
	ref, err := acc.Register(ctx, "ref", "")
	require.NoError(t, err)
	_, err = acc.Register(ctx, "kid", ref.ReferralCode)
	require.NoError(t, err)
	return f
}

func (f *fixture) items(t *testing.T, status domain.CommissionStatus) []domain.ReferralCommissionItem {
	t.Helper()
	var out []domain.ReferralCommissionItem
	require.NoError(t, f.st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListCommissions(context.Background(), "ref", status)
		return err
	}))
	return out
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	var bal decimal.Decimal
	require.NoError(t, f.st.WithinTx(context.Background(), func(tx store.Tx) error {
		a, err := tx.GetAccount(context.Background(), id)
		if err != nil {
			return err
		}
		bal = a.Balance
		return nil
	}))
	return bal
}

func (f *fixture) setVIP(t *testing.T, id string, level int) {
	t.Helper()
	require.NoError(t, f.st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.RaiseVIPLevel(context.Background(), id, level)
		return err
	}))
}

func TestCommissionIsExactlyTwoPercent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.Empty(t, f.items(t, ""), "registration alone must not create commission")

	it, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("123.45"))
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "2.469", it.Amount.String())
	assert.Equal(t, domain.CommissionPending, it.Status)
	assert.Equal(t, "ref", it.ReferrerID)

	f.now = t0.Add(time.Hour)
	it, err = f.eng.OnApprovedDeposit(ctx, "kid", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "4.469", it.Amount.String())
	assert.Equal(t, f.now, it.DepositDate)
	assert.Len(t, f.items(t, ""), 1)
}

func TestNoCommissionWithoutReferrer(t *testing.T) {
	f := setup(t)
	it, err := f.eng.OnApprovedDeposit(context.Background(), "ref", dec("500"))
	require.NoError(t, err)
	assert.Nil(t, it)
	assert.Empty(t, f.items(t, ""))
}

func TestMaturationTiming(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("1000"))
	require.NoError(t, err)

	f.now = t0.Add(13*24*time.Hour + 23*time.Hour)
	n, err := f.eng.MaturePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.items(t, domain.CommissionPending), 1)

	f.now = t0.Add(14 * 24 * time.Hour)
	n, err = f.eng.MaturePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	avail := f.items(t, domain.CommissionAvailable)
	require.Len(t, avail, 1)
	require.NotNil(t, avail[0].AvailableDate)
	assert.Equal(t, f.now, *avail[0].AvailableDate)
}

func TestNewDepositResetsMaturation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("1000"))
	require.NoError(t, err)

	f.now = t0.Add(15 * 24 * time.Hour)
	_, err = f.eng.MaturePending(ctx)
	require.NoError(t, err)
	require.Len(t, f.items(t, domain.CommissionAvailable), 1)

	_, err = f.eng.OnApprovedDeposit(ctx, "kid", dec("1000"))
	require.NoError(t, err)
	pending := f.items(t, domain.CommissionPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "40", pending[0].Amount.String())
	assert.Nil(t, pending[0].AvailableDate)
}

func TestWithdrawAvailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.setVIP(t, "ref", 3) // taxa de indicação 3.5%

	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("3000")) // comissão 60
	require.NoError(t, err)

	_, err = f.eng.WithdrawAvailable(ctx, "ref", "0xabc")
	assert.ErrorIs(t, err, domain.ErrNoAvailableCommission, "still maturing")

	f.now = t0.Add(14 * 24 * time.Hour)
	_, err = f.eng.WithdrawAvailable(ctx, "ref", " ")
	assert.ErrorIs(t, err, domain.ErrMissingField)

	p, err := f.eng.WithdrawAvailable(ctx, "ref", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "60", p.Gross.String())
	assert.Equal(t, "3.5", p.FeePercent.String())
	assert.Equal(t, "2.1", p.Fee.String())
	assert.Equal(t, "57.9", p.Net.String())
	assert.Equal(t, PayoutRequested, p.Status)
	assert.Len(t, p.ItemIDs, 1)

	assert.Empty(t, f.items(t, domain.CommissionAvailable))
	assert.Len(t, f.items(t, domain.CommissionWithdrawn), 1)
	assert.True(t, f.balance(t, "ref").IsZero(), "external payout never touches balance")
	assert.Equal(t, []string{cevents.ReferralPayoutRequested}, f.rec.Types())

	_, err = f.eng.WithdrawAvailable(ctx, "ref", "0xabc")
	assert.ErrorIs(t, err, domain.ErrNoAvailableCommission)
}

func TestWithdrawAvailableBelowMinimum(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("2000")) // comissão 40
	require.NoError(t, err)
	f.now = t0.Add(14 * 24 * time.Hour)

	_, err = f.eng.WithdrawAvailable(ctx, "ref", "0xabc")
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)
	avail := f.items(t, domain.CommissionAvailable)
	require.Len(t, avail, 1, "rejected withdrawal must not consume items")
	require.NotNil(t, avail[0].AvailableDate)
	assert.True(t, avail[0].AvailableDate.Equal(f.now))
	assert.Empty(t, f.items(t, domain.CommissionPending))
}

func TestTransferAvailableToBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("500")) // comissão 10, abaixo do mínimo de saque
	require.NoError(t, err)

	_, err = f.eng.TransferAvailableToBalance(ctx, "ref")
	assert.ErrorIs(t, err, domain.ErrNoAvailableCommission)

	f.now = t0.Add(14 * 24 * time.Hour)
	sum, err := f.eng.TransferAvailableToBalance(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, "10", sum.String())
	assert.Equal(t, "10", f.balance(t, "ref").String())
	assert.Len(t, f.items(t, domain.CommissionWithdrawn), 1)

	// depósito seguinte abre um item novo, o sacado não volta
	_, err = f.eng.OnApprovedDeposit(ctx, "kid", dec("100"))
	require.NoError(t, err)
	pending := f.items(t, domain.CommissionPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0].Amount.String())
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.eng.OnApprovedDeposit(ctx, "kid", dec("500"))
	require.NoError(t, err)
	f.now = t0.Add(14 * 24 * time.Hour)

	s, err := f.eng.Summary(ctx, "ref")
	require.NoError(t, err)
	assert.True(t, s.Pending.IsZero())
	assert.Equal(t, "10", s.Available.String())
	assert.True(t, s.Withdrawn.IsZero())
	assert.Len(t, s.Items, 1)
	assert.NotEmpty(t, s.ReferralCode)
}
