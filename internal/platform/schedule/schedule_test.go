package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/bets"
	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/events"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/store/memory"
	"github.com/radieske/crypto-bet-platform/internal/shared/pubsub"
	cevents "github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

var t0 = time.Date(2025, 8, 20, 17, 59, 0, 0, time.UTC)

type mapCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	dels int
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
	return nil
}

func (c *mapCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	c.dels++
	return nil
}

type countingSettler struct {
	mu    sync.Mutex
	calls []domain.Direction
	err   error
}

func (s *countingSettler) SettleAll(_ context.Context, d domain.Direction) (bets.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	if s.err != nil {
		return bets.SettlementResult{TotalPaid: decimal.Zero}, s.err
	}
	return bets.SettlementResult{Direction: d, Processed: 2, Winners: 1, Losers: 1, TotalPaid: decimal.RequireFromString("101.7")}, nil
}

type recordingBroadcaster struct {
	msgs []pubsub.Message
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, m pubsub.Message) error {
	b.msgs = append(b.msgs, m)
	return nil
}

type fixture struct {
	st      *memory.Store
	svc     *Service
	ctrl    *Controller
	settler *countingSettler
	rec     *events.Recorder
	now     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: memory.New(), settler: &countingSettler{}, rec: &events.Recorder{}, now: t0}
	clock := func() time.Time { return f.now }
	f.svc = NewService(f.st, newMapCache(), time.UTC, zap.NewNop()).WithClock(clock)
	f.ctrl = &Controller{
		Schedule: f.svc,
		Store:    f.st,
		Settler:  f.settler,
		Pub:      f.rec,
		Log:      zap.NewNop(),
		Now:      clock,
	}
	return f
}

func TestSetValidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, "2025-13-01", "18:00", domain.DirectionFavor)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	_, err = f.svc.Set(ctx, "2025-08-20", "25:00", domain.DirectionFavor)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	_, err = f.svc.Set(ctx, "2025-08-20", "18:00", "up")
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)

	_, err = f.svc.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReadsThroughCacheAndSetInvalidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cache := f.svc.cache.(*mapCache)

	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)

	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionFavor, cfg.WinningDirection)
	_, cached, _ := cache.Get(ctx, cacheKey)
	assert.True(t, cached)

	_, err = f.svc.Set(ctx, "2025-08-21", "09:30", domain.DirectionAgainst)
	require.NoError(t, err)
	cfg, err = f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
	assert.Equal(t, domain.DirectionAgainst, cfg.WinningDirection)
}

func TestCountdown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, ok, err := f.svc.Countdown(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	cd, ok, err := f.svc.Countdown(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(60), cd.RemainingSeconds)
	assert.False(t, cd.Due)

	f.now = t0.Add(5 * time.Minute)
	cd, _, err = f.svc.Countdown(ctx)
	require.NoError(t, err)
	assert.Zero(t, cd.RemainingSeconds)
	assert.True(t, cd.Due)
}

func TestTickSettlesOnceAndAdvances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)

	res, err := f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickIdle, res)
	assert.Empty(t, f.settler.calls)

	f.now = t0.Add(90 * time.Second)
	res, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSettled, res)
	assert.Equal(t, []domain.Direction{domain.DirectionFavor}, f.settler.calls)

	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
	assert.Equal(t, "18:00", cfg.ScheduledTime)

	res, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickIdle, res)
	assert.Len(t, f.settler.calls, 1)

	require.Equal(t, []string{cevents.SettlementRun}, f.rec.Types())
	assert.Equal(t, "101.7", f.rec.Events[0].Amount)
}

func TestTickSkipsClaimedOccurrence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)

	// outra instância reivindicou e ainda está rodando
	at := time.Date(2025, 8, 20, 18, 0, 0, 0, time.UTC)
	require.NoError(t, f.st.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.ClaimSettlementRun(ctx, &domain.SettlementRun{ScheduledAt: at, Direction: domain.DirectionFavor, StartedAt: at}, at)
		return err
	}))

	f.now = at.Add(time.Second)
	res, err := f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSkipped, res)
	assert.Empty(t, f.settler.calls)

	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-20", cfg.ScheduledDate, "running occurrence is left to its owner")

	// dona concluiu mas caiu antes de avançar
	require.NoError(t, f.st.WithinTx(ctx, func(tx store.Tx) error {
		return tx.FinishSettlementRun(ctx, &domain.SettlementRun{ScheduledAt: at, Status: domain.RunCompleted})
	}))
	res, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSkipped, res)
	cfg, err = f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
}

func TestTickReclaimsStaleRunningClaim(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	f.ctrl.RunLease = 10 * time.Minute

	// dona reivindicou e caiu sem registrar o fim
	at := time.Date(2025, 8, 20, 18, 0, 0, 0, time.UTC)
	require.NoError(t, f.st.WithinTx(ctx, func(tx store.Tx) error {
		_, err := tx.ClaimSettlementRun(ctx, &domain.SettlementRun{ScheduledAt: at, Direction: domain.DirectionFavor, StartedAt: at}, at)
		return err
	}))

	f.now = at.Add(time.Minute)
	res, err := f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSkipped, res)
	assert.Empty(t, f.settler.calls)

	f.now = at.Add(time.Hour)
	res, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSettled, res)
	assert.Equal(t, []domain.Direction{domain.DirectionFavor}, f.settler.calls)

	var run *domain.SettlementRun
	require.NoError(t, f.st.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		run, err = tx.GetSettlementRun(ctx, at)
		return err
	}))
	assert.Equal(t, domain.RunCompleted, run.Status)

	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
}

func TestTickFailureIsRetried(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionAgainst)
	require.NoError(t, err)
	f.now = t0.Add(2 * time.Minute)

	f.settler.err = errors.New("db timeout")
	res, err := f.ctrl.Tick(ctx)
	assert.Error(t, err)
	assert.Equal(t, TickFailed, res)
	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-20", cfg.ScheduledDate)

	f.settler.err = nil
	res, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickSettled, res)
	assert.Len(t, f.settler.calls, 2)
}

func TestTickEmptyRunStillAdvances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	f.settler.err = domain.ErrNothingToProcess
	f.now = t0.Add(2 * time.Minute)

	res, err := f.ctrl.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickEmpty, res)
	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
}

func TestAdvanceSkipsPastDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-17", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	f.now = t0.Add(2 * time.Minute) // 2025-08-20 18:01

	_, err = f.ctrl.Tick(ctx)
	require.NoError(t, err)
	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-21", cfg.ScheduledDate)
}

func TestAdvanceRespectsAdminChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ran, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	_, err = f.svc.Set(ctx, "2025-09-01", "12:00", domain.DirectionAgainst)
	require.NoError(t, err)

	_, advanced, err := f.svc.AdvanceAfter(ctx, *ran)
	require.NoError(t, err)
	assert.False(t, advanced)
	cfg, err := f.svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", cfg.ScheduledDate)
}

func TestConcurrentControllersSettleOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	f.now = t0.Add(2 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		c := *f.ctrl
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Tick(ctx)
		}()
	}
	wg.Wait()
	assert.Len(t, f.settler.calls, 1)
}

func TestBroadcastCountdown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := &recordingBroadcaster{}
	f.ctrl.Broadcaster = b

	require.NoError(t, f.ctrl.BroadcastCountdown(ctx))
	assert.Empty(t, b.msgs, "nothing scheduled")

	_, err := f.svc.Set(ctx, "2025-08-20", "18:00", domain.DirectionFavor)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.BroadcastCountdown(ctx))
	require.Len(t, b.msgs, 1)
	assert.Equal(t, pubsub.TopicCountdown, b.msgs[0].Topic)
	cd, ok := b.msgs[0].Payload.(Countdown)
	require.True(t, ok)
	assert.Equal(t, int64(60), cd.RemainingSeconds)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := setup(t)
	f.ctrl.PollInterval = 10 * time.Millisecond
	f.ctrl.CountdownInterval = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, f.ctrl.Run(ctx))
}
