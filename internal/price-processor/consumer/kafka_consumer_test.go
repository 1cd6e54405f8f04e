package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/internal/shared/pubsub"
	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

type fakeCache struct {
	set []pricefeed.Quote
	err error
}

func (f *fakeCache) SetCurrent(_ context.Context, q pricefeed.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.set = append(f.set, q)
	return nil
}

type fakeRepo struct {
	current   []pricefeed.Quote
	history   []pricefeed.Quote
	upsertErr error
}

func (f *fakeRepo) UpsertCurrent(_ context.Context, q pricefeed.Quote) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.current = append(f.current, q)
	return nil
}

func (f *fakeRepo) InsertHistory(_ context.Context, q pricefeed.Quote) error {
	f.history = append(f.history, q)
	return nil
}

type fakeBroadcaster struct{ msgs []pubsub.Message }

func (f *fakeBroadcaster) Broadcast(_ context.Context, m pubsub.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}

type fakeDLQ struct{ msgs []kafka.Message }

func (f *fakeDLQ) WriteMessages(_ context.Context, m ...kafka.Message) error {
	f.msgs = append(f.msgs, m...)
	return nil
}

type sliceReader struct {
	msgs []kafka.Message
	i    int
}

func (s *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if s.i >= len(s.msgs) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := s.msgs[s.i]
	s.i++
	return m, nil
}

func message(t *testing.T, u events.PriceUpdate) kafka.Message {
	t.Helper()
	b, err := json.Marshal(u)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(u.Symbol), Value: b, Time: time.Now()}
}

func newProcessor() (*Processor, *fakeCache, *fakeRepo, *fakeBroadcaster, *fakeDLQ, map[string]int) {
	c, r, b, d := &fakeCache{}, &fakeRepo{}, &fakeBroadcaster{}, &fakeDLQ{}
	errs := map[string]int{}
	p := &Processor{
		Log: zap.NewNop(), Cache: c, Repo: r, Broadcaster: b, DLQ: d,
		OnError: func(stage string) { errs[stage]++ },
	}
	return p, c, r, b, d, errs
}

func TestHandleValidUpdate(t *testing.T) {
	p, c, r, b, d, errs := newProcessor()
	var consumed, persisted int
	p.OnConsumed = func() { consumed++ }
	p.OnPersist = func() { persisted++ }

	p.Handle(context.Background(), message(t, events.PriceUpdate{
		Symbol: "btc", Name: "Bitcoin", Price: "70123.5", Change24h: "1.2", UpdatedAt: time.Now(), Source: "provider",
	}))

	require.Len(t, c.set, 1)
	assert.Equal(t, "BTC", c.set[0].Symbol)
	assert.Len(t, r.current, 1)
	assert.Len(t, r.history, 1)
	require.Len(t, b.msgs, 1)
	assert.Equal(t, "price:BTC", b.msgs[0].Topic)
	assert.Empty(t, d.msgs)
	assert.Empty(t, errs)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, persisted)
}

func TestHandleInvalidGoesToDLQ(t *testing.T) {
	p, c, r, _, d, errs := newProcessor()

	p.Handle(context.Background(), kafka.Message{Key: []byte("x"), Value: []byte("{not json")})
	p.Handle(context.Background(), message(t, events.PriceUpdate{Symbol: "ETH", Price: "-3"}))

	assert.Empty(t, c.set)
	assert.Empty(t, r.current)
	require.Len(t, d.msgs, 2)
	assert.Equal(t, "error", d.msgs[0].Headers[0].Key)
	assert.Equal(t, 1, errs["decode"])
	assert.Equal(t, 1, errs["validate"])
}

func TestHandleCacheFailureStillPersists(t *testing.T) {
	p, c, r, b, _, errs := newProcessor()
	c.err = errors.New("redis down")

	p.Handle(context.Background(), message(t, events.PriceUpdate{Symbol: "SOL", Price: "150", UpdatedAt: time.Now()}))
	assert.Len(t, r.current, 1)
	assert.Len(t, b.msgs, 1)
	assert.Equal(t, 1, errs["cache"])
}

func TestHandleDBFailureSkipsBroadcast(t *testing.T) {
	p, _, r, b, _, errs := newProcessor()
	r.upsertErr = errors.New("db down")

	p.Handle(context.Background(), message(t, events.PriceUpdate{Symbol: "SOL", Price: "150", UpdatedAt: time.Now()}))
	assert.Empty(t, r.history)
	assert.Empty(t, b.msgs)
	assert.Equal(t, 1, errs["db_upsert"])
}

func TestRunStopsOnCancel(t *testing.T) {
	p, _, r, _, _, _ := newProcessor()
	p.Reader = &sliceReader{msgs: []kafka.Message{
		message(t, events.PriceUpdate{Symbol: "BTC", Price: "1", UpdatedAt: time.Now()}),
		message(t, events.PriceUpdate{Symbol: "ETH", Price: "2", UpdatedAt: time.Now()}),
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, r.current, 2)
}
