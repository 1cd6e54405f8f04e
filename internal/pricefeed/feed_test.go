package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
)

type fakeReader struct {
	quotes map[string]Quote
	err    error
}

func (f fakeReader) GetCurrent(_ context.Context, symbol string) (Quote, bool, error) {
	if f.err != nil {
		return Quote{}, false, f.err
	}
	q, ok := f.quotes[symbol]
	return q, ok, nil
}

func TestFeedPrefersCache(t *testing.T) {
	f := NewFeed(fakeReader{quotes: map[string]Quote{
		"BTC": {Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewFromInt(70000), UpdatedAt: time.Now()},
	}}, zap.NewNop())

	q, err := f.Quote(context.Background(), "btc")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(70000)))
	assert.Equal(t, SourceCache, q.Source)
}

func TestFeedFallsBackOnCacheMissAndError(t *testing.T) {
	for name, r := range map[string]Reader{
		"miss":  fakeReader{quotes: map[string]Quote{}},
		"error": fakeReader{err: errors.New("redis down")},
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			f := NewFeed(r, zap.NewNop())
			q, err := f.Quote(context.Background(), "ETH")
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, q.Source)
			assert.True(t, q.Price.IsPositive())
		})
	}
}

func TestFeedUnknownAsset(t *testing.T) {
	f := NewFeed(nil, zap.NewNop())
	_, err := f.Quote(context.Background(), "SHIB")
	assert.ErrorIs(t, err, domain.ErrUnknownAsset)
}

func TestQuotesCoversCatalog(t *testing.T) {
	f := NewFeed(nil, zap.NewNop())
	qs := f.Quotes(context.Background())
	require.Len(t, qs, len(Symbols()))
	assert.Equal(t, "ADA", qs[0].Symbol)
}

type fakeSnapshots struct {
	q   Quote
	ok  bool
	err error
}

func (f fakeSnapshots) Snapshot(context.Context, string) (Quote, bool, error) {
	return f.q, f.ok, f.err
}

func TestFeedUsesSnapshotBeforeFallback(t *testing.T) {
	snap := Quote{Symbol: "SOL", Name: "Solana", Price: decimal.RequireFromString("151.2")}
	f := NewFeed(fakeReader{quotes: map[string]Quote{}}, zap.NewNop()).
		WithSnapshots(fakeSnapshots{q: snap, ok: true})

	q, err := f.Quote(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, SourceSnapshot, q.Source)
	assert.Equal(t, "151.2", q.Price.String())

	f = NewFeed(nil, zap.NewNop()).WithSnapshots(fakeSnapshots{err: errors.New("db down")})
	q, err = f.Quote(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, q.Source)
}
