package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

type fakeProvider struct {
	quotes []pricefeed.Quote
	err    error
}

func (f fakeProvider) Fetch(context.Context, []string) ([]pricefeed.Quote, error) {
	return f.quotes, f.err
}

type capture struct {
	got []events.PriceUpdate
	err error
}

func (c *capture) Publish(_ context.Context, u ...events.PriceUpdate) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, u...)
	return nil
}

func TestPollOnceMixesProviderAndFallback(t *testing.T) {
	pub := &capture{}
	sources := map[string]int{}
	p := &Poller{
		Provider: fakeProvider{quotes: []pricefeed.Quote{
			{Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewFromInt(70000), Source: pricefeed.SourceProvider},
		}},
		Publisher:   pub,
		Symbols:     []string{"BTC", "ETH", "NOPE"},
		Log:         zap.NewNop(),
		OnPublished: func(src string, n int) { sources[src] += n },
		Now:         func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}

	require.NoError(t, p.PollOnce(context.Background()))
	require.Len(t, pub.got, 2)
	assert.Equal(t, "BTC", pub.got[0].Symbol)
	assert.Equal(t, "70000", pub.got[0].Price)
	assert.Equal(t, "ETH", pub.got[1].Symbol)
	assert.Equal(t, pricefeed.SourceFallback, pub.got[1].Source)
	assert.Equal(t, map[string]int{pricefeed.SourceProvider: 1, pricefeed.SourceFallback: 1}, sources)
}

func TestPollOnceProviderDown(t *testing.T) {
	pub := &capture{}
	var stages []string
	p := &Poller{
		Provider:  fakeProvider{err: errors.New("timeout")},
		Publisher: pub,
		Symbols:   []string{"SOL"},
		Log:       zap.NewNop(),
		OnError:   func(s string) { stages = append(stages, s) },
	}
	require.NoError(t, p.PollOnce(context.Background()))
	require.Len(t, pub.got, 1)
	assert.Equal(t, pricefeed.SourceFallback, pub.got[0].Source)
	assert.Equal(t, []string{"fetch"}, stages)
}

func TestPollOncePublishError(t *testing.T) {
	p := &Poller{
		Provider:  fakeProvider{},
		Publisher: &capture{err: errors.New("kafka down")},
		Symbols:   []string{"BTC"},
		Log:       zap.NewNop(),
	}
	assert.Error(t, p.PollOnce(context.Background()))
}
