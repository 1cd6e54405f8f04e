package pricefeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/crypto-bet-platform/pkg/contracts/events"
)

func TestFromEventValidates(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q, err := FromEvent(events.PriceUpdate{Symbol: "eth", Price: "3500.25", Change24h: "-1.5", UpdatedAt: now, Source: "coingecko"})
	require.NoError(t, err)
	assert.Equal(t, "ETH", q.Symbol)
	assert.Equal(t, "3500.25", q.Price.String())
	assert.Equal(t, "-1.5", q.Change24h.String())
	assert.True(t, q.Change7d.IsZero())

	for _, bad := range []events.PriceUpdate{
		{Symbol: "", Price: "1"},
		{Symbol: "BTC", Price: "abc"},
		{Symbol: "BTC", Price: "0"},
		{Symbol: "BTC", Price: "1", Change7d: "x"},
	} {
		_, err := FromEvent(bad)
		assert.Error(t, err, "%+v", bad)
	}
}

func TestToEventKeepsPrecision(t *testing.T) {
	q, ok := Static("XRP", time.Now())
	require.True(t, ok)
	e := ToEvent(q)
	assert.Equal(t, "0.523", e.Price)
	back, err := FromEvent(e)
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(back.Price))
}
