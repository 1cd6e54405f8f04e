package simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/pricefeed"
)

func TestProviderReadsSimulator(t *testing.T) {
	m := NewMarket(42, zap.NewNop())
	for i := 0; i < 10; i++ {
		m.Step()
	}
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	quotes, err := pricefeed.NewHTTPProvider(srv.URL+"/api/v3").Fetch(context.Background(), []string{"BTC", "ETH", "NOPE"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, q := range quotes {
		assert.True(t, q.Price.IsPositive(), q.Symbol)
		assert.Equal(t, pricefeed.SourceProvider, q.Source)
		// 10 passos de no máximo 0,5% não passam de ~5%
		assert.True(t, q.Change24h.Abs().LessThan(decimal.NewFromInt(6)), q.Change24h.String())
	}
}

func TestStepStaysPositiveAndMoves(t *testing.T) {
	m := NewMarket(7, zap.NewNop())
	before := m.byID["bitcoin"].price
	m.Step()
	after := m.byID["bitcoin"].price
	assert.True(t, after.IsPositive())
	assert.False(t, before.Equal(after))

	m.ResetDay()
	assert.True(t, m.byID["bitcoin"].open.Equal(after))
}

func TestSimplePriceRequiresUSD(t *testing.T) {
	m := NewMarket(1, zap.NewNop())
	rec := httptest.NewRecorder()
	m.SimplePrice(rec, httptest.NewRequest(http.MethodGet, "/simple/price?ids=bitcoin&vs_currencies=eur", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
