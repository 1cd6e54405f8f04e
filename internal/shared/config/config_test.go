package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsPerService(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-scheduler")

	cfg := Load()

	assert.Equal(t, "settlement-scheduler", cfg.ServiceName)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Empty(t, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.SettlementPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.SettlementRunLease)
	assert.True(t, cfg.Rules.ReferralRate.Equal(DefaultRules().ReferralRate))
	assert.Equal(t, 14*24*time.Hour, cfg.Rules.ReferralMaturation)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "platform-api")
	t.Setenv("HTTP_PORT_API", "9000")
	t.Setenv("MIN_WITHDRAWAL", "12.5")
	t.Setenv("SETTLEMENT_CUTOFF", "10m")
	t.Setenv("PRICE_SYMBOLS", " btc, eth ,,sol")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com")

	cfg := Load()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "12.5", cfg.Rules.MinWithdrawal.String())
	assert.Equal(t, 10*time.Minute, cfg.Rules.SettlementCutoff)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, cfg.PriceSymbols)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MIN_BET", "abc")
	t.Setenv("PRICE_POLL_INTERVAL", "soon")
	t.Setenv("SCHEDULE_TZ", "Mars/Olympus")

	cfg := Load()

	assert.True(t, cfg.Rules.MinBet.Equal(DefaultRules().MinBet))
	assert.Equal(t, 30*time.Second, cfg.PricePollInterval)
	require.Equal(t, time.UTC, cfg.Location())
}
