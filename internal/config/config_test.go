package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", c.Symbol)
	assert.Equal(t, "wss://fstream.binance.com/ws/btcusdt@depth@100ms", c.FeedURL)
	assert.Equal(t, "https://api.binance.com/api/v3/depth?symbol=BTCUSDT&limit=5", c.ReferenceURL)
	assert.Equal(t, 10*time.Second, c.ReconcileInterval)
	assert.Equal(t, ":5000", c.HTTPAddr)
	assert.True(t, c.TickSize.Equal(decimal.NewFromInt(10)))
	assert.True(t, c.DepthPercent.Equal(decimal.NewFromInt(1000)))
	assert.False(t, c.Strategy.Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIRROR_SYMBOL", "ETHUSDT")
	t.Setenv("MIRROR_RECONCILE_INTERVAL", "30s")
	t.Setenv("MIRROR_TICK_SIZE", "0.5")
	t.Setenv("MIRROR_LOG_LEVEL", "debug")
	t.Setenv("MIRROR_STRATEGY_ENABLED", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", c.Symbol)
	assert.Equal(t, "wss://fstream.binance.com/ws/ethusdt@depth@100ms", c.FeedURL, "feed URL derives from the symbol")
	assert.Equal(t, 30*time.Second, c.ReconcileInterval)
	assert.True(t, c.TickSize.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.Strategy.Enabled)
}

func TestBareNumberDurationsAreSeconds(t *testing.T) {
	t.Setenv("MIRROR_RECONCILE_INTERVAL", "15")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, c.ReconcileInterval)
}

func TestExplicitURLsWin(t *testing.T) {
	t.Setenv("MIRROR_FEED_URL", "ws://localhost:9001/stream")
	t.Setenv("MIRROR_REFERENCE_URL", "http://localhost:9002/depth")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9001/stream", c.FeedURL)
	assert.Equal(t, "http://localhost:9002/depth", c.ReferenceURL)
}

func TestInvalidValuesAreFatal(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":   {"MIRROR_RECONCILE_INTERVAL", "soon"},
		"bad tick":       {"MIRROR_TICK_SIZE", "ten"},
		"zero tick":      {"MIRROR_TICK_SIZE", "0"},
		"negative depth": {"MIRROR_DEPTH_PERCENT", "-5"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
