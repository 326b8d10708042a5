package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries every startup parameter. Values come from a .env file
// when present, overridden by real environment variables; anything left
// unset falls back to the defaults below. Validation failures are fatal
// at startup, before any task begins.
type Config struct {
	Symbol       string
	FeedURL      string
	ReferenceURL string

	ReconcileInterval time.Duration
	ReconcileTimeout  time.Duration
	ReconnectBackoff  time.Duration

	TickSize     decimal.Decimal
	DepthPercent decimal.Decimal

	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	Strategy StrategyConfig
}

// StrategyConfig tunes the paper volume-imbalance trader.
type StrategyConfig struct {
	Enabled        bool
	Interval       time.Duration
	Window         time.Duration
	Cooldown       time.Duration
	FeeRate        decimal.Decimal
	InitialBalance decimal.Decimal
}

func defaultConfig() Config {
	var c Config
	c.Symbol = "BTCUSDT"
	c.ReconcileInterval = 10 * time.Second
	c.ReconcileTimeout = 5 * time.Second
	c.ReconnectBackoff = 5 * time.Second
	c.TickSize = decimal.NewFromInt(10)
	c.DepthPercent = decimal.NewFromInt(1000)
	c.HTTPAddr = ":5000"
	c.LogLevel = "info"
	c.LogPretty = false
	c.Strategy.Enabled = false
	c.Strategy.Interval = time.Second
	c.Strategy.Window = 10 * time.Minute
	c.Strategy.Cooldown = time.Minute
	c.Strategy.FeeRate = decimal.NewFromFloat(0.0004)
	c.Strategy.InitialBalance = decimal.NewFromInt(10000)
	return c
}

// Load reads the environment and returns a validated Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := defaultConfig()
	if v := os.Getenv("MIRROR_SYMBOL"); v != "" {
		c.Symbol = v
	}
	if v := os.Getenv("MIRROR_FEED_URL"); v != "" {
		c.FeedURL = v
	}
	if v := os.Getenv("MIRROR_REFERENCE_URL"); v != "" {
		c.ReferenceURL = v
	}
	if v := os.Getenv("MIRROR_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("MIRROR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MIRROR_LOG_PRETTY"); v == "1" || v == "true" {
		c.LogPretty = true
	}
	if v := os.Getenv("MIRROR_STRATEGY_ENABLED"); v == "1" || v == "true" {
		c.Strategy.Enabled = true
	}

	var err error
	if c.ReconcileInterval, err = durationEnv("MIRROR_RECONCILE_INTERVAL", c.ReconcileInterval); err != nil {
		return Config{}, err
	}
	if c.ReconcileTimeout, err = durationEnv("MIRROR_RECONCILE_TIMEOUT", c.ReconcileTimeout); err != nil {
		return Config{}, err
	}
	if c.ReconnectBackoff, err = durationEnv("MIRROR_RECONNECT_BACKOFF", c.ReconnectBackoff); err != nil {
		return Config{}, err
	}
	if c.TickSize, err = decimalEnv("MIRROR_TICK_SIZE", c.TickSize); err != nil {
		return Config{}, err
	}
	if c.DepthPercent, err = decimalEnv("MIRROR_DEPTH_PERCENT", c.DepthPercent); err != nil {
		return Config{}, err
	}
	if c.Strategy.Interval, err = durationEnv("MIRROR_STRATEGY_INTERVAL", c.Strategy.Interval); err != nil {
		return Config{}, err
	}
	if c.Strategy.Window, err = durationEnv("MIRROR_STRATEGY_WINDOW", c.Strategy.Window); err != nil {
		return Config{}, err
	}
	if c.Strategy.Cooldown, err = durationEnv("MIRROR_STRATEGY_COOLDOWN", c.Strategy.Cooldown); err != nil {
		return Config{}, err
	}
	if c.Strategy.FeeRate, err = decimalEnv("MIRROR_STRATEGY_FEE_RATE", c.Strategy.FeeRate); err != nil {
		return Config{}, err
	}
	if c.Strategy.InitialBalance, err = decimalEnv("MIRROR_STRATEGY_INITIAL_BALANCE", c.Strategy.InitialBalance); err != nil {
		return Config{}, err
	}

	// URLs derive from the symbol unless set explicitly.
	if c.FeedURL == "" {
		c.FeedURL = fmt.Sprintf("wss://fstream.binance.com/ws/%s@depth@100ms", strings.ToLower(c.Symbol))
	}
	if c.ReferenceURL == "" {
		c.ReferenceURL = fmt.Sprintf("https://api.binance.com/api/v3/depth?symbol=%s&limit=5", c.Symbol)
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", c.ReconcileInterval)
	}
	if c.ReconcileTimeout <= 0 {
		return fmt.Errorf("reconcile timeout must be positive, got %s", c.ReconcileTimeout)
	}
	if c.ReconnectBackoff <= 0 {
		return fmt.Errorf("reconnect backoff must be positive, got %s", c.ReconnectBackoff)
	}
	if c.TickSize.Sign() <= 0 {
		return fmt.Errorf("tick size must be positive, got %s", c.TickSize)
	}
	if c.DepthPercent.Sign() <= 0 {
		return fmt.Errorf("depth percent must be positive, got %s", c.DepthPercent)
	}
	if c.Strategy.Enabled {
		if c.Strategy.Interval <= 0 || c.Strategy.Window <= 0 {
			return fmt.Errorf("strategy interval and window must be positive")
		}
		if c.Strategy.InitialBalance.Sign() <= 0 {
			return fmt.Errorf("strategy initial balance must be positive, got %s", c.Strategy.InitialBalance)
		}
	}
	return nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	// Bare numbers are taken as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func decimalEnv(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
