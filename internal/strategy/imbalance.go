// Package strategy runs the paper volume-imbalance trader: it samples
// the book's volume imbalance, enters when the signal crosses its
// rolling 80th percentile and exits below the 20th. It only observes
// the mirror; no orders ever leave the process.
package strategy

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookmirror/internal/config"
	"bookmirror/internal/usecase/marketdata"
)

var one = decimal.NewFromInt(1)

type sample struct {
	at        time.Time
	imbalance decimal.Decimal
}

// Report is the externally visible state of the paper portfolio.
type Report struct {
	Cash            decimal.Decimal `json:"cash"`
	Position        decimal.Decimal `json:"position"`
	PortfolioValue  decimal.Decimal `json:"portfolioValue"`
	BuyAndHoldValue decimal.Decimal `json:"buyAndHoldValue"`
	Trades          int             `json:"trades"`
	LastAction      string          `json:"lastAction,omitempty"`
}

type Strategy struct {
	usecase  marketdata.MarketDataUseCase
	interval time.Duration
	window   time.Duration
	cooldown time.Duration
	feeRate  decimal.Decimal
	logger   zerolog.Logger

	mu          sync.Mutex
	samples     []sample
	cash        decimal.Decimal
	position    decimal.Decimal
	baselineQty decimal.Decimal // buy-and-hold quantity fixed at first observed price
	lastPrice   decimal.Decimal
	lastTrade   time.Time
	trades      int
	lastAction  string
	initial     decimal.Decimal
}

type Opts struct {
	UseCase marketdata.MarketDataUseCase
	Config  config.StrategyConfig
	Logger  zerolog.Logger
}

func New(opts Opts) *Strategy {
	return &Strategy{
		usecase:  opts.UseCase,
		interval: opts.Config.Interval,
		window:   opts.Config.Window,
		cooldown: opts.Config.Cooldown,
		feeRate:  opts.Config.FeeRate,
		cash:     opts.Config.InitialBalance,
		initial:  opts.Config.InitialBalance,
		logger:   opts.Logger.With().Str("component", "strategy").Logger(),
	}
}

// Run samples on a timer until ctx is cancelled.
func (s *Strategy) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.step(ctx, time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Strategy) step(ctx context.Context, now time.Time) {
	tob := s.usecase.GetTopOfBook(ctx)
	if tob.BestBid == nil {
		return
	}
	price := tob.BestBid.Price
	imbalance := s.usecase.GetImbalance(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPrice = price
	if s.baselineQty.Sign() == 0 {
		s.baselineQty = s.initial.Div(price)
	}

	s.samples = append(s.samples, sample{at: now, imbalance: imbalance})
	cutoff := now.Add(-s.window)
	for len(s.samples) > 0 && s.samples[0].at.Before(cutoff) {
		s.samples = s.samples[1:]
	}

	values := make([]decimal.Decimal, len(s.samples))
	for i, smp := range s.samples {
		values[i] = smp.imbalance
	}
	upper := quantile(values, 0.80)
	lower := quantile(values, 0.20)

	if !s.lastTrade.IsZero() && now.Sub(s.lastTrade) < s.cooldown {
		return
	}

	switch {
	case imbalance.GreaterThan(upper) && s.position.Sign() == 0 && s.cash.Sign() > 0:
		s.position = s.cash.Mul(one.Sub(s.feeRate)).Div(price)
		s.cash = decimal.Zero
		s.lastTrade = now
		s.trades++
		s.lastAction = "buy"
		s.logger.Info().Str("price", price.String()).Str("imbalance", imbalance.String()).Msg("paper buy")
	case imbalance.LessThan(lower) && s.position.Sign() > 0:
		s.cash = s.position.Mul(price).Mul(one.Sub(s.feeRate))
		s.position = decimal.Zero
		s.lastTrade = now
		s.trades++
		s.lastAction = "sell"
		s.logger.Info().Str("price", price.String()).Str("imbalance", imbalance.String()).Msg("paper sell")
	}
}

// Report returns the portfolio state at the last sampled price.
func (s *Strategy) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.cash
	if s.position.Sign() > 0 && s.lastPrice.Sign() > 0 {
		value = value.Add(s.position.Mul(s.lastPrice))
	}
	buyAndHold := s.initial
	if s.baselineQty.Sign() > 0 && s.lastPrice.Sign() > 0 {
		buyAndHold = s.baselineQty.Mul(s.lastPrice)
	}
	return Report{
		Cash:            s.cash,
		Position:        s.position,
		PortfolioValue:  value,
		BuyAndHoldValue: buyAndHold,
		Trades:          s.trades,
		LastAction:      s.lastAction,
	}
}

// quantile is the linear-interpolation quantile over an unsorted copy
// of values; q must be in [0, 1]. Returns zero for an empty input.
func quantile(values []decimal.Decimal, q float64) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := decimal.NewFromFloat(pos - float64(lo))
	return sorted[lo].Add(sorted[hi].Sub(sorted[lo]).Mul(frac))
}
