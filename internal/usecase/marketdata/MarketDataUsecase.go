package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookmirror/internal/book"
	"bookmirror/internal/metrics"
	"bookmirror/internal/projection"
	"bookmirror/pkg/model"
)

// MarketDataUseCase is the query boundary the HTTP layer (and the
// strategy) reads through. All answers come from the in-memory mirror;
// nothing here blocks on network I/O.
type MarketDataUseCase interface {
	GetSnapshot(ctx context.Context, tickSize, depthPercent decimal.Decimal) (*model.Snapshot, error)

	GetVolume(ctx context.Context, side model.Side) decimal.Decimal

	GetSpread(ctx context.Context) (decimal.Decimal, error)

	// GetImbalance returns (bidVolume - askVolume) / totalVolume, or
	// zero while the book is empty.
	GetImbalance(ctx context.Context) decimal.Decimal

	GetTopOfBook(ctx context.Context) *model.TopOfBook
}

type marketDataUseCaseImpl struct {
	mirror *book.Mirror
	logger zerolog.Logger
}

type MarketDataUseCaseOpts struct {
	Mirror *book.Mirror
	Logger zerolog.Logger
}

func NewMarketDataUseCase(opts MarketDataUseCaseOpts) MarketDataUseCase {
	return &marketDataUseCaseImpl{
		mirror: opts.Mirror,
		logger: opts.Logger.With().Str("component", "marketdata").Logger(),
	}
}

func (md *marketDataUseCaseImpl) GetSnapshot(ctx context.Context, tickSize, depthPercent decimal.Decimal) (*model.Snapshot, error) {
	snapshot, err := projection.Project(md.mirror, tickSize, depthPercent, time.Now())
	if err != nil {
		return nil, err
	}
	metrics.SnapshotRequestsTotal.Inc()
	return snapshot, nil
}

func (md *marketDataUseCaseImpl) GetVolume(ctx context.Context, side model.Side) decimal.Decimal {
	return md.mirror.Volume(side)
}

func (md *marketDataUseCaseImpl) GetSpread(ctx context.Context) (decimal.Decimal, error) {
	return md.mirror.Spread()
}

func (md *marketDataUseCaseImpl) GetImbalance(ctx context.Context) decimal.Decimal {
	bidVolume := md.mirror.Volume(model.BID)
	askVolume := md.mirror.Volume(model.ASK)
	total := bidVolume.Add(askVolume)
	if total.Sign() == 0 {
		return decimal.Zero
	}
	return bidVolume.Sub(askVolume).Div(total)
}

func (md *marketDataUseCaseImpl) GetTopOfBook(ctx context.Context) *model.TopOfBook {
	return md.mirror.TopOfBook()
}
