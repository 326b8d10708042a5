// Package projection turns a mirror state into the externally visible
// tick-aggregated snapshot: levels are bucketed to the tick size, summed
// per bucket, and trimmed to a basis-point band around the midpoint.
package projection

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bookmirror/internal/book"
	"bookmirror/pkg/model"
)

// ErrInsufficientData is returned when either side of the book is empty,
// leaving no midpoint to project around.
var ErrInsufficientData = errors.New("insufficient data for snapshot")

var (
	one        = decimal.NewFromInt(1)
	two        = decimal.NewFromInt(2)
	basisScale = decimal.NewFromInt(10000)
)

// Bucket rounds price to the nearest multiple of tickSize; ties round
// away from zero.
func Bucket(price, tickSize decimal.Decimal) decimal.Decimal {
	return price.Div(tickSize).Round(0).Mul(tickSize)
}

// aggregate sums sizes per bucketed price. Summation is associative, so
// the input order never changes the result.
func aggregate(levels []model.PriceLevel, tickSize decimal.Decimal) []model.PriceLevel {
	buckets := make(map[string]decimal.Decimal, len(levels))
	prices := make(map[string]decimal.Decimal, len(levels))
	for _, lvl := range levels {
		bucket := Bucket(lvl.Price, tickSize)
		key := bucket.String()
		buckets[key] = buckets[key].Add(lvl.Size)
		prices[key] = bucket
	}

	out := make([]model.PriceLevel, 0, len(buckets))
	for key, size := range buckets {
		out = append(out, model.PriceLevel{Price: prices[key], Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Project builds a snapshot from a consistent read of the mirror.
// depthPercent is expressed in basis points of the midpoint: ask buckets
// above midpoint*(1+depthPercent/10000) and bid buckets below
// midpoint*(1-depthPercent/10000) are dropped.
func Project(m *book.Mirror, tickSize, depthPercent decimal.Decimal, now time.Time) (*model.Snapshot, error) {
	if tickSize.Sign() <= 0 {
		return nil, errors.New("tick size must be positive")
	}

	bids := aggregate(m.Depth(model.BID), tickSize)
	asks := aggregate(m.Depth(model.ASK), tickSize)
	if len(bids) == 0 || len(asks) == 0 {
		return nil, ErrInsufficientData
	}

	maxBid := bids[len(bids)-1].Price
	minAsk := asks[0].Price
	midpoint := minAsk.Add(maxBid).Div(two)

	band := depthPercent.Div(basisScale)
	askLimit := midpoint.Mul(one.Add(band))
	bidLimit := midpoint.Mul(one.Sub(band))

	entries := make([]model.SnapshotEntry, 0, len(bids)+len(asks))
	for _, lvl := range asks {
		if lvl.Price.GreaterThan(askLimit) {
			continue
		}
		entries = append(entries, model.SnapshotEntry{Price: lvl.Price, Size: lvl.Size, Side: model.ASK})
	}
	for _, lvl := range bids {
		if lvl.Price.LessThan(bidLimit) {
			continue
		}
		entries = append(entries, model.SnapshotEntry{Price: lvl.Price, Size: lvl.Size, Side: model.BID})
	}

	return &model.Snapshot{
		Entries:   entries,
		Midpoint:  midpoint,
		Timestamp: now.UnixMicro(),
	}, nil
}
