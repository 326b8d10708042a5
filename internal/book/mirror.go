package book

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"bookmirror/pkg/model"
)

// ErrNotReady is returned for queries that need both sides of the book
// while at least one side is still empty.
var ErrNotReady = errors.New("order book not ready")

// Mirror holds the in-memory copy of one symbol's book, one
// PriceLevelStore per side. A single RWMutex serializes the two mutating
// entry points (ApplyBatch from the feed, Prune from the reconciler) and
// gives readers a consistent view: a reader sees the state fully before
// or fully after any one batch, never a partial one.
type Mirror struct {
	mu   sync.RWMutex
	bids *PriceLevelStore
	asks *PriceLevelStore
}

func NewMirror() *Mirror {
	return &Mirror{
		bids: NewPriceLevelStore(),
		asks: NewPriceLevelStore(),
	}
}

// ApplyBatch applies every update from one feed message as a single
// atomic unit. A size of zero deletes the level.
func (m *Mirror) ApplyBatch(bids, asks []model.PriceLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lvl := range bids {
		m.bids.Upsert(lvl.Price, lvl.Size)
	}
	for _, lvl := range asks {
		m.asks.Upsert(lvl.Price, lvl.Size)
	}
}

// Prune removes bid levels priced strictly above the reference best bid
// and ask levels priced strictly below the reference best ask. Levels on
// the correct side of the reference are untouched. A reference with a
// non-positive side means the fetch did not produce a usable price, and
// the prune is a no-op. Returns the number of levels removed per side.
func (m *Mirror) Prune(ref model.ReferencePrice) (bidsRemoved, asksRemoved int) {
	if ref.BestBid.Sign() <= 0 || ref.BestAsk.Sign() <= 0 {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bidsRemoved = m.bids.RemoveAbove(ref.BestBid)
	asksRemoved = m.asks.RemoveBelow(ref.BestAsk)
	return bidsRemoved, asksRemoved
}

// BestBid returns the highest bid price, if any.
func (m *Mirror) BestBid() (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bids.Max()
}

// BestAsk returns the lowest ask price, if any.
func (m *Mirror) BestAsk() (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.asks.Min()
}

// Volume returns the aggregate resting size on one side.
func (m *Mirror) Volume(side model.Side) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if side == model.BID {
		return m.bids.Sum()
	}
	return m.asks.Sum()
}

// Spread returns bestAsk - bestBid, or ErrNotReady while either side is
// empty.
func (m *Mirror) Spread() (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bestBid, ok := m.bids.Max()
	if !ok {
		return decimal.Decimal{}, ErrNotReady
	}
	bestAsk, ok := m.asks.Min()
	if !ok {
		return decimal.Decimal{}, ErrNotReady
	}
	return bestAsk.Sub(bestBid), nil
}

// Depth copies one side's levels out in ascending price order. The copy
// is consistent: it is taken under the read lock, so no in-flight batch
// is partially visible.
func (m *Mirror) Depth(side model.Side) []model.PriceLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if side == model.BID {
		return m.bids.Entries()
	}
	return m.asks.Entries()
}

// Len returns the number of resting levels on one side.
func (m *Mirror) Len(side model.Side) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if side == model.BID {
		return m.bids.Len()
	}
	return m.asks.Len()
}

// TopOfBook returns best bid/ask with their sizes, and the spread when
// both sides are present.
func (m *Mirror) TopOfBook() *model.TopOfBook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tob := &model.TopOfBook{}
	if price, ok := m.bids.Max(); ok {
		size, _ := m.bids.Get(price)
		tob.BestBid = &model.PriceLevel{Price: price, Size: size}
	}
	if price, ok := m.asks.Min(); ok {
		size, _ := m.asks.Get(price)
		tob.BestAsk = &model.PriceLevel{Price: price, Size: size}
	}
	if tob.BestBid != nil && tob.BestAsk != nil {
		tob.Spread = tob.BestAsk.Price.Sub(tob.BestBid.Price)
	}
	return tob
}
