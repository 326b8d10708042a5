package book

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmirror/pkg/model"
)

func levels(pairs ...string) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.PriceLevel{Price: d(pairs[i]), Size: d(pairs[i+1])})
	}
	return out
}

// seededMirror builds a small book: bids {100: 2, 90: 1}, asks {110: 3, 120: 1}.
func seededMirror() *Mirror {
	m := NewMirror()
	m.ApplyBatch(levels("100", "2", "90", "1"), levels("110", "3", "120", "1"))
	return m
}

func TestBestBidAskAndSpread(t *testing.T) {
	m := seededMirror()

	bestBid, ok := m.BestBid()
	require.True(t, ok)
	assert.True(t, bestBid.Equal(d("100")))

	bestAsk, ok := m.BestAsk()
	require.True(t, ok)
	assert.True(t, bestAsk.Equal(d("110")))

	spread, err := m.Spread()
	require.NoError(t, err)
	assert.True(t, spread.Equal(d("10")))
}

func TestVolumePerSide(t *testing.T) {
	m := seededMirror()
	assert.True(t, m.Volume(model.BID).Equal(d("3")))
	assert.True(t, m.Volume(model.ASK).Equal(d("4")))
}

func TestEmptyMirrorReportsNotReady(t *testing.T) {
	m := NewMirror()

	_, err := m.Spread()
	assert.ErrorIs(t, err, ErrNotReady)

	_, ok := m.BestBid()
	assert.False(t, ok)
	_, ok = m.BestAsk()
	assert.False(t, ok)
	assert.True(t, m.Volume(model.BID).IsZero())

	// one-sided book is still not ready
	m.ApplyBatch(levels("100", "2"), nil)
	_, err = m.Spread()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestApplyBatchZeroSizeForAbsentPrice(t *testing.T) {
	m := seededMirror()
	before := m.Depth(model.BID)

	m.ApplyBatch(levels("105", "0"), nil)

	assert.Equal(t, before, m.Depth(model.BID), "deleting an absent price must not change the store")
}

func TestApplyBatchDeletesOnZero(t *testing.T) {
	m := seededMirror()
	m.ApplyBatch(levels("100", "0"), levels("120", "0"))

	assert.Equal(t, 1, m.Len(model.BID))
	assert.Equal(t, 1, m.Len(model.ASK))

	bestBid, ok := m.BestBid()
	require.True(t, ok)
	assert.True(t, bestBid.Equal(d("90")))
}

func TestPruneRemovesOnlyWrongSideOfReference(t *testing.T) {
	m := NewMirror()
	m.ApplyBatch(
		levels("90", "1", "100", "2", "101", "5", "105", "1"), // bids, some above ref bid
		levels("95", "2", "99", "1", "110", "3", "120", "1"),  // asks, some below ref ask
	)

	bidsRemoved, asksRemoved := m.Prune(model.ReferencePrice{BestBid: d("100"), BestAsk: d("110")})
	assert.Equal(t, 2, bidsRemoved)
	assert.Equal(t, 2, asksRemoved)

	for _, lvl := range m.Depth(model.BID) {
		assert.False(t, lvl.Price.GreaterThan(d("100")), "bid %s survived above reference bid", lvl.Price)
	}
	for _, lvl := range m.Depth(model.ASK) {
		assert.False(t, lvl.Price.LessThan(d("110")), "ask %s survived below reference ask", lvl.Price)
	}

	// untouched levels keep their sizes
	size, ok := m.bids.Get(d("100"))
	require.True(t, ok)
	assert.True(t, size.Equal(d("2")))
}

func TestPruneWithAbsentReferenceIsNoOp(t *testing.T) {
	m := seededMirror()
	before := append(m.Depth(model.BID), m.Depth(model.ASK)...)

	bidsRemoved, asksRemoved := m.Prune(model.ReferencePrice{})
	assert.Zero(t, bidsRemoved)
	assert.Zero(t, asksRemoved)
	assert.Equal(t, before, append(m.Depth(model.BID), m.Depth(model.ASK)...))
}

// Readers running concurrently with batches must always observe a
// consistent state: the seeded batch replaces both levels of a side at
// once, so a reader summing that side may see the old or the new total,
// never a mix.
func TestConcurrentReadersSeeWholeBatches(t *testing.T) {
	m := NewMirror()
	m.ApplyBatch(levels("100", "1", "90", "1"), levels("110", "1"))

	var writer, readers sync.WaitGroup
	stop := make(chan struct{})

	writer.Add(1)
	go func() {
		defer writer.Done()
		flip := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			if flip {
				m.ApplyBatch(levels("100", "1", "90", "1"), nil)
			} else {
				m.ApplyBatch(levels("100", "3", "90", "3"), nil)
			}
			flip = !flip
		}
	}()

	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 500; j++ {
				total := m.Volume(model.BID)
				if !total.Equal(d("2")) && !total.Equal(d("6")) {
					t.Errorf("observed partial batch: bid volume %s", total)
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	writer.Wait()
}
