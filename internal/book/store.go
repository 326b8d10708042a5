package book

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"bookmirror/pkg/model"
)

// level is the btree item for a single price level.
type level struct {
	price decimal.Decimal
	size  decimal.Decimal
}

func (l *level) Less(than btree.Item) bool {
	other := than.(*level)
	return l.price.LessThan(other.price)
}

// PriceLevelStore is an ordered price -> resting size map for one side
// of one symbol. Prices are unique keys kept in ascending order; a level
// with size <= 0 is never stored. The store itself is not synchronized,
// the owning Mirror serializes access.
type PriceLevelStore struct {
	tree *btree.BTree
}

func NewPriceLevelStore() *PriceLevelStore {
	return &PriceLevelStore{
		tree: btree.New(32), // degree tuned for performance
	}
}

// Upsert inserts or overwrites the level at price. A size of zero or
// below removes the level instead; removing an absent price is a no-op.
func (s *PriceLevelStore) Upsert(price, size decimal.Decimal) {
	if size.Sign() <= 0 {
		s.tree.Delete(&level{price: price})
		return
	}
	s.tree.ReplaceOrInsert(&level{price: price, size: size})
}

// Remove deletes the level at price if present.
func (s *PriceLevelStore) Remove(price decimal.Decimal) {
	s.tree.Delete(&level{price: price})
}

func (s *PriceLevelStore) Len() int {
	return s.tree.Len()
}

// Get returns the resting size at price.
func (s *PriceLevelStore) Get(price decimal.Decimal) (decimal.Decimal, bool) {
	item := s.tree.Get(&level{price: price})
	if item == nil {
		return decimal.Decimal{}, false
	}
	return item.(*level).size, true
}

// Min returns the lowest price in the store.
func (s *PriceLevelStore) Min() (decimal.Decimal, bool) {
	item := s.tree.Min()
	if item == nil {
		return decimal.Decimal{}, false
	}
	return item.(*level).price, true
}

// Max returns the highest price in the store.
func (s *PriceLevelStore) Max() (decimal.Decimal, bool) {
	item := s.tree.Max()
	if item == nil {
		return decimal.Decimal{}, false
	}
	return item.(*level).price, true
}

// Ascend visits every level in ascending price order until fn returns
// false.
func (s *PriceLevelStore) Ascend(fn func(price, size decimal.Decimal) bool) {
	s.tree.Ascend(func(item btree.Item) bool {
		l := item.(*level)
		return fn(l.price, l.size)
	})
}

// Entries copies all levels out in ascending price order.
func (s *PriceLevelStore) Entries() []model.PriceLevel {
	out := make([]model.PriceLevel, 0, s.tree.Len())
	s.Ascend(func(price, size decimal.Decimal) bool {
		out = append(out, model.PriceLevel{Price: price, Size: size})
		return true
	})
	return out
}

// Sum returns the total resting size across all levels.
func (s *PriceLevelStore) Sum() decimal.Decimal {
	total := decimal.Zero
	s.Ascend(func(_, size decimal.Decimal) bool {
		total = total.Add(size)
		return true
	})
	return total
}

// RemoveAbove deletes every level priced strictly above limit and
// returns the number removed.
func (s *PriceLevelStore) RemoveAbove(limit decimal.Decimal) int {
	var stale []decimal.Decimal
	s.tree.AscendGreaterOrEqual(&level{price: limit}, func(item btree.Item) bool {
		l := item.(*level)
		if l.price.GreaterThan(limit) {
			stale = append(stale, l.price)
		}
		return true
	})
	for _, price := range stale {
		s.tree.Delete(&level{price: price})
	}
	return len(stale)
}

// RemoveBelow deletes every level priced strictly below limit and
// returns the number removed.
func (s *PriceLevelStore) RemoveBelow(limit decimal.Decimal) int {
	var stale []decimal.Decimal
	s.tree.AscendLessThan(&level{price: limit}, func(item btree.Item) bool {
		stale = append(stale, item.(*level).price)
		return true
	})
	for _, price := range stale {
		s.tree.Delete(&level{price: price})
	}
	return len(stale)
}
