package model

import (
	"github.com/shopspring/decimal"
)

// Side of the book a level rests on.
type Side string

const (
	BID Side = "bid"
	ASK Side = "ask"
)

func (s Side) Valid() bool {
	return s == BID || s == ASK
}

// PriceLevel is one (price, resting size) pair on a side of the book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"amount"`
}

// SnapshotEntry is a tick-bucketed level tagged with its side.
type SnapshotEntry struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"amount"`
	Side  Side            `json:"side"`
}

// Snapshot is an immutable projection of the mirror at one instant.
// Entries hold asks in ascending price order followed by bids in
// ascending price order. Timestamp is unix microseconds.
type Snapshot struct {
	Entries   []SnapshotEntry `json:"entries"`
	Midpoint  decimal.Decimal `json:"midpoint"`
	Timestamp int64           `json:"timestamp"`
}

// ReferencePrice is an authoritative top-of-book pair fetched from the
// non-streaming source. It is produced, consumed by one prune, and
// discarded.
type ReferencePrice struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

// TopOfBook represents best bid/ask of the mirror.
type TopOfBook struct {
	BestBid *PriceLevel     `json:"bestBid"`
	BestAsk *PriceLevel     `json:"bestAsk"`
	Spread  decimal.Decimal `json:"spread"`
}
