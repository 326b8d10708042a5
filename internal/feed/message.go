package feed

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"bookmirror/pkg/model"
)

// diffMessage is the wire shape of one incremental depth update:
// "b" and "a" hold [priceString, sizeString] pairs, size "0" deletes.
type diffMessage struct {
	Event     string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

func parseLevels(raw [][]string) ([]model.PriceLevel, error) {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("level needs [price, size], got %d fields", len(pair))
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", pair[0], err)
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", pair[1], err)
		}
		levels = append(levels, model.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}

// decodeBatch turns one feed message into the (bids, asks) batch handed
// to the mirror.
func decodeBatch(data []byte) (bids, asks []model.PriceLevel, err error) {
	var msg diffMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal diff message: %w", err)
	}
	bids, err = parseLevels(msg.Bids)
	if err != nil {
		return nil, nil, fmt.Errorf("bids: %w", err)
	}
	asks, err = parseLevels(msg.Asks)
	if err != nil {
		return nil, nil, fmt.Errorf("asks: %w", err)
	}
	return bids, asks, nil
}
