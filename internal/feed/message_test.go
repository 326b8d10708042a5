package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch(t *testing.T) {
	data := []byte(`{"e":"depthUpdate","E":1700000000000,"s":"BTCUSDT",` +
		`"b":[["100.50","2.000"],["90.00","0"]],"a":[["110.25","3.5"]]}`)

	bids, asks, err := decodeBatch(data)
	require.NoError(t, err)

	require.Len(t, bids, 2)
	assert.True(t, bids[0].Price.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, bids[0].Size.Equal(decimal.RequireFromString("2")))
	assert.True(t, bids[1].Size.IsZero(), "size 0 passes through as a delete marker")

	require.Len(t, asks, 1)
	assert.True(t, asks[0].Price.Equal(decimal.RequireFromString("110.25")))
}

func TestDecodeBatchEmptySides(t *testing.T) {
	bids, asks, err := decodeBatch([]byte(`{"e":"depthUpdate","b":[],"a":[]}`))
	require.NoError(t, err)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestDecodeBatchMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"b":[[`,
		"bad price":       `{"b":[["abc","1"]],"a":[]}`,
		"bad size":        `{"b":[],"a":[["100","xyz"]]}`,
		"too few fields":  `{"b":[["100"]],"a":[]}`,
		"wrong container": `{"b":"nope","a":[]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeBatch([]byte(raw))
			assert.Error(t, err)
		})
	}
}
