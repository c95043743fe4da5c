package model

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowFloat(t *testing.T) {
	row := Row{
		"f":      0.25,
		"n":      json.Number("1.5"),
		"s":      " -0.02 ",
		"i":      7,
		"bad":    "abc",
		"nested": []interface{}{1},
	}

	got, err := row.Float("f")
	require.NoError(t, err)
	assert.Equal(t, 0.25, got)

	got, err = row.Float("n")
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)

	got, err = row.Float("s")
	require.NoError(t, err)
	assert.Equal(t, -0.02, got)

	got, err = row.Float("i")
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	_, err = row.Float("bad")
	assert.Error(t, err)
	_, err = row.Float("nested")
	assert.Error(t, err)
	_, err = row.Float("missing")
	assert.ErrorContains(t, err, `"missing"`)
}

func TestDatasetFind(t *testing.T) {
	ds := Dataset{
		{"chain": "Ethereum", "v": 1.0},
		{"chain": "Total", "v": 2.0},
		{"chain": "Total", "v": 3.0},
		{"other": "x"},
	}

	row, ok := ds.Find("chain", "Total")
	require.True(t, ok)
	assert.Equal(t, 2.0, row["v"])

	_, ok = ds.Find("chain", "Polygon")
	assert.False(t, ok)

	_, ok = Dataset{}.First()
	assert.False(t, ok)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "datasets.json")
	in := Datasets{
		"stEthToEth": {{"weight_avg_price": 0.999712}},
		"tvl":        {{"chain": "Total", "TVL": 4.5e9}},
	}

	require.NoError(t, WriteSnapshot(path, in))

	out, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	price, err := out["stEthToEth"][0].Float("weight_avg_price")
	require.NoError(t, err)
	assert.Equal(t, 0.999712, price)

	chain, err := out["tvl"][0].String("chain")
	require.NoError(t, err)
	assert.Equal(t, "Total", chain)
}
