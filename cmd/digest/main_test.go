package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lidoDigest/internal/config"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams("2023-07-24", "2023-07-31", 1200, 1350.5)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 7, 24, 0, 0, 0, 0, time.UTC), params.StartDate)
	assert.Equal(t, time.Date(2023, 7, 31, 0, 0, 0, 0, time.UTC), params.EndDate)
	assert.Equal(t, 1350.5, params.SolEnd)

	_, err = parseParams("2023-07-31", "2023-07-24", 0, 0)
	assert.ErrorContains(t, err, "before start date")

	_, err = parseParams("", "2023-07-24", 0, 0)
	assert.ErrorContains(t, err, "start date")
}

func TestCanonicalQueries(t *testing.T) {
	got := canonicalQueries(map[string]int{"stethapr": 1, "totalstethindefi": 2, "custom": 3})
	assert.Equal(t, map[string]int{"stETHApr": 1, "totalStEthinDeFi": 2, "custom": 3}, got)
}

func TestNewLoaderRequiresKey(t *testing.T) {
	_, err := newLoader(configWithQueries(""), nil)
	assert.ErrorContains(t, err, "DUNE_API_KEY")
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "", redactDSN(""))
	assert.Equal(t, "***", redactDSN("postgres://u:p@localhost/db"))
}

func configWithQueries(apiKey string) config.DuneConfig {
	return config.DuneConfig{APIKey: apiKey, Queries: map[string]int{"tvl": 1}}
}
