package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/pkg/types"
)

func genBars(n int, start float64) []types.Bar {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]types.Bar, n)
	price := start
	for i := 0; i < n; i++ {
		price += 0.5
		bars[i] = types.Bar{
			Symbol:    "AAPL",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      price - 0.5,
			High:      price + 0.5,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func TestEnrich_PopulatesFeaturesOnceReady(t *testing.T) {
	cfg := EnrichmentConfig{ATRPeriod: 3, RSIPeriod: 3}
	bars := genBars(10, 100)

	out := Enrich(bars, cfg)
	require.Len(t, out, 10)

	// not enough history yet for the early bars.
	assert.NotContains(t, out[0].Features, "atr")
	assert.NotContains(t, out[0].Features, "rsi")

	// by the end of the series both indicators must be ready and populated.
	last := out[len(out)-1]
	assert.Contains(t, last.Features, "atr")
	assert.Contains(t, last.Features, "atr_percentage")
	assert.Contains(t, last.Features, "rsi")
	assert.Greater(t, last.Features["atr"], 0.0)
}

func TestEnrich_EmptyInputIsNoop(t *testing.T) {
	out := Enrich(nil, DefaultEnrichmentConfig())
	assert.Nil(t, out)
}

func TestEnrichBySymbol_SortsAndEnrichesIndependently(t *testing.T) {
	aapl := genBars(5, 100)
	msft := genBars(5, 300)

	// shuffle AAPL's order to confirm EnrichBySymbol re-sorts ascending first.
	shuffled := []types.Bar{aapl[4], aapl[0], aapl[3], aapl[1], aapl[2]}

	bySymbol := map[string][]types.Bar{
		"AAPL": shuffled,
		"MSFT": msft,
	}

	out := EnrichBySymbol(bySymbol, EnrichmentConfig{ATRPeriod: 2, RSIPeriod: 2})

	require.Len(t, out["AAPL"], 5)
	for i := 1; i < len(out["AAPL"]); i++ {
		assert.True(t, out["AAPL"][i].Timestamp.After(out["AAPL"][i-1].Timestamp))
	}

	last := out["AAPL"][len(out["AAPL"])-1]
	assert.Contains(t, last.Features, "atr")
}
