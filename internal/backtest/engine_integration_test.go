package backtest_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/data"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// syntheticBars builds a price series that dips sharply (to push RSI low
// enough to clear the default signal-strength gate) and then recovers, so a
// run through it exercises both entry and at least one exit path.
func syntheticBars(symbol string) []types.Bar {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	var bars []types.Bar
	price := 100.0

	for i := 0; i < 40; i++ {
		price -= 0.75
		bars = append(bars, types.Bar{
			Symbol: symbol, Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open: price + 0.1, High: price + 0.3, Low: price - 0.3, Close: price, Volume: 1000,
		})
	}
	for i := 0; i < 60; i++ {
		price += 1.0
		bars = append(bars, types.Bar{
			Symbol: symbol, Timestamp: base.Add(time.Duration(40+i) * time.Minute),
			Open: price - 0.1, High: price + 0.3, Low: price - 0.3, Close: price, Volume: 1000,
		})
	}
	return bars
}

func TestEngine_Run_AccountConservationHolds(t *testing.T) {
	symbol := "TEST"
	bars := data.Enrich(syntheticBars(symbol), data.DefaultEnrichmentConfig())
	stream, err := bar.NewStream(map[string][]types.Bar{symbol: bars})
	require.NoError(t, err)

	cfg := backtest.DefaultConfig()
	cfg.Symbols = []string{symbol}

	var equityPoints int
	engine := backtest.NewEngine(cfg,
		signal.NewThresholdSource(signal.DefaultThresholdConfig()),
		exitmanager.NewDeteriorationManager(cfg.ExitMgr),
		zerolog.Nop())
	engine.OnEquityPoint(func(backtest.EquityPoint) { equityPoints++ })

	result, err := engine.Run(context.Background(), stream)
	require.NoError(t, err)
	require.NotNil(t, result)

	// len(bars)+1: one equity point per bar, plus the trailing point
	// recorded after end-of-stream forced closes.
	assert.Equal(t, len(bars)+1, equityPoints)
	assert.Equal(t, len(bars)+1, len(result.EquityCurve))

	var totalPnL float64
	for _, tr := range result.Trades {
		assert.True(t, tr.Status == "CLOSED_WIN" || tr.Status == "CLOSED_LOSS" || tr.Status == "CLOSED_EXIT_MANAGER",
			"every trade must be closed by end of stream, got %s", tr.Status)
		assert.True(t, tr.Entries[0].Executed, "a recorded trade must have at least its first entry filled")
		totalPnL += tr.TotalPnL
	}
	assert.False(t, math.IsNaN(result.FinalCapital))
	assert.False(t, math.IsNaN(result.InitialCapital))
	assert.InDelta(t, result.InitialCapital+totalPnL, result.FinalCapital, 0.01,
		"final capital must equal initial capital plus the sum of closed trades' realized P&L")
}

func TestEngine_Run_RejectsInvalidConfig(t *testing.T) {
	cfg := backtest.DefaultConfig() // no Symbols set -> invalid
	engine := backtest.NewEngine(cfg,
		signal.NewThresholdSource(signal.DefaultThresholdConfig()),
		exitmanager.NewDeteriorationManager(cfg.ExitMgr),
		zerolog.Nop())

	stream, err := bar.NewStream(map[string][]types.Bar{"TEST": syntheticBars("TEST")})
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), stream)
	assert.Error(t, err)
}
