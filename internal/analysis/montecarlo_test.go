package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/backtest"
)

func fixtureRunResult() *backtest.RunResult {
	return &backtest.RunResult{
		InitialCapital: 10_000,
		FinalCapital:   11_200,
		Trades: []backtest.TradeRecord{
			{TradeID: 1, TotalPnL: 400},
			{TradeID: 2, TotalPnL: -150},
			{TradeID: 3, TotalPnL: 600},
			{TradeID: 4, TotalPnL: 350},
		},
		Metrics: map[string]float64{
			"total_return_pct":  12.0,
			"max_drawdown_pct":  5.0,
			"sharpe_ratio":      1.2,
			"total_trades":      4,
		},
	}
}

func TestMonteCarloSimulator_SimulateProducesBoundedStats(t *testing.T) {
	cfg := MonteCarloConfig{Simulations: 500, Seed: 42, ConfidenceLevel: 0.95}
	sim := NewMonteCarloSimulator(cfg)

	result := sim.Simulate(fixtureRunResult())
	require.Len(t, result.Simulations, 500)

	assert.LessOrEqual(t, result.ConfidenceIntervalLow, result.MedianFinalReturn)
	assert.GreaterOrEqual(t, result.ConfidenceIntervalHigh, result.MedianFinalReturn)
	assert.LessOrEqual(t, result.MinFinalReturn, result.MeanFinalReturn)
	assert.GreaterOrEqual(t, result.MaxFinalReturn, result.MeanFinalReturn)

	assert.GreaterOrEqual(t, result.ProbabilityOfProfit, 0.0)
	assert.LessOrEqual(t, result.ProbabilityOfProfit, 100.0)
}

func TestMonteCarloSimulator_DeterministicWithFixedSeed(t *testing.T) {
	fixture := fixtureRunResult()

	r1 := NewMonteCarloSimulator(MonteCarloConfig{Simulations: 200, Seed: 7, ConfidenceLevel: 0.9}).Simulate(fixture)
	r2 := NewMonteCarloSimulator(MonteCarloConfig{Simulations: 200, Seed: 7, ConfidenceLevel: 0.9}).Simulate(fixture)

	assert.Equal(t, r1.MeanFinalReturn, r2.MeanFinalReturn)
	assert.Equal(t, r1.Simulations, r2.Simulations)
}

func TestMonteCarloSimulator_NoTradesReturnsEmptyResult(t *testing.T) {
	sim := NewMonteCarloSimulator(DefaultMonteCarloConfig())
	result := sim.Simulate(&backtest.RunResult{InitialCapital: 10_000, Metrics: map[string]float64{}})
	assert.Empty(t, result.Simulations)
}

func TestFormatReport_IncludesKeySections(t *testing.T) {
	sim := NewMonteCarloSimulator(MonteCarloConfig{Simulations: 50, Seed: 1, ConfidenceLevel: 0.95})
	result := sim.Simulate(fixtureRunResult())

	report := FormatReport(result)
	assert.True(t, strings.Contains(report, "MONTE CARLO SIMULATION RESULTS"))
	assert.True(t, strings.Contains(report, "RISK METRICS"))
	assert.True(t, strings.Contains(report, "Probability of Profit"))
}

func TestStdDevAndMedian_Helpers(t *testing.T) {
	assert.Equal(t, 0.0, stdDev([]float64{5}, 5))
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
}
