package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/circuitbreaker"
)

func TestNewBacktestMetrics_DefaultsNamespaceWhenEmpty(t *testing.T) {
	m := NewBacktestMetrics("")
	m.ObserveFailure()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
}

func TestObserve_ProjectsRunResultOntoGauges(t *testing.T) {
	m := NewBacktestMetrics("metrics_test_observe")
	result := &backtest.RunResult{
		FinalCapital: 12_500,
		Metrics: map[string]float64{
			"sharpe_ratio":     1.4,
			"max_drawdown_pct": 8.2,
		},
		PerSymbol: map[string]backtest.SymbolMetrics{
			"AAPL": {TradeCount: 5, WinRate: 0.6, ProfitFactor: 1.8},
		},
	}

	m.Observe("run-1", result)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 12_500.0, testutil.ToFloat64(m.FinalEquity.WithLabelValues("run-1")))
	assert.Equal(t, 1.4, testutil.ToFloat64(m.SharpeRatio.WithLabelValues("run-1")))
	assert.Equal(t, 8.2, testutil.ToFloat64(m.MaxDrawdownPct.WithLabelValues("run-1")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("AAPL")))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.WinRate.WithLabelValues("AAPL")))
	assert.Equal(t, 1.8, testutil.ToFloat64(m.ProfitFactor.WithLabelValues("AAPL")))
}

func TestObserveCircuitBreaker_CountsTripOnlyOnTransitionToOpen(t *testing.T) {
	m := NewBacktestMetrics("metrics_test_breaker")

	m.ObserveCircuitBreaker("postgres-bars", circuitbreaker.StateClosed, false)
	assert.Equal(t, float64(circuitbreaker.StateClosed), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("postgres-bars")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("postgres-bars")))

	m.ObserveCircuitBreaker("postgres-bars", circuitbreaker.StateOpen, true)
	assert.Equal(t, float64(circuitbreaker.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("postgres-bars")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("postgres-bars")))
}

func TestObserveFailure_IncrementsFailureCounterOnly(t *testing.T) {
	m := NewBacktestMetrics("metrics_test_failure")
	m.ObserveFailure()
	m.ObserveFailure()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
}
