package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/circuitbreaker"
)

// BacktestMetrics holds the Prometheus metrics exported per run: a run's
// terminal RunResult is projected onto these gauges/counters/histograms by
// Observe, and internal/api's HTTP server exposes them at /metrics.
type BacktestMetrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	TradesTotal      *prometheus.CounterVec
	WinRate          *prometheus.GaugeVec
	ProfitFactor     *prometheus.GaugeVec
	SharpeRatio      *prometheus.GaugeVec
	MaxDrawdownPct   *prometheus.GaugeVec
	FinalEquity      *prometheus.GaugeVec
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
	DBQueryDuration  *prometheus.HistogramVec
	DBErrors         *prometheus.CounterVec
}

// NewBacktestMetrics creates and registers all Prometheus collectors under
// namespace (falling back to "laddertest" when empty).
func NewBacktestMetrics(namespace string) *BacktestMetrics {
	if namespace == "" {
		namespace = "laddertest"
	}

	return &BacktestMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of backtest runs completed, by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a single backtest run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
		),
		TradesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of trades closed across all runs, by symbol",
			},
			[]string{"symbol"},
		),
		WinRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "win_rate",
				Help:      "Win rate (0-1) of the most recent run, by symbol",
			},
			[]string{"symbol"},
		),
		ProfitFactor: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "profit_factor",
				Help:      "Gross profit / gross loss of the most recent run, by symbol",
			},
			[]string{"symbol"},
		),
		SharpeRatio: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sharpe_ratio",
				Help:      "Annualized Sharpe ratio of the most recent run",
			},
			[]string{"run_id"},
		),
		MaxDrawdownPct: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "max_drawdown_pct",
				Help:      "Maximum drawdown percentage of the most recent run",
			},
			[]string{"run_id"},
		),
		FinalEquity: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "final_equity_usd",
				Help:      "Final capital of the most recent run",
			},
			[]string{"run_id"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"breaker"},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "table"},
		),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),
	}
}

// Observe projects a completed run's RunResult onto the gauges/counters,
// labeled by runID so a dashboard can compare recent runs side by side.
func (m *BacktestMetrics) Observe(runID string, result *backtest.RunResult) {
	m.RunsTotal.WithLabelValues("success").Inc()
	m.FinalEquity.WithLabelValues(runID).Set(result.FinalCapital)

	if sharpe, ok := result.Metrics["sharpe_ratio"]; ok {
		m.SharpeRatio.WithLabelValues(runID).Set(sharpe)
	}
	if dd, ok := result.Metrics["max_drawdown_pct"]; ok {
		m.MaxDrawdownPct.WithLabelValues(runID).Set(dd)
	}

	for symbol, sm := range result.PerSymbol {
		m.TradesTotal.WithLabelValues(symbol).Add(float64(sm.TradeCount))
		m.WinRate.WithLabelValues(symbol).Set(sm.WinRate)
		m.ProfitFactor.WithLabelValues(symbol).Set(sm.ProfitFactor)
	}
}

// ObserveFailure records a run that errored out before producing a result.
func (m *BacktestMetrics) ObserveFailure() {
	m.RunsTotal.WithLabelValues("failure").Inc()
}

// ObserveCircuitBreaker records a breaker's current state, and counts a trip
// whenever it has moved into the open state since the last observation.
func (m *BacktestMetrics) ObserveCircuitBreaker(name string, state circuitbreaker.State, tripped bool) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	if tripped {
		m.CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}
