// Package analysis provides post-run statistical tooling over a completed
// backtest.RunResult: Monte Carlo trade resequencing (ported from the
// teacher's montecarlo.go) and equity-curve/drawdown visualization data
// with CSV/JSON export. Walk-forward validation lives in internal/batch.
package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/bikeshrana/laddertest/internal/backtest"
)

// MonteCarloConfig configures resampling of a completed run's trade
// sequence.
type MonteCarloConfig struct {
	Simulations     int
	Seed            int64
	ConfidenceLevel float64
}

// DefaultMonteCarloConfig returns 1000 simulations at a 95% confidence
// level, seeded from wall-clock time.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{Simulations: 1000, ConfidenceLevel: 0.95}
}

// SimulationRun is one bootstrap resample of the original trade sequence.
type SimulationRun struct {
	RunNumber      int
	FinalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// MonteCarloResult aggregates statistics across every resample.
type MonteCarloResult struct {
	Config         MonteCarloConfig
	Original       *backtest.RunResult
	Simulations    []SimulationRun
	Duration       time.Duration

	MeanFinalReturn, MedianFinalReturn, StdDevFinalReturn               float64
	MinFinalReturn, MaxFinalReturn                                      float64
	ConfidenceIntervalLow, ConfidenceIntervalHigh                       float64
	MeanMaxDrawdown, MedianMaxDrawdown, StdDevMaxDrawdown               float64
	WorstMaxDrawdown, BestMaxDrawdown                                   float64
	MeanSharpe, MedianSharpe, StdDevSharpe, MinSharpe, MaxSharpe        float64
	ProbabilityOfProfit, ProbabilityOfTarget, RiskOfRuin                float64
}

// MonteCarloSimulator resamples a RunResult's closed trades with
// replacement to estimate the distribution of outcomes the observed trade
// sequence could have produced under a different ordering (§ supplemented
// features: trade-resequencing).
type MonteCarloSimulator struct {
	cfg  MonteCarloConfig
	rand *rand.Rand
}

// NewMonteCarloSimulator builds a simulator from cfg.
func NewMonteCarloSimulator(cfg MonteCarloConfig) *MonteCarloSimulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarloSimulator{cfg: cfg, rand: rand.New(rand.NewSource(seed))}
}

// Simulate runs cfg.Simulations resamples over result's closed trades.
func (s *MonteCarloSimulator) Simulate(result *backtest.RunResult) *MonteCarloResult {
	start := time.Now()

	if len(result.Trades) == 0 {
		return &MonteCarloResult{Config: s.cfg, Original: result, Duration: time.Since(start)}
	}

	runs := make([]SimulationRun, s.cfg.Simulations)
	for i := 0; i < s.cfg.Simulations; i++ {
		runs[i] = s.runOnce(i+1, result)
	}

	return s.summarize(result, runs, time.Since(start))
}

func (s *MonteCarloSimulator) runOnce(runNumber int, original *backtest.RunResult) SimulationRun {
	resampled := s.resample(original.Trades)
	finalReturn, maxDrawdown, sharpe := s.walkEquity(resampled, original.InitialCapital)
	return SimulationRun{
		RunNumber:      runNumber,
		FinalReturnPct: finalReturn / original.InitialCapital * 100,
		MaxDrawdownPct: maxDrawdown / original.InitialCapital * 100,
		SharpeRatio:    sharpe,
	}
}

// resample draws len(original) trades with replacement (bootstrap).
func (s *MonteCarloSimulator) resample(original []backtest.TradeRecord) []backtest.TradeRecord {
	n := len(original)
	out := make([]backtest.TradeRecord, n)
	for i := 0; i < n; i++ {
		out[i] = original[s.rand.Intn(n)]
	}
	return out
}

func (s *MonteCarloSimulator) walkEquity(trades []backtest.TradeRecord, initialCapital float64) (finalReturn, maxDrawdown, sharpe float64) {
	equity := initialCapital
	peak := initialCapital
	prev := initialCapital
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		equity += t.TotalPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDrawdown {
			maxDrawdown = dd
		}
		if prev != 0 {
			returns = append(returns, (equity-prev)/prev)
		}
		prev = equity
	}

	return equity - initialCapital, maxDrawdown, sharpeFromReturns(returns)
}

func sharpeFromReturns(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stdDev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(252)
}

func (s *MonteCarloSimulator) summarize(original *backtest.RunResult, runs []SimulationRun, duration time.Duration) *MonteCarloResult {
	result := &MonteCarloResult{Config: s.cfg, Original: original, Simulations: runs, Duration: duration}

	n := len(runs)
	returns := make([]float64, n)
	drawdowns := make([]float64, n)
	sharpes := make([]float64, n)

	var profitCount, targetCount, ruinCount int
	for i, run := range runs {
		returns[i] = run.FinalReturnPct
		drawdowns[i] = run.MaxDrawdownPct
		sharpes[i] = run.SharpeRatio
		if run.FinalReturnPct > 0 {
			profitCount++
		}
		if run.FinalReturnPct >= 10 {
			targetCount++
		}
		if run.MaxDrawdownPct > 50 {
			ruinCount++
		}
	}

	sortedReturns := sortedCopy(returns)
	sortedDrawdowns := sortedCopy(drawdowns)
	sortedSharpes := sortedCopy(sharpes)

	result.MeanFinalReturn = mean(returns)
	result.MedianFinalReturn = median(sortedReturns)
	result.StdDevFinalReturn = stdDev(returns, result.MeanFinalReturn)
	result.MinFinalReturn = sortedReturns[0]
	result.MaxFinalReturn = sortedReturns[n-1]

	alpha := 1.0 - s.cfg.ConfidenceLevel
	lo := int(float64(n) * alpha / 2.0)
	hi := int(float64(n) * (1.0 - alpha/2.0))
	if hi >= n {
		hi = n - 1
	}
	result.ConfidenceIntervalLow = sortedReturns[lo]
	result.ConfidenceIntervalHigh = sortedReturns[hi]

	result.MeanMaxDrawdown = mean(drawdowns)
	result.MedianMaxDrawdown = median(sortedDrawdowns)
	result.StdDevMaxDrawdown = stdDev(drawdowns, result.MeanMaxDrawdown)
	result.BestMaxDrawdown = sortedDrawdowns[0]
	result.WorstMaxDrawdown = sortedDrawdowns[n-1]

	result.MeanSharpe = mean(sharpes)
	result.MedianSharpe = median(sortedSharpes)
	result.StdDevSharpe = stdDev(sharpes, result.MeanSharpe)
	result.MinSharpe = sortedSharpes[0]
	result.MaxSharpe = sortedSharpes[n-1]

	result.ProbabilityOfProfit = float64(profitCount) / float64(n) * 100
	result.ProbabilityOfTarget = float64(targetCount) / float64(n) * 100
	result.RiskOfRuin = float64(ruinCount) / float64(n) * 100

	return result
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// FormatReport renders result as console text.
func FormatReport(result *MonteCarloResult) string {
	var out string
	out += "\n═══════════════════════════════════════════════════════════════════════════════\n"
	out += "                      MONTE CARLO SIMULATION RESULTS\n"
	out += "═══════════════════════════════════════════════════════════════════════════════\n\n"

	out += "CONFIGURATION\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Simulations:          %d\n", result.Config.Simulations)
	out += fmt.Sprintf("Confidence Level:     %.0f%%\n\n", result.Config.ConfidenceLevel*100)

	out += "ORIGINAL BACKTEST\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Total Return:         %.2f%%\n", result.Original.Metrics["total_return_pct"])
	out += fmt.Sprintf("Max Drawdown:         %.2f%%\n", result.Original.Metrics["max_drawdown_pct"])
	out += fmt.Sprintf("Sharpe Ratio:         %.2f\n", result.Original.Metrics["sharpe_ratio"])
	out += fmt.Sprintf("Total Trades:         %.0f\n\n", result.Original.Metrics["total_trades"])

	out += "FINAL RETURN STATISTICS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Mean:                 %.2f%%\n", result.MeanFinalReturn)
	out += fmt.Sprintf("Median:               %.2f%%\n", result.MedianFinalReturn)
	out += fmt.Sprintf("Std Deviation:        %.2f%%\n", result.StdDevFinalReturn)
	out += fmt.Sprintf("%.0f%% Confidence Int.:  %.2f%% to %.2f%%\n\n",
		result.Config.ConfidenceLevel*100, result.ConfidenceIntervalLow, result.ConfidenceIntervalHigh)

	out += "RISK METRICS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Probability of Profit:     %.1f%%\n", result.ProbabilityOfProfit)
	out += fmt.Sprintf("Probability of 10%% Target: %.1f%%\n", result.ProbabilityOfTarget)
	out += fmt.Sprintf("Risk of Ruin (>50%% DD):    %.1f%%\n\n", result.RiskOfRuin)

	out += fmt.Sprintf("Simulation completed in %s\n", result.Duration.String())
	out += "═══════════════════════════════════════════════════════════════════════════════\n"
	return out
}
