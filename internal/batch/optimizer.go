// Package batch runs many independent backtest.Engine runs concurrently —
// grid-search parameter optimization and walk-forward validation — using
// golang.org/x/sync/errgroup. Every run gets its own bar.Stream, signal
// source, and exit manager instance; no state is shared across runs, which
// is what makes parallelizing across runs safe even though a single Engine
// run is strictly single-threaded (§5).
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/risk"
	"github.com/rs/zerolog"
)

// ParameterSet is one point in the grid-search space, keyed by parameter
// name.
type ParameterSet map[string]float64

// ParameterRange enumerates the values to test for one named parameter.
type ParameterRange struct {
	Name   string
	Values []float64
}

// Mutator applies a ParameterSet onto a base Config, returning the Config
// to run. Callers own the mapping from parameter name to Config field —
// batch has no opinion on which knobs are tunable.
type Mutator func(base backtest.Config, params ParameterSet) backtest.Config

// OptimizerConfig configures a grid search.
type OptimizerConfig struct {
	Base            backtest.Config
	Ranges          []ParameterRange
	Mutate          Mutator
	Metric          string // key into RunResult.Metrics, e.g. "sharpe_ratio"
	Workers         int
	MaxCombinations int // 0 = unlimited

	// Risk, when Manager is non-nil, tracks every combination as a
	// strategy sharing one portfolio risk budget (see RiskConfig).
	Risk RiskConfig
}

// OptimizationResult is one grid point's outcome.
type OptimizationResult struct {
	Parameters  ParameterSet
	Result      *backtest.RunResult
	MetricValue float64
	Rank        int

	// StrategyID identifies this combination to OptimizerConfig.Risk.
	StrategyID string
	// RiskApproved and RiskReason report OptimizerConfig.Risk.Manager's
	// CanTrade verdict for this combination after its run completed.
	// Always true/empty when risk tracking is disabled.
	RiskApproved bool
	RiskReason   string
	// Allocation is the fraction of portfolio capital
	// OptimizerConfig.Risk.Allocator recommends for this combination,
	// rebalanced from every combination's realized return. Zero when
	// risk tracking or the allocator is disabled.
	Allocation float64
	// SuggestedShares is what OptimizerConfig.Risk.Sizer would have sized
	// a trade at using this run's final capital and the average
	// entry/stop distance of its stopped-out trades. Zero when the run
	// had no stop-outs or Sizer is unset.
	SuggestedShares int
}

// Optimizer performs grid-search parameter optimization.
type Optimizer struct {
	cfg    OptimizerConfig
	log    zerolog.Logger
	riskMu sync.Mutex
}

// NewOptimizer builds an Optimizer from cfg.
func NewOptimizer(cfg OptimizerConfig, log zerolog.Logger) *Optimizer {
	return &Optimizer{cfg: cfg, log: log}
}

// Optimize runs one backtest per parameter combination, in parallel, and
// returns results ranked best-metric-first. streamFor must build a fresh
// *bar.Stream (never shared across goroutines — Stream read position is
// not safe for concurrent use), and sourceFor/exitMgrFor must build fresh
// collaborator instances per run.
func (o *Optimizer) Optimize(
	ctx context.Context,
	streamFor func() (*bar.Stream, error),
	sourceFor func() signal.Source,
	exitMgrFor func() exitmanager.Manager,
) ([]*OptimizationResult, error) {
	combinations := o.generateCombinations()
	if o.cfg.MaxCombinations > 0 && len(combinations) > o.cfg.MaxCombinations {
		o.log.Warn().
			Int("total", len(combinations)).
			Int("max", o.cfg.MaxCombinations).
			Msg("limiting grid search combinations")
		combinations = combinations[:o.cfg.MaxCombinations]
	}

	results := make([]*OptimizationResult, len(combinations))

	ids := make([]string, len(combinations))
	for i, params := range combinations {
		ids[i] = strategyID(params)
	}
	if o.cfg.Risk.enabled() {
		initial := equalAllocations(ids)
		if o.cfg.Risk.Allocator != nil {
			if a, err := o.cfg.Risk.Allocator.CalculateAllocations(o.cfg.Risk.Manager, ids); err == nil {
				initial = a
			}
		}
		if err := o.cfg.Risk.Manager.SetAllocations(initial); err != nil {
			o.log.Warn().Err(err).Msg("batch: could not set initial risk allocations")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Workers > 0 {
		g.SetLimit(o.cfg.Workers)
	}

	for i, params := range combinations {
		i, params := i, params
		g.Go(func() error {
			stream, err := streamFor()
			if err != nil {
				return fmt.Errorf("batch: build stream for combination %d: %w", i, err)
			}
			cfg := o.cfg.Mutate(o.cfg.Base, params)
			engine := backtest.NewEngine(cfg, sourceFor(), exitMgrFor(), o.log)
			runResult, err := engine.Run(gctx, stream)
			if err != nil {
				return fmt.Errorf("batch: combination %d: %w", i, err)
			}
			result := &OptimizationResult{
				Parameters:  params,
				Result:      runResult,
				MetricValue: runResult.Metrics[o.cfg.Metric],
				StrategyID:  ids[i],
				RiskApproved: true,
			}
			o.applyRisk(result, runResult)
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if o.cfg.Risk.enabled() && o.cfg.Risk.Allocator != nil {
		final, err := o.cfg.Risk.Allocator.CalculateAllocations(o.cfg.Risk.Manager, ids)
		if err != nil {
			o.log.Warn().Err(err).Msg("batch: final risk allocation failed")
		} else {
			if err := o.cfg.Risk.Manager.SetAllocations(final); err != nil {
				o.log.Warn().Err(err).Msg("batch: could not set final risk allocations")
			}
			byID := make(map[string]float64, len(final))
			for _, a := range final {
				byID[a.StrategyID] = a.Allocation
			}
			for _, r := range results {
				r.Allocation = byID[r.StrategyID]
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].MetricValue > results[j].MetricValue
	})
	for i, r := range results {
		r.Rank = i + 1
	}

	return results, nil
}

// applyRisk updates OptimizerConfig.Risk.Manager with this combination's
// outcome and records the resulting CanTrade verdict and Sizer comparison
// onto result. Safe for concurrent use across goroutines sharing the
// Optimizer's Risk.Manager.
func (o *Optimizer) applyRisk(result *OptimizationResult, runResult *backtest.RunResult) {
	if !o.cfg.Risk.enabled() {
		return
	}
	mgr := o.cfg.Risk.Manager

	o.riskMu.Lock()
	mgr.UpdateEquity(runResult.FinalCapital)
	dailyReturn := 0.0
	if runResult.InitialCapital > 0 {
		dailyReturn = (runResult.FinalCapital - runResult.InitialCapital) / runResult.InitialCapital
	}
	mgr.RecordStrategyReturn(result.StrategyID, dailyReturn)
	mgr.UpdateStrategyMetrics(result.StrategyID, &risk.StrategyMetrics{
		TotalReturn: runResult.Metrics["total_return_pct"],
		SharpeRatio: runResult.Metrics["sharpe_ratio"],
		MaxDrawdown: runResult.Metrics["max_drawdown_pct"],
		WinRate:     runResult.Metrics["win_rate"],
		TotalTrades: len(runResult.Trades),
		Active:      true,
	})
	mgr.UpdatePositions(result.StrategyID, 0)
	approved, reason := mgr.CanTrade(result.StrategyID)
	o.riskMu.Unlock()

	result.RiskApproved = approved
	result.RiskReason = reason

	if o.cfg.Risk.Sizer != nil {
		if avgEntry, avgStop, n := averageStopDistance(runResult.Trades); n > 0 {
			if shares, err := o.cfg.Risk.Sizer.CalculateSize(runResult.FinalCapital, avgEntry, avgStop); err == nil {
				result.SuggestedShares = shares
			}
		}
	}
}

func (o *Optimizer) generateCombinations() []ParameterSet {
	if len(o.cfg.Ranges) == 0 {
		return []ParameterSet{{}}
	}
	var combos []ParameterSet
	var recurse func(depth int, current ParameterSet)
	recurse = func(depth int, current ParameterSet) {
		if depth == len(o.cfg.Ranges) {
			combo := make(ParameterSet, len(current))
			for k, v := range current {
				combo[k] = v
			}
			combos = append(combos, combo)
			return
		}
		r := o.cfg.Ranges[depth]
		for _, v := range r.Values {
			current[r.Name] = v
			recurse(depth+1, current)
		}
		delete(current, r.Name)
	}
	recurse(0, ParameterSet{})
	return combos
}

// RangeFloat builds a ParameterRange by stepping from start to end
// inclusive.
func RangeFloat(name string, start, end, step float64) ParameterRange {
	var values []float64
	for v := start; v <= end; v += step {
		values = append(values, v)
	}
	return ParameterRange{Name: name, Values: values}
}
