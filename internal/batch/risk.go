package batch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/risk"
)

// RiskConfig wires internal/risk's portfolio-level budgeting into a grid
// search or walk-forward run. Each ParameterSet is tracked as a "strategy":
// Manager gates whether its allocation is still live given the shared
// drawdown/leverage/position-count budget, Allocator rebalances that
// allocation from each combination's realized performance, and Sizer
// reports what an alternative fixed-risk sizer would have traded against
// the run's own stop-outs, for comparison with the engine's ladder sizing
// (internal/core/position). All three are independently optional; a nil
// Manager disables risk tracking for the run.
type RiskConfig struct {
	Manager   *risk.PortfolioRiskManager
	Allocator *risk.DynamicAllocator
	Sizer     risk.PositionSizer
}

func (r RiskConfig) enabled() bool { return r.Manager != nil }

// strategyID derives a stable identifier for a ParameterSet so it can be
// tracked as one "strategy" by PortfolioRiskManager across a grid search.
func strategyID(params ParameterSet) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", k, params[k])
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, ",")
}

func equalAllocations(ids []string) []risk.StrategyAllocation {
	if len(ids) == 0 {
		return nil
	}
	weight := 1.0 / float64(len(ids))
	out := make([]risk.StrategyAllocation, len(ids))
	for i, id := range ids {
		out[i] = risk.StrategyAllocation{StrategyID: id, Allocation: weight, Active: true}
	}
	return out
}

// averageStopDistance averages AvgEntryPrice/StopLossPrice over a run's
// trades that were actually stopped out — the only TradeRecords carrying
// both legs of a known risk distance — for feeding an alternative
// risk.PositionSizer.
func averageStopDistance(trades []backtest.TradeRecord) (avgEntry, avgStop float64, n int) {
	for _, tr := range trades {
		if !tr.StopLossHit || tr.StopLossPrice == 0 {
			continue
		}
		avgEntry += tr.AvgEntryPrice
		avgStop += tr.StopLossPrice
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	return avgEntry / float64(n), avgStop / float64(n), n
}
