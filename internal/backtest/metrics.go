package backtest

import (
	"math"
)

// MetricsCalculator computes performance metrics from a RunResult's closed
// trades and equity curve, ported from the teacher's win-rate/profit-factor
// /Sharpe/drawdown calculator and extended with per-symbol and
// per-signal-strength-bucket breakdowns (§4.9).
type MetricsCalculator struct {
	trades      []TradeRecord
	equityCurve []EquityPoint
	initialCash float64
	riskFreeRate float64
}

// NewMetricsCalculator builds a MetricsCalculator over closed trades and
// the equity curve of one run.
func NewMetricsCalculator(trades []TradeRecord, equityCurve []EquityPoint, initialCash, riskFreeRate float64) *MetricsCalculator {
	return &MetricsCalculator{trades: trades, equityCurve: equityCurve, initialCash: initialCash, riskFreeRate: riskFreeRate}
}

// CalculateAllMetrics computes the §4.9 metrics map.
func (m *MetricsCalculator) CalculateAllMetrics() map[string]float64 {
	metrics := make(map[string]float64)

	metrics["total_trades"] = float64(len(m.trades))
	metrics["winning_trades"] = float64(m.countWinning(m.trades))
	metrics["losing_trades"] = float64(len(m.trades) - m.countWinning(m.trades))
	metrics["win_rate"] = winRate(m.trades)

	grossProfit, grossLoss := m.grossProfitLoss(m.trades)
	metrics["gross_profit"] = grossProfit
	metrics["gross_loss"] = grossLoss
	metrics["net_profit"] = grossProfit - grossLoss
	metrics["profit_factor"] = profitFactor(grossProfit, grossLoss)

	metrics["avg_trade"] = avgPnL(m.trades)
	metrics["avg_win"], metrics["avg_loss"] = avgWinLoss(m.trades)
	metrics["largest_win"], metrics["largest_loss"] = extremes(m.trades)

	maxDD, maxDDPct := maxDrawdown(m.equityCurve)
	metrics["max_drawdown"] = maxDD
	metrics["max_drawdown_pct"] = maxDDPct

	finalCapital := m.initialCash
	if len(m.equityCurve) > 0 {
		finalCapital = m.equityCurve[len(m.equityCurve)-1].Equity
	}
	metrics["total_return_pct"] = (finalCapital - m.initialCash) / m.initialCash * 100

	metrics["sharpe_ratio"] = sharpeRatio(m.equityCurve, m.riskFreeRate)

	var totalCommission, totalSlippage float64
	for _, t := range m.trades {
		totalCommission += t.TotalCommissions
		totalSlippage += t.TotalSlippage
	}
	metrics["total_commission"] = totalCommission
	metrics["total_slippage"] = totalSlippage

	return metrics
}

// PerSymbol groups closed trades by symbol and computes per-symbol metrics.
func (m *MetricsCalculator) PerSymbol() map[string]SymbolMetrics {
	groups := make(map[string][]TradeRecord)
	for _, t := range m.trades {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	return breakdown(groups)
}

// PerStrengthBucket groups closed trades into {55-64, 65-74, 75-84, 85-100}
// signal-strength buckets and computes per-bucket metrics.
func (m *MetricsCalculator) PerStrengthBucket() map[string]SymbolMetrics {
	groups := make(map[string][]TradeRecord)
	for _, t := range m.trades {
		groups[strengthBucket(t.SignalStrength)] = append(groups[strengthBucket(t.SignalStrength)], t)
	}
	return breakdown(groups)
}

func strengthBucket(strength int) string {
	switch {
	case strength >= 85:
		return "85-100"
	case strength >= 75:
		return "75-84"
	case strength >= 65:
		return "65-74"
	case strength >= 55:
		return "55-64"
	default:
		return "<55"
	}
}

func breakdown(groups map[string][]TradeRecord) map[string]SymbolMetrics {
	out := make(map[string]SymbolMetrics, len(groups))
	for key, trades := range groups {
		grossProfit, grossLoss := (&MetricsCalculator{}).grossProfitLoss(trades)
		out[key] = SymbolMetrics{
			TradeCount:   len(trades),
			WinRate:      winRate(trades),
			TotalPnL:     grossProfit - grossLoss,
			ProfitFactor: profitFactor(grossProfit, grossLoss),
		}
	}
	return out
}

func (m *MetricsCalculator) countWinning(trades []TradeRecord) int {
	n := 0
	for _, t := range trades {
		if t.TotalPnL > 0 {
			n++
		}
	}
	return n
}

func winRate(trades []TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	n := 0
	for _, t := range trades {
		if t.TotalPnL > 0 {
			n++
		}
	}
	return float64(n) / float64(len(trades)) * 100
}

func (m *MetricsCalculator) grossProfitLoss(trades []TradeRecord) (profit, loss float64) {
	for _, t := range trades {
		if t.TotalPnL > 0 {
			profit += t.TotalPnL
		} else {
			loss += -t.TotalPnL
		}
	}
	return profit, loss
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return grossProfit / grossLoss
}

func avgPnL(trades []TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	var total float64
	for _, t := range trades {
		total += t.TotalPnL
	}
	return total / float64(len(trades))
}

func avgWinLoss(trades []TradeRecord) (avgWin, avgLoss float64) {
	var winSum, lossSum float64
	var winN, lossN int
	for _, t := range trades {
		if t.TotalPnL > 0 {
			winSum += t.TotalPnL
			winN++
		} else if t.TotalPnL < 0 {
			lossSum += t.TotalPnL
			lossN++
		}
	}
	if winN > 0 {
		avgWin = winSum / float64(winN)
	}
	if lossN > 0 {
		avgLoss = lossSum / float64(lossN)
	}
	return avgWin, avgLoss
}

func extremes(trades []TradeRecord) (largestWin, largestLoss float64) {
	for _, t := range trades {
		if t.TotalPnL > largestWin {
			largestWin = t.TotalPnL
		}
		if t.TotalPnL < largestLoss {
			largestLoss = t.TotalPnL
		}
	}
	return largestWin, largestLoss
}

// maxDrawdown computes, over the equity curve, max over t of
// (peak_so_far - equity_t) / peak_so_far * 100, per §4.9 / I7.
func maxDrawdown(curve []EquityPoint) (absolute, pct float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0].Equity
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		if dd > absolute {
			absolute = dd
		}
		if peak > 0 {
			ddPct := dd / peak * 100
			if ddPct > pct {
				pct = ddPct
			}
		}
	}
	return absolute, pct
}

// sharpeRatio computes the annualized Sharpe ratio from per-step equity
// returns, per §4.9: 0 when stddev(r) == 0 or fewer than 2 points.
func sharpeRatio(curve []EquityPoint, riskFreeRate float64) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}

	dailyRiskFree := riskFreeRate / 252
	return (mean - dailyRiskFree) / stddev * math.Sqrt(252)
}
