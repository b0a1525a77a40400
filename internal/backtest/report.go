package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportGenerator renders a RunResult as console text. The simulation core
// itself never prints (§6) — this is ambient CLI tooling, carried from the
// teacher's report generator and adapted to the new RunResult shape.
type ReportGenerator struct {
	result *RunResult
}

// NewReportGenerator builds a ReportGenerator over result.
func NewReportGenerator(result *RunResult) *ReportGenerator {
	return &ReportGenerator{result: result}
}

// GenerateConsoleReport renders the full summary report.
func (r *ReportGenerator) GenerateConsoleReport() string {
	var sb strings.Builder
	m := r.result.Metrics

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("                           BACKTEST RESULTS                                     \n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	sb.WriteString("CONFIGURATION\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Symbols:          %s\n", strings.Join(r.result.Config.Symbols, ", ")))
	sb.WriteString(fmt.Sprintf("Initial Capital:  $%.2f\n", r.result.InitialCapital))
	sb.WriteString(fmt.Sprintf("Risk/Trade:       %.2f%%\n", r.result.Config.RiskPerTradePct*100))
	sb.WriteString(fmt.Sprintf("Max Concurrent:   %d\n", r.result.Config.MaxConcurrentPositions))
	sb.WriteString(fmt.Sprintf("Exit Manager:     %t\n", r.result.Config.EnableExitManager))
	sb.WriteString("\n")

	sb.WriteString("OVERALL PERFORMANCE\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Final Capital:    $%.2f\n", r.result.FinalCapital))
	sb.WriteString(fmt.Sprintf("Total Return:     %.2f%%\n", m["total_return_pct"]))
	sb.WriteString(fmt.Sprintf("Net Profit:       $%.2f\n", m["net_profit"]))
	sb.WriteString("\n")

	sb.WriteString("TRADE STATISTICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Trades:     %.0f\n", m["total_trades"]))
	sb.WriteString(fmt.Sprintf("Winning Trades:   %.0f (%.1f%%)\n", m["winning_trades"], m["win_rate"]))
	sb.WriteString(fmt.Sprintf("Losing Trades:    %.0f\n", m["losing_trades"]))
	sb.WriteString(fmt.Sprintf("Avg Trade:        $%.2f\n", m["avg_trade"]))
	sb.WriteString(fmt.Sprintf("Avg Win:          $%.2f\n", m["avg_win"]))
	sb.WriteString(fmt.Sprintf("Avg Loss:         $%.2f\n", m["avg_loss"]))
	sb.WriteString(fmt.Sprintf("Largest Win:      $%.2f\n", m["largest_win"]))
	sb.WriteString(fmt.Sprintf("Largest Loss:     $%.2f\n", m["largest_loss"]))
	sb.WriteString("\n")

	sb.WriteString("PROFIT METRICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Gross Profit:     $%.2f\n", m["gross_profit"]))
	sb.WriteString(fmt.Sprintf("Gross Loss:       $%.2f\n", m["gross_loss"]))
	sb.WriteString(fmt.Sprintf("Profit Factor:    %.2f\n", m["profit_factor"]))
	sb.WriteString(fmt.Sprintf("Total Commission: $%.2f\n", m["total_commission"]))
	sb.WriteString(fmt.Sprintf("Total Slippage:   $%.2f\n", m["total_slippage"]))
	sb.WriteString("\n")

	sb.WriteString("RISK METRICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Max Drawdown:     $%.2f (%.2f%%)\n", m["max_drawdown"], m["max_drawdown_pct"]))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:     %.2f\n", m["sharpe_ratio"]))
	sb.WriteString("\n")

	if len(r.result.PerSymbol) > 0 {
		sb.WriteString("PER-SYMBOL BREAKDOWN\n")
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(r.renderBreakdown(r.result.PerSymbol))
		sb.WriteString("\n")
	}

	if len(r.result.PerStrengthBucket) > 0 {
		sb.WriteString("PER-SIGNAL-STRENGTH BREAKDOWN\n")
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(r.renderBreakdown(r.result.PerStrengthBucket))
		sb.WriteString("\n")
	}

	sb.WriteString("PERFORMANCE SUMMARY\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(r.getPerformanceGrade())
	sb.WriteString("\n")

	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return sb.String()
}

// renderBreakdown formats a symbol/bucket -> SymbolMetrics map sorted by key.
func (r *ReportGenerator) renderBreakdown(groups map[string]SymbolMetrics) string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sm := groups[k]
		sb.WriteString(fmt.Sprintf("%-10s trades=%-4d win_rate=%5.1f%% pnl=$%10.2f profit_factor=%.2f\n",
			k, sm.TradeCount, sm.WinRate, sm.TotalPnL, sm.ProfitFactor))
	}
	return sb.String()
}

// GenerateTradeLog creates a detailed trade-by-trade log.
func (r *ReportGenerator) GenerateTradeLog() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("DETAILED TRADE LOG\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	if len(r.result.Trades) == 0 {
		sb.WriteString("No trades executed\n")
		return sb.String()
	}

	for i, t := range r.result.Trades {
		sb.WriteString(fmt.Sprintf("Trade #%d\n", i+1))
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Symbol:       %s\n", t.Symbol))
		sb.WriteString(fmt.Sprintf("Direction:    %s\n", t.Direction))
		sb.WriteString(fmt.Sprintf("Signal:       %s @ strength %d\n", t.SignalTime.Format("2006-01-02 15:04:05"), t.SignalStrength))
		sb.WriteString(fmt.Sprintf("First Entry:  %s @ $%.2f\n", t.FirstEntryTime.Format("2006-01-02 15:04:05"), t.AvgEntryPrice))
		if !t.LastExitTime.IsZero() {
			sb.WriteString(fmt.Sprintf("Last Exit:    %s\n", t.LastExitTime.Format("2006-01-02 15:04:05")))
		}
		sb.WriteString(fmt.Sprintf("Bars Held:    %d\n", t.BarsHeld))
		sb.WriteString(fmt.Sprintf("Realized P&L: $%.2f\n", t.RealizedPnL))
		sb.WriteString(fmt.Sprintf("Total P&L:    $%.2f\n", t.TotalPnL))
		sb.WriteString(fmt.Sprintf("Commissions:  $%.2f   Slippage: $%.2f\n", t.TotalCommissions, t.TotalSlippage))
		sb.WriteString(fmt.Sprintf("MFE/MAE:      %.2f%% / %.2f%%\n", t.MaxFavorableExcursionPct, t.MaxAdverseExcursionPct))
		sb.WriteString(fmt.Sprintf("Status:       %s\n", t.Status))
		sb.WriteString(fmt.Sprintf("Exit Reason:  %s\n", t.ExitReason))
		if t.ExitManagerTriggered {
			sb.WriteString("Exit Manager: triggered\n")
		}

		if t.TotalPnL > 0 {
			sb.WriteString("Result:       WIN\n")
		} else {
			sb.WriteString("Result:       LOSS\n")
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// SaveToFile writes the console report and trade log to a timestamped file
// under outputDir.
func (r *ReportGenerator) SaveToFile(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("backtest: create report dir: %w", err)
	}

	symbol := "multi"
	if len(r.result.Config.Symbols) == 1 {
		symbol = r.result.Config.Symbols[0]
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("backtest_%s_%s.txt", symbol, timestamp)
	outPath := filepath.Join(outputDir, filename)

	var report strings.Builder
	report.WriteString(r.GenerateConsoleReport())
	report.WriteString("\n")
	report.WriteString(r.GenerateTradeLog())

	if err := os.WriteFile(outPath, []byte(report.String()), 0o644); err != nil {
		return fmt.Errorf("backtest: write report file: %w", err)
	}

	return nil
}

// getPerformanceGrade provides a qualitative assessment of the headline
// metrics, unchanged in spirit from the teacher's grading thresholds.
func (r *ReportGenerator) getPerformanceGrade() string {
	var sb strings.Builder
	m := r.result.Metrics

	switch {
	case m["profit_factor"] >= 2.0:
		sb.WriteString("Profit Factor: EXCELLENT (>= 2.0)\n")
	case m["profit_factor"] >= 1.5:
		sb.WriteString("Profit Factor: GOOD (>= 1.5)\n")
	case m["profit_factor"] >= 1.0:
		sb.WriteString("Profit Factor: BREAK-EVEN (>= 1.0)\n")
	default:
		sb.WriteString("Profit Factor: POOR (< 1.0)\n")
	}

	switch {
	case m["win_rate"] >= 60:
		sb.WriteString("Win Rate: EXCELLENT (>= 60%)\n")
	case m["win_rate"] >= 50:
		sb.WriteString("Win Rate: GOOD (>= 50%)\n")
	case m["win_rate"] >= 40:
		sb.WriteString("Win Rate: FAIR (>= 40%)\n")
	default:
		sb.WriteString("Win Rate: POOR (< 40%)\n")
	}

	switch {
	case m["sharpe_ratio"] >= 2.0:
		sb.WriteString("Sharpe Ratio: EXCELLENT (>= 2.0)\n")
	case m["sharpe_ratio"] >= 1.0:
		sb.WriteString("Sharpe Ratio: GOOD (>= 1.0)\n")
	case m["sharpe_ratio"] >= 0.5:
		sb.WriteString("Sharpe Ratio: FAIR (>= 0.5)\n")
	default:
		sb.WriteString("Sharpe Ratio: POOR (< 0.5)\n")
	}

	switch {
	case m["max_drawdown_pct"] <= 10:
		sb.WriteString("Max Drawdown: EXCELLENT (<= 10%)\n")
	case m["max_drawdown_pct"] <= 20:
		sb.WriteString("Max Drawdown: GOOD (<= 20%)\n")
	case m["max_drawdown_pct"] <= 30:
		sb.WriteString("Max Drawdown: FAIR (<= 30%)\n")
	default:
		sb.WriteString("Max Drawdown: POOR (> 30%)\n")
	}

	switch {
	case m["total_return_pct"] >= 20:
		sb.WriteString("Total Return: EXCELLENT (>= 20%)\n")
	case m["total_return_pct"] >= 10:
		sb.WriteString("Total Return: GOOD (>= 10%)\n")
	case m["total_return_pct"] >= 0:
		sb.WriteString("Total Return: FAIR (>= 0%)\n")
	default:
		sb.WriteString("Total Return: LOSS (< 0%)\n")
	}

	return sb.String()
}
