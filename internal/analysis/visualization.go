package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bikeshrana/laddertest/internal/backtest"
)

// EquityCurvePoint is one exportable point on a run's equity curve,
// enriched with running drawdown and cumulative return.
type EquityCurvePoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Equity           float64   `json:"equity"`
	Drawdown         float64   `json:"drawdown"`
	DrawdownPct      float64   `json:"drawdown_pct"`
	CumulativeReturn float64   `json:"cumulative_return"`
}

// DrawdownPeriod describes one peak-to-trough-to-recovery excursion.
type DrawdownPeriod struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	RecoveryTime   time.Time `json:"recovery_time,omitempty"`
	PeakEquity     float64   `json:"peak_equity"`
	TroughEquity   float64   `json:"trough_equity"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Duration       string    `json:"duration"`
	Recovered      bool      `json:"recovered"`
}

// VisualizationData is the exportable shape fed to external charting —
// never consumed by the engine itself.
type VisualizationData struct {
	EquityCurve      []EquityCurvePoint `json:"equity_curve"`
	DrawdownPeriods  []DrawdownPeriod   `json:"drawdown_periods"`
	WinDistribution  []float64          `json:"win_distribution"`
	LossDistribution []float64          `json:"loss_distribution"`
	MonthlyReturns   map[string]float64 `json:"monthly_returns"`

	Symbols        []string `json:"symbols"`
	InitialCapital float64  `json:"initial_capital"`
	FinalCapital   float64  `json:"final_capital"`
}

// BuildVisualizationData derives a VisualizationData from a completed run.
func BuildVisualizationData(result *backtest.RunResult) *VisualizationData {
	viz := &VisualizationData{
		Symbols:        result.Config.Symbols,
		InitialCapital: result.InitialCapital,
		FinalCapital:   result.FinalCapital,
		MonthlyReturns: make(map[string]float64),
	}

	viz.EquityCurve = buildEquityCurve(result)
	viz.DrawdownPeriods = identifyDrawdownPeriods(viz.EquityCurve)
	viz.WinDistribution, viz.LossDistribution = splitTradeDistribution(result.Trades)
	viz.MonthlyReturns = monthlyReturns(result.Trades)

	return viz
}

func buildEquityCurve(result *backtest.RunResult) []EquityCurvePoint {
	points := make([]EquityCurvePoint, len(result.EquityCurve))

	peak := result.InitialCapital
	for i, ep := range result.EquityCurve {
		if ep.Equity > peak {
			peak = ep.Equity
		}
		drawdown := peak - ep.Equity
		var drawdownPct float64
		if peak > 0 {
			drawdownPct = drawdown / peak * 100
		}

		points[i] = EquityCurvePoint{
			Timestamp:        ep.Timestamp,
			Equity:           ep.Equity,
			Drawdown:         drawdown,
			DrawdownPct:      drawdownPct,
			CumulativeReturn: (ep.Equity - result.InitialCapital) / result.InitialCapital * 100,
		}
	}

	return points
}

func identifyDrawdownPeriods(curve []EquityCurvePoint) []DrawdownPeriod {
	if len(curve) == 0 {
		return nil
	}

	var periods []DrawdownPeriod
	var current *DrawdownPeriod
	peak := curve[0].Equity
	peakTime := curve[0].Timestamp

	for _, point := range curve {
		switch {
		case point.Equity > peak:
			if current != nil {
				current.RecoveryTime = point.Timestamp
				current.Recovered = true
				current.Duration = current.RecoveryTime.Sub(current.StartTime).String()
				periods = append(periods, *current)
				current = nil
			}
			peak = point.Equity
			peakTime = point.Timestamp
		case point.Equity < peak:
			if current == nil {
				current = &DrawdownPeriod{StartTime: peakTime, PeakEquity: peak, TroughEquity: peak}
			}
			if point.Equity < current.TroughEquity {
				current.TroughEquity = point.Equity
				current.EndTime = point.Timestamp
				dd := peak - point.Equity
				current.MaxDrawdown = dd
				current.MaxDrawdownPct = dd / peak * 100
			}
		}
	}

	if current != nil {
		current.Recovered = false
		current.Duration = curve[len(curve)-1].Timestamp.Sub(current.StartTime).String()
		periods = append(periods, *current)
	}

	return periods
}

func splitTradeDistribution(trades []backtest.TradeRecord) (wins, losses []float64) {
	for _, t := range trades {
		if t.TotalPnL > 0 {
			wins = append(wins, t.TotalPnL)
		} else {
			losses = append(losses, t.TotalPnL)
		}
	}
	return wins, losses
}

func monthlyReturns(trades []backtest.TradeRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range trades {
		if t.LastExitTime.IsZero() {
			continue
		}
		out[t.LastExitTime.Format("2006-01")] += t.TotalPnL
	}
	return out
}

// ExportToJSON writes viz to path as indented JSON.
func (viz *VisualizationData) ExportToJSON(path string) error {
	data, err := json.MarshalIndent(viz, "", "  ")
	if err != nil {
		return fmt.Errorf("analysis: marshal visualization data: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportEquityCurveToCSV writes the equity curve to path as CSV.
func (viz *VisualizationData) ExportEquityCurveToCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("analysis: create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"Timestamp", "Equity", "Drawdown", "DrawdownPct", "CumulativeReturn"}); err != nil {
		return err
	}
	for _, p := range viz.EquityCurve {
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.2f", p.Equity),
			fmt.Sprintf("%.2f", p.Drawdown),
			fmt.Sprintf("%.2f", p.DrawdownPct),
			fmt.Sprintf("%.2f", p.CumulativeReturn),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ExportTradesToCSV writes trades to path as CSV.
func ExportTradesToCSV(trades []backtest.TradeRecord, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("analysis: create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{
		"TradeID", "Symbol", "Direction",
		"FirstEntryTime", "AvgEntryPrice",
		"LastExitTime", "RealizedPnL", "TotalPnL",
		"Commissions", "Slippage", "Status", "ExitReason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			fmt.Sprintf("%d", t.TradeID),
			t.Symbol,
			t.Direction,
			t.FirstEntryTime.Format(time.RFC3339),
			fmt.Sprintf("%.2f", t.AvgEntryPrice),
			t.LastExitTime.Format(time.RFC3339),
			fmt.Sprintf("%.2f", t.RealizedPnL),
			fmt.Sprintf("%.2f", t.TotalPnL),
			fmt.Sprintf("%.2f", t.TotalCommissions),
			fmt.Sprintf("%.2f", t.TotalSlippage),
			t.Status,
			t.ExitReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
