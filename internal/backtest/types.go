package backtest

import (
	"time"

	"github.com/bikeshrana/laddertest/internal/core/trade"
)

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// EntryRecord is one filled rung of a trade's entry ladder.
type EntryRecord struct {
	Executed bool
	Price    float64
	Quantity int
}

// ExitRecord is one filled rung of a trade's take-profit ladder.
type ExitRecord struct {
	Executed bool
	Price    float64
	Quantity int
	PnL      float64
}

// TradeRecord is the exported, flattened subset of a Trade — the unit of
// downstream analysis (report generation, Monte Carlo resequencing,
// walk-forward aggregation).
type TradeRecord struct {
	TradeID        int
	Symbol         string
	Direction      string
	SignalTime     time.Time
	FirstEntryTime time.Time
	LastExitTime   time.Time
	Status         string

	Entries [3]EntryRecord
	Exits   [4]ExitRecord

	StopLossHit   bool
	StopLossPrice float64
	StopLossPnL   float64

	ExitManagerTriggered bool

	AvgEntryPrice    float64
	RealizedPnL      float64
	TotalPnL         float64
	TotalCommissions float64
	TotalSlippage    float64

	MaxFavorableExcursionPct float64
	MaxAdverseExcursionPct   float64
	BarsHeld                 int

	ExitReason string
	SignalStrength int
}

// NewTradeRecord flattens a *trade.Trade into its exported record form.
func NewTradeRecord(t *trade.Trade) TradeRecord {
	r := TradeRecord{
		TradeID:                  t.ID,
		Symbol:                   t.Symbol,
		Direction:                string(t.Direction),
		SignalTime:               t.SignalTime,
		FirstEntryTime:           t.FirstEntryTime,
		LastExitTime:             t.LastExitTime,
		Status:                   t.State.String(),
		StopLossHit:              t.StopLossHit,
		StopLossPrice:            t.StopLossPrice,
		StopLossPnL:              t.StopLossPnL,
		ExitManagerTriggered:     t.ExitManagerTriggered,
		AvgEntryPrice:            t.AvgEntryPrice,
		RealizedPnL:              t.RealizedPnL,
		TotalPnL:                 t.TotalPnL(),
		TotalCommissions:         t.TotalCommissions,
		TotalSlippage:            t.TotalSlippage,
		MaxFavorableExcursionPct: t.MaxFavorableExcursionPct,
		MaxAdverseExcursionPct:   t.MaxAdverseExcursionPct,
		BarsHeld:                 t.BarsHeld,
		ExitReason:               t.ExitReason.String(),
	}
	if t.Signal != nil {
		r.SignalStrength = t.Signal.Strength
	}
	for i := 1; i <= 3; i++ {
		r.Entries[i-1] = EntryRecord{Executed: t.EntryExecuted(i), Price: t.EntryPrice(i)}
	}
	for i := 1; i <= 4; i++ {
		r.Exits[i-1] = ExitRecord{Executed: t.ExitExecuted(i)}
	}
	return r
}

// RunResult is the complete, immutable record of one engine run: the
// configuration snapshot, the ordered equity curve, every closed Trade,
// and the metrics map of §4.9. The core produces no files, no console
// output, no network I/O — RunResult is the sole exposed artifact.
type RunResult struct {
	Config         Config
	InitialCapital float64
	FinalCapital   float64
	EquityCurve    []EquityPoint
	Trades         []TradeRecord
	Metrics        map[string]float64
	PerSymbol      map[string]SymbolMetrics
	PerStrengthBucket map[string]SymbolMetrics
}

// SymbolMetrics is a per-symbol or per-strength-bucket breakdown.
type SymbolMetrics struct {
	TradeCount   int
	WinRate      float64
	TotalPnL     float64
	ProfitFactor float64
}
