// Package position derives a PositionPlan — entry ladder, stop-loss, and
// exit ladder — from a Signal and account state under a fixed-risk sizing
// policy.
package position

import (
	"math"

	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// Config parameterizes the Planner. Defaults mirror the conventional
// fixed-risk ladder described for this strategy family.
type Config struct {
	RiskPerTradePct          float64    // fraction of equity risked per trade, e.g. 0.015
	MaxLeverage              float64    // upper bound on shares*price/equity, default 1.0
	EntryLadderFractions     [3]float64 // must sum to 1.0, default [0.4, 0.3, 0.3]
	EntrySpacingATRMultiples [2]float64 // offsets for entry levels 2 and 3, in ATR multiples
	StopLossATRMultiple      float64    // positive float
	ExitLadder               [4]ExitSpec
}

// ExitSpec is one take-profit rung: RMultiple is expressed in multiples of
// R (the entry-1-to-stop-loss distance), and PercentOfCurrent is the
// fraction of shares held *at the moment that rung fires* to close.
type ExitSpec struct {
	RMultiple         float64
	PercentOfCurrent  float64
}

// DefaultConfig returns the conventional ladder: 40/30/30 entries, a
// 1R/2R/3R/4R exit ladder closing 25/33/50/100% of current holdings.
func DefaultConfig() Config {
	return Config{
		RiskPerTradePct:          0.015,
		MaxLeverage:              1.0,
		EntryLadderFractions:     [3]float64{0.4, 0.3, 0.3},
		EntrySpacingATRMultiples: [2]float64{1.0, 2.0},
		StopLossATRMultiple:      2.0,
		ExitLadder: [4]ExitSpec{
			{RMultiple: 1, PercentOfCurrent: 0.25},
			{RMultiple: 2, PercentOfCurrent: 0.33},
			{RMultiple: 3, PercentOfCurrent: 0.50},
			{RMultiple: 4, PercentOfCurrent: 1.00},
		},
	}
}

// EntryLevel is one rung of the entry ladder.
type EntryLevel struct {
	Price  float64
	Shares int
}

// ExitLevel is one rung of the take-profit ladder.
type ExitLevel struct {
	Price            float64
	PercentOfCurrent float64
}

// Plan is a fully derived PositionPlan, ready for TradeManager to open a
// Trade against.
type Plan struct {
	Direction   signal.Direction
	Entries     [3]EntryLevel
	StopLoss    float64
	Exits       [4]ExitLevel
	TotalShares int
}

// Planner derives Plans under a fixed-risk policy.
type Planner struct {
	cfg Config
}

// NewPlanner builds a Planner with cfg.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan derives a PositionPlan from sig and the current equity, using atr as
// the signal-bar ATR (absolute price units). Returns (nil, nil) — a soft
// rejection, not an error — when risk_per_share <= 0 or equity <= 0.
func (p *Planner) Plan(sig *signal.Signal, equity float64, atr float64) (*Plan, error) {
	if equity <= 0 {
		return nil, nil
	}

	entry1 := sig.Price
	long := sig.Direction == signal.Long

	var stopLoss float64
	if long {
		stopLoss = entry1 - p.cfg.StopLossATRMultiple*atr
	} else {
		stopLoss = entry1 + p.cfg.StopLossATRMultiple*atr
	}

	riskPerShare := math.Abs(entry1 - stopLoss)
	if riskPerShare <= 0 {
		return nil, nil
	}

	targetRiskDollars := equity * p.cfg.RiskPerTradePct
	shares := int(math.Floor(targetRiskDollars / riskPerShare))

	maxShares := int(math.Floor(p.cfg.MaxLeverage * equity / entry1))
	if shares > maxShares {
		shares = maxShares
	}
	if shares == 0 && equity >= entry1 {
		shares = 1
	}
	if shares < 0 {
		shares = 0
	}

	plan := &Plan{
		Direction:   sig.Direction,
		StopLoss:    stopLoss,
		TotalShares: shares,
	}

	// Step 5: allocate per-entry share counts; rounding residuals go to level 1.
	var allocated int
	for i := 1; i < 3; i++ {
		s := int(math.Floor(float64(shares) * p.cfg.EntryLadderFractions[i]))
		plan.Entries[i].Shares = s
		allocated += s
	}
	plan.Entries[0].Shares = shares - allocated

	var spacingSign float64 = -1
	if !long {
		spacingSign = 1
	}
	plan.Entries[0].Price = entry1
	plan.Entries[1].Price = entry1 + spacingSign*p.cfg.EntrySpacingATRMultiples[0]*atr
	plan.Entries[2].Price = entry1 + spacingSign*p.cfg.EntrySpacingATRMultiples[1]*atr

	// Step 6: exit prices from R and the ladder spec.
	for i, spec := range p.cfg.ExitLadder {
		var price float64
		if long {
			price = entry1 + spec.RMultiple*riskPerShare
		} else {
			price = entry1 - spec.RMultiple*riskPerShare
		}
		plan.Exits[i] = ExitLevel{Price: price, PercentOfCurrent: spec.PercentOfCurrent}
	}

	return plan, nil
}
