// Package exitmanager defines the per-bar dynamic exit evaluation
// contract: given a trade's current state, decide whether conditions have
// deteriorated enough to recommend or force an early close. The scoring
// rule-set is external; this package fixes only the interface and ships
// one reference implementation for tests.
package exitmanager

import (
	"time"

	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// Urgency is the exit manager's recommendation strength.
type Urgency int

const (
	None Urgency = iota
	Watch
	Recommended
	Urgent
)

func (u Urgency) String() string {
	switch u {
	case None:
		return "NONE"
	case Watch:
		return "WATCH"
	case Recommended:
		return "RECOMMENDED"
	case Urgent:
		return "URGENT"
	default:
		return "UNKNOWN"
	}
}

// ActsOn reports whether the engine should act on (close the trade for)
// this urgency level: URGENT and RECOMMENDED do, WATCH is advisory only.
func (u Urgency) ActsOn() bool {
	return u == Recommended || u == Urgent
}

// Input is the per-bar context an exit manager evaluates.
type Input struct {
	Signal        *signal.Signal
	AvgEntryPrice float64
	CurrentPrice  float64
	BarsHeld      int
	Timestamp     time.Time
}

// Result is the exit manager's verdict for one bar.
type Result struct {
	ShouldExit bool
	Urgency    Urgency
	Score      float64
	Reason     string
}

// Manager evaluates dynamic exit conditions for one active trade per bar.
type Manager interface {
	Evaluate(in Input) Result
}

// DeteriorationConfig parameterizes DeteriorationManager.
type DeteriorationConfig struct {
	MinProfitPerShare   float64       // below this, a stall after MaxBarsHeld is flagged, default 0.10
	MaxBarsHeld         int           // bars after which a stalled unprofitable trade is recommended for exit, default 20
	AdverseExcursionPct float64       // adverse move beyond which urgency escalates, default -1.5
	BreakevenAfterBars  int // bars after which a trade sitting near breakeven is watched, default 10
}

// DefaultDeteriorationConfig returns conventional thresholds.
func DefaultDeteriorationConfig() DeteriorationConfig {
	return DeteriorationConfig{
		MinProfitPerShare:   0.10,
		MaxBarsHeld:         20,
		AdverseExcursionPct: -1.5,
		BreakevenAfterBars:  10,
	}
}

// DeteriorationManager is a reference exit manager: it scores a trade's
// deterioration from how long it has been held without reaching minimum
// profitability and from the current adverse move, collapsing the result
// into an urgency. Grounded on the pack's "early exit on stalled
// unprofitable trade" + "time decay" pattern.
type DeteriorationManager struct {
	cfg DeteriorationConfig
}

// NewDeteriorationManager builds a DeteriorationManager with cfg.
func NewDeteriorationManager(cfg DeteriorationConfig) *DeteriorationManager {
	return &DeteriorationManager{cfg: cfg}
}

func (d *DeteriorationManager) Evaluate(in Input) Result {
	long := in.Signal.Direction == signal.Long

	var movePct float64
	if in.AvgEntryPrice != 0 {
		if long {
			movePct = (in.CurrentPrice - in.AvgEntryPrice) / in.AvgEntryPrice * 100
		} else {
			movePct = (in.AvgEntryPrice - in.CurrentPrice) / in.AvgEntryPrice * 100
		}
	}

	var profitPerShare float64
	if long {
		profitPerShare = in.CurrentPrice - in.AvgEntryPrice
	} else {
		profitPerShare = in.AvgEntryPrice - in.CurrentPrice
	}

	score := 0.0
	if movePct < d.cfg.AdverseExcursionPct {
		score += 60
	}
	if in.BarsHeld >= d.cfg.MaxBarsHeld && profitPerShare < d.cfg.MinProfitPerShare {
		score += 40
	} else if in.BarsHeld >= d.cfg.BreakevenAfterBars && profitPerShare < d.cfg.MinProfitPerShare {
		score += 20
	}

	switch {
	case score >= 60:
		return Result{ShouldExit: true, Urgency: Urgent, Score: score, Reason: "adverse excursion beyond threshold"}
	case score >= 40:
		return Result{ShouldExit: true, Urgency: Recommended, Score: score, Reason: "stalled without reaching minimum profitability"}
	case score >= 20:
		return Result{ShouldExit: false, Urgency: Watch, Score: score, Reason: "approaching stall threshold"}
	default:
		return Result{ShouldExit: false, Urgency: None, Score: score, Reason: ""}
	}
}
