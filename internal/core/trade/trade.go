package trade

import (
	"time"

	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// Action identifies the side of an Execution.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionCover Action = "COVER"
	ActionShort Action = "SHORT"
)

// Execution is an immutable record of one fill, appended to its owning
// Trade and never deleted.
type Execution struct {
	Timestamp  time.Time
	Action     Action
	Price      float64
	Shares     int
	Commission float64
}

// entryLevel tracks one rung of the entry ladder.
type entryLevel struct {
	executed bool
	price    float64
	shares   int
	time     time.Time
}

// exitLevel tracks one rung of the take-profit ladder.
type exitLevel struct {
	executed bool
	price    float64
	shares   int
	pnl      float64
}

// Trade tracks one in-flight position for a symbol: its fills, weighted
// average entry price, realized/unrealized P&L, and excursions.
type Trade struct {
	ID     int
	Symbol string
	Signal *signal.Signal
	Plan   *position.Plan

	Direction signal.Direction
	State     State

	SignalTime     time.Time
	FirstEntryTime time.Time
	LastExitTime   time.Time

	entries [3]entryLevel
	exits   [4]exitLevel

	StopLossHit          bool
	StopLossPrice        float64
	StopLossPnL          float64
	ExitManagerTriggered bool

	// CurrentShares is signed: positive for LONG, negative for SHORT.
	CurrentShares  int
	AvgEntryPrice  float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	TotalCommissions float64
	TotalSlippage  float64
	BarsHeld       int

	MaxFavorableExcursionPct float64
	MaxAdverseExcursionPct   float64

	ExitReason ExitReason

	Executions []Execution
}

// New creates a Trade in state Pending for sig and plan. Trade identity and
// registration into a symbol index is Manager's responsibility.
func New(id int, sig *signal.Signal, plan *position.Plan) *Trade {
	return &Trade{
		ID:         id,
		Symbol:     sig.Symbol,
		Signal:     sig,
		Plan:       plan,
		Direction:  sig.Direction,
		State:      Pending,
		SignalTime: sig.Timestamp,
	}
}

func (t *Trade) sign() int {
	if t.Direction == signal.Long {
		return 1
	}
	return -1
}

// magnitude returns the absolute share count currently held.
func (t *Trade) magnitude() int {
	if t.CurrentShares < 0 {
		return -t.CurrentShares
	}
	return t.CurrentShares
}

// ExecuteEntry fills entry ladder level (1, 2, or 3). Permitted only if the
// level has not executed and the prior level has (level 1 has no
// predecessor). Returns a *PreconditionError if those conditions are
// violated — this indicates a bug in the engine's dispatch, not a soft
// rejection.
func (t *Trade) ExecuteEntry(level int, price float64, ts time.Time, commissionFunc func(shares int) float64, slippage float64, sharesOverride int) error {
	if level < 1 || level > 3 {
		return &PreconditionError{TradeID: t.ID, Err: ErrEntryLevelOutOfOrder}
	}
	idx := level - 1
	if t.entries[idx].executed {
		return &PreconditionError{TradeID: t.ID, Err: ErrEntryLevelExecuted}
	}
	if level > 1 && !t.entries[idx-1].executed {
		return &PreconditionError{TradeID: t.ID, Err: ErrEntryLevelOutOfOrder}
	}

	shares := sharesOverride
	if shares <= 0 {
		shares = t.Plan.Entries[idx].Shares
	}
	if shares <= 0 {
		return nil
	}

	t.entries[idx] = entryLevel{executed: true, price: price, shares: shares, time: ts}
	if idx == 0 {
		t.FirstEntryTime = ts
	}

	commission := commissionFunc(shares)
	action := ActionBuy
	if t.Direction == signal.Short {
		action = ActionShort
	}
	t.Executions = append(t.Executions, Execution{Timestamp: ts, Action: action, Price: price, Shares: shares, Commission: commission})
	t.TotalCommissions += commission
	t.TotalSlippage += slippage * float64(shares)

	prevMag := t.magnitude()
	newMag := prevMag + shares
	totalCostBefore := float64(prevMag) * t.AvgEntryPrice
	t.AvgEntryPrice = (totalCostBefore + float64(shares)*price) / float64(newMag)
	t.CurrentShares = newMag * t.sign()

	switch {
	case level == 1:
		t.State = Partial
	case level == 3 || (level == 2 && t.entries[2].executed):
		t.State = Active
	default:
		t.State = Partial
	}
	return nil
}

// ExecuteExit fills an exit rung. kind selects the policy for shares
// closed: TP1 closes 25% of current shares (min 1), TP2 33% of what then
// remains, TP3 50% of what then remains, TP4/SL/EXIT_MANAGER close all
// remaining shares. Returns the realized P&L for the closed portion
// (commission-net) and a *PreconditionError if preconditions are violated.
func (t *Trade) ExecuteExit(kind ExitKind, price float64, ts time.Time, reason ExitReason, commissionFunc func(shares int) float64, slippage float64) (float64, error) {
	if t.CurrentShares == 0 {
		return 0, nil
	}
	mag := t.magnitude()

	var shares int
	switch kind {
	case ExitTP1:
		if t.exits[0].executed {
			return 0, &PreconditionError{TradeID: t.ID, Err: ErrExitLevelExecuted}
		}
		shares = int(float64(mag) * 0.25)
		if shares == 0 {
			shares = 1
		}
	case ExitTP2:
		if !t.exits[0].executed {
			return 0, &PreconditionError{TradeID: t.ID, Err: ErrExitLevelOutOfOrder}
		}
		if t.exits[1].executed {
			return 0, &PreconditionError{TradeID: t.ID, Err: ErrExitLevelExecuted}
		}
		shares = int(float64(mag) * 0.33)
		if shares == 0 {
			shares = 1
		}
	case ExitTP3:
		if !t.exits[1].executed {
			return 0, &PreconditionError{TradeID: t.ID, Err: ErrExitLevelOutOfOrder}
		}
		if t.exits[2].executed {
			return 0, &PreconditionError{TradeID: t.ID, Err: ErrExitLevelExecuted}
		}
		shares = int(float64(mag) * 0.50)
		if shares == 0 {
			shares = 1
		}
	case ExitTP4:
		shares = mag
	case ExitSL:
		shares = mag
		t.StopLossHit = true
		t.StopLossPrice = price
	case ExitManagerKind:
		shares = mag
		t.ExitManagerTriggered = true
	}

	if shares > mag {
		shares = mag
	}

	var grossPnL float64
	if t.Direction == signal.Long {
		grossPnL = (price - t.AvgEntryPrice) * float64(shares)
	} else {
		grossPnL = (t.AvgEntryPrice - price) * float64(shares)
	}
	commission := commissionFunc(shares)
	pnl := grossPnL - commission

	action := ActionSell
	if t.Direction == signal.Short {
		action = ActionCover
	}
	t.Executions = append(t.Executions, Execution{Timestamp: ts, Action: action, Price: price, Shares: shares, Commission: commission})
	t.TotalCommissions += commission
	t.TotalSlippage += slippage * float64(shares)

	t.RealizedPnL += pnl

	switch kind {
	case ExitTP1:
		t.exits[0] = exitLevel{executed: true, price: price, shares: shares, pnl: pnl}
	case ExitTP2:
		t.exits[1] = exitLevel{executed: true, price: price, shares: shares, pnl: pnl}
	case ExitTP3:
		t.exits[2] = exitLevel{executed: true, price: price, shares: shares, pnl: pnl}
	case ExitTP4:
		t.exits[3] = exitLevel{executed: true, price: price, shares: shares, pnl: pnl}
	case ExitSL:
		t.StopLossPnL = pnl
	}

	mag -= shares
	t.CurrentShares = mag * t.sign()

	if mag == 0 {
		t.LastExitTime = ts
		t.ExitReason = reason
		// The position is flat: nothing remains to mark, and leaving a
		// stale mark from this bar's step-1 UpdateUnrealized would double
		// count whatever portion of it this exit just realized.
		t.UnrealizedPnL = 0
		t.State = t.classifyClose(kind)
	} else {
		t.State = Closing
	}

	return pnl, nil
}

// classifyClose resolves the CLOSED_* status at full close, following the
// win/loss-by-sign rule with an exit-manager override: a nonpositive-P&L
// close fully attributable to the exit manager is tagged
// CLOSED_EXIT_MANAGER rather than CLOSED_LOSS, but never overrides a win.
// Decided on RealizedPnL alone — at full close the position is flat, so
// RealizedPnL already is the trade's total P&L.
func (t *Trade) classifyClose(kind ExitKind) State {
	if t.RealizedPnL > 0 {
		return ClosedWin
	}
	if kind == ExitManagerKind {
		return ClosedExitManager
	}
	return ClosedLoss
}

// TotalPnL recomputes and returns RealizedPnL + UnrealizedPnL.
func (t *Trade) TotalPnL() float64 {
	return t.RealizedPnL + t.UnrealizedPnL
}

// estimatedCloseCommissionRate approximates the commission a full close of
// the remaining position would incur, subtracted from unrealized P&L so it
// is not overstated before the position is actually closed.
const estimatedCloseCommissionRate = 0.005

// UpdateUnrealized recomputes unrealized P&L from currentPrice and updates
// the running favorable/adverse excursion percentages.
func (t *Trade) UpdateUnrealized(currentPrice float64) {
	if t.CurrentShares == 0 {
		t.UnrealizedPnL = 0
	} else {
		mag := t.magnitude()
		var pnl float64
		if t.Direction == signal.Long {
			pnl = (currentPrice - t.AvgEntryPrice) * float64(mag)
		} else {
			pnl = (t.AvgEntryPrice - currentPrice) * float64(mag)
		}
		pnl -= float64(mag) * estimatedCloseCommissionRate
		t.UnrealizedPnL = pnl
	}

	if t.AvgEntryPrice == 0 {
		return
	}
	var movePct float64
	if t.Direction == signal.Long {
		movePct = (currentPrice - t.AvgEntryPrice) / t.AvgEntryPrice * 100
	} else {
		movePct = (t.AvgEntryPrice - currentPrice) / t.AvgEntryPrice * 100
	}
	if movePct > t.MaxFavorableExcursionPct {
		t.MaxFavorableExcursionPct = movePct
	}
	if movePct < t.MaxAdverseExcursionPct {
		t.MaxAdverseExcursionPct = movePct
	}
}

// EntryExecuted reports whether entry ladder level (1-3) has filled.
func (t *Trade) EntryExecuted(level int) bool {
	if level < 1 || level > 3 {
		return false
	}
	return t.entries[level-1].executed
}

// EntryPrice returns the fill price of entry level (1-3), or 0 if unfilled.
func (t *Trade) EntryPrice(level int) float64 {
	if level < 1 || level > 3 {
		return 0
	}
	return t.entries[level-1].price
}

// ExitExecuted reports whether take-profit rung tp (1-4) has fired.
func (t *Trade) ExitExecuted(tp int) bool {
	if tp < 1 || tp > 4 {
		return false
	}
	return t.exits[tp-1].executed
}

// PriorExitExecuted reports whether the rung immediately below tp has
// fired, or true for tp==1 (no predecessor).
func (t *Trade) PriorExitExecuted(tp int) bool {
	if tp <= 1 {
		return true
	}
	return t.ExitExecuted(tp - 1)
}
