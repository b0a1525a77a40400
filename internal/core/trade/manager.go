package trade

import (
	"time"

	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// Manager owns the full list of Trades (append-only) and an index from
// symbol to the active trade's position in that list. It never keeps
// back-pointers from Trade to Manager — the symbol index stores only that
// position.
type Manager struct {
	trades []*Trade
	active map[string]int // symbol -> index into trades of the active trade
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]int)}
}

// OpenTrade creates a new Trade in state Pending for sig/plan, indexed
// under sig.Symbol. Returns a *PreconditionError if a trade is already
// active for that symbol — the engine must check HasActive first.
func (m *Manager) OpenTrade(sig *signal.Signal, plan *position.Plan) (*Trade, error) {
	if _, ok := m.active[sig.Symbol]; ok {
		return nil, &PreconditionError{Err: ErrSymbolAlreadyActive}
	}
	id := len(m.trades) + 1
	t := New(id, sig, plan)
	m.trades = append(m.trades, t)
	m.active[sig.Symbol] = len(m.trades) - 1
	return t, nil
}

// HasActive reports whether symbol currently has an open trade.
func (m *Manager) HasActive(symbol string) bool {
	_, ok := m.active[symbol]
	return ok
}

// ActiveCount reports the number of symbols with an open trade.
func (m *Manager) ActiveCount() int {
	return len(m.active)
}

// GetActive returns the active Trade for symbol, or nil if none.
func (m *Manager) GetActive(symbol string) *Trade {
	idx, ok := m.active[symbol]
	if !ok {
		return nil
	}
	return m.trades[idx]
}

// AllTrades returns every trade ever opened, in creation order.
func (m *Manager) AllTrades() []*Trade {
	return m.trades
}

// ClosedTrades returns every trade currently in a CLOSED_* state.
func (m *Manager) ClosedTrades() []*Trade {
	var out []*Trade
	for _, t := range m.trades {
		if t.State.Closed() {
			out = append(out, t)
		}
	}
	return out
}

// noteIfClosed removes symbol's active-trade index entry once its trade
// transitions to CLOSED_*. Callers invoke this after ExecuteExit.
func (m *Manager) noteIfClosed(t *Trade) {
	if t.State.Closed() {
		delete(m.active, t.Symbol)
	}
}

// ExecuteEntry delegates to t.ExecuteEntry.
func (m *Manager) ExecuteEntry(t *Trade, level int, price float64, ts time.Time, commissionFunc func(int) float64, slippage float64, sharesOverride int) error {
	return t.ExecuteEntry(level, price, ts, commissionFunc, slippage, sharesOverride)
}

// ExecuteExit delegates to t.ExecuteExit and, on transition to CLOSED_*,
// removes the symbol from the active index.
func (m *Manager) ExecuteExit(t *Trade, kind ExitKind, price float64, ts time.Time, reason ExitReason, commissionFunc func(int) float64, slippage float64) (float64, error) {
	pnl, err := t.ExecuteExit(kind, price, ts, reason, commissionFunc, slippage)
	if err != nil {
		return pnl, err
	}
	m.noteIfClosed(t)
	return pnl, nil
}

// TotalUnrealized sums unrealized P&L across every active trade.
func (m *Manager) TotalUnrealized() float64 {
	var total float64
	for _, idx := range m.active {
		total += m.trades[idx].UnrealizedPnL
	}
	return total
}

// UpdateAll marks-to-market every active trade against currentPrices and
// increments bars_held.
func (m *Manager) UpdateAll(currentPrices map[string]float64, ts time.Time) {
	for symbol, idx := range m.active {
		price, ok := currentPrices[symbol]
		if !ok {
			continue
		}
		t := m.trades[idx]
		t.UpdateUnrealized(price)
		t.BarsHeld++
	}
}
