package backtest

import "time"

// account tracks cash and the running equity curve for one engine run. It
// never holds positions itself — those live in trade.Manager — only the
// cash side of Account from spec §3.
type account struct {
	initialCapital float64
	currentCapital float64
	peakCapital    float64
	equityCurve    []EquityPoint
}

func newAccount(initialCapital float64) *account {
	return &account{
		initialCapital: initialCapital,
		currentCapital: initialCapital,
		peakCapital:    initialCapital,
	}
}

// applyRealized credits/debits realized P&L (already commission-net) to
// cash, per §4.8 steps 3-5 ("increment account cash by realized P&L").
func (a *account) applyRealized(pnl float64) {
	a.currentCapital += pnl
}

// recordEquity appends (timestamp, equity) where equity = current cash +
// sum of unrealized P&L across active trades, and updates peak_capital as
// its running, non-decreasing maximum (I6).
func (a *account) recordEquity(ts time.Time, unrealizedTotal float64) float64 {
	equity := a.currentCapital + unrealizedTotal
	a.equityCurve = append(a.equityCurve, EquityPoint{Timestamp: ts, Equity: equity})
	if equity > a.peakCapital {
		a.peakCapital = equity
	}
	return equity
}
