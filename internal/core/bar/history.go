package bar

import "github.com/bikeshrana/laddertest/pkg/types"

// History exposes the bars seen so far for one symbol, strictly up to and
// including the current bar. It is handed to a SignalSource so that a
// conforming implementation can never observe a future bar (I1).
type History struct {
	bars []types.Bar
}

// Append records a newly observed bar. Called by the engine once per bar,
// before handing the History to a SignalSource for that symbol.
func (h *History) Append(b types.Bar) {
	h.bars = append(h.bars, b)
}

// Bars returns all bars observed so far, oldest first. The slice is owned
// by the History; callers must not mutate it.
func (h *History) Bars() []types.Bar {
	return h.bars
}

// Current returns the most recently appended bar and true, or the zero
// value and false if nothing has been appended yet.
func (h *History) Current() (types.Bar, bool) {
	if len(h.bars) == 0 {
		return types.Bar{}, false
	}
	return h.bars[len(h.bars)-1], true
}

// Len reports how many bars have been observed so far.
func (h *History) Len() int {
	return len(h.bars)
}

// Tracker maintains one History per symbol as a Stream is consumed.
type Tracker struct {
	bySymbol map[string]*History
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{bySymbol: make(map[string]*History)}
}

// Observe appends b to the symbol's History, creating it on first use, and
// returns that History.
func (t *Tracker) Observe(symbol string, b types.Bar) *History {
	h, ok := t.bySymbol[symbol]
	if !ok {
		h = &History{}
		t.bySymbol[symbol] = h
	}
	h.Append(b)
	return h
}

// For returns the History for symbol without appending, or an empty History
// if the symbol has not been observed yet.
func (t *Tracker) For(symbol string) *History {
	h, ok := t.bySymbol[symbol]
	if !ok {
		return &History{}
	}
	return h
}
