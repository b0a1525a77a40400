// Package signal defines the SignalSource contract: a pure, stateless
// function from bar history to an optional trading signal. Strategy-specific
// scoring rules are out of scope; this package fixes only the shape and
// ships one reference implementation for tests.
package signal

import (
	"context"
	"time"

	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// Direction is the side of a Signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Quality is an ordered gate: NoTrade < PartialEntry < FullEntry.
type Quality int

const (
	NoTrade Quality = iota
	PartialEntry
	FullEntry
)

// AtLeast reports whether q meets or exceeds min.
func (q Quality) AtLeast(min Quality) bool {
	return q >= min
}

func (q Quality) String() string {
	switch q {
	case NoTrade:
		return "NO_TRADE"
	case PartialEntry:
		return "PARTIAL_ENTRY"
	case FullEntry:
		return "FULL_ENTRY"
	default:
		return "UNKNOWN"
	}
}

// Signal is an immutable record emitted by a Source at a specific
// (symbol, timestamp). Context carries opaque strategy state through the
// trade's lifetime for later analysis; it is never interpreted by the core.
type Signal struct {
	Symbol    string
	Timestamp time.Time
	Direction Direction
	Strength  int // 0-100
	Quality   Quality
	Price     float64 // reference price, close of the signaling bar
	Context   map[string]any
}

// Source evaluates bar history for one symbol and optionally emits a
// Signal. Implementations MUST be pure and stateless across calls (any
// memoization is per-symbol and internal) and MUST NOT access bars beyond
// the one passed as current — history exposes only bars up to and
// including it.
type Source interface {
	Evaluate(ctx context.Context, symbol string, history *bar.History, current types.Bar) (*Signal, error)
}
