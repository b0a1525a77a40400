// Package bar merges per-symbol chronological OHLCV series into a single
// time-ordered stream for the backtest engine to drive.
package bar

import (
	"sort"
	"time"

	"github.com/bikeshrana/laddertest/pkg/types"
)

// Event is one (timestamp, symbol, bar) triple yielded by a Stream.
type Event struct {
	Timestamp time.Time
	Symbol    string
	Bar       types.Bar
}

// Stream is a single-pass, finite forward iterator over bars from multiple
// symbols in non-decreasing timestamp order. Ties at the same timestamp are
// broken by lexicographic symbol order. Stream never performs I/O; all bars
// must already be memory-resident.
type Stream struct {
	events []Event
	pos    int
}

// NewStream builds a Stream from a mapping of symbol to chronologically
// sorted bars. It fails if any per-symbol sequence is not monotonically
// increasing in timestamp or if any bar fails its OHLC invariants.
func NewStream(bySymbol map[string][]types.Bar) (*Stream, error) {
	if len(bySymbol) == 0 {
		return nil, ErrEmptySymbolSet
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var events []Event
	for _, sym := range symbols {
		bars := bySymbol[sym]
		var prev time.Time
		for i, b := range bars {
			if err := b.Validate(); err != nil {
				return nil, err
			}
			if i > 0 && !b.Timestamp.After(prev) {
				return nil, ErrNonMonotonicTimestamps
			}
			prev = b.Timestamp
			events = append(events, Event{Timestamp: b.Timestamp, Symbol: sym, Bar: b})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Symbol < events[j].Symbol
	})

	return &Stream{events: events}, nil
}

// Next returns the next event in chronological order, or ok=false once the
// stream is exhausted.
func (s *Stream) Next() (Event, bool) {
	if s.pos >= len(s.events) {
		return Event{}, false
	}
	e := s.events[s.pos]
	s.pos++
	return e, true
}

// Len reports the total number of events in the stream, regardless of
// how many have already been consumed.
func (s *Stream) Len() int {
	return len(s.events)
}

// Reset rewinds the stream to its first event, allowing a second pass over
// the same bars.
func (s *Stream) Reset() {
	s.pos = 0
}

// Slice returns a new Stream containing only events with timestamp in
// [from, to), independent of and unaffected by this Stream's read position.
// Used by internal/batch to carve in-sample/out-of-sample windows for
// walk-forward validation.
func (s *Stream) Slice(from, to time.Time) *Stream {
	var events []Event
	for _, e := range s.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			events = append(events, e)
		}
	}
	return &Stream{events: events}
}
