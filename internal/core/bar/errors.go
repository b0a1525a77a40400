package bar

import "errors"

var (
	// ErrEmptySymbolSet is returned when NewStream is given no symbols.
	ErrEmptySymbolSet = errors.New("bar: empty symbol set")
	// ErrNonMonotonicTimestamps is returned when a per-symbol series is not
	// strictly increasing in timestamp.
	ErrNonMonotonicTimestamps = errors.New("bar: non-monotonic timestamps")
)
