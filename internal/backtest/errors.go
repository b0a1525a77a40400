package backtest

import "errors"

var (
	// Load errors: fatal, refused before the loop starts.
	ErrInvalidCapital     = errors.New("backtest: initial capital must be positive")
	ErrEmptySymbolSet     = errors.New("backtest: symbol set cannot be empty")
	ErrInvalidRiskPct     = errors.New("backtest: risk_per_trade_pct must be in (0,1)")
	ErrInvalidConcurrency = errors.New("backtest: max_concurrent_positions must be >= 1")
	ErrInvalidSignalGate  = errors.New("backtest: min_signal_strength must be in [0,100]")
	ErrNoData             = errors.New("backtest: no historical data available")
)
