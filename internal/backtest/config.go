package backtest

import (
	"github.com/bikeshrana/laddertest/internal/core/execution"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// Config holds every option the Engine's main loop reads. Unlike the
// teacher's package-level config singleton, Config is a plain value
// threaded explicitly into NewEngine — there is no process-wide mutable
// configuration state.
type Config struct {
	Symbols []string

	InitialCapital         float64
	RiskPerTradePct         float64
	MaxConcurrentPositions  int

	MinSignalStrength int
	MinEntryQuality   signal.Quality

	EnableExitManager bool
	RiskFreeRate      float64

	Position  position.Config
	Execution execution.Config
	ExitMgr   exitmanager.DeteriorationConfig
}

// DefaultConfig returns a Config with the conventional defaults used
// throughout this package's tests and the CLI.
func DefaultConfig() Config {
	return Config{
		InitialCapital:         10_000,
		RiskPerTradePct:        0.015,
		MaxConcurrentPositions: 5,
		MinSignalStrength:      55,
		MinEntryQuality:        signal.PartialEntry,
		EnableExitManager:      true,
		RiskFreeRate:           0.02,
		Position:               position.DefaultConfig(),
		Execution:              execution.DefaultConfig(),
		ExitMgr:                exitmanager.DefaultDeteriorationConfig(),
	}
}

// Validate checks the load-error category of §7: configuration out of
// range, before the loop starts.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return ErrInvalidCapital
	}
	if len(c.Symbols) == 0 {
		return ErrEmptySymbolSet
	}
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct >= 1 {
		return ErrInvalidRiskPct
	}
	if c.MaxConcurrentPositions < 1 {
		return ErrInvalidConcurrency
	}
	if c.MinSignalStrength < 0 || c.MinSignalStrength > 100 {
		return ErrInvalidSignalGate
	}
	return nil
}
