package signal

import (
	"context"

	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// ThresholdConfig parameterizes ThresholdSource.
type ThresholdConfig struct {
	Oversold     float64 // rsi below this is a LONG candidate, default 30
	Overbought   float64 // rsi above this is a SHORT candidate, default 70
	MinBars      int     // minimum history length before evaluating, default 1
	FullEntryGap float64 // distance from the threshold required for FullEntry quality, default 10
}

// DefaultThresholdConfig returns the conventional RSI mean-reversion
// thresholds.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Oversold:     30,
		Overbought:   70,
		MinBars:      1,
		FullEntryGap: 10,
	}
}

// ThresholdSource is a reference SignalSource: an RSI mean-reversion rule
// collapsing distance-past-threshold into a 0-100 strength score and an
// entry quality gate, the way a strategy-specific scoring rule external to
// the core would. It is pure and stateless across calls.
type ThresholdSource struct {
	cfg ThresholdConfig
}

// NewThresholdSource builds a ThresholdSource with cfg.
func NewThresholdSource(cfg ThresholdConfig) *ThresholdSource {
	return &ThresholdSource{cfg: cfg}
}

func (s *ThresholdSource) Evaluate(ctx context.Context, symbol string, history *bar.History, current types.Bar) (*Signal, error) {
	if history.Len() < s.cfg.MinBars {
		return nil, nil
	}

	rsi := current.Feature("rsi", 50)

	switch {
	case rsi <= s.cfg.Oversold:
		gap := s.cfg.Oversold - rsi
		return s.build(symbol, current, Long, gap), nil
	case rsi >= s.cfg.Overbought:
		gap := rsi - s.cfg.Overbought
		return s.build(symbol, current, Short, gap), nil
	default:
		return nil, nil
	}
}

func (s *ThresholdSource) build(symbol string, current types.Bar, dir Direction, gap float64) *Signal {
	strength := int(gap * 3)
	if strength > 100 {
		strength = 100
	}
	if strength < 0 {
		strength = 0
	}

	quality := NoTrade
	switch {
	case gap >= s.cfg.FullEntryGap:
		quality = FullEntry
	case gap > 0:
		quality = PartialEntry
	}

	return &Signal{
		Symbol:    symbol,
		Timestamp: current.Timestamp,
		Direction: dir,
		Strength:  strength,
		Quality:   quality,
		Price:     current.Close,
		Context: map[string]any{
			"rsi": current.Feature("rsi", 50),
			"atr": current.Feature("atr", 0),
		},
	}
}
