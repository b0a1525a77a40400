package signal

import (
	"context"

	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/pkg/indicators"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// IndicatorConfig parameterizes IndicatorSource's RSI/Bollinger signal
// generation.
type IndicatorConfig struct {
	RSIPeriod           int
	RSIOversold         float64
	RSIOverbought       float64
	BollingerPeriod     int
	BollingerStdDev     float64
	MinBarsForFullEntry int
}

// DefaultIndicatorConfig mirrors the standard periods the teacher's
// strategies default to (RSI 14/30/70, Bollinger 20/2.0).
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		RSIPeriod:           14,
		RSIOversold:         30,
		RSIOverbought:       70,
		BollingerPeriod:     20,
		BollingerStdDev:     2.0,
		MinBarsForFullEntry: 20,
	}
}

// IndicatorSource combines RSI mean-reversion and Bollinger-band signals
// into a single Source, adapted from the teacher's RSIMeanReversionStrategy
// and BollingerBandsStrategy: both fired signals off oversold/overbought
// RSI crossing or price piercing a Bollinger band, scaling confidence by how
// far the indicator sits past its threshold. Where the teacher strategies
// streamed indicator state across live ticks via an event bus, IndicatorSource
// rebuilds the indicators from bar.History on every call, since the
// backtest core forbids any state that must survive a suspend point (§5) —
// replay is cheap at backtest scale and keeps the source itself stateless.
type IndicatorSource struct {
	cfg IndicatorConfig
}

// NewIndicatorSource builds an IndicatorSource from cfg.
func NewIndicatorSource(cfg IndicatorConfig) *IndicatorSource {
	return &IndicatorSource{cfg: cfg}
}

// Evaluate implements Source.
func (s *IndicatorSource) Evaluate(ctx context.Context, symbol string, history *bar.History, current types.Bar) (*Signal, error) {
	bars := history.Bars()
	if len(bars) < s.cfg.RSIPeriod+1 {
		return nil, nil
	}

	rsi := indicators.NewRSI(s.cfg.RSIPeriod)
	bb := indicators.NewBollingerBands(s.cfg.BollingerPeriod, s.cfg.BollingerStdDev)
	for _, b := range bars {
		if err := rsi.Update(b.Close, b.Timestamp); err != nil {
			return nil, err
		}
		if err := bb.UpdateOHLCV(indicators.PricePoint{
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
			Volume: b.Volume, Timestamp: b.Timestamp,
		}); err != nil {
			return nil, err
		}
	}
	if !rsi.IsReady() {
		return nil, nil
	}

	rsiValue := rsi.Value()
	var dir Direction
	var strength int

	switch {
	case rsi.IsOversoldCustom(s.cfg.RSIOversold):
		dir = Long
		strength = confidenceScore(s.cfg.RSIOversold-rsiValue, 30)
	case rsi.IsOverboughtCustom(s.cfg.RSIOverbought):
		dir = Short
		strength = confidenceScore(rsiValue-s.cfg.RSIOverbought, 30)
	default:
		return nil, nil // no extreme reading — soft rejection, not an error
	}

	if bb.IsReady() {
		if dir == Long && bb.IsBelowLowerBand(current.Close) {
			strength += 10
		}
		if dir == Short && bb.IsAboveUpperBand(current.Close) {
			strength += 10
		}
	}
	if strength > 100 {
		strength = 100
	}

	quality := PartialEntry
	if len(bars) >= s.cfg.MinBarsForFullEntry {
		quality = FullEntry
	}

	return &Signal{
		Symbol:    symbol,
		Timestamp: current.Timestamp,
		Direction: dir,
		Strength:  strength,
		Quality:   quality,
		Price:     current.Close,
		Context: map[string]any{
			"rsi": rsiValue,
		},
	}, nil
}

// confidenceScore maps how far past threshold an indicator reading sits
// (0..span) onto a 60-95 strength score, matching the teacher's
// calculateRSIConfidence scaling.
func confidenceScore(distance, span float64) int {
	if distance <= 0 {
		return 60
	}
	score := 60 + int(distance/span*35)
	if score > 95 {
		return 95
	}
	return score
}
