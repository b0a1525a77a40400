// Package data provides HistoricalDataSource adapters that load bars from
// external storage and enrich them with the precomputed indicator features
// internal/core/signal consumes via types.Bar.Feature.
package data

import (
	"sort"

	"github.com/bikeshrana/laddertest/pkg/indicators"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// EnrichmentConfig parameterizes the indicators computed into Bar.Features.
type EnrichmentConfig struct {
	ATRPeriod int
	RSIPeriod int
}

// DefaultEnrichmentConfig mirrors the periods internal/core/signal's
// IndicatorSource and internal/core/position's Planner default to.
func DefaultEnrichmentConfig() EnrichmentConfig {
	return EnrichmentConfig{ATRPeriod: 14, RSIPeriod: 14}
}

// Enrich populates Features["atr"], Features["atr_percentage"], and
// Features["rsi"] on each bar in a per-symbol series, replaying the
// indicators bar-by-bar so a bar only ever carries features computed from
// bars at or before it. bars must already be sorted ascending by timestamp;
// it is mutated and returned in place.
func Enrich(bars []types.Bar, cfg EnrichmentConfig) []types.Bar {
	if len(bars) == 0 {
		return bars
	}
	atr := indicators.NewATR(cfg.ATRPeriod)
	rsi := indicators.NewRSI(cfg.RSIPeriod)

	for i := range bars {
		b := &bars[i]
		if b.Features == nil {
			b.Features = make(map[string]float64, 3)
		}
		_ = atr.UpdateOHLCV(indicators.PricePoint{
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close,
			Volume: b.Volume, Timestamp: b.Timestamp,
		})
		_ = rsi.Update(b.Close, b.Timestamp)

		if atr.IsReady() {
			b.Features["atr"] = atr.Value()
			if b.Close != 0 {
				b.Features["atr_percentage"] = atr.Value() / b.Close * 100
			}
		}
		if rsi.IsReady() {
			b.Features["rsi"] = rsi.Value()
		}
	}
	return bars
}

// EnrichBySymbol runs Enrich independently over each symbol's series,
// sorting each series ascending by timestamp first.
func EnrichBySymbol(bySymbol map[string][]types.Bar, cfg EnrichmentConfig) map[string][]types.Bar {
	for sym, bars := range bySymbol {
		sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
		bySymbol[sym] = Enrich(bars, cfg)
	}
	return bySymbol
}
