package types

import (
	"errors"
	"time"
)

// ErrInvalidBar indicates a Bar failed its OHLCV invariants at load time.
var ErrInvalidBar = errors.New("types: invalid bar")

// MarketData represents OHLCV data for a symbol
type MarketData struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Quote represents a real-time price quote
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar represents aggregated OHLCV bar data for one symbol at one timestamp.
// Features carries pre-computed indicator columns (atr, atr_percentage, rsi, ...)
// keyed by name; the core never computes indicators itself, it only reads this map.
type Bar struct {
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"timestamp"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     int64              `json:"volume"`
	VWAP       float64            `json:"vwap,omitempty"` // Volume-weighted average price
	TradeCount int                `json:"trade_count,omitempty"`
	Features   map[string]float64 `json:"features,omitempty"`
}

// Feature looks up a named feature, returning def when the bar carries no such key.
func (b Bar) Feature(name string, def float64) float64 {
	if b.Features == nil {
		return def
	}
	if v, ok := b.Features[name]; ok {
		return v
	}
	return def
}

// Validate checks the OHLC invariants a Bar must satisfy: low <= {open,close} <= high,
// volume >= 0, and no NaN in any price field.
func (b Bar) Validate() error {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if p != p { // NaN
			return ErrInvalidBar
		}
	}
	if b.Low > b.High {
		return ErrInvalidBar
	}
	if b.Open < b.Low || b.Open > b.High {
		return ErrInvalidBar
	}
	if b.Close < b.Low || b.Close > b.High {
		return ErrInvalidBar
	}
	if b.Volume < 0 {
		return ErrInvalidBar
	}
	return nil
}

// Trade represents an individual trade execution
type Trade struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Exchange  string    `json:"exchange,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}
