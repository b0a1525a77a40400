// Package execution applies slippage and commission to target prices,
// producing the fill prices and commission amounts the trade package
// records against each Execution.
package execution

import "math"

// Config parameterizes Model. Defaults match the conventional retail
// commission schedule and a conservative ATR-scaled slippage model.
type Config struct {
	BaseSlippagePct    float64 // default 0.0005
	MaxSlippagePct     float64 // default 0.003
	CommissionPerShare float64 // default 0.005
	MinCommission      float64 // default 1.00
}

// DefaultConfig returns the conventional defaults.
func DefaultConfig() Config {
	return Config{
		BaseSlippagePct:    0.0005,
		MaxSlippagePct:     0.003,
		CommissionPerShare: 0.005,
		MinCommission:      1.00,
	}
}

// Model computes fill prices and commission under Config.
type Model struct {
	cfg Config
}

// NewModel builds a Model with cfg.
func NewModel(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Slippage returns the slippage amount (in price units, always
// non-negative) for a fill at targetPrice given the signal-bar ATR
// percentage feature (atrPct, e.g. 2.0 for 2%).
func (m *Model) Slippage(targetPrice, atrPct float64) float64 {
	base := targetPrice * m.cfg.BaseSlippagePct
	volMultiplier := 1.0 + atrPct/10.0
	slip := base * volMultiplier
	cap := targetPrice * m.cfg.MaxSlippagePct
	return math.Min(slip, cap)
}

// Fill returns the actual execution price for a buy (isBuy=true) or sell
// at targetPrice, applying slippage in the adverse direction: buys fill
// higher, sells fill lower.
func (m *Model) Fill(targetPrice, atrPct float64, isBuy bool) (price, slippage float64) {
	slippage = m.Slippage(targetPrice, atrPct)
	if isBuy {
		return targetPrice + slippage, slippage
	}
	return targetPrice - slippage, slippage
}

// Commission returns the commission for shares under
// max(min_commission, shares * commission_per_share).
func (m *Model) Commission(shares int) float64 {
	return math.Max(m.cfg.MinCommission, float64(shares)*m.cfg.CommissionPerShare)
}
