package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModel_FillAppliesAdverseSlippage(t *testing.T) {
	m := NewModel(DefaultConfig())

	buyPrice, buySlip := m.Fill(100, 2.0, true)
	assert.Greater(t, buyPrice, 100.0, "buys must fill at or above the target price")
	assert.Greater(t, buySlip, 0.0)

	sellPrice, sellSlip := m.Fill(100, 2.0, false)
	assert.Less(t, sellPrice, 100.0, "sells must fill at or below the target price")
	assert.Equal(t, buySlip, sellSlip, "slippage magnitude is the same regardless of side")
}

func TestModel_SlippageScalesWithVolatilityButCaps(t *testing.T) {
	m := NewModel(DefaultConfig())

	calm := m.Slippage(100, 0)
	volatile := m.Slippage(100, 20)
	assert.Greater(t, volatile, calm, "higher ATR% must widen slippage")

	extreme := m.Slippage(100, 1000)
	cap := 100 * DefaultConfig().MaxSlippagePct
	assert.InDelta(t, cap, extreme, 1e-9, "slippage must never exceed the configured cap")
}

func TestModel_CommissionRespectsMinimum(t *testing.T) {
	m := NewModel(DefaultConfig())

	small := m.Commission(10) // 10 * 0.005 = 0.05, below the 1.00 minimum
	assert.Equal(t, 1.00, small)

	large := m.Commission(1000) // 1000 * 0.005 = 5.00, above the minimum
	assert.Equal(t, 5.00, large)
}
