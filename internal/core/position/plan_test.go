package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/core/signal"
)

func longSignal(price float64) *signal.Signal {
	return &signal.Signal{
		Symbol: "AAPL", Timestamp: time.Now(),
		Direction: signal.Long, Strength: 80, Quality: signal.FullEntry, Price: price,
	}
}

func TestPlanner_LongPlan_EntriesAndStopBelowPrice(t *testing.T) {
	p := NewPlanner(DefaultConfig())

	plan, err := p.Plan(longSignal(100), 10_000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, signal.Long, plan.Direction)
	assert.Equal(t, 100.0, plan.Entries[0].Price)
	assert.Less(t, plan.Entries[1].Price, plan.Entries[0].Price, "second long entry must be below the first")
	assert.Less(t, plan.Entries[2].Price, plan.Entries[1].Price, "third long entry must be below the second")
	assert.Less(t, plan.StopLoss, plan.Entries[0].Price, "stop must sit below entry for a long")

	var allocated int
	for _, e := range plan.Entries {
		allocated += e.Shares
	}
	assert.Equal(t, plan.TotalShares, allocated, "entry shares must sum to total shares")
}

func TestPlanner_ShortPlan_StopAbovePrice(t *testing.T) {
	p := NewPlanner(DefaultConfig())
	sig := longSignal(100)
	sig.Direction = signal.Short

	plan, err := p.Plan(sig, 10_000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Greater(t, plan.StopLoss, plan.Entries[0].Price, "stop must sit above entry for a short")
	assert.Greater(t, plan.Entries[1].Price, plan.Entries[0].Price)
}

func TestPlanner_ExitLadderOrderedByRMultiple(t *testing.T) {
	p := NewPlanner(DefaultConfig())
	plan, err := p.Plan(longSignal(100), 10_000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	for i := 1; i < len(plan.Exits); i++ {
		assert.Greater(t, plan.Exits[i].Price, plan.Exits[i-1].Price,
			"take-profit rungs must be strictly increasing for a long")
	}
	assert.Equal(t, 1.00, plan.Exits[3].PercentOfCurrent, "final rung closes all remaining shares")
}

func TestPlanner_ZeroEquityRejectsPlan(t *testing.T) {
	p := NewPlanner(DefaultConfig())
	plan, err := p.Plan(longSignal(100), 0, 2.0)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanner_ZeroATRRejectsPlan(t *testing.T) {
	p := NewPlanner(DefaultConfig())
	plan, err := p.Plan(longSignal(100), 10_000, 0)
	require.NoError(t, err)
	assert.Nil(t, plan, "zero ATR collapses risk-per-share to zero")
}

func TestPlanner_RespectsMaxLeverage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLeverage = 0.1 // cap exposure well below what risk sizing alone would allow
	cfg.RiskPerTradePct = 0.5
	p := NewPlanner(cfg)

	plan, err := p.Plan(longSignal(100), 10_000, 1.0)
	require.NoError(t, err)
	require.NotNil(t, plan)

	maxShares := int(cfg.MaxLeverage * 10_000 / 100)
	assert.LessOrEqual(t, plan.TotalShares, maxShares)
}
