package exitmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bikeshrana/laddertest/internal/core/signal"
)

func longInput(entry, current float64, barsHeld int) Input {
	return Input{
		Signal:        &signal.Signal{Direction: signal.Long},
		AvgEntryPrice: entry,
		CurrentPrice:  current,
		BarsHeld:      barsHeld,
		Timestamp:     time.Now(),
	}
}

func TestDeteriorationManager_FreshProfitableTradeIsNone(t *testing.T) {
	m := NewDeteriorationManager(DefaultDeteriorationConfig())
	res := m.Evaluate(longInput(100, 101, 2))
	assert.Equal(t, None, res.Urgency)
	assert.False(t, res.ShouldExit)
}

func TestDeteriorationManager_AdverseExcursionIsUrgent(t *testing.T) {
	m := NewDeteriorationManager(DefaultDeteriorationConfig())
	// -2% move is beyond the default -1.5% adverse excursion threshold.
	res := m.Evaluate(longInput(100, 98, 2))
	assert.Equal(t, Urgent, res.Urgency)
	assert.True(t, res.ShouldExit)
	assert.True(t, res.Urgency.ActsOn())
}

func TestDeteriorationManager_StalledUnprofitableIsRecommended(t *testing.T) {
	cfg := DefaultDeteriorationConfig()
	m := NewDeteriorationManager(cfg)
	// held past MaxBarsHeld with profit per share below MinProfitPerShare,
	// but not an adverse excursion beyond threshold.
	res := m.Evaluate(longInput(100, 100.05, cfg.MaxBarsHeld))
	assert.Equal(t, Recommended, res.Urgency)
	assert.True(t, res.ShouldExit)
}

func TestDeteriorationManager_ApproachingStallIsWatchOnly(t *testing.T) {
	cfg := DefaultDeteriorationConfig()
	m := NewDeteriorationManager(cfg)
	res := m.Evaluate(longInput(100, 100.05, cfg.BreakevenAfterBars))
	assert.Equal(t, Watch, res.Urgency)
	assert.False(t, res.ShouldExit, "watch is advisory only")
	assert.False(t, res.Urgency.ActsOn())
}

func TestDeteriorationManager_ShortDirectionMirrorsMove(t *testing.T) {
	m := NewDeteriorationManager(DefaultDeteriorationConfig())
	in := Input{
		Signal:        &signal.Signal{Direction: signal.Short},
		AvgEntryPrice: 100,
		CurrentPrice:  102, // adverse for a short
		BarsHeld:      2,
		Timestamp:     time.Now(),
	}
	res := m.Evaluate(in)
	assert.Equal(t, Urgent, res.Urgency)
}

func TestUrgency_String(t *testing.T) {
	assert.Equal(t, "URGENT", Urgent.String())
	assert.Equal(t, "NONE", None.String())
}
