package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

func sigAndPlan(t *testing.T, symbol string) (*signal.Signal, *position.Plan) {
	t.Helper()
	sig := &signal.Signal{
		Symbol: symbol, Timestamp: time.Now(),
		Direction: signal.Long, Strength: 80, Quality: signal.FullEntry, Price: 100,
	}
	plan, err := position.NewPlanner(position.DefaultConfig()).Plan(sig, 10_000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, plan)
	return sig, plan
}

func TestManager_OpenTrade_RejectsDuplicateActiveSymbol(t *testing.T) {
	m := NewManager()
	sig, plan := sigAndPlan(t, "AAPL")

	_, err := m.OpenTrade(sig, plan)
	require.NoError(t, err)
	assert.True(t, m.HasActive("AAPL"))

	_, err = m.OpenTrade(sig, plan)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe.Err, ErrSymbolAlreadyActive)
}

func TestManager_GetActive_ReturnsNilForUnknownSymbol(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.GetActive("AAPL"))
	assert.False(t, m.HasActive("AAPL"))
}

func TestManager_ExecuteExit_ClearsActiveIndexOnFullClose(t *testing.T) {
	m := NewManager()
	sig, plan := sigAndPlan(t, "AAPL")
	tr, err := m.OpenTrade(sig, plan)
	require.NoError(t, err)
	require.NoError(t, m.ExecuteEntry(tr, 1, 100, time.Now(), noCommission, 0, 0))
	require.Equal(t, 1, m.ActiveCount())

	_, err = m.ExecuteExit(tr, ExitTP4, 110, time.Now(), ReasonTakeProfit4, noCommission, 0)
	require.NoError(t, err)

	assert.False(t, m.HasActive("AAPL"))
	assert.Equal(t, 0, m.ActiveCount())
	assert.Len(t, m.AllTrades(), 1)
	assert.Len(t, m.ClosedTrades(), 1)
}

func TestManager_ExecuteExit_PartialCloseKeepsSymbolActive(t *testing.T) {
	m := NewManager()
	sig, plan := sigAndPlan(t, "AAPL")
	tr, err := m.OpenTrade(sig, plan)
	require.NoError(t, err)
	require.NoError(t, m.ExecuteEntry(tr, 1, 100, time.Now(), noCommission, 0, 0))

	_, err = m.ExecuteExit(tr, ExitTP1, 104, time.Now(), ReasonTakeProfit1, noCommission, 0)
	require.NoError(t, err)

	assert.True(t, m.HasActive("AAPL"))
	assert.Empty(t, m.ClosedTrades())
}

func TestManager_UpdateAll_MarksActiveTradesAndIncrementsBarsHeld(t *testing.T) {
	m := NewManager()
	sig, plan := sigAndPlan(t, "AAPL")
	tr, err := m.OpenTrade(sig, plan)
	require.NoError(t, err)
	require.NoError(t, m.ExecuteEntry(tr, 1, 100, time.Now(), noCommission, 0, 0))

	m.UpdateAll(map[string]float64{"AAPL": 105}, time.Now())

	assert.Equal(t, 1, tr.BarsHeld)
	assert.Greater(t, tr.UnrealizedPnL, 0.0)
	assert.Greater(t, m.TotalUnrealized(), 0.0)
}

func TestManager_UpdateAll_SkipsSymbolsMissingFromPriceMap(t *testing.T) {
	m := NewManager()
	sig, plan := sigAndPlan(t, "AAPL")
	tr, err := m.OpenTrade(sig, plan)
	require.NoError(t, err)
	require.NoError(t, m.ExecuteEntry(tr, 1, 100, time.Now(), noCommission, 0, 0))

	m.UpdateAll(map[string]float64{"MSFT": 200}, time.Now())

	assert.Equal(t, 0, tr.BarsHeld)
	assert.Equal(t, 0.0, tr.UnrealizedPnL)
}
