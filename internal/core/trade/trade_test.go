package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

func noCommission(int) float64 { return 0 }

func longPlan(t *testing.T) (*signal.Signal, *position.Plan) {
	t.Helper()
	sig := &signal.Signal{
		Symbol: "AAPL", Timestamp: time.Now(),
		Direction: signal.Long, Strength: 80, Quality: signal.FullEntry, Price: 100,
	}
	plan, err := position.NewPlanner(position.DefaultConfig()).Plan(sig, 10_000, 2.0)
	require.NoError(t, err)
	require.NotNil(t, plan)
	return sig, plan
}

func TestTrade_ExecuteEntry_Level1SetsPartialAndWeightedAverage(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)

	err := tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, Partial, tr.State)
	assert.Equal(t, 100.0, tr.AvgEntryPrice)
	assert.Equal(t, plan.Entries[0].Shares, tr.CurrentShares)
	assert.True(t, tr.EntryExecuted(1))
	assert.False(t, tr.EntryExecuted(2))
}

func TestTrade_ExecuteEntry_OutOfOrderRejected(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)

	err := tr.ExecuteEntry(2, 98, time.Now(), noCommission, 0, 0)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe.Err, ErrEntryLevelOutOfOrder)
}

func TestTrade_ExecuteEntry_AlreadyExecutedRejected(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	err := tr.ExecuteEntry(1, 99, time.Now(), noCommission, 0, 0)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe.Err, ErrEntryLevelExecuted)
}

func TestTrade_ExecuteEntry_AllThreeLevelsReachesActive(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)

	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))
	require.NoError(t, tr.ExecuteEntry(2, 98, time.Now(), noCommission, 0, 0))
	require.NoError(t, tr.ExecuteEntry(3, 96, time.Now(), noCommission, 0, 0))

	assert.Equal(t, Active, tr.State)
	assert.Equal(t, plan.TotalShares, tr.CurrentShares)
}

func TestTrade_ExecuteExit_TP1ClosesQuarterAndRealizesProfit(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	sharesBefore := tr.CurrentShares
	pnl, err := tr.ExecuteExit(ExitTP1, 104, time.Now(), ReasonTakeProfit1, noCommission, 0)
	require.NoError(t, err)

	assert.Greater(t, pnl, 0.0)
	assert.Equal(t, pnl, tr.RealizedPnL)
	assert.Less(t, tr.CurrentShares, sharesBefore, "TP1 must reduce the held position")
	assert.Equal(t, Closing, tr.State, "a partial close leaves the trade Closing, not CLOSED_*")
	assert.True(t, tr.ExitExecuted(1))
}

func TestTrade_ExecuteExit_TP2BeforeTP1Rejected(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	_, err := tr.ExecuteExit(ExitTP2, 104, time.Now(), ReasonTakeProfit2, noCommission, 0)
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, pe.Err, ErrExitLevelOutOfOrder)
}

func TestTrade_ExecuteExit_FullCloseAtProfitIsClosedWin(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	pnl, err := tr.ExecuteExit(ExitTP4, 120, time.Now(), ReasonTakeProfit4, noCommission, 0)
	require.NoError(t, err)

	assert.Greater(t, pnl, 0.0)
	assert.Equal(t, ClosedWin, tr.State)
	assert.Equal(t, 0, tr.CurrentShares)
	assert.Equal(t, ReasonTakeProfit4, tr.ExitReason)
}

func TestTrade_ExecuteExit_StopLossAtLossIsClosedLoss(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	pnl, err := tr.ExecuteExit(ExitSL, 96, time.Now(), ReasonStopLoss, noCommission, 0)
	require.NoError(t, err)

	assert.Less(t, pnl, 0.0)
	assert.Equal(t, ClosedLoss, tr.State)
	assert.True(t, tr.StopLossHit)
	assert.Equal(t, 96.0, tr.StopLossPrice)
}

func TestTrade_ExecuteExit_ExitManagerAtLossIsClosedExitManagerNotLoss(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	pnl, err := tr.ExecuteExit(ExitManagerKind, 99, time.Now(), ReasonExitManager, noCommission, 0)
	require.NoError(t, err)

	assert.Less(t, pnl, 0.0)
	assert.Equal(t, ClosedExitManager, tr.State)
	assert.True(t, tr.ExitManagerTriggered)
}

func TestTrade_ExecuteExit_ExitManagerAtProfitIsStillClosedWin(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	_, err := tr.ExecuteExit(ExitManagerKind, 110, time.Now(), ReasonExitManager, noCommission, 0)
	require.NoError(t, err)

	assert.Equal(t, ClosedWin, tr.State, "exit-manager close never overrides a real win")
}

func TestTrade_ExecuteExit_NoPositionIsNoop(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)

	pnl, err := tr.ExecuteExit(ExitTP1, 104, time.Now(), ReasonTakeProfit1, noCommission, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pnl)
}

func TestTrade_UpdateUnrealized_TracksExcursions(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	tr.UpdateUnrealized(105)
	assert.Greater(t, tr.UnrealizedPnL, 0.0)
	assert.InDelta(t, 5.0, tr.MaxFavorableExcursionPct, 1e-9)

	tr.UpdateUnrealized(97)
	assert.Less(t, tr.UnrealizedPnL, 0.0)
	assert.InDelta(t, -3.0, tr.MaxAdverseExcursionPct, 1e-9)
	// the earlier favorable excursion must not be erased by a later adverse move.
	assert.InDelta(t, 5.0, tr.MaxFavorableExcursionPct, 1e-9)
}

func TestTrade_UpdateUnrealized_ZeroSharesIsZeroPnL(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	tr.UpdateUnrealized(105)
	assert.Equal(t, 0.0, tr.UnrealizedPnL)
}

func TestTrade_ExecuteExit_FullCloseZeroesUnrealizedSoTotalPnLIsNotDoubled(t *testing.T) {
	sig, plan := longPlan(t)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	// Mark-to-market at the same price TP4 then fills at: a stale
	// UnrealizedPnL left over from this would roughly double the recorded
	// TotalPnL for the trade.
	tr.UpdateUnrealized(108)
	markedUnrealized := tr.UnrealizedPnL
	require.Greater(t, markedUnrealized, 0.0)

	pnl, err := tr.ExecuteExit(ExitTP4, 108, time.Now(), ReasonTakeProfit4, noCommission, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tr.UnrealizedPnL, "UnrealizedPnL must be zeroed on full close")
	assert.Equal(t, tr.RealizedPnL, tr.TotalPnL(), "TotalPnL of a closed trade is its realized P&L alone")
	assert.InDelta(t, pnl, tr.TotalPnL(), 1e-9)
}

func TestTrade_ShortDirectionProfitsOnDecline(t *testing.T) {
	sig := &signal.Signal{
		Symbol: "AAPL", Timestamp: time.Now(),
		Direction: signal.Short, Strength: 80, Quality: signal.FullEntry, Price: 100,
	}
	plan, err := position.NewPlanner(position.DefaultConfig()).Plan(sig, 10_000, 2.0)
	require.NoError(t, err)
	tr := New(1, sig, plan)
	require.NoError(t, tr.ExecuteEntry(1, 100, time.Now(), noCommission, 0, 0))

	pnl, err := tr.ExecuteExit(ExitTP4, 90, time.Now(), ReasonTakeProfit4, noCommission, 0)
	require.NoError(t, err)
	assert.Greater(t, pnl, 0.0, "a short closed below entry must realize a profit")
}
