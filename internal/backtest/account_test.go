package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_RecordEquityTracksPeak(t *testing.T) {
	a := newAccount(10_000)
	now := time.Now()

	eq1 := a.recordEquity(now, 500) // 10000 + 500 = 10500
	assert.Equal(t, 10_500.0, eq1)
	assert.Equal(t, 10_500.0, a.peakCapital)

	eq2 := a.recordEquity(now.Add(time.Minute), -200) // 10000 - 200 = 9800, below peak
	assert.Equal(t, 9_800.0, eq2)
	assert.Equal(t, 10_500.0, a.peakCapital, "peak must never decrease")

	assert.Len(t, a.equityCurve, 2)
}

func TestAccount_ApplyRealizedAdjustsCash(t *testing.T) {
	a := newAccount(10_000)
	a.applyRealized(250)
	assert.Equal(t, 10_250.0, a.currentCapital)

	a.applyRealized(-400)
	assert.Equal(t, 9_850.0, a.currentCapital)

	// unrealized P&L on top of realized cash changes.
	eq := a.recordEquity(time.Now(), 100)
	assert.Equal(t, 9_950.0, eq)
}
