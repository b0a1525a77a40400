package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/pkg/types"
)

func barWithRSI(rsi float64) types.Bar {
	return types.Bar{
		Symbol: "AAPL", Timestamp: time.Now(),
		Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
		Features: map[string]float64{"rsi": rsi, "atr": 1.5},
	}
}

func TestThresholdSource_OversoldEmitsLong(t *testing.T) {
	s := NewThresholdSource(DefaultThresholdConfig())
	h := &bar.History{}
	h.Append(barWithRSI(15))

	sig, err := s.Evaluate(context.Background(), "AAPL", h, barWithRSI(15))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, FullEntry, sig.Quality) // gap = 30-15 = 15 >= FullEntryGap(10)
	assert.Equal(t, 45, sig.Strength)       // gap(15) * 3
}

func TestThresholdSource_OverboughtEmitsShort(t *testing.T) {
	s := NewThresholdSource(DefaultThresholdConfig())
	h := &bar.History{}
	h.Append(barWithRSI(85))

	sig, err := s.Evaluate(context.Background(), "AAPL", h, barWithRSI(85))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, Short, sig.Direction)
	assert.Equal(t, FullEntry, sig.Quality)
}

func TestThresholdSource_PartialEntryBelowFullGap(t *testing.T) {
	s := NewThresholdSource(DefaultThresholdConfig())
	h := &bar.History{}
	h.Append(barWithRSI(25))

	sig, err := s.Evaluate(context.Background(), "AAPL", h, barWithRSI(25))
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, PartialEntry, sig.Quality) // gap = 5, < 10
}

func TestThresholdSource_NeutralRSIEmitsNoSignal(t *testing.T) {
	s := NewThresholdSource(DefaultThresholdConfig())
	h := &bar.History{}
	h.Append(barWithRSI(50))

	sig, err := s.Evaluate(context.Background(), "AAPL", h, barWithRSI(50))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestThresholdSource_RespectsMinBars(t *testing.T) {
	cfg := DefaultThresholdConfig()
	cfg.MinBars = 5
	s := NewThresholdSource(cfg)
	h := &bar.History{}
	h.Append(barWithRSI(10))

	sig, err := s.Evaluate(context.Background(), "AAPL", h, barWithRSI(10))
	require.NoError(t, err)
	assert.Nil(t, sig, "should not signal before MinBars history accumulates")
}

func TestQuality_AtLeast(t *testing.T) {
	assert.True(t, FullEntry.AtLeast(PartialEntry))
	assert.True(t, PartialEntry.AtLeast(PartialEntry))
	assert.False(t, NoTrade.AtLeast(PartialEntry))
}
