package bar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/laddertest/pkg/types"
)

func barAt(symbol string, ts time.Time, close float64) types.Bar {
	return types.Bar{
		Symbol: symbol, Timestamp: ts,
		Open: close, High: close, Low: close, Close: close, Volume: 100,
	}
}

func TestNewStream_MergesAndOrdersAcrossSymbols(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	bySymbol := map[string][]types.Bar{
		"MSFT": {barAt("MSFT", base, 300), barAt("MSFT", base.Add(2*time.Minute), 301)},
		"AAPL": {barAt("AAPL", base, 100), barAt("AAPL", base.Add(time.Minute), 101)},
	}

	s, err := NewStream(bySymbol)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	var order []string
	for {
		e, ok := s.Next()
		if !ok {
			break
		}
		order = append(order, e.Symbol)
	}
	// same timestamp (base) ties break lexicographically: AAPL before MSFT.
	assert.Equal(t, []string{"AAPL", "MSFT", "AAPL", "MSFT"}, order)
}

func TestNewStream_EmptySymbolSet(t *testing.T) {
	_, err := NewStream(map[string][]types.Bar{})
	assert.ErrorIs(t, err, ErrEmptySymbolSet)
}

func TestNewStream_NonMonotonicTimestampsRejected(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bySymbol := map[string][]types.Bar{
		"AAPL": {barAt("AAPL", base, 100), barAt("AAPL", base, 101)},
	}
	_, err := NewStream(bySymbol)
	assert.ErrorIs(t, err, ErrNonMonotonicTimestamps)
}

func TestNewStream_InvalidBarRejected(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bad := types.Bar{Symbol: "AAPL", Timestamp: base, Open: 10, High: 5, Low: 1, Close: 3}
	_, err := NewStream(map[string][]types.Bar{"AAPL": {bad}})
	assert.ErrorIs(t, err, types.ErrInvalidBar)
}

func TestStream_ResetAllowsSecondPass(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bySymbol := map[string][]types.Bar{
		"AAPL": {barAt("AAPL", base, 100), barAt("AAPL", base.Add(time.Minute), 101)},
	}
	s, err := NewStream(bySymbol)
	require.NoError(t, err)

	var firstPass, secondPass int
	for {
		if _, ok := s.Next(); !ok {
			break
		}
		firstPass++
	}
	s.Reset()
	for {
		if _, ok := s.Next(); !ok {
			break
		}
		secondPass++
	}
	assert.Equal(t, firstPass, secondPass)
	assert.Equal(t, 2, firstPass)
}

func TestStream_SliceIsIndependentWindow(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bySymbol := map[string][]types.Bar{
		"AAPL": {
			barAt("AAPL", base, 100),
			barAt("AAPL", base.Add(time.Minute), 101),
			barAt("AAPL", base.Add(2*time.Minute), 102),
		},
	}
	s, err := NewStream(bySymbol)
	require.NoError(t, err)

	// consume one event from the parent before slicing.
	_, _ = s.Next()

	window := s.Slice(base.Add(time.Minute), base.Add(3*time.Minute))
	assert.Equal(t, 2, window.Len())

	e, ok := window.Next()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), e.Timestamp)
}
