package bar

import (
	"context"
	"sort"
	"time"

	"github.com/bikeshrana/laddertest/pkg/types"
)

// HistoricalDataSource loads per-symbol bar series for a date range and
// builds a Stream from them. Concrete adapters: MemorySource (in-memory, for
// tests and file-backed CLI runs) and internal/data.PostgresSource (pgx,
// reads the bars table).
type HistoricalDataSource interface {
	Load(ctx context.Context, symbols []string, start, end time.Time) (*Stream, error)
}

// MemorySource serves bars already resident in memory, keyed by symbol.
// Used by tests and by cmd/backtest when given a file-backed data set
// instead of a database connection.
type MemorySource struct {
	bars map[string][]types.Bar
}

// NewMemorySource builds a MemorySource from a pre-loaded symbol -> bars map.
// Each symbol's slice need not be pre-sorted; Load sorts and range-filters it.
func NewMemorySource(bars map[string][]types.Bar) *MemorySource {
	return &MemorySource{bars: bars}
}

// Load implements HistoricalDataSource.
func (m *MemorySource) Load(_ context.Context, symbols []string, start, end time.Time) (*Stream, error) {
	bySymbol := make(map[string][]types.Bar, len(symbols))
	for _, sym := range symbols {
		bars := m.bars[sym]
		filtered := make([]types.Bar, 0, len(bars))
		for _, b := range bars {
			if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
				filtered = append(filtered, b)
			}
		}
		sort.Slice(filtered, func(i, j int) bool {
			return filtered[i].Timestamp.Before(filtered[j].Timestamp)
		})
		bySymbol[sym] = filtered
	}
	return NewStream(bySymbol)
}
