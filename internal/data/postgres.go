package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/bikeshrana/laddertest/internal/circuitbreaker"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/metrics"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// PostgresSource implements bar.HistoricalDataSource against a bars table:
//
//	symbol text, ts timestamptz, open/high/low/close double precision,
//	volume bigint, trade_count bigint, vwap double precision,
//	features jsonb
//
// Reads run through a circuit breaker so a flaky database degrades into
// fast failures for the caller instead of hanging the batch runner.
type PostgresSource struct {
	pool       *pgxpool.Pool
	breaker    *circuitbreaker.CircuitBreaker
	enrich     EnrichmentConfig
	metrics    *metrics.BacktestMetrics
	lastState  circuitbreaker.State
}

// NewPostgresSource wraps an already-connected pool. enrich controls the
// indicator features computed into each bar after loading; pass the zero
// value to disable enrichment and rely solely on the stored features column.
// m may be nil, in which case breaker state is not exported.
func NewPostgresSource(pool *pgxpool.Pool, log zerolog.Logger, enrich EnrichmentConfig, m *metrics.BacktestMetrics) *PostgresSource {
	return &PostgresSource{
		pool:      pool,
		breaker:   circuitbreaker.New(circuitbreaker.DefaultConfig("postgres-bars", log)),
		enrich:    enrich,
		metrics:   m,
		lastState: circuitbreaker.StateClosed,
	}
}

// Connect opens a pgxpool against cfg's connection string.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Load implements bar.HistoricalDataSource.
func (s *PostgresSource) Load(ctx context.Context, symbols []string, start, end time.Time) (*bar.Stream, error) {
	bySymbol := make(map[string][]types.Bar, len(symbols))

	for _, sym := range symbols {
		var bars []types.Bar
		err := s.breaker.Execute(func() error {
			var loadErr error
			bars, loadErr = s.loadSymbol(ctx, sym, start, end)
			return loadErr
		})
		s.recordBreakerState()
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		bySymbol[sym] = bars
	}

	if s.enrich != (EnrichmentConfig{}) {
		bySymbol = EnrichBySymbol(bySymbol, s.enrich)
	}

	return bar.NewStream(bySymbol)
}

// recordBreakerState pushes the breaker's current state to metrics and
// counts a trip the moment it transitions into the open state.
func (s *PostgresSource) recordBreakerState() {
	if s.metrics == nil {
		return
	}
	state := s.breaker.GetState()
	tripped := state == circuitbreaker.StateOpen && s.lastState != circuitbreaker.StateOpen
	s.metrics.ObserveCircuitBreaker("postgres-bars", state, tripped)
	s.lastState = state
}

func (s *PostgresSource) loadSymbol(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, ts, open, high, low, close, volume, trade_count, vwap, features
		FROM bars
		WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var (
			b          types.Bar
			tradeCount int64
			features   []byte
		)
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &tradeCount, &b.VWAP, &features); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.TradeCount = int(tradeCount)
		if len(features) > 0 {
			if err := json.Unmarshal(features, &b.Features); err != nil {
				return nil, fmt.Errorf("unmarshal features for %s at %s: %w", symbol, b.Timestamp, err)
			}
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}

// UpsertBars writes bars into the bars table, overwriting any existing row
// for the same (symbol, ts). Used by data-loading tooling ahead of a run;
// the engine itself never writes bars.
func UpsertBars(ctx context.Context, pool *pgxpool.Pool, bars []types.Bar) error {
	batch := make([][]any, 0, len(bars))
	for _, b := range bars {
		features, err := json.Marshal(b.Features)
		if err != nil {
			return fmt.Errorf("marshal features for %s at %s: %w", b.Symbol, b.Timestamp, err)
		}
		batch = append(batch, []any{b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, b.TradeCount, b.VWAP, features})
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO bars (symbol, ts, open, high, low, close, volume, trade_count, vwap, features)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (symbol, ts) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume,
				trade_count = EXCLUDED.trade_count, vwap = EXCLUDED.vwap,
				features = EXCLUDED.features`, row...)
		if err != nil {
			return fmt.Errorf("upsert bar: %w", err)
		}
	}
	return tx.Commit(ctx)
}
