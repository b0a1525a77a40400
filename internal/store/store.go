// Package store persists backtest RunResults and their TradeRecords to
// Postgres via pgx/v5, keyed by a google/uuid run ID. internal/api saves
// each completed run here; GetRun, GetTrades and ListRuns read saved runs
// back.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bikeshrana/laddertest/internal/backtest"
)

// ResultStore reads and writes backtest.RunResult rows.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore wraps an already-connected pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SaveRun inserts a new run row and all of its trades in one transaction,
// returning the run's generated ID.
func (s *ResultStore) SaveRun(ctx context.Context, result *backtest.RunResult) (uuid.UUID, error) {
	runID := uuid.New()

	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal config: %w", err)
	}
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal metrics: %w", err)
	}
	equityJSON, err := json.Marshal(result.EquityCurve)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal equity curve: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, created_at, config, initial_capital, final_capital, metrics, equity_curve)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID, time.Now().UTC(), configJSON, result.InitialCapital, result.FinalCapital, metricsJSON, equityJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	for _, t := range result.Trades {
		tradeJSON, err := json.Marshal(t)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal trade %d: %w", t.TradeID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO trades (run_id, trade_id, symbol, direction, status, data)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, t.TradeID, t.Symbol, t.Direction, t.Status, tradeJSON)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert trade %d: %w", t.TradeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit tx: %w", err)
	}
	return runID, nil
}

// GetRun loads a previously saved run's result, reconstructing the Trades
// slice from the trades table.
func (s *ResultStore) GetRun(ctx context.Context, runID uuid.UUID) (*backtest.RunResult, error) {
	var result backtest.RunResult
	var configJSON, metricsJSON, equityJSON []byte

	row := s.pool.QueryRow(ctx, `
		SELECT config, initial_capital, final_capital, metrics, equity_curve
		FROM runs WHERE id = $1`, runID)
	if err := row.Scan(&configJSON, &result.InitialCapital, &result.FinalCapital, &metricsJSON, &equityJSON); err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	if err := json.Unmarshal(configJSON, &result.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &result.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(equityJSON, &result.EquityCurve); err != nil {
		return nil, fmt.Errorf("unmarshal equity curve: %w", err)
	}

	trades, err := s.GetTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	result.Trades = trades
	return &result, nil
}

// GetTrades loads every TradeRecord belonging to a run, ordered by trade ID.
func (s *ResultStore) GetTrades(ctx context.Context, runID uuid.UUID) ([]backtest.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM trades WHERE run_id = $1 ORDER BY trade_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []backtest.TradeRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		var t backtest.TradeRecord
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// ListRuns returns the most recently created run IDs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
