package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/metrics"
	"github.com/bikeshrana/laddertest/internal/store"
)

// RunRequest is the JSON body accepted by POST /runs.
type RunRequest struct {
	Symbols   []string  `json:"symbols"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Overrides *Overrides `json:"overrides,omitempty"`
}

// Overrides lets a caller tweak backtest.DefaultConfig's scalar fields
// without exposing the engine's full internal Config shape.
type Overrides struct {
	InitialCapital         *float64 `json:"initial_capital,omitempty"`
	RiskPerTradePct        *float64 `json:"risk_per_trade_pct,omitempty"`
	MaxConcurrentPositions *int     `json:"max_concurrent_positions,omitempty"`
	MinSignalStrength      *int     `json:"min_signal_strength,omitempty"`
}

func (o *Overrides) apply(cfg *backtest.Config) {
	if o == nil {
		return
	}
	if o.InitialCapital != nil {
		cfg.InitialCapital = *o.InitialCapital
	}
	if o.RiskPerTradePct != nil {
		cfg.RiskPerTradePct = *o.RiskPerTradePct
	}
	if o.MaxConcurrentPositions != nil {
		cfg.MaxConcurrentPositions = *o.MaxConcurrentPositions
	}
	if o.MinSignalStrength != nil {
		cfg.MinSignalStrength = *o.MinSignalStrength
	}
}

// runStatus tracks one submitted run's lifecycle.
type runStatus string

const (
	statusRunning   runStatus = "running"
	statusCompleted runStatus = "completed"
	statusFailed    runStatus = "failed"
)

type runState struct {
	mu     sync.Mutex
	status runStatus
	result *backtest.RunResult
	err    error

	subMu       sync.Mutex
	subscribers map[chan backtest.EquityPoint]struct{}
}

func newRunState() *runState {
	return &runState{status: statusRunning, subscribers: make(map[chan backtest.EquityPoint]struct{})}
}

func (rs *runState) broadcast(p backtest.EquityPoint) {
	rs.subMu.Lock()
	defer rs.subMu.Unlock()
	for ch := range rs.subscribers {
		select {
		case ch <- p:
		default: // slow subscriber, drop the point rather than block the run
		}
	}
}

func (rs *runState) subscribe() chan backtest.EquityPoint {
	ch := make(chan backtest.EquityPoint, 64)
	rs.subMu.Lock()
	rs.subscribers[ch] = struct{}{}
	rs.subMu.Unlock()
	return ch
}

func (rs *runState) unsubscribe(ch chan backtest.EquityPoint) {
	rs.subMu.Lock()
	delete(rs.subscribers, ch)
	rs.subMu.Unlock()
	close(ch)
}

func (rs *runState) finish(result *backtest.RunResult, err error) {
	rs.mu.Lock()
	rs.result = result
	rs.err = err
	if err != nil {
		rs.status = statusFailed
	} else {
		rs.status = statusCompleted
	}
	rs.mu.Unlock()

	rs.subMu.Lock()
	for ch := range rs.subscribers {
		close(ch)
	}
	rs.subscribers = make(map[chan backtest.EquityPoint]struct{})
	rs.subMu.Unlock()
}

// RunManager submits backtest runs against a HistoricalDataSource, tracks
// each run's progress for websocket subscribers, and persists completed
// runs to store (when non-nil).
type RunManager struct {
	source  bar.HistoricalDataSource
	results *store.ResultStore
	metrics *metrics.BacktestMetrics
	log     zerolog.Logger

	mu    sync.RWMutex
	state map[uuid.UUID]*runState
	order []uuid.UUID
}

// NewRunManager builds a RunManager. results may be nil to skip persistence.
func NewRunManager(source bar.HistoricalDataSource, results *store.ResultStore, m *metrics.BacktestMetrics, log zerolog.Logger) *RunManager {
	return &RunManager{
		source:  source,
		results: results,
		metrics: m,
		log:     log,
		state:   make(map[uuid.UUID]*runState),
	}
}

// Submit starts a run in a background goroutine and returns its ID
// immediately.
func (m *RunManager) Submit(req RunRequest) uuid.UUID {
	id := uuid.New()
	rs := newRunState()

	m.mu.Lock()
	m.state[id] = rs
	m.order = append(m.order, id)
	m.mu.Unlock()

	go m.run(id, rs, req)
	return id
}

func (m *RunManager) run(id uuid.UUID, rs *runState, req RunRequest) {
	log := m.log.With().Str("run_id", id.String()).Logger()
	start := time.Now()

	cfg := backtest.DefaultConfig()
	cfg.Symbols = req.Symbols
	req.Overrides.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid run config")
		rs.finish(nil, err)
		if m.metrics != nil {
			m.metrics.ObserveFailure()
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stream, err := m.source.Load(ctx, cfg.Symbols, req.Start, req.End)
	if err != nil {
		log.Error().Err(err).Msg("failed to load bars")
		rs.finish(nil, err)
		if m.metrics != nil {
			m.metrics.ObserveFailure()
		}
		return
	}

	src := signal.NewThresholdSource(signal.DefaultThresholdConfig())
	exitMgr := exitmanager.NewDeteriorationManager(cfg.ExitMgr)
	engine := backtest.NewEngine(cfg, src, exitMgr, log)
	engine.OnEquityPoint(rs.broadcast)

	result, err := engine.Run(ctx, stream)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		rs.finish(nil, err)
		if m.metrics != nil {
			m.metrics.ObserveFailure()
		}
		return
	}

	log.Info().Dur("duration", time.Since(start)).Msg("run completed")
	rs.finish(result, nil)
	if m.metrics != nil {
		m.metrics.RunDuration.Observe(time.Since(start).Seconds())
		m.metrics.Observe(id.String(), result)
	}
	if m.results != nil {
		if _, err := m.results.SaveRun(context.Background(), result); err != nil {
			log.Error().Err(err).Msg("failed to persist run result")
		}
	}
}

func (m *RunManager) get(id uuid.UUID) (*runState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.state[id]
	return rs, ok
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Symbols) == 0 {
		http.Error(w, "symbols is required", http.StatusBadRequest)
		return
	}

	id := s.runs.Submit(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": id.String()})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.runs.mu.RLock()
	ids := make([]string, 0, len(s.runs.order))
	for _, id := range s.runs.order {
		ids = append(ids, id.String())
	}
	s.runs.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"run_ids": ids})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	rs, ok := s.runs.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	rs.mu.Lock()
	status, result, runErr := rs.status, rs.result, rs.err
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch status {
	case statusRunning:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
	case statusFailed:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": string(status), "error": runErr.Error()})
	default:
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"status": status, "result": result})
	}
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	rs, ok := s.runs.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	rs.mu.Lock()
	result := rs.result
	rs.mu.Unlock()
	if result == nil {
		http.Error(w, "run not complete", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result.Trades)
}
