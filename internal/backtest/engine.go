// Package backtest implements the event-driven simulation core: Engine (C8)
// runs the fixed per-bar pipeline over a bar.Stream, and MetricsCalculator
// (C9) aggregates the resulting equity curve and closed trades into a
// RunResult.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/execution"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/position"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/core/trade"
	"github.com/bikeshrana/laddertest/pkg/types"
)

// Engine is the single-threaded, non-suspending simulation driver. One
// Engine runs exactly one backtest; parallel independent runs are the
// caller's concern (internal/batch), never this type's.
type Engine struct {
	cfg Config
	log zerolog.Logger

	signalSource signal.Source
	exitMgr      exitmanager.Manager
	execModel    *execution.Model
	planner      *position.Planner

	trades  *trade.Manager
	account *account
	tracker *bar.Tracker

	lastClose map[string]float64
	lastTime  map[string]time.Time
	lastEvent time.Time

	onEquity func(EquityPoint)
}

// NewEngine builds an Engine from cfg and its collaborators. No collaborator
// is optional except exitMgr, which is ignored when cfg.EnableExitManager
// is false.
func NewEngine(cfg Config, src signal.Source, exitMgr exitmanager.Manager, log zerolog.Logger) *Engine {
	// Position sizing uses the engine-level risk fraction.
	posCfg := cfg.Position
	posCfg.RiskPerTradePct = cfg.RiskPerTradePct
	return &Engine{
		cfg:          cfg,
		log:          log,
		signalSource: src,
		exitMgr:      exitMgr,
		execModel:    execution.NewModel(cfg.Execution),
		planner:      position.NewPlanner(posCfg),
		trades:       trade.NewManager(),
		account:      newAccount(cfg.InitialCapital),
		tracker:      bar.NewTracker(),
		lastClose:    make(map[string]float64),
		lastTime:     make(map[string]time.Time),
	}
}

// OnEquityPoint registers a callback invoked with every equity point as the
// run progresses (step 7 of the per-bar pipeline), letting a caller such as
// internal/api stream the equity curve live over a websocket. Must be
// called before Run; fn must not block or mutate engine state.
func (e *Engine) OnEquityPoint(fn func(EquityPoint)) {
	e.onEquity = fn
}

// Run drives stream to completion, executing the fixed §4.8 pipeline for
// every event in yield order, and returns the complete RunResult. No
// operation in Run suspends or blocks on I/O.
func (e *Engine) Run(ctx context.Context, stream *bar.Stream) (*RunResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.processEvent(ev); err != nil {
			return nil, fmt.Errorf("backtest: bar %s %s: %w", ev.Symbol, ev.Timestamp, err)
		}
	}

	e.closeRemainingTrades()

	// closeRemainingTrades realizes P&L after the last step-7 equity point
	// was recorded; without this, FinalCapital would reflect the account as
	// of the final bar, before its forced closes.
	if !e.lastEvent.IsZero() {
		equity := e.account.recordEquity(e.lastEvent, e.trades.TotalUnrealized())
		if e.onEquity != nil {
			e.onEquity(EquityPoint{Timestamp: e.lastEvent, Equity: equity})
		}
	}

	return e.buildResult(), nil
}

func (e *Engine) processEvent(ev bar.Event) error {
	symbol, b, ts := ev.Symbol, ev.Bar, ev.Timestamp
	history := e.tracker.Observe(symbol, b)
	e.lastClose[symbol] = b.Close
	e.lastTime[symbol] = ts
	e.lastEvent = ts

	t := e.trades.GetActive(symbol)

	// Step 1: mark-to-market.
	if t != nil {
		t.UpdateUnrealized(b.Close)
		t.BarsHeld++
	}

	// Step 2: pending limit entries.
	if t != nil {
		if err := e.fillPendingEntries(t, b, ts); err != nil {
			return err
		}
	}

	closed := false

	// Step 3: stop-loss check.
	if t != nil && t.CurrentShares != 0 {
		var hit bool
		if t.Direction == signal.Long {
			hit = b.Low <= t.Plan.StopLoss
		} else {
			hit = b.High >= t.Plan.StopLoss
		}
		if hit {
			if err := e.executeClose(t, trade.ExitSL, t.Plan.StopLoss, ts, trade.ReasonStopLoss, b); err != nil {
				return err
			}
			closed = true
		}
	}

	// Step 4: exit-manager check.
	if !closed && t != nil && t.CurrentShares != 0 && e.cfg.EnableExitManager && e.exitMgr != nil {
		res := e.exitMgr.Evaluate(exitmanager.Input{
			Signal:        t.Signal,
			AvgEntryPrice: t.AvgEntryPrice,
			CurrentPrice:  b.Close,
			BarsHeld:      t.BarsHeld,
			Timestamp:     ts,
		})
		if res.Urgency.ActsOn() {
			if err := e.executeClose(t, trade.ExitManagerKind, b.Close, ts, trade.ReasonExitManager, b); err != nil {
				return err
			}
			closed = true
		}
	}

	// Step 5: take-profit checks, in order.
	if !closed && t != nil && t.CurrentShares != 0 {
		if err := e.fillTakeProfits(t, b, ts); err != nil {
			return err
		}
	}

	// Step 6: new-signal evaluation.
	if !e.trades.HasActive(symbol) && e.trades.ActiveCount() < e.cfg.MaxConcurrentPositions {
		if err := e.evaluateNewSignal(symbol, history, b, ts); err != nil {
			return err
		}
	}

	// Step 7: equity update.
	equity := e.account.recordEquity(ts, e.trades.TotalUnrealized())
	if e.onEquity != nil {
		e.onEquity(EquityPoint{Timestamp: ts, Equity: equity})
	}

	return nil
}

func (e *Engine) fillPendingEntries(t *trade.Trade, b types.Bar, ts time.Time) error {
	long := t.Direction == signal.Long
	atrPct := b.Feature("atr_percentage", 2.0)

	for level := 2; level <= 3; level++ {
		if t.EntryExecuted(level) || !t.EntryExecuted(level-1) {
			continue
		}
		target := t.Plan.Entries[level-1].Price
		var crossed bool
		if long {
			crossed = b.Low <= target
		} else {
			crossed = b.High >= target
		}
		if !crossed {
			continue
		}
		fillPrice, slip := e.execModel.Fill(target, atrPct, long)
		shares := t.Plan.Entries[level-1].Shares
		if err := e.trades.ExecuteEntry(t, level, fillPrice, ts, e.execModel.Commission, slip, shares); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fillTakeProfits(t *trade.Trade, b types.Bar, ts time.Time) error {
	long := t.Direction == signal.Long
	atrPct := b.Feature("atr_percentage", 2.0)

	kinds := [4]trade.ExitKind{trade.ExitTP1, trade.ExitTP2, trade.ExitTP3, trade.ExitTP4}
	reasons := [4]trade.ExitReason{trade.ReasonTakeProfit1, trade.ReasonTakeProfit2, trade.ReasonTakeProfit3, trade.ReasonTakeProfit4}

	for i := 0; i < 4; i++ {
		tp := i + 1
		if !t.PriorExitExecuted(tp) || t.ExitExecuted(tp) {
			continue
		}
		target := t.Plan.Exits[i].Price
		var crossed bool
		if long {
			crossed = b.High >= target
		} else {
			crossed = b.Low <= target
		}
		if !crossed {
			return nil
		}
		fillPrice, slip := e.execModel.Fill(target, atrPct, !long)
		pnl, err := e.trades.ExecuteExit(t, kinds[i], fillPrice, ts, reasons[i], e.execModel.Commission, slip)
		if err != nil {
			return err
		}
		e.account.applyRealized(pnl)
		return nil // at most one new TP per bar per trade
	}
	return nil
}

func (e *Engine) executeClose(t *trade.Trade, kind trade.ExitKind, price float64, ts time.Time, reason trade.ExitReason, b types.Bar) error {
	long := t.Direction == signal.Long
	atrPct := b.Feature("atr_percentage", 2.0)
	fillPrice, slip := e.execModel.Fill(price, atrPct, !long)
	pnl, err := e.trades.ExecuteExit(t, kind, fillPrice, ts, reason, e.execModel.Commission, slip)
	if err != nil {
		return err
	}
	e.account.applyRealized(pnl)
	return nil
}

func (e *Engine) evaluateNewSignal(symbol string, history *bar.History, b types.Bar, ts time.Time) error {
	sig, err := e.signalSource.Evaluate(context.Background(), symbol, history, b)
	if err != nil {
		return err
	}
	if sig == nil {
		return nil
	}
	if sig.Strength < e.cfg.MinSignalStrength || !sig.Quality.AtLeast(e.cfg.MinEntryQuality) {
		return nil // soft rejection
	}

	equity := e.account.currentCapital + e.trades.TotalUnrealized()
	atr := b.Feature("atr", 0)
	plan, err := e.planner.Plan(sig, equity, atr)
	if err != nil {
		return err
	}
	if plan == nil || plan.TotalShares <= 0 {
		return nil // soft rejection
	}

	t, err := e.trades.OpenTrade(sig, plan)
	if err != nil {
		return err
	}

	long := sig.Direction == signal.Long
	atrPct := b.Feature("atr_percentage", 2.0)
	fillPrice, slip := e.execModel.Fill(b.Close, atrPct, long)
	return e.trades.ExecuteEntry(t, 1, fillPrice, ts, e.execModel.Commission, slip, plan.Entries[0].Shares)
}

// closeRemainingTrades implements end-of-stream: every still-open trade is
// closed at the last observed close for its symbol, reason END_OF_BACKTEST,
// a full-remainder close equivalent to TP4.
func (e *Engine) closeRemainingTrades() {
	for _, t := range e.trades.AllTrades() {
		if t.State.Closed() {
			continue
		}
		price, ok := e.lastClose[t.Symbol]
		if !ok {
			price = t.AvgEntryPrice
		}
		ts := e.lastTime[t.Symbol]
		pnl, err := e.trades.ExecuteExit(t, trade.ExitTP4, price, ts, trade.ReasonEndOfBacktest, e.execModel.Commission, 0)
		if err != nil {
			e.log.Error().Err(err).Int("trade_id", t.ID).Msg("failed to force-close trade at end of backtest")
			continue
		}
		e.account.applyRealized(pnl)
	}
}
