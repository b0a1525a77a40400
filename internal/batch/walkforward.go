package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
)

// WalkForwardConfig configures rolling or anchored walk-forward validation:
// optimize on an in-sample window, then test the winning parameters on the
// following out-of-sample window, sliding forward by Step until the full
// stream range is consumed.
type WalkForwardConfig struct {
	OptimizerConfig
	Start, End            time.Time
	InSample, OutOfSample time.Duration
	Step                  time.Duration
	Anchored              bool // true: in-sample window always starts at Start
}

// Period is one walk-forward window's outcome.
type Period struct {
	Number                             int
	InSampleStart, InSampleEnd         time.Time
	OutOfSampleStart, OutOfSampleEnd   time.Time
	BestParameters                     ParameterSet
	InSampleResult, OutOfSampleResult  *backtest.RunResult
	InSampleMetric, OutOfSampleMetric  float64
	PerformanceRatio                   float64 // out-of-sample / in-sample

	// RiskApproved and RiskReason carry the in-sample winner's
	// WalkForwardConfig.Risk.Manager.CanTrade verdict (see RiskConfig).
	// Always true/empty when risk tracking is disabled.
	RiskApproved bool
	RiskReason   string
}

// Result aggregates every period of a walk-forward run.
type Result struct {
	Periods                []Period
	AvgInSampleMetric      float64
	AvgOutOfSampleMetric   float64
	AvgPerformanceRatio    float64
	PeriodsWithPositiveOOS int
}

// WalkForward drives in-sample optimization followed by out-of-sample
// testing across rolling or anchored windows.
type WalkForward struct {
	cfg    WalkForwardConfig
	log    zerolog.Logger
	source func() signal.Source
	exitMg func() exitmanager.Manager
}

// NewWalkForward builds a WalkForward analyzer from cfg.
func NewWalkForward(cfg WalkForwardConfig, sourceFor func() signal.Source, exitMgrFor func() exitmanager.Manager, log zerolog.Logger) *WalkForward {
	return &WalkForward{cfg: cfg, log: log, source: sourceFor, exitMg: exitMgrFor}
}

// Analyze runs every walk-forward period in sequence (each period's
// in-sample optimization is itself parallel; periods run one after another
// since OOS window N's parameters depend on IS window N's winner).
func (w *WalkForward) Analyze(ctx context.Context, fullStream *bar.Stream) (*Result, error) {
	periods := w.generatePeriods()
	w.log.Info().Int("periods", len(periods)).Msg("starting walk-forward analysis")

	for i := range periods {
		p := &periods[i]
		if err := w.runPeriod(ctx, fullStream, p); err != nil {
			return nil, fmt.Errorf("batch: walk-forward period %d: %w", p.Number, err)
		}
	}

	return aggregate(periods), nil
}

func (w *WalkForward) runPeriod(ctx context.Context, fullStream *bar.Stream, p *Period) error {
	outSample := fullStream.Slice(p.OutOfSampleStart, p.OutOfSampleEnd)

	opt := NewOptimizer(w.cfg.OptimizerConfig, w.log)
	results, err := opt.Optimize(ctx,
		func() (*bar.Stream, error) { return fullStream.Slice(p.InSampleStart, p.InSampleEnd), nil },
		w.source, w.exitMg)
	if err != nil {
		return fmt.Errorf("in-sample optimization: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("no in-sample optimization results")
	}

	best := results[0]
	p.BestParameters = best.Parameters
	p.InSampleResult = best.Result
	p.InSampleMetric = best.MetricValue
	p.RiskApproved = best.RiskApproved
	p.RiskReason = best.RiskReason

	cfg := w.cfg.Mutate(w.cfg.Base, best.Parameters)
	engine := backtest.NewEngine(cfg, w.source(), w.exitMg(), w.log)
	oosResult, err := engine.Run(ctx, outSample)
	if err != nil {
		return fmt.Errorf("out-of-sample test: %w", err)
	}

	p.OutOfSampleResult = oosResult
	p.OutOfSampleMetric = oosResult.Metrics[w.cfg.Metric]
	if p.InSampleMetric != 0 {
		p.PerformanceRatio = p.OutOfSampleMetric / p.InSampleMetric
	}

	// Feed the out-of-sample leg back into the same shared budget the
	// period's in-sample grid search just used, so a multi-period
	// walk-forward run tracks one continuous portfolio risk budget
	// (internal/risk.PortfolioRiskManager) across periods.
	if w.cfg.Risk.enabled() {
		id := fmt.Sprintf("period-%d-oos", p.Number)
		w.cfg.Risk.Manager.UpdateEquity(oosResult.FinalCapital)
		oosReturn := 0.0
		if oosResult.InitialCapital > 0 {
			oosReturn = (oosResult.FinalCapital - oosResult.InitialCapital) / oosResult.InitialCapital
		}
		w.cfg.Risk.Manager.RecordStrategyReturn(id, oosReturn)
	}
	return nil
}

func (w *WalkForward) generatePeriods() []Period {
	var periods []Period
	n := 1
	cursor := w.cfg.Start

	for {
		inStart := cursor
		inEnd := inStart.Add(w.cfg.InSample)
		outStart := inEnd
		outEnd := outStart.Add(w.cfg.OutOfSample)

		if outEnd.After(w.cfg.End) {
			break
		}

		periods = append(periods, Period{
			Number:           n,
			InSampleStart:    inStart,
			InSampleEnd:      inEnd,
			OutOfSampleStart: outStart,
			OutOfSampleEnd:   outEnd,
		})
		n++

		if w.cfg.Anchored {
			cursor = w.cfg.Start
			// Anchored mode widens the in-sample window each period by
			// stepping only the window end forward via Step; emulate by
			// growing InSample.
			w.cfg.InSample += w.cfg.Step
		} else {
			cursor = cursor.Add(w.cfg.Step)
		}
	}

	return periods
}

func aggregate(periods []Period) *Result {
	result := &Result{Periods: periods}
	if len(periods) == 0 {
		return result
	}

	var sumIS, sumOOS, sumRatio float64
	for _, p := range periods {
		sumIS += p.InSampleMetric
		sumOOS += p.OutOfSampleMetric
		sumRatio += p.PerformanceRatio
		if p.OutOfSampleResult != nil && p.OutOfSampleResult.Metrics["total_return_pct"] > 0 {
			result.PeriodsWithPositiveOOS++
		}
	}

	n := float64(len(periods))
	result.AvgInSampleMetric = sumIS / n
	result.AvgOutOfSampleMetric = sumOOS / n
	result.AvgPerformanceRatio = sumRatio / n
	return result
}
