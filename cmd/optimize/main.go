package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bikeshrana/laddertest/internal/analysis"
	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/batch"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/data"
	"github.com/bikeshrana/laddertest/internal/risk"
)

func main() {
	symbols := flag.String("symbols", "SPY", "Comma-separated symbols")
	startDate := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "End date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 10_000, "Initial capital")
	dbDSN := flag.String("db", "", "Postgres connection string for bars (required)")
	mode := flag.String("mode", "optimize", "optimize | walkforward | montecarlo")
	workers := flag.Int("workers", 4, "Concurrent backtest runs")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	riskBudget := flag.Bool("risk-budget", false, "Track a shared portfolio risk budget across grid-search/walk-forward combinations")
	riskProfile := flag.String("risk-profile", "default", "default | aggressive | conservative")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", *mode).Logger()

	start, err := parseDate(*startDate, time.Now().AddDate(-2, 0, 0))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --start")
	}
	end, err := parseDate(*endDate, time.Now())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --end")
	}

	symbolList := strings.Split(*symbols, ",")
	for i := range symbolList {
		symbolList[i] = strings.TrimSpace(symbolList[i])
	}

	source, err := buildSource(*dbDSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build data source")
	}

	ctx := context.Background()
	streamFor := func() (*bar.Stream, error) {
		return source.Load(ctx, symbolList, start, end)
	}
	sourceFor := func() signal.Source { return signal.NewThresholdSource(signal.DefaultThresholdConfig()) }

	base := backtest.DefaultConfig()
	base.Symbols = symbolList
	base.InitialCapital = *capital

	var riskCfg batch.RiskConfig
	if *riskBudget {
		riskCfg = buildRiskConfig(*capital, *riskProfile)
	}

	switch *mode {
	case "optimize":
		runOptimize(ctx, base, streamFor, sourceFor, *workers, riskCfg, logger)
	case "walkforward":
		runWalkForward(ctx, base, start, end, streamFor, sourceFor, *workers, riskCfg, logger)
	case "montecarlo":
		runMonteCarlo(ctx, base, streamFor, sourceFor, logger)
	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

// buildRiskConfig wires a PortfolioRiskManager, a Sharpe-weighted
// DynamicAllocator, and a 1%-risk PositionSizer into one RiskConfig shared
// across every combination a grid search or walk-forward run dispatches.
func buildRiskConfig(capital float64, profile string) batch.RiskConfig {
	var limits *risk.PortfolioRiskLimits
	switch profile {
	case "aggressive":
		limits = risk.AggressiveRiskLimits()
	case "conservative":
		limits = risk.ConservativeRiskLimits()
	default:
		limits = risk.DefaultRiskLimits()
	}
	return batch.RiskConfig{
		Manager:   risk.NewPortfolioRiskManager(limits, capital),
		Allocator: risk.NewDynamicAllocator(risk.AllocationSharpeWeighted),
		Sizer:     risk.NewPercentRiskSizer(0.01, 0.2),
	}
}

func runOptimize(ctx context.Context, base backtest.Config, streamFor func() (*bar.Stream, error), sourceFor func() signal.Source, workers int, riskCfg batch.RiskConfig, logger zerolog.Logger) {
	exitMgrFor := func() exitmanager.Manager { return exitmanager.NewDeteriorationManager(base.ExitMgr) }

	optCfg := batch.OptimizerConfig{
		Base: base,
		Ranges: []batch.ParameterRange{
			batch.RangeFloat("risk_per_trade_pct", 0.005, 0.03, 0.005),
			batch.RangeFloat("min_signal_strength", 40, 80, 10),
		},
		Mutate: func(base backtest.Config, params batch.ParameterSet) backtest.Config {
			cfg := base
			if v, ok := params["risk_per_trade_pct"]; ok {
				cfg.RiskPerTradePct = v
			}
			if v, ok := params["min_signal_strength"]; ok {
				cfg.MinSignalStrength = int(v)
			}
			return cfg
		},
		Metric:  "sharpe_ratio",
		Workers: workers,
		Risk:    riskCfg,
	}

	opt := batch.NewOptimizer(optCfg, logger)
	results, err := opt.Optimize(ctx, streamFor, sourceFor, exitMgrFor)
	if err != nil {
		logger.Fatal().Err(err).Msg("optimization failed")
	}

	top := min(10, len(results))
	fmt.Printf("Ranked results (top %d of %d):\n", top, len(results))
	for _, r := range results {
		if r.Rank > top {
			break
		}
		fmt.Printf("  #%d  %+v  sharpe=%.3f  trades=%d", r.Rank, r.Parameters, r.MetricValue, len(r.Result.Trades))
		if riskCfg.Manager != nil {
			fmt.Printf("  alloc=%.1f%%  risk_ok=%v", r.Allocation*100, r.RiskApproved)
		}
		fmt.Println()
	}
	if riskCfg.Manager != nil {
		fmt.Println(riskCfg.Manager.GetPortfolioSummary())
	}
}

func runWalkForward(ctx context.Context, base backtest.Config, start, end time.Time, streamFor func() (*bar.Stream, error), sourceFor func() signal.Source, workers int, riskCfg batch.RiskConfig, logger zerolog.Logger) {
	stream, err := streamFor()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load bars")
	}
	if stream.Len() == 0 {
		logger.Fatal().Msg("no bars loaded for walk-forward analysis")
	}
	exitMgrFor := func() exitmanager.Manager { return exitmanager.NewDeteriorationManager(base.ExitMgr) }

	cfg := batch.WalkForwardConfig{
		Start: start,
		End:   end,
		OptimizerConfig: batch.OptimizerConfig{
			Base: base,
			Ranges: []batch.ParameterRange{
				batch.RangeFloat("risk_per_trade_pct", 0.005, 0.03, 0.005),
			},
			Mutate: func(base backtest.Config, params batch.ParameterSet) backtest.Config {
				cfg := base
				if v, ok := params["risk_per_trade_pct"]; ok {
					cfg.RiskPerTradePct = v
				}
				return cfg
			},
			Metric:  "sharpe_ratio",
			Workers: workers,
			Risk:    riskCfg,
		},
		InSample:    90 * 24 * time.Hour,
		OutOfSample: 30 * 24 * time.Hour,
		Step:        30 * 24 * time.Hour,
	}

	wf := batch.NewWalkForward(cfg, sourceFor, exitMgrFor, logger)
	result, err := wf.Analyze(ctx, stream)
	if err != nil {
		logger.Fatal().Err(err).Msg("walk-forward analysis failed")
	}

	fmt.Printf("Walk-forward: %d periods, avg IS=%.3f avg OOS=%.3f avg ratio=%.2f positive-OOS=%d\n",
		len(result.Periods), result.AvgInSampleMetric, result.AvgOutOfSampleMetric,
		result.AvgPerformanceRatio, result.PeriodsWithPositiveOOS)
	if riskCfg.Manager != nil {
		fmt.Println(riskCfg.Manager.GetPortfolioSummary())
	}
}

func runMonteCarlo(ctx context.Context, base backtest.Config, streamFor func() (*bar.Stream, error), sourceFor func() signal.Source, logger zerolog.Logger) {
	stream, err := streamFor()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load bars")
	}
	exitMgr := exitmanager.NewDeteriorationManager(base.ExitMgr)
	engine := backtest.NewEngine(base, sourceFor(), exitMgr, logger)
	result, err := engine.Run(ctx, stream)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest run failed")
	}

	sim := analysis.NewMonteCarloSimulator(analysis.DefaultMonteCarloConfig())
	mcResult := sim.Simulate(result)
	fmt.Println(analysis.FormatReport(mcResult))
}

func buildSource(dbDSN string, logger zerolog.Logger) (bar.HistoricalDataSource, error) {
	if dbDSN == "" {
		return nil, fmt.Errorf("--db is required")
	}
	pool, err := data.Connect(context.Background(), dbDSN)
	if err != nil {
		return nil, err
	}
	return data.NewPostgresSource(pool, logger, data.DefaultEnrichmentConfig(), nil), nil
}

func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse("2006-01-02", s)
}
