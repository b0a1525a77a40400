package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bikeshrana/laddertest/internal/backtest"
	"github.com/bikeshrana/laddertest/internal/core/bar"
	"github.com/bikeshrana/laddertest/internal/core/exitmanager"
	"github.com/bikeshrana/laddertest/internal/core/signal"
	"github.com/bikeshrana/laddertest/internal/data"
	"github.com/bikeshrana/laddertest/pkg/types"
)

func main() {
	symbols := flag.String("symbols", "SPY", "Comma-separated symbols to backtest")
	startDate := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "End date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 10_000, "Initial capital")
	csvDir := flag.String("csv-dir", "", "Directory of <SYMBOL>.csv bar files (timestamp,open,high,low,close,volume)")
	dbDSN := flag.String("db", "", "Postgres connection string; when set, bars are loaded from the bars table instead of --csv-dir")
	outputDir := flag.String("output", "./backtest_results", "Output directory for reports")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "backtest").Logger()

	start, err := parseDate(*startDate, time.Now().AddDate(-1, 0, 0))
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

	source, err := buildSource(*dbDSN, *csvDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build data source")
	}

	ctx := context.Background()
	stream, err := source.Load(ctx, symbolList, start, end)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load bars")
	}
	if stream.Len() == 0 {
		logger.Fatal().Msg("no bars loaded for the requested symbols/date range")
	}

	cfg := backtest.DefaultConfig()
	cfg.Symbols = symbolList
	cfg.InitialCapital = *capital

	signalSource := signal.NewThresholdSource(signal.DefaultThresholdConfig())
	exitMgr := exitmanager.NewDeteriorationManager(cfg.ExitMgr)

	engine := backtest.NewEngine(cfg, signalSource, exitMgr, logger)

	runStart := time.Now()
	result, err := engine.Run(ctx, stream)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest run failed")
	}
	logger.Info().Dur("duration", time.Since(runStart)).Int("trades", len(result.Trades)).Msg("backtest complete")

	report := backtest.NewReportGenerator(result)
	fmt.Println(report.GenerateConsoleReport())

	if err := report.SaveToFile(*outputDir); err != nil {
		logger.Error().Err(err).Msg("failed to save report")
	}
}

func buildSource(dbDSN, csvDir string, logger zerolog.Logger) (bar.HistoricalDataSource, error) {
	enrich := data.DefaultEnrichmentConfig()

	if dbDSN != "" {
		pool, err := data.Connect(context.Background(), dbDSN)
		if err != nil {
			return nil, err
		}
		return data.NewPostgresSource(pool, logger, enrich, nil), nil
	}

	if csvDir == "" {
		return nil, fmt.Errorf("one of --db or --csv-dir is required")
	}
	bySymbol, err := loadCSVDir(csvDir)
	if err != nil {
		return nil, err
	}
	bySymbol = data.EnrichBySymbol(bySymbol, enrich)
	return bar.NewMemorySource(bySymbol), nil
}

// loadCSVDir reads one CSV file per symbol from dir, named <SYMBOL>.csv with
// header timestamp,open,high,low,close,volume (RFC3339 timestamps).
func loadCSVDir(dir string) (map[string][]types.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	bySymbol := make(map[string][]types.Bar)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		symbol := strings.TrimSuffix(entry.Name(), ".csv")
		bars, err := loadCSVFile(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
		bySymbol[symbol] = bars
	}
	return bySymbol, nil
}

func loadCSVFile(path, symbol string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil
	}

	var bars []types.Bar
	for _, row := range rows[1:] { // skip header
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", row[0], err)
		}
		b := types.Bar{Symbol: symbol, Timestamp: ts}
		if b.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, err
		}
		if b.High, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, err
		}
		if b.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, err
		}
		if b.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, err
		}
		if b.Volume, err = strconv.ParseInt(row[5], 10, 64); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse("2006-01-02", s)
}
