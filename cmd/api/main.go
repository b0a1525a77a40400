package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bikeshrana/laddertest/internal/api"
	"github.com/bikeshrana/laddertest/internal/config"
	"github.com/bikeshrana/laddertest/internal/data"
	"github.com/bikeshrana/laddertest/internal/database"
	"github.com/bikeshrana/laddertest/internal/metrics"
	"github.com/bikeshrana/laddertest/internal/store"

	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "api").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrateDB(cfg, logger)

	pool, err := data.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metricsCollector := metrics.NewBacktestMetrics("laddertest")
	source := data.NewPostgresSource(pool, logger, data.DefaultEnrichmentConfig(), metricsCollector)
	results := store.NewResultStore(pool)

	server := api.NewServer(&cfg.Server, source, results, metricsCollector, logger)

	logger.Info().Str("addr", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting api server")
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api server exited with error")
	}
	logger.Info().Msg("api server shut down cleanly")
}

func migrateDB(cfg *config.Config, logger zerolog.Logger) {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open migration connection")
	}
	defer db.Close()

	err = database.RunMigrations(db, database.MigrationConfig{
		MigrationsPath: "migrations",
		DatabaseName:   cfg.Database.Database,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
