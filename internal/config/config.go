package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration for the backtest API/CLI.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration for internal/api.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds the bars/runs/trades Postgres connection settings.
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	MaxConns    int32         `mapstructure:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns"`
	MaxConnLife time.Duration `mapstructure:"max_conn_life"`
}

// BacktestConfig holds the default run parameters a CLI invocation or API
// submission starts from; individual fields can be overridden per request.
type BacktestConfig struct {
	InitialCapital         float64 `mapstructure:"initial_capital"`
	RiskPerTradePct        float64 `mapstructure:"risk_per_trade_pct"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	MinSignalStrength      int     `mapstructure:"min_signal_strength"`
	EnableExitManager      bool    `mapstructure:"enable_exit_manager"`
	RiskFreeRate           float64 `mapstructure:"risk_free_rate"`
}

// LoggingConfig holds zerolog output settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "console"
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from configPath and allows LADDER_-prefixed
// environment variables to override it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("LADDER")
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if v.IsSet("DB_HOST") {
		config.Database.Host = v.GetString("DB_HOST")
	}
	if v.IsSet("DB_PORT") {
		config.Database.Port = v.GetInt("DB_PORT")
	}
	if v.IsSet("DB_USER") {
		config.Database.User = v.GetString("DB_USER")
	}
	if v.IsSet("DB_PASSWORD") {
		config.Database.Password = v.GetString("DB_PASSWORD")
	}
	if v.IsSet("DB_NAME") {
		config.Database.Database = v.GetString("DB_NAME")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ladder")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "laddertest")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_life", 30*time.Minute)

	v.SetDefault("backtest.initial_capital", 10_000.0)
	v.SetDefault("backtest.risk_per_trade_pct", 0.015)
	v.SetDefault("backtest.max_concurrent_positions", 5)
	v.SetDefault("backtest.min_signal_strength", 55)
	v.SetDefault("backtest.enable_exit_manager", true)
	v.SetDefault("backtest.risk_free_rate", 0.02)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// ConnectionString returns a PostgreSQL connection string suitable for
// pgxpool.New, carrying the pool sizing settings as pgxpool-recognized query
// parameters (pool_max_conns, pool_min_conns, pool_max_conn_lifetime).
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&pool_max_conns=%d&pool_min_conns=%d&pool_max_conn_lifetime=%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
		c.MaxConns, c.MinConns, c.MaxConnLife,
	)
}
