// Package config provides configuration management for the TradeForge application.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Exchange  ExchangeConfig  `mapstructure:"exchange" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ExchangeConfig represents exchange API configuration
type ExchangeConfig struct {
	APIURL            string  `mapstructure:"api_url" validate:"required,url"`
	StreamURL         string  `mapstructure:"stream_url" validate:"required"`
	APIKey            string  `mapstructure:"api_key"`
	APISecret         string  `mapstructure:"api_secret"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec" validate:"required,gt=0"`
	CircuitBreakerMax int     `mapstructure:"circuit_breaker_max" validate:"required,gt=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	DataDir            string   `mapstructure:"data_dir" validate:"required"`
	ResultsDir         string   `mapstructure:"results_dir" validate:"required"`
	Symbol             string   `mapstructure:"symbol" validate:"required"`
	Timeframes         []string `mapstructure:"timeframes" validate:"required,min=1,timeframes"`
	StartDate          string   `mapstructure:"start_date" validate:"required,dateonly"`
	EndDate            string   `mapstructure:"end_date" validate:"required,dateonly"`
	InitialCapital     float64  `mapstructure:"initial_capital" validate:"required,gt=0"`
	RiskPerTradePct    float64  `mapstructure:"risk_per_trade_pct" validate:"gte=0,lte=100"`
	MaxPositionSizePct float64  `mapstructure:"max_position_size_pct" validate:"required,gt=0,lte=100"`
}

// SimulatorConfig represents market simulation parameters, in percent
// (0.05 means 0.05%) to match exchange fee schedules.
type SimulatorConfig struct {
	SlippagePct       float64 `mapstructure:"slippage_pct" validate:"gte=0"`
	CommissionPct     float64 `mapstructure:"commission_pct" validate:"gte=0"`
	RejectProbability float64 `mapstructure:"reject_probability" validate:"gte=0,lte=1"`
	LiquidityFactor   float64 `mapstructure:"liquidity_factor" validate:"gte=0"`
	Seed              int64   `mapstructure:"seed"`
}

// ReconcileConfig represents state reconciliation configuration
type ReconcileConfig struct {
	MinIntervalSeconds int `mapstructure:"min_interval_seconds" validate:"required,gt=0"`
	ScheduleSeconds    int `mapstructure:"schedule_seconds" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
