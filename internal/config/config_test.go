package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
app:
  name: tradeforge
  environment: development
  log_level: info
exchange:
  api_url: https://api.example.com
  stream_url: wss://stream.example.com
  timeout_seconds: 30
  max_retries: 3
  rate_limit_per_sec: 10
  circuit_breaker_max: 5
database:
  host: localhost
  port: 5432
  name: tradeforge
  user: trader
  password: secret
  ssl_mode: disable
  max_connections: 10
backtest:
  data_dir: data
  results_dir: results
  symbol: BTCUSDT
  timeframes: ["1m", "1h"]
  start_date: "2024-01-01"
  end_date: "2024-06-30"
  initial_capital: 10000
  risk_per_trade_pct: 1.0
  max_position_size_pct: 10.0
simulator:
  slippage_pct: 0.05
  commission_pct: 0.075
  reject_probability: 0.0
  liquidity_factor: 1.0
reconcile:
  min_interval_seconds: 5
  schedule_seconds: 60
metrics:
  enabled: true
  port: 9090
  path: /metrics
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Backtest.Symbol != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %s", cfg.Backtest.Symbol)
	}
	if len(cfg.Backtest.Timeframes) != 2 {
		t.Errorf("expected 2 timeframes, got %d", len(cfg.Backtest.Timeframes))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "from-env")
	yaml := strings.Replace(validYAML, "password: secret", "password: ${TEST_DB_PASSWORD}", 1)
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("expected password expanded from env, got %q", cfg.Database.Password)
	}
}

func TestValidateRejectsBadDates(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Backtest.StartDate = "2024-12-31"
	cfg.Backtest.EndDate = "2024-01-01"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for inverted date range")
	}
}

func TestValidateRejectsUnknownTimeframe(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Backtest.Timeframes = []string{"7m"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unsupported timeframe")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Simulator.CommissionPct != 0.075 {
		t.Errorf("expected default commission 0.075, got %v", cfg.Simulator.CommissionPct)
	}
	if cfg.Reconcile.MinIntervalSeconds != 5 {
		t.Errorf("expected default min interval 5, got %d", cfg.Reconcile.MinIntervalSeconds)
	}
}
