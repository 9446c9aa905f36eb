// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/tradeforge/internal/backtest"
	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/database"
	"github.com/yourusername/tradeforge/internal/logger"
	"github.com/yourusername/tradeforge/internal/metrics"
	"github.com/yourusername/tradeforge/internal/repository"
	"github.com/yourusername/tradeforge/internal/strategy"
)

func main() {
	var (
		configPath   = flag.String("config", "config/config.yaml", "Path to config file")
		strategyName = flag.String("strategy", "ma_cross", "Strategy name to test")
		symbol       = flag.String("symbol", "", "Override symbol")
		startDate    = flag.String("start-date", "", "Override start date (YYYY-MM-DD)")
		endDate      = flag.String("end-date", "", "Override end date (YYYY-MM-DD)")
		seed         = flag.Int64("seed", -1, "Override simulator RNG seed")
		persist      = flag.Bool("persist", false, "Save the run to the database")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := loadConfigWithSecrets(*configPath)
	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)

	btConfig := buildBacktestConfig(cfg, *symbol, *startDate, *endDate, log)
	if *seed >= 0 {
		cfg.Simulator.Seed = *seed
	}

	strat := resolveStrategy(*strategyName, btConfig)
	engine := backtest.NewEngine(btConfig, cfg.Simulator, log)
	if err := engine.LoadData(); err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}

	started := time.Now()
	results, err := engine.RunBacktest(ctx, strat)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}
	metrics.RecordBacktestDuration(time.Since(started).Seconds())

	path, err := backtest.SaveResults(results, btConfig.ResultsDir)
	if err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}

	if *persist {
		persistRun(ctx, cfg, results, log)
	}

	log.WithFields(logrus.Fields{
		"status":       results.Status,
		"trades":       len(results.Trades),
		"final_equity": results.FinalEquity,
		"report":       path,
	}).Info("Backtest complete")

	fmt.Printf("Strategy:      %s\n", results.Strategy)
	fmt.Printf("Status:        %s\n", results.Status)
	fmt.Printf("Trades:        %d (win rate %.2f%%)\n", results.Metrics.TotalTrades, results.Metrics.WinRate)
	fmt.Printf("Total PnL:     %.2f (%.2f%%)\n", results.Metrics.TotalPnL, results.Metrics.TotalPnLPct)
	fmt.Printf("Max drawdown:  %.2f%%\n", results.Metrics.MaxDrawdownPct)
	fmt.Printf("Report:        %s\n", path)
}

func resolveStrategy(name string, cfg backtest.Config) strategy.Strategy {
	constructors := map[string]func() strategy.Strategy{
		"ma_cross": func() strategy.Strategy {
			return strategy.NewMACrossStrategy(cfg.PrimaryTimeframe(), 9, 27, 1.0)
		},
	}
	if build, ok := constructors[name]; ok {
		return build()
	}
	return strategy.NewMACrossStrategy(cfg.PrimaryTimeframe(), 9, 27, 1.0)
}

func loadConfigWithSecrets(path string) *config.Config {
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			logrus.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			logrus.Fatalf("Failed to load secrets: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func buildBacktestConfig(cfg *config.Config, symbol, startOverride, endOverride string, log *logrus.Logger) backtest.Config {
	if symbol != "" {
		cfg.Backtest.Symbol = symbol
	}
	if startOverride != "" {
		cfg.Backtest.StartDate = startOverride
	}
	if endOverride != "" {
		cfg.Backtest.EndDate = endOverride
	}
	btConfig, err := backtest.FromConfig(&cfg.Backtest)
	if err != nil {
		log.Fatalf("Invalid backtest config: %v", err)
	}
	return btConfig
}

func persistRun(ctx context.Context, cfg *config.Config, results *backtest.Results, log *logrus.Logger) {
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewPostgresBacktestRunRepository(db)
	id, err := repo.Save(ctx, results)
	if err != nil {
		log.Fatalf("Failed to persist run: %v", err)
	}
	log.WithField("run_id", id).Info("Run persisted")
}
