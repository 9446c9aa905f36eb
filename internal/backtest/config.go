package backtest

import (
	"fmt"
	"time"

	"github.com/yourusername/tradeforge/internal/config"
	"github.com/yourusername/tradeforge/internal/models"
)

// Config carries the parsed backtest settings
type Config struct {
	DataDir            string
	ResultsDir         string
	Symbol             string
	Timeframes         []models.Timeframe
	StartDate          time.Time
	EndDate            time.Time
	InitialCapital     float64
	RiskPerTradePct    float64
	MaxPositionSizePct float64
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("backtest config is required")
	}
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid end date: %w", err)
	}

	timeframes := make([]models.Timeframe, 0, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		timeframes = append(timeframes, models.Timeframe(tf))
	}

	bt := Config{
		DataDir:            cfg.DataDir,
		ResultsDir:         cfg.ResultsDir,
		Symbol:             cfg.Symbol,
		Timeframes:         timeframes,
		StartDate:          start,
		EndDate:            end,
		InitialCapital:     cfg.InitialCapital,
		RiskPerTradePct:    cfg.RiskPerTradePct,
		MaxPositionSizePct: cfg.MaxPositionSizePct,
	}

	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("at least one timeframe is required")
	}
	if c.StartDate.After(c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}
	if c.RiskPerTradePct < 0 || c.RiskPerTradePct > 100 {
		return fmt.Errorf("risk per trade must be between 0 and 100 percent")
	}
	if c.MaxPositionSizePct <= 0 || c.MaxPositionSizePct > 100 {
		return fmt.Errorf("max position size must be between 0 and 100 percent")
	}
	return nil
}

// PrimaryTimeframe returns the timeframe the engine replays bar-by-bar
func (c Config) PrimaryTimeframe() models.Timeframe {
	return c.Timeframes[0]
}
