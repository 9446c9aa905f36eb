package models

import "time"

// Timeframe identifies a candle aggregation interval, e.g. "1m", "5m", "1h".
type Timeframe string

// Common timeframes supported by the data loader.
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Candle represents one OHLCV bar for a symbol and timeframe.
// Candles are immutable once loaded and ordered ascending by timestamp.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
