package models

import "errors"

// Custom errors
var (
	ErrNoMarketData      = errors.New("no market data available for symbol")
	ErrDataNotLoaded     = errors.New("historical data not loaded")
	ErrEmptyDateRange    = errors.New("no candles in requested date range")
	ErrMissingColumn     = errors.New("missing required column")
	ErrMalformedResponse = errors.New("malformed exchange response: missing result")
	ErrOrderNotFound     = errors.New("order not found")
)
