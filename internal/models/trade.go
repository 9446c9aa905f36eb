package models

import (
	"strconv"
	"time"
)

// ExitReason explains why a position was closed
type ExitReason string

// Exit reasons recorded on closed trades
const (
	ExitReasonSignal     ExitReason = "Signal"
	ExitReasonReversal   ExitReason = "Reversal"
	ExitReasonEndOfTest  ExitReason = "End of backtest"
	ExitReasonTakeProfit ExitReason = "TP_HIT"
	ExitReasonStopLoss   ExitReason = "SL_HIT"
)

// Trade is the append-only record of a closed position. Created exactly once
// per position close and immutable thereafter.
type Trade struct {
	Symbol     string     `json:"symbol"`
	Side       OrderSide  `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Size       float64    `json:"size"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	// Duration is the holding time in hours. External trade logs may carry it
	// as free text like "2h 15m"; the metrics calculator accepts both forms.
	Duration   string     `json:"duration"`
	ExitReason ExitReason `json:"exit_reason"`
}

// FormatDurationHours renders a holding time as the numeric hours form
func FormatDurationHours(d time.Duration) string {
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64)
}
