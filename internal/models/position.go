package models

import "time"

// Position represents a simulation-local open position. At most one open
// position exists per symbol; reversal signals replace it via close+reopen.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	EntryTime  time.Time `json:"entry_time"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	OrderID    string    `json:"order_id"`
}

// UnrealizedPnL values the position at the given mark price
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p.Side == OrderSideBuy {
		return (markPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - markPrice) * p.Size
}
